package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/warp/ledger-engine/accounting"
	"github.com/warp/ledger-engine/generic"
	"github.com/warp/ledger-engine/sales"
)

// =============================================================================
// BACKUP - Whole-snapshot export and restore as gzip JSON
// =============================================================================

const backupVersion = 1

// Backup is the file format: a versioned snapshot of every collection.
type Backup struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"createdAt"`
	Data      *generic.Snapshot `json:"data"`
}

// Export writes the current snapshot to w as gzip-compressed JSON.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(w)
	enc := json.NewEncoder(zw)
	if err := enc.Encode(Backup{Version: backupVersion, CreatedAt: time.Now().UTC(), Data: snap}); err != nil {
		_ = zw.Close()
		return fmt.Errorf("admin: encode backup: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("admin: compress backup: %w", err)
	}
	s.log.WithContext(ctx).Infow("backup exported", "entries", len(snap.JournalEntries))
	return nil
}

// ReadBackup decodes and checks a backup stream.
func ReadBackup(r io.Reader) (Backup, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return Backup{}, &generic.ValidationError{Field: "backup", Message: "not a gzip stream"}
	}
	defer zr.Close()

	var b Backup
	if err := json.NewDecoder(zr).Decode(&b); err != nil {
		return Backup{}, &generic.ValidationError{Field: "backup", Message: "invalid backup file format"}
	}
	if b.Version != backupVersion {
		return Backup{}, &generic.ValidationError{Field: "version", Message: fmt.Sprintf("unsupported backup version %d", b.Version)}
	}
	if b.Data == nil || b.Data.Customers == nil || b.Data.Items == nil {
		return Backup{}, &generic.ValidationError{Field: "data", Message: "backup has no customers or items"}
	}
	return b, nil
}

// Restore replaces every record with the backup's in one batch, then raises
// each voucher, invoice and bale counter past the highest number the restored
// data uses. Counters only move forward, so a number handed out before the
// restore is never reissued either.
func (s *Service) Restore(ctx context.Context, r io.Reader) (Result, error) {
	b, err := ReadBackup(r)
	if err != nil {
		return Result{}, err
	}
	current, err := s.store.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}

	p := newPlan("restore")
	for _, c := range generic.Collections() {
		for _, rec := range current.Records(c) {
			p.delete(rec.Collection, rec.ID)
		}
	}
	for _, c := range generic.Collections() {
		for _, rec := range b.Data.Records(c) {
			p.ops = append(p.ops, generic.AddOp(rec.Collection, rec.ID, rec.Value))
			p.result.Updated = append(p.result.Updated, string(rec.Collection)+"/"+rec.ID)
		}
	}

	floors := counterFloors(b.Data)
	err = generic.RunInTx(ctx, s.store, func(tx generic.Store) error {
		if len(p.ops) > 0 {
			if err := tx.Batch(ctx, p.ops); err != nil {
				return err
			}
		}
		for _, name := range slices.Sorted(maps.Keys(floors)) {
			if err := generic.AdvanceCounter(ctx, tx, name, floors[name]); err != nil {
				return fmt.Errorf("admin: advance counter %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	s.log.WithContext(ctx).Infow("admin command finished",
		"command", p.result.Command,
		"updated", len(p.result.Updated),
		"deleted", len(p.result.Deleted),
		"counters", len(floors),
	)
	return p.result, nil
}

// counterFloors returns, per counter, the lowest value the next reservation
// may start at without colliding with a number snap already uses.
func counterFloors(snap *generic.Snapshot) map[string]int64 {
	floors := map[string]int64{}
	raise := func(counter string, next int64) {
		if next > floors[counter] {
			floors[counter] = next
		}
	}
	for _, je := range snap.JournalEntries {
		if counter, n, ok := accounting.NumberedBy(je.VoucherID); ok {
			raise(counter, n+1)
		}
	}
	for _, inv := range snap.SalesInvoices {
		if n, ok := sales.InvoiceNumber(inv.ID); ok {
			raise(generic.CounterInvoice, n+1)
		}
	}
	for _, it := range snap.Items {
		raise(generic.BaleCounter(it.ID), it.NextBaleNumber)
	}
	for _, pr := range snap.Productions {
		if pr.HasBaleRange() {
			raise(generic.BaleCounter(pr.ItemID), pr.EndBaleNumber+1)
		}
	}
	return floors
}
