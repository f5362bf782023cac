// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/ledger-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	docs     map[generic.Collection][]generic.Document
	counters map[string]int64
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[generic.Collection][]generic.Document),
		counters: make(map[string]int64),
	}
}

func (m *Memory) Snapshot(_ context.Context) (*generic.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Memory) Add(_ context.Context, c generic.Collection, id string, record any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(generic.AddOp(c, id, record))
}

func (m *Memory) Update(_ context.Context, c generic.Collection, id string, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(generic.UpdateOp(c, id, patch))
}

func (m *Memory) Delete(_ context.Context, c generic.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(generic.DeleteOp(c, id))
}

// Batch applies ops atomically: on the first failure every op is undone.
func (m *Memory) Batch(_ context.Context, ops []generic.Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchLocked(ops)
}

// Reserve advances a counter under the write lock.
func (m *Memory) Reserve(_ context.Context, counter string, n, seed int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserveLocked(counter, n, seed)
}

func (m *Memory) Peek(_ context.Context, counter string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[counter], nil
}

// =============================================================================
// LOCKED HELPERS - Caller holds mu
// =============================================================================

func (m *Memory) snapshotLocked() (*generic.Snapshot, error) {
	var all []generic.Document
	for _, c := range generic.Collections() {
		all = append(all, m.docs[c]...)
	}
	return generic.DecodeSnapshot(all, m.counters)
}

func (m *Memory) find(c generic.Collection, id string) int {
	for i, d := range m.docs[c] {
		if d.ID == id {
			return i
		}
	}
	return -1
}

func (m *Memory) applyLocked(op generic.Op) error {
	if err := op.Validate(); err != nil {
		return err
	}
	i := m.find(op.Collection, op.ID)

	switch op.Kind {
	case generic.OpAdd:
		if i >= 0 {
			return &generic.DuplicateError{Collection: op.Collection, ID: op.ID}
		}
		body, err := generic.EncodeRecord(op.ID, op.Record)
		if err != nil {
			return err
		}
		m.docs[op.Collection] = append(m.docs[op.Collection], generic.Document{
			Collection: op.Collection, ID: op.ID, Body: body,
		})
	case generic.OpUpdate:
		if i < 0 {
			return &generic.NotFoundError{Collection: op.Collection, ID: op.ID}
		}
		body, err := generic.MergePatch(m.docs[op.Collection][i].Body, op.Patch)
		if err != nil {
			return err
		}
		m.docs[op.Collection][i].Body = body
	case generic.OpDelete:
		if i < 0 {
			return nil
		}
		docs := m.docs[op.Collection]
		m.docs[op.Collection] = append(docs[:i:i], docs[i+1:]...)
	}
	return nil
}

func (m *Memory) batchLocked(ops []generic.Op) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
	}
	saved := m.snapshotState()
	for _, op := range ops {
		if err := m.applyLocked(op); err != nil {
			m.restore(saved)
			return err
		}
	}
	return nil
}

func (m *Memory) reserveLocked(counter string, n, seed int64) (int64, error) {
	if n <= 0 {
		return 0, &generic.ValidationError{Field: "n", Message: "reservation size must be positive"}
	}
	next, ok := m.counters[counter]
	if !ok {
		next = max(seed, 1)
	}
	m.counters[counter] = next + n
	return next, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	saved := tm.snapshotState()
	if err := fn(&txMemoryView{parent: tm.Memory}); err != nil {
		tm.restore(saved)
		return err
	}
	return nil
}

type memorySnapshot struct {
	docs     map[generic.Collection][]generic.Document
	counters map[string]int64
}

func (m *Memory) snapshotState() memorySnapshot {
	docsCopy := make(map[generic.Collection][]generic.Document, len(m.docs))
	for k, v := range m.docs {
		docsCopy[k] = append([]generic.Document(nil), v...)
	}
	countersCopy := make(map[string]int64, len(m.counters))
	for k, v := range m.counters {
		countersCopy[k] = v
	}
	return memorySnapshot{docs: docsCopy, counters: countersCopy}
}

func (m *Memory) restore(s memorySnapshot) {
	m.docs = s.docs
	m.counters = s.counters
}

// txMemoryView runs inside WithTx, which already holds the lock.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) Snapshot(_ context.Context) (*generic.Snapshot, error) {
	return tv.parent.snapshotLocked()
}

func (tv *txMemoryView) Add(_ context.Context, c generic.Collection, id string, record any) error {
	return tv.parent.applyLocked(generic.AddOp(c, id, record))
}

func (tv *txMemoryView) Update(_ context.Context, c generic.Collection, id string, patch map[string]any) error {
	return tv.parent.applyLocked(generic.UpdateOp(c, id, patch))
}

func (tv *txMemoryView) Delete(_ context.Context, c generic.Collection, id string) error {
	return tv.parent.applyLocked(generic.DeleteOp(c, id))
}

func (tv *txMemoryView) Batch(_ context.Context, ops []generic.Op) error {
	return tv.parent.batchLocked(ops)
}

func (tv *txMemoryView) Reserve(_ context.Context, counter string, n, seed int64) (int64, error) {
	return tv.parent.reserveLocked(counter, n, seed)
}

func (tv *txMemoryView) Peek(_ context.Context, counter string) (int64, error) {
	return tv.parent.counters[counter], nil
}
