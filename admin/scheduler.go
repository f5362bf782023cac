package admin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/warp/ledger-engine/logger"
)

// BackupScheduler writes periodic backups into a directory.
//
// Files are named backup_<UTC timestamp>.json.gz. A failing run is logged
// and retried on the next tick.
type BackupScheduler struct {
	svc *Service
	dir string
	log *logger.Logger
	now func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
	last string
}

// NewBackupScheduler parses a standard 5-field cron schedule,
// e.g. "0 2 * * *" for 02:00 every day.
func NewBackupScheduler(svc *Service, dir, schedule string, log *logger.Logger) (*BackupScheduler, error) {
	bs := &BackupScheduler{
		svc:  svc,
		dir:  dir,
		log:  log.WithComponent("backup"),
		now:  time.Now,
		cron: cron.New(),
	}
	if _, err := bs.cron.AddFunc(schedule, func() { _, _ = bs.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("admin: backup schedule %q: %w", schedule, err)
	}
	return bs, nil
}

func (bs *BackupScheduler) Start() {
	bs.cron.Start()
	bs.log.Infow("backup scheduler started", "dir", bs.dir)
}

// Stop waits for a running backup to finish or ctx to expire.
func (bs *BackupScheduler) Stop(ctx context.Context) {
	done := bs.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	bs.log.Infow("backup scheduler stopped")
}

// Last returns the path of the last successful backup.
func (bs *BackupScheduler) Last() string {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	return bs.last
}

// RunOnce writes one backup file and returns its path.
func (bs *BackupScheduler) RunOnce(ctx context.Context) (string, error) {
	if err := os.MkdirAll(bs.dir, 0o755); err != nil {
		bs.log.Errorw("backup failed", "error", err)
		return "", err
	}
	name := "backup_" + bs.now().UTC().Format("20060102T150405") + ".json.gz"
	path := filepath.Join(bs.dir, name)
	tmp := path + ".tmp"

	if err := bs.write(ctx, tmp); err != nil {
		_ = os.Remove(tmp)
		bs.log.Errorw("backup failed", "path", path, "error", err)
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		bs.log.Errorw("backup failed", "path", path, "error", err)
		return "", err
	}

	bs.mu.Lock()
	bs.last = path
	bs.mu.Unlock()
	bs.log.Infow("backup written", "path", path)
	return path, nil
}

func (bs *BackupScheduler) write(ctx context.Context, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bs.svc.Export(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
