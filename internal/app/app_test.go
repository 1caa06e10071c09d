package app

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/httpapi"
	"github.com/eshua1988/v0-birthday-reminder-app-sub000/internal/store"
)

// closeOrderRepo notes whether the scheduler loop had already returned when Close ran.
type closeOrderRepo struct {
	store.Repo
	loopDone        *atomic.Bool
	closedAfterLoop atomic.Bool
}

func (r *closeOrderRepo) Close() error {
	r.closedAfterLoop.Store(r.loopDone.Load())
	return r.Repo.Close()
}

func TestShutdownWaitsForScheduler(t *testing.T) {
	sqlite, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	var loopDone atomic.Bool
	repo := &closeOrderRepo{Repo: sqlite, loopDone: &loopDone}

	done := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond) // a check still running
		loopDone.Store(true)
		close(done)
	}()

	log := zap.NewNop()
	a := &App{
		log:       log,
		repo:      repo,
		http:      httpapi.New(repo, nil, log),
		schedDone: done,
	}
	if err := a.shutdown(); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if !repo.closedAfterLoop.Load() {
		t.Fatal("store closed while the scheduler loop was still running")
	}
}
