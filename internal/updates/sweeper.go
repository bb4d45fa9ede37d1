package updates

import (
	"context"
	"log/slog"
	"time"

	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// Sweeper reconciles updates left InProgress by a crashed or
// cancelled operation: anything older than the cutoff with no
// progress is finalized as failed.
type Sweeper struct {
	Ledger   *Ledger
	Interval time.Duration
	Cutoff   time.Duration

	logger *slog.Logger
}

// NewSweeper wires a sweeper over the ledger.
func NewSweeper(ledger *Ledger, interval, cutoff time.Duration) *Sweeper {
	return &Sweeper{
		Ledger:   ledger,
		Interval: interval,
		Cutoff:   cutoff,
		logger:   util.With("component", "update-sweeper"),
	}
}

// Run sweeps on the configured interval until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Error("sweep failed", "err", err)
			}
		}
	}
}

// SweepOnce finalizes every stale in-progress update.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	deadline := util.UnixMillis() - s.Cutoff.Milliseconds()
	stale, err := s.Ledger.Store.Updates.GetSome(ctx, store.Filter{
		store.Eq("status", string(types.UpdateInProgress)),
	}, nil)
	if err != nil {
		return err
	}
	for _, update := range stale {
		if update.StartTS > deadline {
			continue
		}
		update.Logs = append(update.Logs,
			types.ErrorLog("stale", "operation made no progress and was closed by the sweeper"))
		if err := s.Ledger.Finalize(ctx, update); err != nil {
			s.logger.Warn("failed to finalize stale update", "update", update.ID, "err", err)
			continue
		}
		s.logger.Info("closed stale update",
			"update", update.ID, "operation", update.Operation)
	}
	return nil
}
