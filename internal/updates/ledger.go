// Package updates manages the lifecycle of Update records: created at
// operation start, finalized exactly once when the operation ends.
// Success is derived from the constituent logs. Concurrent operations
// on the same target produce independent updates; there is no locking.
package updates

import (
	"context"

	"github.com/monitordev/monitor/internal/store"
	"github.com/monitordev/monitor/internal/types"
	"github.com/monitordev/monitor/internal/util"
)

// Ledger persists update records.
type Ledger struct {
	Store *store.Client
}

// NewLedger returns a ledger over the given store.
func NewLedger(st *store.Client) *Ledger {
	return &Ledger{Store: st}
}

// Begin persists the update with status InProgress and returns its
// id, which is also written back onto the update.
func (l *Ledger) Begin(ctx context.Context, update *types.Update) (string, error) {
	if update.StartTS == 0 {
		update.StartTS = util.UnixMillis()
	}
	update.Status = types.UpdateInProgress
	id, err := l.Store.Updates.CreateOne(ctx, update)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Add persists an already-completed update in one step, for short
// operations (create, delete) with no in-progress phase.
func (l *Ledger) Add(ctx context.Context, update *types.Update) (string, error) {
	if update.StartTS == 0 {
		update.StartTS = util.UnixMillis()
	}
	if update.EndTS == 0 {
		update.EndTS = util.UnixMillis()
	}
	update.Status = types.UpdateComplete
	return l.Store.Updates.CreateOne(ctx, update)
}

// Finalize completes the update: sets end_ts, derives success from
// the logs, and overwrites the stored record.
func (l *Ledger) Finalize(ctx context.Context, update *types.Update) error {
	update.EndTS = util.UnixMillis()
	update.Status = types.UpdateComplete
	update.Success = types.AllLogsSuccess(update.Logs)
	return l.Store.Updates.UpdateOne(ctx, update.ID, update)
}

// ListOptions scope a ledger read.
type ListOptions struct {
	Target *types.ResourceTarget
	Limit  int64
}

// List returns updates, most recent first.
func (l *Ledger) List(ctx context.Context, opts ListOptions) ([]*types.Update, error) {
	var filter store.Filter
	if opts.Target != nil {
		filter = append(filter, store.Eq("target.type", string(opts.Target.Type)))
		if opts.Target.ID != "" {
			filter = append(filter, store.Eq("target.id", opts.Target.ID))
		}
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	return l.Store.Updates.GetSome(ctx, filter, &store.FindOptions{
		SortPath: "start_ts",
		SortDesc: true,
		Limit:    limit,
	})
}
