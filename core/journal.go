package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Journal records the compensating action for every external side effect of one operation.
// On failure Rollback replays them in reverse order; on success Commit discards them.
// A Journal is used by a single goroutine.
type Journal struct {
	undo []func(ctx context.Context) error
}

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{}
}

// Transfer moves amount through token and records the reverse transfer.
// Zero amounts are skipped.
func (j *Journal) Transfer(ctx context.Context, token PaymentToken, from, to Address, amount decimal.Decimal) error {
	if amount.IsZero() {
		return nil
	}
	if err := token.TransferFrom(ctx, from, to, amount); err != nil {
		return err
	}
	j.OnRollback(func(ctx context.Context) error {
		return token.TransferFrom(ctx, to, from, amount)
	})
	return nil
}

// OnRollback registers a compensating action.
func (j *Journal) OnRollback(fn func(ctx context.Context) error) {
	j.undo = append(j.undo, fn)
}

// Len returns the number of recorded actions.
func (j *Journal) Len() int {
	return len(j.undo)
}

// Rollback runs every compensating action in reverse order.
// It keeps going after a failure and returns all errors joined.
func (j *Journal) Rollback(ctx context.Context) error {
	var errs []error
	for i := len(j.undo) - 1; i >= 0; i-- {
		if err := j.undo[i](ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to undo step %d: %w", i, err))
		}
	}
	j.undo = nil
	return errors.Join(errs...)
}

// Commit forgets every recorded action.
func (j *Journal) Commit() {
	j.undo = nil
}
