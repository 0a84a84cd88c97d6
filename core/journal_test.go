package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

// mapToken is a minimal PaymentToken for journal tests.
type mapToken struct {
	balances map[Address]decimal.Decimal
	failTo   Address
}

func (m *mapToken) TransferFrom(_ context.Context, from, to Address, amount decimal.Decimal) error {
	if to == m.failTo {
		return ErrInsufficientBalance
	}
	if m.balances[from].LessThan(amount) {
		return ErrInsufficientBalance
	}
	m.balances[from] = m.balances[from].Sub(amount)
	m.balances[to] = m.balances[to].Add(amount)
	return nil
}

func (m *mapToken) BalanceOf(_ context.Context, account Address) (decimal.Decimal, error) {
	return m.balances[account], nil
}

func TestJournal_RollbackReversesTransfers(t *testing.T) {
	ctx := context.Background()
	token := &mapToken{balances: map[Address]decimal.Decimal{"alice": decimal.NewFromInt(100)}}
	j := NewJournal()

	assert.NoError(t, j.Transfer(ctx, token, "alice", "escrow", decimal.NewFromInt(60)))
	assert.NoError(t, j.Transfer(ctx, token, "escrow", "fees", decimal.NewFromInt(10)))
	check.Equal(t, 2, j.Len())

	assert.NoError(t, j.Rollback(ctx))
	check.Equal(t, decimal.NewFromInt(100), token.balances["alice"])
	check.Equal(t, decimal.Zero, token.balances["escrow"])
	check.Equal(t, decimal.Zero, token.balances["fees"])
	check.Equal(t, 0, j.Len())
}

func TestJournal_ZeroTransferIsSkipped(t *testing.T) {
	token := &mapToken{balances: map[Address]decimal.Decimal{}}
	j := NewJournal()

	assert.NoError(t, j.Transfer(context.Background(), token, "alice", "bob", decimal.Zero))
	check.Equal(t, 0, j.Len())
}

func TestJournal_FailedTransferIsNotRecorded(t *testing.T) {
	token := &mapToken{balances: map[Address]decimal.Decimal{"alice": decimal.NewFromInt(5)}}
	j := NewJournal()

	err := j.Transfer(context.Background(), token, "alice", "bob", decimal.NewFromInt(6))
	check.True(t, errors.Is(err, ErrInsufficientBalance))
	check.Equal(t, 0, j.Len())
}

func TestJournal_RollbackOrderAndErrors(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	j := NewJournal()
	j.OnRollback(func(context.Context) error { order = append(order, 1); return nil })
	j.OnRollback(func(context.Context) error { order = append(order, 2); return boom })
	j.OnRollback(func(context.Context) error { order = append(order, 3); return nil })

	err := j.Rollback(context.Background())
	check.True(t, errors.Is(err, boom))
	check.Equal(t, []int{3, 2, 1}, order)
}

func TestJournal_Commit(t *testing.T) {
	called := false
	j := NewJournal()
	j.OnRollback(func(context.Context) error { called = true; return nil })
	j.Commit()

	assert.NoError(t, j.Rollback(context.Background()))
	check.False(t, called)
}

func TestAuctionLocks_Serializes(t *testing.T) {
	locks := NewAuctionLocks()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock(3)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	check.Equal(t, 50, counter)
}

func TestErrorCategories(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), ErrBidTooLow)

	cat, ok := CategoryOf(wrapped)
	check.True(t, ok)
	check.Equal(t, CategoryValidation, cat)
	check.Equal(t, "bid_too_low", CodeOf(wrapped))
	check.Equal(t, "internal", CodeOf(errors.New("plain")))

	_, ok = CategoryOf(errors.New("plain"))
	check.False(t, ok)
	check.True(t, errors.Is(ErrAlreadySettled, ErrAuctionAlreadySettled))
}
