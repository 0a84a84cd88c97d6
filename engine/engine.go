// Package engine runs English auctions for NFTs: it escrows tokens and bids,
// enforces bidding rules and splits the winning bid at settlement.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/metrics"
)

// record is an auction with its bid ledger.
type record struct {
	auction   core.Auction
	claimable map[core.Address]decimal.Decimal
	bidders   map[core.Address]struct{}

	deposited decimal.Decimal
	refunded  decimal.Decimal
	paidOut   decimal.Decimal
}

type Engine struct {
	log     *slog.Logger
	clock   clockwork.Clock
	account core.Address
	access  core.AccessGate
	tokens  core.TokenRegistry
	locks   *core.AuctionLocks
	maxDur  time.Duration

	// createMu keeps ids in creation order.
	createMu sync.Mutex

	mu            sync.RWMutex
	fees          FeeConfig
	hooks         Hooks
	paymentTokens map[core.Address]core.PaymentToken
	records       []*record
	latest        map[string]core.AuctionID
	open          map[string]core.AuctionID
}

func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	paymentTokens := make(map[core.Address]core.PaymentToken, len(cfg.PaymentTokens))
	for addr, token := range cfg.PaymentTokens {
		paymentTokens[addr] = token
	}

	return &Engine{
		log:           cfg.Logger,
		clock:         cfg.Clock,
		account:       cfg.Account,
		access:        cfg.Access,
		tokens:        cfg.Tokens,
		locks:         cfg.Locks,
		maxDur:        cfg.MaxDuration,
		fees:          cfg.Fees,
		hooks:         cfg.Hooks,
		paymentTokens: paymentTokens,
		latest:        make(map[string]core.AuctionID),
		open:          make(map[string]core.AuctionID),
	}, nil
}

// CreateAuctionRequest describes a new listing.
// CreatorRate and PirsRate override the configured rates when set.
type CreateAuctionRequest struct {
	Seller        core.Address
	TokenType     core.TokenType
	TokenContract core.Address
	TokenID       uint64
	MinimumAmount decimal.Decimal
	EndTime       time.Time
	PaymentToken  core.Address
	BidbackRate   core.BasisPoints
	CreatorRate   *core.BasisPoints
	PirsRate      *core.BasisPoints
}

// CreateAuction escrows the token and opens a new auction.
func (e *Engine) CreateAuction(ctx context.Context, req CreateAuctionRequest) (core.AuctionID, error) {
	e.createMu.Lock()
	defer e.createMu.Unlock()

	backend, ok := e.tokens.Backend(req.TokenContract)
	if !ok {
		return 0, fmt.Errorf("failed to create auction for %s: %w", req.TokenContract, core.ErrUnknownTokenContract)
	}
	if _, ok := e.PaymentToken(req.PaymentToken); !ok {
		return 0, fmt.Errorf("failed to create auction in %s: %w", req.PaymentToken, core.ErrPaymentTokenNotAllowed)
	}

	// An escrowed token is owned by the engine account, so this must run
	// before the owner check.
	key := core.ComputeTokenKey(req.TokenContract, req.TokenID)
	e.mu.RLock()
	_, duplicate := e.open[key]
	e.mu.RUnlock()
	if duplicate {
		return 0, fmt.Errorf("failed to create auction for token %d: %w", req.TokenID, core.ErrDuplicateAuction)
	}
	if !core.ValidAmount(req.MinimumAmount) {
		return 0, fmt.Errorf("failed to create auction with minimum %s: %w", req.MinimumAmount, core.ErrInvalidAmount)
	}
	now := e.clock.Now()
	if !req.EndTime.After(now) || req.EndTime.Sub(now) > e.maxDur {
		return 0, fmt.Errorf("failed to create auction ending at %s: %w", req.EndTime.Format(time.RFC3339), core.ErrInvalidEndTime)
	}

	owner, err := backend.OwnerOf(ctx, req.TokenID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up owner of token %d: %w", req.TokenID, err)
	}
	if owner != req.Seller {
		return 0, fmt.Errorf("failed to create auction for token %d: %w", req.TokenID, core.ErrNotTokenOwner)
	}
	approved, err := backend.IsApprovedForAuction(ctx, req.Seller, e.account)
	if err != nil {
		return 0, fmt.Errorf("failed to check approval of token %d: %w", req.TokenID, err)
	}
	if !approved {
		return 0, fmt.Errorf("failed to create auction for token %d: %w", req.TokenID, core.ErrTokenNotApproved)
	}

	e.mu.RLock()
	id := core.AuctionID(len(e.records))
	hooks := e.hooks
	e.mu.RUnlock()

	j := core.NewJournal()
	rates, err := hooks.Rates.SnapshotAuctionRates(j, e.account, id, req.TokenContract, req.TokenID, req.BidbackRate, req.CreatorRate, req.PirsRate)
	if err != nil {
		return 0, e.rollback(ctx, "create_auction", j, fmt.Errorf("failed to snapshot rates: %w", err))
	}
	if err := backend.TransferInto(ctx, req.Seller, e.account, req.TokenID); err != nil {
		return 0, e.rollback(ctx, "create_auction", j, fmt.Errorf("failed to escrow token %d: %w", req.TokenID, err))
	}
	j.Commit()

	rec := &record{
		auction: core.Auction{
			ID:            id,
			TokenType:     req.TokenType,
			TokenContract: req.TokenContract,
			TokenID:       req.TokenID,
			Seller:        req.Seller,
			PaymentToken:  req.PaymentToken,
			MinimumAmount: req.MinimumAmount,
			HighestBid:    decimal.Zero,
			EndTime:       req.EndTime,
			BidbackRate:   rates.Bidback,
			CreatorRate:   rates.Creator,
			PirsRate:      rates.Pirs,
			CreatedAt:     now,
		},
		claimable: make(map[core.Address]decimal.Decimal),
		bidders:   make(map[core.Address]struct{}),
	}

	e.mu.Lock()
	e.records = append(e.records, rec)
	e.latest[key] = id
	e.open[key] = id
	e.mu.Unlock()

	metrics.AuctionsCreatedTotal.Inc()
	e.log.Info("engine: auction created",
		"auction_id", id,
		"token_contract", req.TokenContract,
		"token_id", req.TokenID,
		"seller", req.Seller,
		"minimum", req.MinimumAmount,
		"end_time", req.EndTime,
		"rates", rates)
	return id, nil
}

// Bid places amount on auction id. The bid fee is charged on top of amount.
// A leader bidding again raises their own bid by amount.
func (e *Engine) Bid(ctx context.Context, bidder core.Address, id core.AuctionID, amount decimal.Decimal) error {
	unlock := e.locks.Lock(id)
	defer unlock()

	e.mu.RLock()
	rec, ok := e.record(id)
	var auction core.Auction
	var previousClaim decimal.Decimal
	if ok {
		auction = rec.auction
		previousClaim = rec.claimable[bidder]
	}
	fees := e.fees
	e.mu.RUnlock()

	if !ok {
		return fmt.Errorf("failed to bid on auction %s: %w", id, core.ErrAuctionNotFound)
	}
	if auction.Settled {
		return fmt.Errorf("failed to bid on auction %s: %w", id, core.ErrAuctionAlreadySettled)
	}
	if !e.clock.Now().Before(auction.EndTime) {
		return fmt.Errorf("failed to bid on auction %s: %w", id, core.ErrAuctionEnded)
	}
	if !core.ValidAmount(amount) {
		return fmt.Errorf("failed to bid %s: %w", amount, core.ErrInvalidAmount)
	}

	selfRaise := auction.HasBids() && auction.HighestBidder == bidder
	switch {
	case !auction.HasBids() && amount.LessThan(auction.MinimumAmount):
		return fmt.Errorf("failed to bid %s on auction %s (minimum %s): %w", amount, id, auction.MinimumAmount, core.ErrBelowMinimum)
	case auction.HasBids() && !selfRaise && amount.LessThanOrEqual(auction.HighestBid):
		return fmt.Errorf("failed to bid %s on auction %s (highest %s): %w", amount, id, auction.HighestBid, core.ErrBidTooLow)
	}

	token, ok := e.PaymentToken(auction.PaymentToken)
	if !ok {
		return fmt.Errorf("failed to bid on auction %s: %w", id, core.ErrPaymentTokenNotAllowed)
	}

	// An outbid bidder coming back has their pending refund netted against the new bid.
	netted := decimal.Zero
	if !selfRaise {
		netted = previousClaim
	}

	j := core.NewJournal()
	fee := core.ApplyRate(amount, fees.BidFeeRate)
	if err := j.Transfer(ctx, token, bidder, fees.Recipient, fee); err != nil {
		return e.rollback(ctx, "bid", j, fmt.Errorf("failed to pay bid fee: %w", err))
	}
	switch {
	case amount.GreaterThan(netted):
		if err := j.Transfer(ctx, token, bidder, e.account, amount.Sub(netted)); err != nil {
			return e.rollback(ctx, "bid", j, fmt.Errorf("failed to escrow bid: %w", err))
		}
	case netted.GreaterThan(amount):
		if err := j.Transfer(ctx, token, e.account, bidder, netted.Sub(amount)); err != nil {
			return e.rollback(ctx, "bid", j, fmt.Errorf("failed to refund netted claim: %w", err))
		}
	}
	j.Commit()

	e.mu.Lock()
	previousLeader, previousHighest := rec.auction.HighestBidder, rec.auction.HighestBid
	if selfRaise {
		rec.auction.HighestBid = rec.auction.HighestBid.Add(amount)
	} else {
		if !previousLeader.IsZero() {
			rec.claimable[previousLeader] = rec.claimable[previousLeader].Add(previousHighest)
		}
		if netted.IsPositive() {
			rec.claimable[bidder] = decimal.Zero
			rec.refunded = rec.refunded.Add(netted)
		}
		rec.auction.HighestBid = amount
		rec.auction.HighestBidder = bidder
	}
	rec.deposited = rec.deposited.Add(amount)
	rec.bidders[bidder] = struct{}{}
	highest := rec.auction.HighestBid
	e.mu.Unlock()

	kind := "outbid"
	switch {
	case selfRaise:
		kind = "raise"
	case previousLeader.IsZero():
		kind = "first"
	}
	metrics.BidsTotal.WithLabelValues(kind).Inc()
	e.log.Info("engine: bid accepted",
		"auction_id", id,
		"bidder", bidder,
		"amount", amount,
		"fee", fee,
		"highest", highest,
		"kind", kind)
	return nil
}

// Withdraw pays out the caller's pending refund. While the auction is open it
// also returns the caller's bidback stake.
func (e *Engine) Withdraw(ctx context.Context, bidder core.Address, id core.AuctionID) (decimal.Decimal, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	e.mu.RLock()
	rec, ok := e.record(id)
	var auction core.Auction
	var claim decimal.Decimal
	if ok {
		auction = rec.auction
		claim = rec.claimable[bidder]
	}
	hooks := e.hooks
	e.mu.RUnlock()

	if !ok {
		return decimal.Zero, fmt.Errorf("failed to withdraw from auction %s: %w", id, core.ErrAuctionNotFound)
	}
	if !claim.IsPositive() {
		return decimal.Zero, fmt.Errorf("failed to withdraw from auction %s: %w", id, core.ErrNothingToWithdraw)
	}
	token, ok := e.PaymentToken(auction.PaymentToken)
	if !ok {
		return decimal.Zero, fmt.Errorf("failed to withdraw from auction %s: %w", id, core.ErrPaymentTokenNotAllowed)
	}

	j := core.NewJournal()
	if err := j.Transfer(ctx, token, e.account, bidder, claim); err != nil {
		return decimal.Zero, e.rollback(ctx, "withdraw", j, fmt.Errorf("failed to pay refund: %w", err))
	}
	released := decimal.Zero
	if !auction.Settled {
		var err error
		released, err = hooks.Rewards.ReleaseBidback(ctx, j, e.account, id, bidder, token)
		if err != nil {
			return decimal.Zero, e.rollback(ctx, "withdraw", j, err)
		}
	}
	j.Commit()

	e.mu.Lock()
	rec.claimable[bidder] = decimal.Zero
	rec.refunded = rec.refunded.Add(claim)
	e.mu.Unlock()

	e.log.Info("engine: refund withdrawn", "auction_id", id, "bidder", bidder, "amount", claim, "bidback_released", released)
	return claim, nil
}

// rollback undoes j and returns cause, joined with any undo failure.
func (e *Engine) rollback(ctx context.Context, op string, j *core.Journal, cause error) error {
	if j.Len() == 0 {
		return cause
	}
	if err := j.Rollback(context.WithoutCancel(ctx)); err != nil {
		metrics.RollbacksTotal.WithLabelValues(op, "incomplete").Inc()
		e.log.Error("engine: rollback incomplete", "operation", op, "cause", cause, "error", err)
		return errors.Join(cause, err)
	}
	metrics.RollbacksTotal.WithLabelValues(op, "complete").Inc()
	e.log.Warn("engine: operation rolled back", "operation", op, "cause", cause)
	return cause
}

// record must be called with e.mu held.
func (e *Engine) record(id core.AuctionID) (*record, bool) {
	if uint64(id) >= uint64(len(e.records)) {
		return nil, false
	}
	return e.records[id], true
}
