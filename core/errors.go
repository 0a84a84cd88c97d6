package core

import (
	"errors"
)

// Category groups rejections by what the caller did wrong.
type Category string

const (
	// CategoryValidation covers malformed or out-of-policy input.
	CategoryValidation Category = "validation"
	// CategoryState covers operations called in the wrong lifecycle state.
	CategoryState Category = "state"
	// CategoryEntitlement covers callers without standing for the operation.
	CategoryEntitlement Category = "entitlement"
	// CategoryCollaborator covers failures reported by an external backend.
	CategoryCollaborator Category = "collaborator"
)

// Error is a sentinel rejection with a stable wire code.
type Error struct {
	Code     string
	Category Category
	msg      string
}

func (e *Error) Error() string {
	return e.msg
}

func newError(code string, category Category, msg string) *Error {
	return &Error{Code: code, Category: category, msg: msg}
}

var (
	ErrInvalidAmount          = newError("invalid_amount", CategoryValidation, "amount must be a positive whole number of base units")
	ErrInvalidEndTime         = newError("invalid_end_time", CategoryValidation, "auction end time is out of range")
	ErrBelowMinimum           = newError("below_minimum", CategoryValidation, "bid is below the auction minimum amount")
	ErrBidTooLow              = newError("bid_too_low", CategoryValidation, "bid does not exceed the current highest bid")
	ErrRateExceedsCeiling     = newError("rate_exceeds_ceiling", CategoryValidation, "rate exceeds the configured ceiling")
	ErrRateOutOfRange         = newError("rate_out_of_range", CategoryValidation, "rate must be between 0 and 10000 basis points")
	ErrDuplicateAuction       = newError("duplicate_auction", CategoryValidation, "an open auction already exists for this token")
	ErrPaymentTokenNotAllowed = newError("payment_token_not_allowed", CategoryValidation, "payment token is not accepted")
	ErrUnknownTokenContract   = newError("unknown_token_contract", CategoryValidation, "token contract is not registered")
	ErrInsufficientStake      = newError("insufficient_stake", CategoryValidation, "unstake amount exceeds current stake")
	ErrZeroAddress            = newError("zero_address", CategoryValidation, "address must not be empty")

	ErrAuctionNotFound       = newError("auction_not_found", CategoryState, "auction not found")
	ErrAuctionAlreadySettled = newError("auction_already_settled", CategoryState, "auction is already settled")
	ErrAlreadySettled        = ErrAuctionAlreadySettled
	ErrAuctionStillRunning   = newError("auction_still_running", CategoryState, "auction has not reached its end time")
	ErrAuctionEnded          = newError("auction_ended", CategoryState, "auction has ended")
	ErrAuctionRunning        = newError("auction_running", CategoryState, "auction is not settled yet")
	ErrPirsRateLocked        = newError("pirs_rate_locked", CategoryState, "item PIRS rate can no longer be set by its creator")

	ErrTokenNotApproved  = newError("token_not_approved", CategoryEntitlement, "token escrow was not approved by its owner")
	ErrNotTokenOwner     = newError("not_token_owner", CategoryEntitlement, "caller does not own the token")
	ErrUserNotBidder     = newError("user_not_bidder", CategoryEntitlement, "user has not bid on this auction")
	ErrNothingToWithdraw = newError("nothing_to_withdraw", CategoryEntitlement, "nothing to withdraw")
	ErrNothingToClaim    = newError("nothing_to_claim", CategoryEntitlement, "nothing to claim")
	ErrUnauthorized      = newError("unauthorized", CategoryEntitlement, "caller lacks the required capability")
	ErrInvalidSender     = newError("invalid_sender", CategoryEntitlement, "sender is not allowed to call this operation")
	ErrNotCreator        = newError("not_creator", CategoryEntitlement, "caller is not the registered creator")

	ErrInsufficientBalance = newError("insufficient_balance", CategoryCollaborator, "insufficient balance")
	ErrUnknownToken        = newError("unknown_token", CategoryCollaborator, "token does not exist")
)

// CategoryOf returns the category of the first sentinel found in err's chain.
func CategoryOf(err error) (Category, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Category, true
	}
	return "", false
}

// CodeOf returns the wire code of the first sentinel found in err's chain,
// or "internal" when err carries none.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "internal"
}
