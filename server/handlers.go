package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloudx-io/nftauction/auctionapi"
	"github.com/cloudx-io/nftauction/core"
	"github.com/cloudx-io/nftauction/distributor"
	"github.com/cloudx-io/nftauction/engine"
)

type handlerFunc func(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error)

var handlers = map[string]handlerFunc{
	auctionapi.TypePing:            handlePing,
	auctionapi.TypeCreateAuction:   handleCreateAuction,
	auctionapi.TypeBid:             handleBid,
	auctionapi.TypeEndAuction:      handleEndAuction,
	auctionapi.TypeWithdraw:        handleWithdraw,
	auctionapi.TypeStakeBidback:    stakeHandler(distributor.KindBidback),
	auctionapi.TypeStakePirs:       stakeHandler(distributor.KindPirs),
	auctionapi.TypeUnstakeBidback:  unstakeHandler(distributor.KindBidback),
	auctionapi.TypeUnstakePirs:     unstakeHandler(distributor.KindPirs),
	auctionapi.TypeClaimBidback:    claimHandler(distributor.KindBidback),
	auctionapi.TypeClaimPirs:       claimHandler(distributor.KindPirs),
	auctionapi.TypeAuctionInfo:     handleAuctionInfo,
	auctionapi.TypeClaimableAmount: handleClaimableAmount,
	auctionapi.TypeAuctionID:       handleAuctionID,
	auctionapi.TypePercentages:     handlePercentages,
	auctionapi.TypeSetMaxRates:     handleSetMaxRates,
	auctionapi.TypeSetCreatorRate:  handleSetCreatorRate,
	auctionapi.TypeSetPirsRate:     handleSetPirsRate,
	auctionapi.TypeSetCreator:      handleSetCreator,
	auctionapi.TypeMintPayment:     handleMintPayment,
	auctionapi.TypeMintNFT:         handleMintNFT,
	auctionapi.TypeSetApproval:     handleSetApproval,
	auctionapi.TypeBalanceOf:       handleBalanceOf,
}

func isKnownType(t string) bool {
	_, ok := handlers[t]
	return ok
}

func (s *Server) dispatch(ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	handler, ok := handlers[header.Type]
	if !ok {
		return nil, fmt.Errorf("unknown request type: %s", header.Type)
	}
	return handler(s, ctx, header, data)
}

func decode[T any](data []byte) (*T, error) {
	var req T
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	return &req, nil
}

func handlePing(s *Server, _ context.Context, header auctionapi.Header, _ []byte) (*auctionapi.Response, error) {
	resp := auctionapi.NewResponse(header, "auction server is healthy")
	resp.Timestamp = s.clock.Now().Unix()
	return resp, nil
}

func handleCreateAuction(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.CreateAuctionRequest](data)
	if err != nil {
		return nil, err
	}
	tokenType, err := auctionapi.ParseTokenType(req.TokenType)
	if err != nil {
		return nil, err
	}

	id, err := s.market.Engine.CreateAuction(ctx, engine.CreateAuctionRequest{
		Seller:        header.Caller,
		TokenType:     tokenType,
		TokenContract: req.TokenContract,
		TokenID:       req.TokenID,
		MinimumAmount: req.MinimumAmount,
		EndTime:       req.EndTime,
		PaymentToken:  req.PaymentToken,
		BidbackRate:   req.BidbackRate,
		CreatorRate:   req.CreatorRate,
		PirsRate:      req.PirsRate,
	})
	if err != nil {
		return nil, err
	}

	resp := auctionapi.NewResponse(header, "auction created")
	resp.AuctionID = &id
	return resp, nil
}

func handleBid(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.AuctionRequest](data)
	if err != nil {
		return nil, err
	}
	if err := s.market.Engine.Bid(ctx, header.Caller, req.AuctionID, req.Amount); err != nil {
		return nil, err
	}
	resp := auctionapi.NewResponse(header, "bid accepted")
	resp.AuctionID = &req.AuctionID
	return resp, nil
}

func handleEndAuction(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.AuctionRequest](data)
	if err != nil {
		return nil, err
	}

	settlement, err := s.market.Engine.EndAuction(ctx, req.AuctionID)
	if err != nil {
		return nil, err
	}

	resp := auctionapi.NewResponse(header, "auction settled")
	resp.AuctionID = &settlement.AuctionID
	resp.Settlement = &settlement

	// The settlement is final at this point; a signing failure only loses the receipt.
	coseBytes, payload, err := s.signer.Sign(settlement)
	if err != nil {
		s.log.Error("server: failed to sign settlement receipt", "auction_id", settlement.AuctionID, "error", err)
		resp.Message = "auction settled; receipt unavailable"
		return resp, nil
	}
	resp.Receipt = coseBytes.EncodeBase64()
	resp.ReceiptID = payload.ReceiptID
	return resp, nil
}

func handleWithdraw(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.AuctionRequest](data)
	if err != nil {
		return nil, err
	}
	amount, err := s.market.Engine.Withdraw(ctx, header.Caller, req.AuctionID)
	if err != nil {
		return nil, err
	}
	resp := auctionapi.NewResponse(header, "withdrawn")
	resp.Amount = &amount
	return resp, nil
}

func stakeHandler(kind distributor.Kind) handlerFunc {
	return func(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
		req, err := decode[auctionapi.AuctionRequest](data)
		if err != nil {
			return nil, err
		}
		if err := s.market.Distributor.Stake(ctx, kind, header.Caller, req.AuctionID, req.Amount); err != nil {
			return nil, err
		}
		return auctionapi.NewResponse(header, fmt.Sprintf("%s stake added", kind)), nil
	}
}

func unstakeHandler(kind distributor.Kind) handlerFunc {
	return func(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
		req, err := decode[auctionapi.AuctionRequest](data)
		if err != nil {
			return nil, err
		}
		if err := s.market.Distributor.Unstake(ctx, kind, header.Caller, req.AuctionID, req.Amount); err != nil {
			return nil, err
		}
		return auctionapi.NewResponse(header, fmt.Sprintf("%s stake removed", kind)), nil
	}
}

func claimHandler(kind distributor.Kind) handlerFunc {
	return func(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
		req, err := decode[auctionapi.AuctionRequest](data)
		if err != nil {
			return nil, err
		}
		amount, err := s.market.Distributor.Claim(ctx, kind, header.Caller, req.AuctionID)
		if err != nil {
			return nil, err
		}
		resp := auctionapi.NewResponse(header, fmt.Sprintf("%s claimed", kind))
		resp.Amount = &amount
		return resp, nil
	}
}

func handleAuctionInfo(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.AuctionRequest](data)
	if err != nil {
		return nil, err
	}
	auction, err := s.market.Engine.AuctionInfo(req.AuctionID)
	if err != nil {
		return nil, err
	}
	resp := auctionapi.NewResponse(header, "")
	resp.AuctionID = &auction.ID
	resp.Auction = &auction

	// Settled auctions have their payouts recorded in the settlement receipt.
	if !auction.Settled {
		breakdown, err := s.market.Engine.AmountBreakdown(ctx, req.AuctionID)
		if err != nil {
			return nil, err
		}
		resp.Breakdown = &breakdown
	}
	return resp, nil
}

func handleClaimableAmount(s *Server, _ context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.AuctionRequest](data)
	if err != nil {
		return nil, err
	}
	user := req.User
	if user.IsZero() {
		user = header.Caller
	}
	amount, err := s.market.Engine.ClaimableAmount(req.AuctionID, user)
	if err != nil {
		return nil, err
	}
	resp := auctionapi.NewResponse(header, "")
	resp.Amount = &amount
	return resp, nil
}

func handleAuctionID(s *Server, _ context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.TokenRequest](data)
	if err != nil {
		return nil, err
	}
	if req.TokenID == nil {
		return nil, fmt.Errorf("token_id is required")
	}
	id, err := s.market.Engine.GetAuctionID(req.TokenContract, *req.TokenID)
	if err != nil {
		return nil, err
	}
	resp := auctionapi.NewResponse(header, "")
	resp.AuctionID = &id
	return resp, nil
}

func handlePercentages(s *Server, _ context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.AuctionRequest](data)
	if err != nil {
		return nil, err
	}
	kind := distributor.Kind(req.Pool)
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown pool %q", req.Pool)
	}
	shares := s.market.Distributor.Percentages(req.AuctionID, kind)
	resp := auctionapi.NewResponse(header, "")
	resp.AuctionID = &req.AuctionID
	resp.Shares = &shares
	return resp, nil
}

func handleSetMaxRates(s *Server, _ context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.SetMaxRatesRequest](data)
	if err != nil {
		return nil, err
	}
	if err := s.market.Rates.SetMaxRates(header.Caller, req.MaxCreatorRoyaltyRate, req.MaxPirsRate, req.MaxBidbackRate); err != nil {
		return nil, err
	}
	return auctionapi.NewResponse(header, "rate ceilings updated"), nil
}

func handleSetCreatorRate(s *Server, _ context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.TokenRequest](data)
	if err != nil {
		return nil, err
	}
	if req.Rate == nil {
		return nil, fmt.Errorf("rate is required")
	}
	if err := s.market.Rates.SetCreatorRoyaltyRate(header.Caller, req.TokenContract, *req.Rate); err != nil {
		return nil, err
	}
	return auctionapi.NewResponse(header, "creator royalty rate updated"), nil
}

func handleSetPirsRate(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.TokenRequest](data)
	if err != nil {
		return nil, err
	}
	if req.Rate == nil || req.TokenID == nil {
		return nil, fmt.Errorf("rate and token_id are required")
	}
	if req.ByCreator {
		err = s.market.Rates.SetPirsRateByCreator(ctx, header.Caller, req.TokenContract, *req.TokenID, *req.Rate)
	} else {
		err = s.market.Rates.SetPirsRate(header.Caller, req.TokenContract, *req.TokenID, *req.Rate)
	}
	if err != nil {
		return nil, err
	}
	return auctionapi.NewResponse(header, "item PIRS rate updated"), nil
}

func handleSetCreator(s *Server, _ context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.TokenRequest](data)
	if err != nil {
		return nil, err
	}
	if req.TokenID == nil {
		err = s.market.Creators.SetCollectionCreator(header.Caller, req.TokenContract, req.Creator)
	} else {
		err = s.market.Creators.SetItemCreator(header.Caller, req.TokenContract, *req.TokenID, req.Creator)
	}
	if err != nil {
		return nil, err
	}
	return auctionapi.NewResponse(header, "creator updated"), nil
}

func (s *Server) requireMinter(caller core.Address) error {
	if !s.market.Access.HasCapability(caller, core.RoleMinter) {
		return fmt.Errorf("failed to mint: %w", core.ErrUnauthorized)
	}
	return nil
}

func handleMintPayment(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.TokenRequest](data)
	if err != nil {
		return nil, err
	}
	if err := s.requireMinter(header.Caller); err != nil {
		return nil, err
	}
	token, ok := s.market.Token(req.PaymentToken)
	if !ok {
		return nil, fmt.Errorf("failed to mint %s: %w", req.PaymentToken, core.ErrPaymentTokenNotAllowed)
	}
	if err := token.Mint(ctx, req.Account, req.Amount); err != nil {
		return nil, err
	}
	balance, err := token.BalanceOf(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	resp := auctionapi.NewResponse(header, "payment tokens minted")
	resp.Amount = &balance
	return resp, nil
}

func handleMintNFT(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.TokenRequest](data)
	if err != nil {
		return nil, err
	}
	if err := s.requireMinter(header.Caller); err != nil {
		return nil, err
	}
	collection, ok := s.market.Collection(req.TokenContract)
	if !ok {
		return nil, fmt.Errorf("failed to mint on %s: %w", req.TokenContract, core.ErrUnknownTokenContract)
	}
	tokenID, err := collection.Mint(ctx, req.Account)
	if err != nil {
		return nil, err
	}
	resp := auctionapi.NewResponse(header, "token minted")
	resp.TokenID = &tokenID
	return resp, nil
}

func handleSetApproval(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.TokenRequest](data)
	if err != nil {
		return nil, err
	}
	collection, ok := s.market.Collection(req.TokenContract)
	if !ok {
		return nil, fmt.Errorf("failed to set approval on %s: %w", req.TokenContract, core.ErrUnknownTokenContract)
	}
	operator := req.Operator
	if operator.IsZero() {
		operator = s.market.Engine.Account()
	}
	collection.SetApprovalForAll(ctx, header.Caller, operator, req.Approved)
	return auctionapi.NewResponse(header, "approval updated"), nil
}

func handleBalanceOf(s *Server, ctx context.Context, header auctionapi.Header, data []byte) (*auctionapi.Response, error) {
	req, err := decode[auctionapi.TokenRequest](data)
	if err != nil {
		return nil, err
	}
	token, ok := s.market.Engine.PaymentToken(req.PaymentToken)
	if !ok {
		return nil, fmt.Errorf("failed to read balance of %s: %w", req.PaymentToken, core.ErrPaymentTokenNotAllowed)
	}
	account := req.Account
	if account.IsZero() {
		account = header.Caller
	}
	balance, err := token.BalanceOf(ctx, account)
	if err != nil {
		return nil, err
	}
	resp := auctionapi.NewResponse(header, "")
	resp.Amount = &balance
	return resp, nil
}
