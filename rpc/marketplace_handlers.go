package rpc

import (
	"math/big"
	"net/http"

	"melodia/core/types"
	"melodia/native/marketplace"
)

type createListingParams struct {
	Caller        string `json:"caller"`
	TokenContract string `json:"tokenContract"`
	TokenID       uint64 `json:"tokenId"`
	Price         string `json:"price"`
}

type buyParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
	Paid      string `json:"paid"`
}

type cancelParams struct {
	Caller    string `json:"caller"`
	ListingID uint64 `json:"listingId"`
}

type callerParams struct {
	Caller string `json:"caller"`
}

type beneficiaryParams struct {
	Beneficiary string `json:"beneficiary"`
}

type tokenRefParams struct {
	TokenContract string `json:"tokenContract"`
	TokenID       uint64 `json:"tokenId"`
}

type pageParams struct {
	Start uint64 `json:"start"`
	Limit uint64 `json:"limit"`
}

type sellerPageParams struct {
	Seller string `json:"seller"`
	Start  uint64 `json:"start"`
	Limit  uint64 `json:"limit"`
}

type listingResult struct {
	ListingID     uint64 `json:"listingId"`
	Seller        string `json:"seller"`
	TokenContract string `json:"tokenContract"`
	TokenID       uint64 `json:"tokenId"`
	Price         string `json:"price"`
	Active        bool   `json:"active"`
	CreatedAt     int64  `json:"createdAt"`
}

type totalsResult struct {
	TotalListings  uint64 `json:"totalListings"`
	ActiveListings uint64 `json:"activeListings"`
}

type withdrawResult struct {
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
}

type pendingResult struct {
	Beneficiary string `json:"beneficiary"`
	Pending     string `json:"pending"`
}

func formatListing(listing *marketplace.Listing) listingResult {
	price := "0"
	if listing.Price != nil {
		price = listing.Price.String()
	}
	return listingResult{
		ListingID:     listing.ID,
		Seller:        types.HexAddr(listing.Seller),
		TokenContract: types.HexAddr(listing.TokenContract),
		TokenID:       listing.TokenID,
		Price:         price,
		Active:        listing.Active,
		CreatedAt:     listing.CreatedAt,
	}
}

func formatListings(listings []*marketplace.Listing) []listingResult {
	out := make([]listingResult, 0, len(listings))
	for _, listing := range listings {
		out = append(out, formatListing(listing))
	}
	return out
}

func parseAmount(raw string) (*big.Int, bool) {
	if raw == "" {
		return big.NewInt(0), true
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, false
	}
	return amount, true
}

func (s *Server) handleCreateListing(w http.ResponseWriter, req *RPCRequest) {
	var params createListingParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address")
		return
	}
	contract, err := types.ParseAddress(params.TokenContract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token contract address")
		return
	}
	price, ok := parseAmount(params.Price)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid price")
		return
	}
	var id uint64
	err = s.execute(func() error {
		var callErr error
		id, callErr = s.market.CreateListing(caller, contract, params.TokenID, price)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]uint64{"listingId": id})
}

func (s *Server) handleBuy(w http.ResponseWriter, req *RPCRequest) {
	var params buyParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address")
		return
	}
	paid, ok := parseAmount(params.Paid)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid paid amount")
		return
	}
	err = s.execute(func() error {
		return s.market.BuyNFT(caller, params.ListingID, paid)
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"sold": true})
}

func (s *Server) handleCancel(w http.ResponseWriter, req *RPCRequest) {
	var params cancelParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address")
		return
	}
	err = s.execute(func() error {
		return s.market.CancelListing(caller, params.ListingID)
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"cancelled": true})
}

func (s *Server) handleMarketWithdraw(w http.ResponseWriter, req *RPCRequest) {
	var params callerParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address")
		return
	}
	var amount *big.Int
	err = s.execute(func() error {
		var callErr error
		amount, callErr = s.market.WithdrawPayments(caller)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, withdrawResult{Beneficiary: params.Caller, Amount: amount.String()})
}

func (s *Server) handleMarketPending(w http.ResponseWriter, req *RPCRequest) {
	var params beneficiaryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	beneficiary, err := types.ParseAddress(params.Beneficiary)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid beneficiary address")
		return
	}
	var pending *big.Int
	err = s.query(func() error {
		var callErr error
		pending, callErr = s.market.PendingPayment(beneficiary)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pendingResult{Beneficiary: params.Beneficiary, Pending: pending.String()})
}

func (s *Server) handleListingByToken(w http.ResponseWriter, req *RPCRequest) {
	var params tokenRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	contract, err := types.ParseAddress(params.TokenContract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token contract address")
		return
	}
	var (
		listing *marketplace.Listing
		ok      bool
	)
	err = s.query(func() error {
		var callErr error
		listing, ok, callErr = s.market.ListingByToken(contract, params.TokenID)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	if !ok {
		// Zero-sentinel tuple: no active listing for the token.
		writeResult(w, req.ID, listingResult{Seller: types.HexAddr(types.ZeroAddress)})
		return
	}
	writeResult(w, req.ID, formatListing(listing))
}

func (s *Server) handleIsListed(w http.ResponseWriter, req *RPCRequest) {
	var params tokenRefParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	contract, err := types.ParseAddress(params.TokenContract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token contract address")
		return
	}
	var listed bool
	err = s.query(func() error {
		var callErr error
		listed, callErr = s.market.IsTokenListed(contract, params.TokenID)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"listed": listed})
}

func (s *Server) handleTotals(w http.ResponseWriter, req *RPCRequest) {
	var total, active uint64
	err := s.query(func() error {
		var callErr error
		if total, callErr = s.market.TotalListings(); callErr != nil {
			return callErr
		}
		active, callErr = s.market.ActiveListingsCount()
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, totalsResult{TotalListings: total, ActiveListings: active})
}

func (s *Server) handleListActive(w http.ResponseWriter, req *RPCRequest) {
	var params pageParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	var listings []*marketplace.Listing
	err := s.query(func() error {
		var callErr error
		listings, callErr = s.market.ActiveListings(params.Start, params.Limit)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListings(listings))
}

func (s *Server) handleListBySeller(w http.ResponseWriter, req *RPCRequest) {
	var params sellerPageParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	seller, err := types.ParseAddress(params.Seller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid seller address")
		return
	}
	var listings []*marketplace.Listing
	err = s.query(func() error {
		var callErr error
		listings, callErr = s.market.ListingsBySeller(seller, params.Start, params.Limit)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, formatListings(listings))
}
