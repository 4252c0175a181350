package rpc

import (
	"math/big"
	"net/http"

	"melodia/core/types"
)

type recordListensParams struct {
	Caller        string `json:"caller"`
	TokenContract string `json:"tokenContract"`
	TokenID       uint64 `json:"tokenId"`
	Count         uint64 `json:"count"`
	Amount        string `json:"amount"`
	Paid          string `json:"paid"`
}

type listenCountResult struct {
	TokenContract string `json:"tokenContract"`
	TokenID       uint64 `json:"tokenId"`
	Count         uint64 `json:"count"`
}

type totalListensResult struct {
	TokenContract string `json:"tokenContract"`
	Total         uint64 `json:"total"`
}

type topTokensParams struct {
	TokenContract string `json:"tokenContract"`
	Limit         uint64 `json:"limit"`
}

type byCreatorParams struct {
	TokenContract string `json:"tokenContract"`
	Creator       string `json:"creator"`
}

type listenDataResult struct {
	TokenIDs []uint64 `json:"tokenIds"`
	Counts   []uint64 `json:"counts"`
}

func (s *Server) handleRecordListens(w http.ResponseWriter, req *RPCRequest) {
	var params recordListensParams
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
	amount, ok := parseAmount(params.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount")
		return
	}
	paid, ok := parseAmount(params.Paid)
	if !ok {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid paid amount")
		return
	}
	err = s.execute(func() error {
		return s.stream.RecordBatchListens(caller, contract, params.TokenID, params.Count, amount, paid)
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"recorded": true})
}

func (s *Server) handleStreamWithdraw(w http.ResponseWriter, req *RPCRequest) {
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
		amount, callErr = s.stream.WithdrawPayments(caller)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, withdrawResult{Beneficiary: params.Caller, Amount: amount.String()})
}

func (s *Server) handleStreamPending(w http.ResponseWriter, req *RPCRequest) {
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
		pending, callErr = s.stream.PendingPayment(beneficiary)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, pendingResult{Beneficiary: params.Beneficiary, Pending: pending.String()})
}

func (s *Server) handleListenCount(w http.ResponseWriter, req *RPCRequest) {
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
	var count uint64
	err = s.query(func() error {
		var callErr error
		count, callErr = s.stream.ListenCount(contract, params.TokenID)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listenCountResult{TokenContract: params.TokenContract, TokenID: params.TokenID, Count: count})
}

func (s *Server) handleTotalListens(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		TokenContract string `json:"tokenContract"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	contract, err := types.ParseAddress(params.TokenContract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token contract address")
		return
	}
	var total uint64
	err = s.query(func() error {
		var callErr error
		total, callErr = s.stream.TotalListenCount(contract)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, totalListensResult{TokenContract: params.TokenContract, Total: total})
}

func (s *Server) handleTopTokens(w http.ResponseWriter, req *RPCRequest) {
	var params topTokensParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	contract, err := types.ParseAddress(params.TokenContract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token contract address")
		return
	}
	var ids, counts []uint64
	err = s.query(func() error {
		var callErr error
		ids, counts, callErr = s.stream.TopListenedTokens(contract, params.Limit)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listenDataResult{TokenIDs: ids, Counts: counts})
}

func (s *Server) handleByCreator(w http.ResponseWriter, req *RPCRequest) {
	var params byCreatorParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	contract, err := types.ParseAddress(params.TokenContract)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid token contract address")
		return
	}
	creator, err := types.ParseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address")
		return
	}
	var ids, counts []uint64
	err = s.query(func() error {
		var callErr error
		ids, counts, callErr = s.stream.ListenDataByCreator(contract, creator)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, listenDataResult{TokenIDs: ids, Counts: counts})
}
