package rpc

import (
	"math/big"
	"net/http"
	"strings"

	"melodia/core/types"
	"melodia/native/registry"
	"melodia/state"
)

type tokenMintParams struct {
	Collection      string `json:"collection"`
	Creator         string `json:"creator"`
	URI             string `json:"uri"`
	SongID          string `json:"songId"`
	RoyaltyReceiver string `json:"royaltyReceiver"`
	RoyaltyBps      uint32 `json:"royaltyBps"`
	StreamingBps    uint32 `json:"streamingBps"`
}

type tokenRefByCollection struct {
	Collection string `json:"collection"`
	TokenID    uint64 `json:"tokenId"`
}

type tokenUpdateURIParams struct {
	Collection string `json:"collection"`
	Caller     string `json:"caller"`
	TokenID    uint64 `json:"tokenId"`
	URI        string `json:"uri"`
}

type songEditionsParams struct {
	Collection string `json:"collection"`
	SongID     string `json:"songId"`
}

func (s *Server) collection(name string) (*registry.MusicCollection, bool) {
	collection, ok := s.collections[strings.ToLower(strings.TrimSpace(name))]
	return collection, ok
}

func (s *Server) handleTokenMint(w http.ResponseWriter, req *RPCRequest) {
	var params tokenMintParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	collection, ok := s.collection(params.Collection)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "unknown collection")
		return
	}
	creator, err := types.ParseAddress(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address")
		return
	}
	receiver := types.ZeroAddress
	if strings.TrimSpace(params.RoyaltyReceiver) != "" {
		receiver, err = types.ParseAddress(params.RoyaltyReceiver)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid royalty receiver address")
			return
		}
	}
	var tokenID uint64
	err = s.execute(func() error {
		var callErr error
		tokenID, callErr = collection.Mint(creator, params.URI, params.SongID, receiver, params.RoyaltyBps, params.StreamingBps)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]interface{}{
		"tokenId":  tokenID,
		"contract": types.HexAddr(collection.Address()),
	})
}

func (s *Server) handleTokenOwner(w http.ResponseWriter, req *RPCRequest) {
	var params tokenRefByCollection
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	collection, ok := s.collection(params.Collection)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "unknown collection")
		return
	}
	var owner types.Address
	err := s.query(func() error {
		var callErr error
		owner, callErr = collection.OwnerOf(params.TokenID)
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]string{"owner": types.HexAddr(owner)})
}

func (s *Server) handleTokenUpdateURI(w http.ResponseWriter, req *RPCRequest) {
	var params tokenUpdateURIParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	collection, ok := s.collection(params.Collection)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "unknown collection")
		return
	}
	caller, err := types.ParseAddress(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address")
		return
	}
	err = s.execute(func() error {
		return collection.UpdateTokenURI(caller, params.TokenID, params.URI)
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"updated": true})
}

func (s *Server) handleTokenEditions(w http.ResponseWriter, req *RPCRequest) {
	var params songEditionsParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	collection, ok := s.collection(params.Collection)
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeNotFound, "unknown collection")
		return
	}
	var editions []uint64
	_ = s.query(func() error {
		editions = collection.SongEditions(params.SongID)
		return nil
	})
	writeResult(w, req.ID, map[string][]uint64{"tokenIds": editions})
}

type accountCreditParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

func (s *Server) handleAccountGet(w http.ResponseWriter, req *RPCRequest) {
	var params struct {
		Address string `json:"address"`
	}
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address")
		return
	}
	var account *types.Account
	err = s.query(func() error {
		var callErr error
		account, callErr = s.store.GetAccount(addr[:])
		return callErr
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	balance := "0"
	if account != nil && account.Balance != nil {
		balance = account.Balance.String()
	}
	writeResult(w, req.ID, map[string]string{"address": params.Address, "balance": balance})
}

// handleAccountCredit funds an account directly. It exists for the simulator
// deployment model where no consensus layer mints balances; production
// operators gate it behind the bearer token.
func (s *Server) handleAccountCredit(w http.ResponseWriter, req *RPCRequest) {
	var params accountCreditParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid params")
		return
	}
	addr, err := types.ParseAddress(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address")
		return
	}
	amount, ok := parseAmount(params.Amount)
	if !ok || amount.Sign() == 0 {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount")
		return
	}
	err = s.execute(func() error {
		return creditAccount(s.store, addr, amount)
	})
	if err != nil {
		s.writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, map[string]bool{"credited": true})
}

func creditAccount(store *state.Store, addr types.Address, amount *big.Int) error {
	account, err := store.GetAccount(addr[:])
	if err != nil {
		return err
	}
	if account == nil {
		account = &types.Account{Balance: big.NewInt(0)}
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	account.Balance = new(big.Int).Add(account.Balance, amount)
	return store.PutAccount(addr[:], account)
}
