// Package httpapi exposes the engine over REST. Handlers are thin: they
// decode the request, call one service operation, and map the domain error
// to a status code.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	app "github.com/R3E-Network/token_engine/internal/app"
	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	colsvc "github.com/R3E-Network/token_engine/internal/app/services/collection"
	daosvc "github.com/R3E-Network/token_engine/internal/app/services/dao"
	exchangesvc "github.com/R3E-Network/token_engine/internal/app/services/exchange"
	graphsvc "github.com/R3E-Network/token_engine/internal/app/services/graph"
	subtokensvc "github.com/R3E-Network/token_engine/internal/app/services/subtoken"
	toksvc "github.com/R3E-Network/token_engine/internal/app/services/token"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
}

// NewHandler returns a mux exposing the core REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{app: application}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.health)
	mux.Handle("/metrics", application.Metrics.Handler())
	mux.HandleFunc("/events", h.events)
	mux.HandleFunc("/collections", h.collections)
	mux.HandleFunc("/collections/", h.collectionResources)
	mux.HandleFunc("/graph/", h.graph)
	mux.HandleFunc("/subtokens", h.subtokens)
	mux.HandleFunc("/subtokens/", h.subtokenResources)
	mux.HandleFunc("/exchange/orders", h.orders)
	mux.HandleFunc("/exchange/orders/", h.orderResources)
	mux.HandleFunc("/exchange/pools", h.pools)
	mux.HandleFunc("/exchange/pools/", h.poolResources)
	mux.HandleFunc("/daos", h.daos)
	mux.HandleFunc("/daos/", h.daoResources)
	return mux
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"height": h.app.Clock.Current(),
	})
}

func (h *handler) events(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	if eventType := r.URL.Query().Get("type"); eventType != "" {
		writeJSON(w, http.StatusOK, h.app.Events.RecentByType(eventType, limit))
		return
	}
	writeJSON(w, http.StatusOK, h.app.Events.Recent(limit))
}

func (h *handler) collections(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Owner     string `json:"owner"`
			URI       string `json:"uri"`
			TokenType string `json:"token_type"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		col, err := h.app.Collections.Create(r.Context(), payload.Owner, payload.URI, collection.ParseTokenType(payload.TokenType))
		h.app.Metrics.ObserveOperation("collection", "create", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, col)

	case http.MethodGet:
		cols, err := h.app.Collections.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, cols)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) collectionResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/collections"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	collectionID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		col, err := h.app.Collections.Get(r.Context(), collectionID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, col)
		return
	}

	switch parts[1] {
	case "tokens":
		h.collectionTokens(w, r, collectionID, parts[2:])
	case "balances":
		h.collectionBalance(w, r, collectionID, parts[2:])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) collectionTokens(w http.ResponseWriter, r *http.Request, collectionID string, rest []string) {
	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ranges, err := h.app.Tokens.ListRanges(r.Context(), collectionID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, ranges)
		return
	}
	if len(rest) != 1 {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch rest[0] {
	case "mint":
		h.mint(w, r, collectionID)
	case "transfer":
		h.transfer(w, r, collectionID)
	case "burn":
		h.burn(w, r, collectionID)
	default:
		// Anything else is a token id lookup.
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		tokenID, err := parseUint(rest[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		rng, err := h.app.Tokens.GetToken(r.Context(), collectionID, tokenID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, rng)
	}
}

func (h *handler) mint(w http.ResponseWriter, r *http.Request, collectionID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Who      string `json:"who"`
		Receiver string `json:"receiver"`
		Amount   uint64 `json:"amount"`
		URI      string `json:"uri"`
		Fungible bool   `json:"fungible"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	if payload.Fungible {
		err := h.app.Tokens.MintFungible(r.Context(), payload.Who, payload.Receiver, collectionID, payload.Amount)
		h.app.Metrics.ObserveOperation("token", "mint_fungible", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"amount": payload.Amount})
		return
	}

	startIdx, endIdx, err := h.app.Tokens.MintNonFungible(r.Context(), payload.Who, payload.Receiver, collectionID, payload.Amount, payload.URI)
	h.app.Metrics.ObserveOperation("token", "mint_non_fungible", err, time.Since(start))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"start_idx": startIdx, "end_idx": endIdx})
}

func (h *handler) transfer(w http.ResponseWriter, r *http.Request, collectionID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Who      string `json:"who"`
		Receiver string `json:"receiver"`
		TokenID  uint64 `json:"token_id"`
		Amount   uint64 `json:"amount"`
		Fungible bool   `json:"fungible"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	var err error
	if payload.Fungible {
		err = h.app.Tokens.TransferFungible(r.Context(), payload.Who, payload.Receiver, collectionID, payload.Amount)
		h.app.Metrics.ObserveOperation("token", "transfer_fungible", err, time.Since(start))
	} else {
		err = h.app.Tokens.TransferNonFungible(r.Context(), payload.Who, payload.Receiver, collectionID, payload.TokenID, payload.Amount)
		h.app.Metrics.ObserveOperation("token", "transfer_non_fungible", err, time.Since(start))
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) burn(w http.ResponseWriter, r *http.Request, collectionID string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Who      string `json:"who"`
		TokenID  uint64 `json:"token_id"`
		Amount   uint64 `json:"amount"`
		Fungible bool   `json:"fungible"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	var err error
	if payload.Fungible {
		err = h.app.Tokens.BurnFungible(r.Context(), payload.Who, collectionID, payload.Amount)
		h.app.Metrics.ObserveOperation("token", "burn_fungible", err, time.Since(start))
	} else {
		err = h.app.Tokens.BurnNonFungible(r.Context(), payload.Who, collectionID, payload.TokenID, payload.Amount)
		h.app.Metrics.ObserveOperation("token", "burn_non_fungible", err, time.Since(start))
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) collectionBalance(w http.ResponseWriter, r *http.Request, collectionID string, rest []string) {
	if r.Method != http.MethodGet || len(rest) != 1 || rest[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	balance, err := h.app.Tokens.Balance(r.Context(), collectionID, rest[0])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	burned, err := h.app.Tokens.BurnedAmount(r.Context(), collectionID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection_id": collectionID,
		"account":       rest[0],
		"balance":       balance,
		"burned":        burned,
	})
}

// statusFor maps domain errors onto HTTP status codes: absence is 404,
// authority 403, conflicting state 409, timing 409, anything else a 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, colsvc.ErrCollectionNotFound),
		errors.Is(err, toksvc.ErrCollectionNotFound),
		errors.Is(err, toksvc.ErrTokenNotFound),
		errors.Is(err, graphsvc.ErrParentCollectionNotFound),
		errors.Is(err, graphsvc.ErrRootTokenNotFound),
		errors.Is(err, graphsvc.ErrTokenNotFound),
		errors.Is(err, subtokensvc.ErrLockNotFound),
		errors.Is(err, exchangesvc.ErrOrderNotFound),
		errors.Is(err, exchangesvc.ErrPoolNotFound),
		errors.Is(err, exchangesvc.ErrCollectionNotFound),
		errors.Is(err, daosvc.ErrDAONotFound),
		errors.Is(err, daosvc.ErrProposalNotFound):
		return http.StatusNotFound

	case errors.Is(err, toksvc.ErrPermissionDenied),
		errors.Is(err, graphsvc.ErrPermissionDenied),
		errors.Is(err, subtokensvc.ErrPermissionDenied),
		errors.Is(err, exchangesvc.ErrPermissionDenied),
		errors.Is(err, daosvc.ErrPermissionDenied),
		errors.Is(err, daosvc.ErrNotMember):
		return http.StatusForbidden

	case errors.Is(err, exchangesvc.ErrPoolExists),
		errors.Is(err, exchangesvc.ErrExpiredSoldTime),
		errors.Is(err, exchangesvc.ErrCannotWithdraw),
		errors.Is(err, daosvc.ErrAlreadySponsored),
		errors.Is(err, daosvc.ErrProposalCancelled),
		errors.Is(err, daosvc.ErrAlreadyProcessed),
		errors.Is(err, daosvc.ErrAlreadyVoted),
		errors.Is(err, daosvc.ErrPeriodExpired),
		errors.Is(err, daosvc.ErrProposalNotReady),
		errors.Is(err, daosvc.ErrPrevProposalUnprocessed),
		errors.Is(err, daosvc.ErrUnprocessedYesVote),
		errors.Is(err, subtokensvc.ErrBurnedTokensExist),
		errors.Is(err, subtokensvc.ErrOutstandingSupply),
		errors.Is(err, graphsvc.ErrLinkToSelfOrDescendant),
		errors.Is(err, graphsvc.ErrLinkCycle),
		errors.Is(err, graphsvc.ErrRecoverUnlinkedToken),
		errors.Is(err, graphsvc.ErrRecoverParentToken):
		return http.StatusConflict

	case errors.Is(err, chain.ErrInsufficientBalance):
		return http.StatusPaymentRequired

	default:
		return http.StatusBadRequest
	}
}

func parseUint(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}

func decodeJSON(body io.ReadCloser, dst any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
