package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/token_engine/internal/app/domain/collection"
	"github.com/R3E-Network/token_engine/internal/app/domain/graph"
)

type nodePayload struct {
	CollectionID string `json:"collection_id"`
	TokenID      uint64 `json:"token_id"`
}

func (p nodePayload) node() graph.Node {
	return graph.Node{CollectionID: p.CollectionID, TokenID: p.TokenID}
}

func (h *handler) graph(w http.ResponseWriter, r *http.Request) {
	switch strings.TrimPrefix(r.URL.Path, "/graph/") {
	case "link":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Who    string      `json:"who"`
			Child  nodePayload `json:"child"`
			Parent nodePayload `json:"parent"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.Graph.Link(r.Context(), payload.Who, payload.Child.node(), payload.Parent.node())
		h.app.Metrics.ObserveOperation("graph", "link", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "recover":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Who   string      `json:"who"`
			Token nodePayload `json:"token"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.Graph.Recover(r.Context(), payload.Who, payload.Token.node())
		h.app.Metrics.ObserveOperation("graph", "recover", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "root":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		tokenID, err := parseUint(r.URL.Query().Get("token_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		node := graph.Node{CollectionID: r.URL.Query().Get("collection_id"), TokenID: tokenID}
		owner, root, err := h.app.Graph.FindRootOwner(r.Context(), node)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"owner": owner, "root": root})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) subtokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Creator            string `json:"creator"`
		ParentCollectionID string `json:"parent_collection_id"`
		TokenID            uint64 `json:"token_id"`
		URI                string `json:"uri"`
		TokenType          string `json:"token_type"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	start := time.Now()
	derived, err := h.app.SubTokens.Create(r.Context(), payload.Creator, payload.ParentCollectionID, payload.TokenID, payload.URI, collection.ParseTokenType(payload.TokenType))
	h.app.Metrics.ObserveOperation("subtoken", "create", err, time.Since(start))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"derived_collection_id": derived})
}

func (h *handler) subtokenResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/subtokens"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	derivedID := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		lock, err := h.app.SubTokens.Lock(r.Context(), derivedID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, lock)
		return
	}
	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "mint":
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
			err := h.app.SubTokens.MintFungible(r.Context(), payload.Who, payload.Receiver, derivedID, payload.Amount)
			h.app.Metrics.ObserveOperation("subtoken", "mint_fungible", err, time.Since(start))
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"amount": payload.Amount})
			return
		}
		startIdx, endIdx, err := h.app.SubTokens.MintNonFungible(r.Context(), payload.Who, payload.Receiver, derivedID, payload.Amount, payload.URI)
		h.app.Metrics.ObserveOperation("subtoken", "mint_non_fungible", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"start_idx": startIdx, "end_idx": endIdx})

	case "recover":
		var payload struct {
			Who string `json:"who"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.SubTokens.Recover(r.Context(), payload.Who, derivedID)
		h.app.Metrics.ObserveOperation("subtoken", "recover", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
