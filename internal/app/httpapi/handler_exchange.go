package httpapi

import (
	"net/http"
	"strings"
	"time"
)

func (h *handler) orders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Seller       string `json:"seller"`
			CollectionID string `json:"collection_id"`
			TokenID      uint64 `json:"token_id"`
			Amount       uint64 `json:"amount"`
			Price        uint64 `json:"price"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		orderID, err := h.app.Exchange.SellNFT(r.Context(), payload.Seller, payload.CollectionID, payload.TokenID, payload.Amount, payload.Price)
		h.app.Metrics.ObserveOperation("exchange", "sell_nft", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"order_id": orderID})

	case http.MethodGet:
		orders, err := h.app.Exchange.ListOrders(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, orders)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) orderResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/exchange/orders"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	orderID, err := parseUint(parts[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ord, err := h.app.Exchange.GetOrder(r.Context(), orderID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, ord)
		return
	}
	if len(parts) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch parts[1] {
	case "buy":
		var payload struct {
			Buyer  string `json:"buyer"`
			Amount uint64 `json:"amount"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.Exchange.BuyNFT(r.Context(), payload.Buyer, orderID, payload.Amount)
		h.app.Metrics.ObserveOperation("exchange", "buy_nft", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "cancel":
		var payload struct {
			Seller string `json:"seller"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.Exchange.CancelNFTOrder(r.Context(), payload.Seller, orderID)
		h.app.Metrics.ObserveOperation("exchange", "cancel_nft_order", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) pools(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Seller       string `json:"seller"`
			CollectionID string `json:"collection_id"`
			Amount       uint64 `json:"amount"`
			ReverseRatio uint64 `json:"reverse_ratio"`
			M            uint64 `json:"m"`
			Duration     uint64 `json:"duration"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.Exchange.CreateSemiTokenPool(r.Context(), payload.Seller, payload.CollectionID, payload.Amount, payload.ReverseRatio, payload.M, payload.Duration)
		h.app.Metrics.ObserveOperation("exchange", "create_pool", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusCreated)

	case http.MethodGet:
		pools, err := h.app.Exchange.ListPools(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, pools)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) poolResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/exchange/pools"), "/")
	parts := strings.Split(trimmed, "/")

	// Pool actions: /exchange/pools/{buy,sell,withdraw}.
	if len(parts) == 1 {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		switch parts[0] {
		case "buy":
			var payload struct {
				Buyer        string `json:"buyer"`
				CollectionID string `json:"collection_id"`
				Seller       string `json:"seller"`
				Amount       uint64 `json:"amount"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			start := time.Now()
			err := h.app.Exchange.BuySemiToken(r.Context(), payload.Buyer, payload.CollectionID, payload.Seller, payload.Amount)
			h.app.Metrics.ObserveOperation("exchange", "buy_semi_token", err, time.Since(start))
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		case "sell":
			var payload struct {
				Holder       string `json:"holder"`
				CollectionID string `json:"collection_id"`
				Seller       string `json:"seller"`
				Amount       uint64 `json:"amount"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			start := time.Now()
			err := h.app.Exchange.SellSemiToken(r.Context(), payload.Holder, payload.CollectionID, payload.Seller, payload.Amount)
			h.app.Metrics.ObserveOperation("exchange", "sell_semi_token", err, time.Since(start))
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		case "withdraw":
			var payload struct {
				Owner        string `json:"owner"`
				CollectionID string `json:"collection_id"`
			}
			if err := decodeJSON(r.Body, &payload); err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			start := time.Now()
			err := h.app.Exchange.WithdrawPool(r.Context(), payload.Owner, payload.CollectionID)
			h.app.Metrics.ObserveOperation("exchange", "withdraw_pool", err, time.Since(start))
			if err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
		return
	}

	// Pool lookup: /exchange/pools/{collectionID}/{seller}.
	if len(parts) == 2 && r.Method == http.MethodGet {
		pool, err := h.app.Exchange.GetPool(r.Context(), parts[0], parts[1])
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, pool)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}
