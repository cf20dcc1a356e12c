package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/R3E-Network/token_engine/internal/app/domain/dao"
)

func (h *handler) daos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Summoner         string `json:"summoner"`
			Name             string `json:"name"`
			Metadata         string `json:"metadata"`
			PeriodDuration   uint64 `json:"period_duration"`
			VotingPeriod     uint64 `json:"voting_period"`
			GracePeriod      uint64 `json:"grace_period"`
			SummonerShares   uint64 `json:"summoner_shares"`
			DilutionBound    uint64 `json:"dilution_bound"`
			ProposalDeposit  uint64 `json:"proposal_deposit"`
			ProcessingReward uint64 `json:"processing_reward"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		account, err := h.app.DAO.CreateDAO(r.Context(), payload.Summoner, payload.Name, payload.Metadata,
			payload.PeriodDuration, payload.VotingPeriod, payload.GracePeriod,
			payload.SummonerShares, payload.DilutionBound, payload.ProposalDeposit, payload.ProcessingReward)
		h.app.Metrics.ObserveOperation("dao", "create", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"dao_account": account})

	case http.MethodGet:
		daos, err := h.app.DAO.ListDAOs(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, daos)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) daoResources(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/daos"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	account := parts[0]

	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		d, err := h.app.DAO.GetDAO(r.Context(), account)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, d)
		return
	}

	switch parts[1] {
	case "proposals":
		h.daoProposals(w, r, account, parts[2:])
	case "queue":
		h.daoQueue(w, r, account, parts[2:])
	case "members":
		if r.Method != http.MethodGet || len(parts) != 3 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		member, err := h.app.DAO.GetMember(r.Context(), account, parts[2])
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, member)
	case "ragequit":
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Member string `json:"member"`
			Shares uint64 `json:"shares"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.DAO.Ragequit(r.Context(), payload.Member, account, payload.Shares)
		h.app.Metrics.ObserveOperation("dao", "ragequit", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) daoProposals(w http.ResponseWriter, r *http.Request, account string, rest []string) {
	if len(rest) == 0 {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var payload struct {
			Proposer        string       `json:"proposer"`
			Applicant       string       `json:"applicant"`
			SharesRequested uint64       `json:"shares_requested"`
			TributeOffered  uint64       `json:"tribute_offered"`
			TributeNFT      *nodePayload `json:"tribute_nft"`
			Details         string       `json:"details"`
			Action          []byte       `json:"action"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		var tribute *dao.TributeNFT
		if payload.TributeNFT != nil {
			tribute = &dao.TributeNFT{CollectionID: payload.TributeNFT.CollectionID, TokenID: payload.TributeNFT.TokenID}
		}
		start := time.Now()
		id, err := h.app.DAO.SubmitProposal(r.Context(), payload.Proposer, account, payload.Applicant,
			payload.SharesRequested, payload.TributeOffered, tribute, payload.Details, payload.Action)
		h.app.Metrics.ObserveOperation("dao", "submit_proposal", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"proposal_id": id})
		return
	}

	proposalID, err := parseUint(rest[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if len(rest) == 1 {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p, err := h.app.DAO.GetProposal(r.Context(), account, proposalID)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}
	if len(rest) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch rest[1] {
	case "cancel":
		var payload struct {
			Who string `json:"who"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.DAO.CancelProposal(r.Context(), payload.Who, account, proposalID)
		h.app.Metrics.ObserveOperation("dao", "cancel_proposal", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "sponsor":
		var payload struct {
			Sponsor string `json:"sponsor"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		index, err := h.app.DAO.SponsorProposal(r.Context(), payload.Sponsor, account, proposalID)
		h.app.Metrics.ObserveOperation("dao", "sponsor_proposal", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"queue_index": index})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *handler) daoQueue(w http.ResponseWriter, r *http.Request, account string, rest []string) {
	if len(rest) != 2 || r.Method != http.MethodPost {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	index, err := parseUint(rest[0])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	switch rest[1] {
	case "vote":
		var payload struct {
			Voter   string `json:"voter"`
			Approve bool   `json:"approve"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.DAO.VoteProposal(r.Context(), payload.Voter, account, index, payload.Approve)
		h.app.Metrics.ObserveOperation("dao", "vote_proposal", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "process":
		var payload struct {
			Processor string `json:"processor"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start := time.Now()
		err := h.app.DAO.ProcessProposal(r.Context(), payload.Processor, account, index)
		h.app.Metrics.ObserveOperation("dao", "process_proposal", err, time.Since(start))
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
