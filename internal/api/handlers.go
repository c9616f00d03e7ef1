package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/soldag/soldag/internal/ledger"
	"github.com/soldag/soldag/internal/rpc/solana"
	"github.com/soldag/soldag/internal/store"
	"github.com/soldag/soldag/internal/supervisor"
	"github.com/soldag/soldag/pkg/logger"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000

	// day filter format, e.g. 17/05/2024
	dayLayout = "02/01/2006"
)

type TransactionsResponse struct {
	Data []ledger.Transaction `json:"data"`
	Next *int                 `json:"next,omitempty"`
}

type AccountResponse struct {
	Account *ledger.Account `json:"account"`
}

type HealthResponse struct {
	Status    string                      `json:"status"`
	Timestamp time.Time                   `json:"timestamp"`
	Version   string                      `json:"version"`
	Units     map[string]supervisor.State `json:"units,omitempty"`
}

type APIErrorResponse struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// UnitStates reports supervised unit states for the health endpoint.
type UnitStates func() map[string]supervisor.State

type Handler struct {
	version  string
	store    store.Store
	client   solana.API
	accounts *accountCache
	units    UnitStates
}

func NewHandler(version string, st store.Store, client solana.API, units UnitStates) *Handler {
	return &Handler{
		version:  version,
		store:    st,
		client:   client,
		accounts: newAccountCache(defaultAccountTTL),
		units:    units,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/transactions", h.HandleTransactions)
	mux.HandleFunc("/accounts", h.HandleAccounts)
	mux.HandleFunc("/health", h.HandleHealth)
}

func (h *Handler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if sig := strings.TrimSpace(r.URL.Query().Get("id")); sig != "" {
		h.handleTransactionByID(w, sig)
		return
	}

	offset, count, err := parsePagination(r)
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		txs  []ledger.Transaction
		more bool
	)
	if dayParam := strings.TrimSpace(r.URL.Query().Get("day")); dayParam != "" {
		day, err := time.Parse(dayLayout, dayParam)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, fmt.Sprintf("invalid day %q, expected DD/MM/YYYY", dayParam))
			return
		}
		txs, more, err = h.store.ListTransactionsByDay(day, offset, count)
		if err != nil {
			h.serverError(w, "list transactions by day", err)
			return
		}
	} else {
		txs, more, err = h.store.ListTransactions(offset, count)
		if err != nil {
			h.serverError(w, "list transactions", err)
			return
		}
	}

	resp := TransactionsResponse{Data: txs}
	if more {
		next := offset + count
		resp.Next = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTransactionByID mirrors list semantics: an unknown signature is an
// empty result, not an error.
func (h *Handler) handleTransactionByID(w http.ResponseWriter, signature string) {
	tx, found, err := h.store.GetTransaction(signature)
	if err != nil {
		h.serverError(w, "get transaction", err)
		return
	}
	resp := TransactionsResponse{Data: []ledger.Transaction{}}
	if found {
		resp.Data = append(resp.Data, *tx)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	pubkey := strings.TrimSpace(r.URL.Query().Get("pubkey"))
	if pubkey == "" {
		writeErrorJSON(w, http.StatusBadRequest, "pubkey is required")
		return
	}

	if account, ok := h.accounts.get(pubkey); ok {
		writeJSON(w, http.StatusOK, AccountResponse{Account: account})
		return
	}

	info, err := h.client.GetAccount(r.Context(), pubkey)
	if err != nil {
		if errors.Is(err, solana.ErrAccountNotFound) {
			writeErrorJSON(w, http.StatusNotFound, "account not found")
			return
		}
		h.serverError(w, "get account", err)
		return
	}

	account, err := ledger.FromRPCAccount(pubkey, info)
	if err != nil {
		h.serverError(w, "decode account", err)
		return
	}

	h.accounts.put(pubkey, account)
	writeJSON(w, http.StatusOK, AccountResponse{Account: account})
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	if h.units != nil {
		resp.Units = h.units()
		for _, state := range resp.Units {
			if state != supervisor.StateRunning && state != supervisor.StateStarting {
				resp.Status = "degraded"
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parsePagination(r *http.Request) (offset, count int, err error) {
	count = defaultPageSize
	if v := r.URL.Query().Get("count"); v != "" {
		count, err = strconv.Atoi(v)
		if err != nil || count <= 0 || count > maxPageSize {
			return 0, 0, fmt.Errorf("invalid count %q, expected 1..%d", v, maxPageSize)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", v)
		}
	}
	return offset, count, nil
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	logger.Error("Request failed", "op", op, "err", err)
	writeErrorJSON(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("Failed to encode response", "status", statusCode, "err", err)
	}
}

func writeErrorJSON(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, APIErrorResponse{
		Status:    "error",
		Error:     message,
		Timestamp: time.Now().UTC(),
	})
}
