package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soldag/soldag/internal/kvstore"
	"github.com/soldag/soldag/internal/ledger"
	"github.com/soldag/soldag/internal/rpc/solana"
	"github.com/soldag/soldag/internal/store"
	"github.com/soldag/soldag/internal/supervisor"
)

type mockAPI struct {
	getAccount func(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
	calls      int
}

func (m *mockAPI) GetSlot(context.Context) (uint64, error) {
	return 0, errors.New("not stubbed")
}

func (m *mockAPI) GetBlock(context.Context, uint64) (*solana.GetBlockResult, error) {
	return nil, errors.New("not stubbed")
}

func (m *mockAPI) GetAccount(ctx context.Context, pubkey string) (*solana.AccountInfo, error) {
	m.calls++
	if m.getAccount == nil {
		return nil, errors.New("not stubbed")
	}
	return m.getAccount(ctx, pubkey)
}

func (m *mockAPI) GetHealth(context.Context) error { return nil }

func seedStore(t *testing.T, txCount int) store.Store {
	t.Helper()
	st := store.New(kvstore.NewMemoryStore(kvstore.JSON))
	blockTime := time.Date(2024, 5, 17, 12, 0, 0, 0, time.UTC)
	for slot := uint64(1); slot <= uint64(txCount); slot++ {
		require.NoError(t, st.UpsertBlock(&ledger.Block{
			Slot:      slot,
			Blockhash: fmt.Sprintf("hash-%d", slot),
			BlockTime: &blockTime,
			Transactions: []ledger.Transaction{{
				Signature: fmt.Sprintf("sig-%d", slot),
				Slot:      slot,
				BlockTime: &blockTime,
				Fee:       5000,
			}},
		}))
	}
	return st
}

func doRequest(h *Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeTransactions(t *testing.T, rec *httptest.ResponseRecorder) TransactionsResponse {
	t.Helper()
	var resp TransactionsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestTransactionsPagination(t *testing.T) {
	h := NewHandler("test", seedStore(t, 5), &mockAPI{}, nil)

	rec := doRequest(h, "/transactions?count=2")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeTransactions(t, rec)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "sig-1", resp.Data[0].Signature)
	require.NotNil(t, resp.Next)
	assert.Equal(t, 2, *resp.Next)

	rec = doRequest(h, "/transactions?count=2&offset=4")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeTransactions(t, rec)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "sig-5", resp.Data[0].Signature)
	assert.Nil(t, resp.Next, "no next page on the last page")
}

func TestTransactionsBadParams(t *testing.T) {
	h := NewHandler("test", seedStore(t, 1), &mockAPI{}, nil)

	for _, target := range []string{
		"/transactions?count=abc",
		"/transactions?count=0",
		"/transactions?count=100000",
		"/transactions?offset=-1",
		"/transactions?day=2024-05-17",
		"/transactions?day=31/13/2024",
	} {
		rec := doRequest(h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)

		var resp APIErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
	}
}

func TestTransactionsDayFilter(t *testing.T) {
	h := NewHandler("test", seedStore(t, 3), &mockAPI{}, nil)

	rec := doRequest(h, "/transactions?day=17/05/2024")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeTransactions(t, rec)
	assert.Len(t, resp.Data, 3)

	rec = doRequest(h, "/transactions?day=18/05/2024")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeTransactions(t, rec)
	assert.Empty(t, resp.Data)
}

func TestTransactionByID(t *testing.T) {
	h := NewHandler("test", seedStore(t, 3), &mockAPI{}, nil)

	rec := doRequest(h, "/transactions?id=sig-2")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeTransactions(t, rec)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, uint64(2), resp.Data[0].Slot)

	rec = doRequest(h, "/transactions?id=unknown")
	require.Equal(t, http.StatusOK, rec.Code, "unknown signature is empty, not an error")
	resp = decodeTransactions(t, rec)
	assert.Empty(t, resp.Data)
}

func TestAccountLookup(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("account-bytes"))
	api := &mockAPI{getAccount: func(_ context.Context, pubkey string) (*solana.AccountInfo, error) {
		return &solana.AccountInfo{
			Lamports: 12345,
			Owner:    "11111111111111111111111111111111",
			Data:     []string{payload, "base64"},
		}, nil
	}}
	h := NewHandler("test", seedStore(t, 0), api, nil)

	rec := doRequest(h, "/accounts?pubkey=somekey")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Account)
	assert.Equal(t, "somekey", resp.Account.Pubkey)
	assert.Equal(t, uint64(12345), resp.Account.Lamports)
	assert.Equal(t, []byte("account-bytes"), resp.Account.Data)

	// second hit within the TTL is served from cache
	rec = doRequest(h, "/accounts?pubkey=somekey")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, api.calls)
}

func TestAccountNotFound(t *testing.T) {
	api := &mockAPI{getAccount: func(context.Context, string) (*solana.AccountInfo, error) {
		return nil, solana.ErrAccountNotFound
	}}
	h := NewHandler("test", seedStore(t, 0), api, nil)

	rec := doRequest(h, "/accounts?pubkey=missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAccountRequiresPubkey(t *testing.T) {
	h := NewHandler("test", seedStore(t, 0), &mockAPI{}, nil)
	rec := doRequest(h, "/accounts")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	states := map[string]supervisor.State{
		"indexer": supervisor.StateRunning,
		"api":     supervisor.StateRunning,
	}
	h := NewHandler("1.2.3", seedStore(t, 0), &mockAPI{},
		func() map[string]supervisor.State { return states })

	rec := doRequest(h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, supervisor.StateRunning, resp.Units["indexer"])

	states["indexer"] = supervisor.StatePermanentlyFailed
	rec = doRequest(h, "/health")
	resp = HealthResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
}
