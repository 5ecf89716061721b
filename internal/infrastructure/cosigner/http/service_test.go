package http_cosigner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
	http_cosigner "github.com/vulpemventures/multisig-relay/internal/infrastructure/cosigner/http"
)

const (
	primaryAddr   = "GCWSJRG6ZBMSOOQ2UXTFECLHOUWXQDG4Y3VKB7N6TEFR2OLKLRKWJXP5"
	secondaryAddr = "GDGYXMH2HPQBQ6SUCRRH2QUFQMQQBTQBBP5OD7AMHP7C3HUYP6GXMFLZ"
)

func TestNewService(t *testing.T) {
	tests := []struct {
		name string
		url  string
		err  error
	}{
		{"missing url", "", http_cosigner.ErrMissingURL},
		{"no scheme", "localhost:3001", http_cosigner.ErrInvalidURL},
		{"no host", "http://", http_cosigner.ErrInvalidURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := http_cosigner.NewService(http_cosigner.ServiceArgs{URL: tt.url})
			require.ErrorIs(t, err, tt.err)
			require.Nil(t, svc)
		})
	}
}

func TestCosignTx(t *testing.T) {
	req := domain.CosignRequest{ID: "req-1", Transaction: "AAAA"}

	t.Run("submitted", func(t *testing.T) {
		srv := newCosignerServer(t, func(call int, w http.ResponseWriter) {
			writeJSON(w, http.StatusOK, domain.TxResult{
				Hash: "beef", Ledger: 12, Successful: true,
			})
		})

		res, err := newService(t, srv.URL).CosignTx(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, "beef", res.Hash)
		require.Equal(t, int32(12), res.Ledger)
		require.Len(t, srv.received(), 1)
		require.Equal(t, req, srv.received()[0])
	})

	t.Run("retries with the same request", func(t *testing.T) {
		srv := newCosignerServer(t, func(call int, w http.ResponseWriter) {
			if call < 3 {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"error": "busy",
				})
				return
			}
			writeJSON(w, http.StatusOK, domain.TxResult{Hash: "beef"})
		})

		res, err := newService(t, srv.URL).CosignTx(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, "beef", res.Hash)

		calls := srv.received()
		require.Len(t, calls, 3)
		for _, c := range calls {
			require.Equal(t, req, c)
		}
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		srv := newCosignerServer(t, func(call int, w http.ResponseWriter) {
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "down"})
		})

		res, err := newService(t, srv.URL).CosignTx(context.Background(), req)
		require.ErrorIs(t, err, domain.ErrTransport)
		require.Nil(t, res)
		require.Len(t, srv.received(), 3)
	})

	t.Run("rejected by the ledger", func(t *testing.T) {
		srv := newCosignerServer(t, func(call int, w http.ResponseWriter) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error": "transaction submission rejected",
				"result_codes": map[string]interface{}{
					"transaction_code": "tx_failed",
					"operation_codes":  []string{"op_underfunded"},
					"reason":           "Transaction Failed",
				},
			})
		})

		res, err := newService(t, srv.URL).CosignTx(context.Background(), req)
		require.Nil(t, res)
		var subErr *domain.SubmissionError
		require.ErrorAs(t, err, &subErr)
		require.Equal(t, "tx_failed", subErr.TransactionCode)
		require.Equal(t, []string{"op_underfunded"}, subErr.OperationCodes)
		require.Len(t, srv.received(), 1)
	})

	t.Run("refused by the cosigner", func(t *testing.T) {
		srv := newCosignerServer(t, func(call int, w http.ResponseWriter) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"error": "transaction already signed",
			})
		})

		res, err := newService(t, srv.URL).CosignTx(context.Background(), req)
		require.ErrorIs(t, err, domain.ErrCosignRejected)
		require.Contains(t, err.Error(), "already signed")
		require.Nil(t, res)
		require.Len(t, srv.received(), 1)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		res, err := newService(t, url).CosignTx(context.Background(), req)
		require.ErrorIs(t, err, domain.ErrTransport)
		require.Nil(t, res)
	})

	t.Run("missing id", func(t *testing.T) {
		res, err := newService(t, "http://localhost:3001").CosignTx(
			context.Background(), domain.CosignRequest{Transaction: "AAAA"},
		)
		require.ErrorIs(t, err, domain.ErrMissingRequestID)
		require.Nil(t, res)
	})
}

func TestProvisionSecondary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/secondary-account", func(w http.ResponseWriter, r *http.Request) {
		body := map[string]string{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["primary_address"] != primaryAddr {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"secondary_address": secondaryAddr,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	svc := newService(t, srv.URL)

	addr, err := svc.ProvisionSecondary(context.Background(), primaryAddr)
	require.NoError(t, err)
	require.Equal(t, secondaryAddr, addr)

	addr, err = svc.ProvisionSecondary(context.Background(), "GINVALID")
	require.ErrorIs(t, err, domain.ErrCosignRejected)
	require.Empty(t, addr)
}

type cosignerServer struct {
	*httptest.Server
	lock  sync.Mutex
	calls []domain.CosignRequest
}

func (s *cosignerServer) received() []domain.CosignRequest {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]domain.CosignRequest{}, s.calls...)
}

func newCosignerServer(
	t *testing.T, reply func(call int, w http.ResponseWriter),
) *cosignerServer {
	srv := &cosignerServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			req := domain.CosignRequest{}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			srv.lock.Lock()
			srv.calls = append(srv.calls, req)
			call := len(srv.calls)
			srv.lock.Unlock()
			reply(call, w)
		},
	))
	t.Cleanup(srv.Close)
	return srv
}

func newService(t *testing.T, url string) ports.Cosigner {
	svc, err := http_cosigner.NewService(http_cosigner.ServiceArgs{
		URL:        url,
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	})
	require.NoError(t, err)
	return svc
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nolint
	json.NewEncoder(w).Encode(body)
}
