// AngelaMos | 2026
// mailer_test.go

package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/saas-metrics/internal/config"
	"github.com/carterperez-dev/saas-metrics/internal/core"
)

func testConfig(endpoint string) config.NotifierConfig {
	return config.NotifierConfig{
		Endpoint: endpoint,
		APIKey:   "key-123",
		From:     "no-reply@saas.io",
		Timeout:  2 * time.Second,
		Retries:  1,
	}
}

func TestHTTPMailer_Sends(t *testing.T) {
	var got message
	var auth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(testConfig(srv.URL), 5*time.Minute)

	err := mailer.SendTemporaryCredential(context.Background(), "ana@acme.io", "Ana", "a1b2c3d4")
	require.NoError(t, err)

	assert.Equal(t, "Bearer key-123", auth)
	assert.Equal(t, "ana@acme.io", got.To)
	assert.Equal(t, "no-reply@saas.io", got.From)
	assert.Equal(t, subject, got.Subject)
	assert.Contains(t, got.Text, "a1b2c3d4")
	assert.Contains(t, got.Text, "5m0s")
}

func TestHTTPMailer_ServerErrorIsRetriedThenWrapped(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(testConfig(srv.URL), time.Minute)

	err := mailer.SendTemporaryCredential(context.Background(), "ana@acme.io", "Ana", "secret")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotifier)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPMailer_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	mailer := NewHTTPMailer(testConfig(srv.URL), time.Minute)

	err := mailer.SendTemporaryCredential(context.Background(), "ana@acme.io", "Ana", "secret")
	assert.ErrorIs(t, err, core.ErrNotifier)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPMailer_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := testConfig(url)
	cfg.Retries = 0
	mailer := NewHTTPMailer(cfg, time.Minute)

	err := mailer.SendTemporaryCredential(context.Background(), "ana@acme.io", "Ana", "secret")
	assert.ErrorIs(t, err, core.ErrNotifier)
}
