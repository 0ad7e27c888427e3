package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() Client {
	cfg := config.GetDefaultConfig()
	cfg.HTTPClient.RetryMax = 1
	cfg.HTTPClient.RetryWaitMin = time.Millisecond
	cfg.HTTPClient.RetryWaitMax = time.Millisecond
	return NewDefaultClient(cfg, logger.NewNoopLogger())
}

func TestSend(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantErr     error
		wantAttempt int
	}{
		{name: "ok", status: http.StatusOK, wantAttempt: 1},
		{name: "client error is not retried", status: http.StatusBadRequest, wantErr: ierr.ErrHTTPClient, wantAttempt: 1},
		{name: "server error is retried then unavailable", status: http.StatusBadGateway, wantErr: ierr.ErrUnavailable, wantAttempt: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts++
				assert.Equal(t, "secret", r.Header.Get("Authorization"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"ok":true}`))
			}))
			defer srv.Close()

			resp, err := newTestClient().Send(context.Background(), &Request{
				Method:  http.MethodPost,
				URL:     srv.URL,
				Headers: map[string]string{"Authorization": "secret"},
				Body:    []byte(`{}`),
			})

			assert.Equal(t, tt.wantAttempt, attempts)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, ierr.Is(err, tt.wantErr))
				httpErr, ok := IsHTTPError(err)
				require.True(t, ok)
				assert.Equal(t, tt.status, httpErr.StatusCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, `{"ok":true}`, string(resp.Body))
		})
	}
}

func TestSendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient().Send(context.Background(), &Request{Method: http.MethodGet, URL: url})
	require.Error(t, err)
	assert.True(t, ierr.IsUnavailable(err))
}
