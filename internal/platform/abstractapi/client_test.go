package abstractapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/social-text-api/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestClient points every provider URL at the given test server.
func newTestClient(serverURL string) *Client {
	return NewClient(config.AbstractAPIConfig{
		GeolocationURL: serverURL + "/geolocation",
		GeolocationKey: "geo-key",
		HolidayURL:     serverURL + "/holidays",
		HolidayKey:     "holiday-key",
		EmailURL:       serverURL + "/email",
		EmailKey:       "email-key",
	}, nil, testLogger())
}

func TestClientGetGeolocation(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"country_code":"TR"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	statusCode, body, err := client.GetGeolocation(context.Background(), "203.0.113.5")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, statusCode)
	assert.JSONEq(t, `{"country_code":"TR"}`, string(body))
	assert.Equal(t, "geo-key", gotQuery.Get("api_key"))
	assert.Equal(t, "203.0.113.5", gotQuery.Get("ip_address"))
}

func TestClientGetHolidays(t *testing.T) {
	t.Parallel()

	var gotQuery url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	statusCode, body, err := client.GetHolidays(context.Background(), "TR", 2023, 10, 1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, statusCode)
	assert.Equal(t, "[]", string(body))
	assert.Equal(t, "holiday-key", gotQuery.Get("api_key"))
	assert.Equal(t, "TR", gotQuery.Get("country"))
	assert.Equal(t, "2023", gotQuery.Get("year"))
	assert.Equal(t, "10", gotQuery.Get("month"))
	assert.Equal(t, "1", gotQuery.Get("day"))
}

func TestClientReturnsStatusVerbatim(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"maintenance"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	statusCode, body, err := client.GetGeolocation(context.Background(), "203.0.113.5")

	// Non-2xx is not a transport error; interpretation is the caller's job.
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, statusCode)
	assert.JSONEq(t, `{"error":"maintenance"}`, string(body))
}

func TestClientTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	client := newTestClient(server.URL)
	_, _, err := client.GetGeolocation(context.Background(), "203.0.113.5")
	assert.Error(t, err)
}

func TestValidateEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		responseBody string
		wantValid    bool
		wantReason   string
		wantSuggest  string
	}{
		{
			name: "deliverable address",
			responseBody: `{"email":"bob@example.com","autocorrect":"",` +
				`"deliverability":"DELIVERABLE","is_valid_format":{"value":true}}`,
			wantValid: true,
		},
		{
			name: "malformed address",
			responseBody: `{"email":"not-an-email","autocorrect":"",` +
				`"deliverability":"UNDELIVERABLE","is_valid_format":{"value":false}}`,
			wantReason: "invalid_email_format",
		},
		{
			name: "typo with autocorrect suggestion",
			responseBody: `{"email":"bob@gmial.com","autocorrect":"bob@gmail.com",` +
				`"deliverability":"UNDELIVERABLE","is_valid_format":{"value":true}}`,
			wantSuggest: "bob@gmail.com",
		},
		{
			name: "well formed but undeliverable",
			responseBody: `{"email":"bob@example.invalid","autocorrect":"",` +
				`"deliverability":"UNDELIVERABLE","is_valid_format":{"value":true}}`,
			wantReason: "unusable_email",
		},
		{
			name: "autocorrect equal to the input is not a suggestion",
			responseBody: `{"email":"bob@example.com","autocorrect":"bob@example.com",` +
				`"deliverability":"DELIVERABLE","is_valid_format":{"value":true}}`,
			wantValid: true,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var gotQuery url.Values
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotQuery = r.URL.Query()
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tc.responseBody))
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			result, err := client.ValidateEmail(context.Background(), "bob@example.com")
			require.NoError(t, err)

			assert.Equal(t, "email-key", gotQuery.Get("api_key"))
			assert.Equal(t, "bob@example.com", gotQuery.Get("email"))

			assert.Equal(t, tc.wantValid, result.Valid)
			assert.Equal(t, tc.wantReason, result.Reason)
			assert.Equal(t, tc.wantSuggest, result.DidYouMean)
		})
	}
}

func TestValidateEmailGatewayFailures(t *testing.T) {
	t.Parallel()

	t.Run("provider error status", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ValidateEmail(context.Background(), "bob@example.com")
		assert.ErrorIs(t, err, ErrEmailGateway)
	})

	t.Run("unparseable provider body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("<html>not json</html>"))
		}))
		defer server.Close()

		client := newTestClient(server.URL)
		_, err := client.ValidateEmail(context.Background(), "bob@example.com")
		assert.ErrorIs(t, err, ErrEmailGateway)
	})

	t.Run("unreachable provider", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		client := newTestClient(server.URL)
		_, err := client.ValidateEmail(context.Background(), "bob@example.com")
		assert.ErrorIs(t, err, ErrEmailGateway)
	})
}
