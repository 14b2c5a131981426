package geoclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ip":"200.1.2.3","city":"Recife","region":"Pernambuco","country_name":"Brazil"}`))
	}))
	defer srv.Close()

	loc, err := New(srv.URL, time.Second, false).Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "200.1.2.3", loc.IP)
	assert.Equal(t, "Recife, Pernambuco, Brazil", loc.String())
}

func TestLocate_MissingFieldsRenderNA(t *testing.T) {
	assert.Equal(t, "Recife, N/A, N/A", Location{City: "Recife"}.String())
}

func TestLocate_Errors(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
		"body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
		"flagged": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":true,"reason":"RateLimited"}`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			_, err := New(srv.URL, time.Second, false).Locate(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestLocate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := New(srv.URL, 50*time.Millisecond, false).Locate(context.Background())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestLocate_Skip(t *testing.T) {
	_, err := New("http://unused.invalid", time.Second, true).Locate(context.Background())
	assert.ErrorIs(t, err, ErrSkipped)
}
