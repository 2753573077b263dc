package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelpilot/ollamactl/internal/enginectl"
)

// testClient wires a Client against srv with a stubbed port resolver so no
// real process is ever inspected, launched or killed.
func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()

	ctl := enginectl.NewController("127.0.0.1", 11434, "", t.TempDir())
	ctl.ResolvePID = func(int) (int32, bool) { return 4242, true }
	ctl.Prober = enginectl.NewProber(srv.URL)

	rest := retryablehttp.NewClient()
	rest.RetryMax = 0
	rest.Logger = nil

	return &Client{
		baseURL:       srv.URL,
		ctl:           ctl,
		activity:      &enginectl.ActivityState{},
		stream:        &http.Client{},
		rest:          rest,
		idleThreshold: 90 * time.Second,
		readyTimeout:  time.Second,
		pollInterval:  50 * time.Millisecond,
	}
}

func okProbe(mux *http.ServeMux) {
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestList(t *testing.T) {
	mux := http.NewServeMux()
	okProbe(mux)
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(ListResponse{Models: []ModelSummary{
			{Name: "llama3:latest", Size: 4_000_000_000, Digest: "sha256:abc"},
			{Name: "mistral:7b", Size: 3_800_000_000, Digest: "sha256:def"},
		}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := testClient(t, srv).List(context.Background())
	require.NoError(t, err)
	require.Len(t, out.Models, 2)
	assert.Equal(t, "llama3:latest", out.Models[0].Name)
}

func TestVersion(t *testing.T) {
	mux := http.NewServeMux()
	okProbe(mux)
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"0.5.7"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	v, err := testClient(t, srv).Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.5.7", v)
}

func TestCopy(t *testing.T) {
	mux := http.NewServeMux()
	okProbe(mux)
	mux.HandleFunc("/api/copy", func(w http.ResponseWriter, r *http.Request) {
		var req CopyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3", req.Source)
		assert.Equal(t, "llama3-backup", req.Destination)
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := testClient(t, srv).Copy(context.Background(), &CopyRequest{Source: "llama3", Destination: "llama3-backup"})
	require.NoError(t, err)
}

func TestDeleteNotFound(t *testing.T) {
	mux := http.NewServeMux()
	okProbe(mux)
	mux.HandleFunc("/api/delete", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model 'ghost' not found"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := testClient(t, srv).Delete(context.Background(), &DeleteRequest{Model: "ghost"})
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "model 'ghost' not found", statusErr.Message)
}

func TestHeartbeat(t *testing.T) {
	mux := http.NewServeMux()
	okProbe(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := testClient(t, srv)
	assert.True(t, c.Heartbeat(context.Background()))

	srv.Close()
	assert.False(t, c.Heartbeat(context.Background()))
}
