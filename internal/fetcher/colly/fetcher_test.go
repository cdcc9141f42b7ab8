package collyfetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchReturnsBody(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>steam://joinlobby/480/1/2</body></html>"))
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "magnet-test/1.0", Timeout: 5 * time.Second})
	body, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Contains(t, body, "steam://joinlobby/480/1/2")
	require.Equal(t, "magnet-test/1.0", gotUA)
	require.Equal(t, acceptHeader, gotAccept)
}

func TestFetchServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := New(Config{})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

func TestFetchCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(Config{Timeout: 5 * time.Second})
	_, err := f.Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentFetchesDoNotShareState(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("page:" + r.URL.Path))
	}))
	defer srv.Close()

	f := New(Config{})
	results := make(chan string, 2)
	for _, path := range []string{"/a", "/b"} {
		path := path
		go func() {
			body, err := f.Fetch(context.Background(), srv.URL+path)
			require.NoError(t, err)
			results <- body
		}()
	}

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		got[<-results] = true
	}
	require.True(t, got["page:/a"])
	require.True(t, got["page:/b"])
}
