package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecommendNotifier_EmptyURL(t *testing.T) {
	assert.Nil(t, NewRecommendNotifier("  ", time.Second))
}

func TestRefreshRecommendations_PostsEmptyBody(t *testing.T) {
	var (
		method string
		body   []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewRecommendNotifier(srv.URL+"/recommend/refresh", time.Second)
	require.NoError(t, n.RefreshRecommendations(context.Background()))

	assert.Equal(t, http.MethodPost, method)
	assert.Empty(t, body)
}

func TestRefreshRecommendations_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewRecommendNotifier(srv.URL, time.Second).RefreshRecommendations(context.Background())
	assert.ErrorContains(t, err, "500")
}

func TestRefreshRecommendations_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	err := NewRecommendNotifier(url, time.Second).RefreshRecommendations(context.Background())
	assert.Error(t, err)
}
