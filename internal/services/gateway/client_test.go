package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{URL: srv.URL, APIKey: "secret"}, utils.NewTestLogger())
	require.NoError(t, err)
	return client
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/search", r.URL.Path)
		assert.Equal(t, "Heat 1995", r.URL.Query().Get("query"))
		assert.Equal(t, "2000", r.URL.Query().Get("categoryIds"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"protocol":"torrent","title":"Heat.1995.1080p","indexer":"idx","priority":10,"seeders":42,"size":100,"downloadUrl":"magnet:x"},
			{"protocol":"usenet","title":"Heat.1995.720p","indexer":"nzb","size":50}
		]}`))
	})

	got, err := client.Search(context.Background(), "Heat 1995", models.CategoryMovies)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, models.ProtocolTorrent, got[0].Protocol)
	assert.Equal(t, 42, got[0].SeederCount())
	assert.Equal(t, 10, got[0].SourcePriority())
	assert.Equal(t, "magnet:x", got[0].DownloadURL)

	assert.Equal(t, models.ProtocolNZB, got[1].Protocol)
	assert.Equal(t, 0, got[1].SeederCount())
	assert.Equal(t, models.DefaultSourcePriority, got[1].SourcePriority())
}

func TestSearchServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Search(context.Background(), "Heat", models.CategoryMovies)
	assert.Error(t, err)
}

func TestSubmitDownload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/downloadclients/grab", r.URL.Path)
		var req grabRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		if req.Title == "bad" {
			w.Write([]byte(`{"success":false,"error":"client offline"}`))
			return
		}
		w.Write([]byte(`{"success":true,"id":"job-1"}`))
	})

	ref, err := client.SubmitDownload(context.Background(), models.SearchCandidate{Title: "good", Protocol: models.ProtocolTorrent})
	require.NoError(t, err)
	assert.Equal(t, "job-1", ref)

	_, err = client.SubmitDownload(context.Background(), models.SearchCandidate{Title: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client offline")
}
