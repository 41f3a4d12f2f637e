package tautulli

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/engine/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitleVariations(t *testing.T) {
	assert.Equal(t, []string{"Dark"}, titleVariations("Dark"))
	assert.Equal(t, []string{"Doctor Who (2005)", "Doctor Who"}, titleVariations("Doctor Who (2005)"))
	assert.Equal(t, []string{"Star Trek: Picard", "Star Trek - Picard", "Star Trek Picard"}, titleVariations("Star Trek: Picard"))
	assert.Len(t, titleVariations("Star Trek: Picard (2020)"), maxVariations)
}

func TestLastWatched(t *testing.T) {
	var (
		mu       sync.Mutex
		searches []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		search := r.URL.Query().Get("search")
		mu.Lock()
		searches = append(searches, search)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch search {
		case "Doctor Who (2005)":
			_, _ = w.Write([]byte(`{"response":{"result":"success","data":{"data":[]}}}`))
		case "Doctor Who":
			_, _ = w.Write([]byte(`{"response":{"result":"success","data":{"data":[
				{"date":1700000500,"grandparent_title":"Doctor Who Confidential","parent_media_index":1,"media_index":1},
				{"date":1700000000,"grandparent_title":"Doctor Who","parent_media_index":"4","media_index":"7"},
				{"date":1600000000,"grandparent_title":"Doctor Who","parent_media_index":"4","media_index":"6"}
			]}}}`))
		default:
			_, _ = w.Write([]byte(`{"response":{"result":"success","data":{"data":[
				{"date":1700000000,"grandparent_title":"Something Else","parent_media_index":1,"media_index":1}
			]}}}`))
		}
	}))
	defer server.Close()

	source := New(&config.TautulliConfig{URL: server.URL, APIKey: "key"})
	assert.Equal(t, "tautulli", source.Name())

	watch, err := source.LastWatched(context.Background(), "Doctor Who (2005)")
	require.NoError(t, err)
	assert.Equal(t, "Doctor Who", watch.Title)
	assert.Equal(t, time.Unix(1700000000, 0), watch.WatchedAt)
	require.True(t, watch.HasPosition())
	assert.Equal(t, int32(4), *watch.Season)
	assert.Equal(t, int32(7), *watch.Episode)
	assert.Equal(t, []string{"Doctor Who (2005)", "Doctor Who"}, searches)

	_, err = source.LastWatched(context.Background(), "Dark")
	assert.ErrorIs(t, err, stats.ErrNoHistory)
}

func TestLastWatchedWithoutPosition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"result":"success","data":{"data":[
			{"date":1700000000,"grandparent_title":"Dark","parent_media_index":"","media_index":""}
		]}}}`))
	}))
	defer server.Close()

	watch, err := New(&config.TautulliConfig{URL: server.URL}).LastWatched(context.Background(), "Dark")
	require.NoError(t, err)
	assert.False(t, watch.HasPosition())
}

func TestLastWatchedPropagatesErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := New(&config.TautulliConfig{URL: server.URL}).LastWatched(context.Background(), "Dark")
	require.Error(t, err)
	assert.NotErrorIs(t, err, stats.ErrNoHistory)
}
