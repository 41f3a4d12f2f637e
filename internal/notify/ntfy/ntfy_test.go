package ntfy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDigest(t *testing.T) {
	var (
		got    Message
		header http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(&config.NtfyConfig{ServerURL: srv.URL, Topic: "tv", Token: "tk_123"})
	err := c.SendDigest(context.Background(), notify.Digest{
		Kind:   "Grace Sweep",
		RunID:  "abc",
		DryRun: true,
		Series: []notify.DigestSeries{
			{Title: "The Expanse", Reason: "Grace Period", Seasons: []int32{1, 2}, Episodes: 4, Size: 2 << 30},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tk_123", header.Get("Authorization"))
	assert.Equal(t, "yes", header.Get("Markdown"))
	assert.Equal(t, "tv", got.Topic)
	assert.Equal(t, "episweep Grace Sweep", got.Title)
	assert.Contains(t, got.Message, "**Episodes queued:** 4 (2.0 GiB)")
	assert.Contains(t, got.Message, "**The Expanse** S01, S02: 4 episodes")
	assert.Contains(t, got.Tags, "dry-run")
}

func TestSendDigestSkipsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer srv.Close()

	c := NewClient(&config.NtfyConfig{ServerURL: srv.URL, Topic: "tv"})
	require.NoError(t, c.SendDigest(context.Background(), notify.Digest{Kind: "Grace Sweep"}))
}

func TestSendMessageBasicAuthAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bob" || pass != "hunter2" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok := NewClient(&config.NtfyConfig{ServerURL: srv.URL, Topic: "tv", Username: "bob", Password: "hunter2"})
	require.NoError(t, ok.SendMessage(context.Background(), Message{Title: "hi"}))

	bad := NewClient(&config.NtfyConfig{ServerURL: srv.URL, Topic: "tv", Username: "bob", Password: "nope"})
	err := bad.SendMessage(context.Background(), Message{Title: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Contains(t, err.Error(), "forbidden")
}
