package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	name string
	err  error

	mu      sync.Mutex
	digests []Digest
}

func (r *recordingNotifier) Name() string { return r.name }

func (r *recordingNotifier) SendDigest(_ context.Context, d Digest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.digests = append(r.digests, d)
	return r.err
}

func testDigest() Digest {
	return Digest{
		Kind:  "Grace Sweep",
		RunID: "run-1",
		Series: []DigestSeries{
			{Title: "The Expanse", Reason: "Grace Period", Seasons: []int32{1}, Episodes: 3, Size: 3000},
			{Title: "Dark", Reason: "Grace Period", Seasons: []int32{2, 3}, Episodes: 2, Size: 500},
		},
	}
}

func TestDigestTotals(t *testing.T) {
	d := testDigest()
	assert.Equal(t, 5, d.TotalEpisodes())
	assert.Equal(t, int64(3500), d.TotalSize())
}

func TestDispatcherSendsToAll(t *testing.T) {
	a := &recordingNotifier{name: "a"}
	b := &recordingNotifier{name: "b", err: errors.New("smtp down")}
	c := &recordingNotifier{name: "c"}

	err := NewDispatcher(a, b, c).Send(context.Background(), testDigest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b: smtp down")

	for _, n := range []*recordingNotifier{a, b, c} {
		require.Len(t, n.digests, 1, n.name)
		assert.False(t, n.digests[0].Time.IsZero())
	}
}

func TestDispatcherSkipsEmptyDigest(t *testing.T) {
	a := &recordingNotifier{name: "a"}
	require.NoError(t, NewDispatcher(a).Send(context.Background(), Digest{Kind: "Grace Sweep"}))
	assert.Empty(t, a.digests)

	var nilDispatcher *Dispatcher
	assert.False(t, nilDispatcher.Enabled())
	require.NoError(t, nilDispatcher.Send(context.Background(), testDigest()))
}
