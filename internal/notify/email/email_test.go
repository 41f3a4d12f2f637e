package email

import (
	"context"
	"testing"
	"time"

	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBody(t *testing.T) {
	body, err := generateBody(notify.Digest{
		Kind:   "Grace Sweep",
		RunID:  "run-42",
		DryRun: true,
		Time:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Series: []notify.DigestSeries{
			{Title: "Dark & Light", Reason: "Grace Period", Seasons: []int32{1, 3}, Episodes: 2, Size: 1 << 30},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, body, "episweep Grace Sweep")
	assert.Contains(t, body, "Dry run:")
	assert.Contains(t, body, "2 episodes (1.0 GiB)")
	assert.Contains(t, body, "Dark &amp; Light", "titles are escaped")
	assert.Contains(t, body, "S01, S03")
	assert.Contains(t, body, "Run run-42 at 2024-05-01 12:00 UTC")
}

func TestSendDigestDisabled(t *testing.T) {
	svc := New(&config.EmailConfig{Enabled: false})
	require.NoError(t, svc.SendDigest(context.Background(), notify.Digest{Kind: "Grace Sweep"}))

	svc = New(&config.EmailConfig{Enabled: true})
	require.NoError(t, svc.SendDigest(context.Background(), notify.Digest{Kind: "Grace Sweep"}), "no recipients")
}
