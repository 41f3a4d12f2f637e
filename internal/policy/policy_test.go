package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/dustin/go-humanize"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeUsage(free map[string]uint64) func(context.Context, string) (*disk.UsageStat, error) {
	return func(_ context.Context, path string) (*disk.UsageStat, error) {
		f, ok := free[path]
		if !ok {
			return nil, errors.New("no such path")
		}
		return &disk.UsageStat{Path: path, Free: f}, nil
	}
}

func TestStorageGate(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.StorageGateConfig
		free map[string]uint64
		want bool
	}{
		{
			name: "disabled gate always sweeps",
			cfg:  &config.StorageGateConfig{},
			want: true,
		},
		{
			name: "plenty of space",
			cfg:  &config.StorageGateConfig{MinFreeGB: 100, Paths: []string{"/tv", "/anime"}},
			free: map[string]uint64{"/tv": 500 * humanize.GByte, "/anime": 200 * humanize.GByte},
			want: false,
		},
		{
			name: "one path runs low",
			cfg:  &config.StorageGateConfig{MinFreeGB: 100, Paths: []string{"/tv", "/anime"}},
			free: map[string]uint64{"/tv": 500 * humanize.GByte, "/anime": 50 * humanize.GByte},
			want: true,
		},
		{
			name: "unreadable paths are skipped",
			cfg:  &config.StorageGateConfig{MinFreeGB: 100, Paths: []string{"/missing", "/anime"}},
			free: map[string]uint64{"/anime": 50 * humanize.GByte},
			want: true,
		},
		{
			name: "nothing readable",
			cfg:  &config.StorageGateConfig{MinFreeGB: 100, Paths: []string{"/missing"}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewStorageGate(tt.cfg)
			gate.usage = fakeUsage(tt.free)

			got, err := gate.ShouldTriggerSweep(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type staticPolicy struct {
	trigger bool
	err     error
}

func (p staticPolicy) Name() string { return "static" }

func (p staticPolicy) ShouldTriggerSweep(context.Context) (bool, error) { return p.trigger, p.err }

func TestEngine(t *testing.T) {
	ctx := context.Background()

	ok, err := NewEngine().ShouldTriggerSweep(ctx)
	require.NoError(t, err)
	assert.True(t, ok, "no policies means the sweep runs")

	ok, err = NewEngine(staticPolicy{}, staticPolicy{trigger: true}).ShouldTriggerSweep(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	e := NewEngine(staticPolicy{})
	ok, err = e.ShouldTriggerSweep(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	e.SetPolicies(staticPolicy{err: errors.New("boom")})
	_, err = e.ShouldTriggerSweep(ctx)
	assert.Error(t, err)
}
