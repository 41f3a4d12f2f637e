package mock

import (
	"context"
	"sync"

	"github.com/jon4hz/episweep/internal/api/handler"
	"github.com/jon4hz/episweep/internal/cache"
	"github.com/jon4hz/episweep/internal/database"
	"github.com/jon4hz/episweep/internal/engine"
	"github.com/jon4hz/episweep/internal/engine/activity"
	"github.com/jon4hz/episweep/internal/engine/pending"
	"github.com/jon4hz/episweep/internal/engine/rules"
	"github.com/jon4hz/episweep/internal/scheduler"
)

var _ handler.Engine = (*MockEngine)(nil)

// Decision is a recorded approve or reject call.
type Decision struct {
	EpisodeIDs []int32
	SeriesID   int32
	Season     *int32
}

// MockEngine is a mock implementation of handler.Engine for testing.
type MockEngine struct {
	mu sync.RWMutex

	Scheduler *scheduler.Scheduler

	// Canned results
	WatchResult *engine.WatchResult
	SweepResult *engine.SweepResult
	SyncResult  *engine.SyncResult
	Summary     *pending.Summary
	Items       []pending.Item
	Result      *pending.Result
	Records     []database.ActivityRecord
	Position    *activity.Position
	Events      []database.HistoryEvent
	Assignments []database.SeriesAssignment

	// Recorded calls
	Watches      []engine.WatchEvent
	Grabs        []int32
	Syncs        int
	Sweeps       []engine.SweepOptions
	Approvals    []Decision
	Rejections   []Decision
	Clears       int
	Filters      []database.HistoryFilter
	Assigned     []database.SeriesAssignment
	Unassigned   []int32
	CacheCleared int

	// Error simulation
	WatchError   error
	GrabError    error
	SyncError    error
	SweepError   error
	PendingError error
	AssignError  error
}

// NewMockEngine creates a new MockEngine with an empty queue.
func NewMockEngine(s *scheduler.Scheduler) *MockEngine {
	return &MockEngine{
		Scheduler: s,
		Summary:   &pending.Summary{},
		Result:    &pending.Result{Errors: []pending.ItemError{}},
	}
}

func (m *MockEngine) ProcessWatch(_ context.Context, ev engine.WatchEvent) (*engine.WatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Watches = append(m.Watches, ev)
	if m.WatchError != nil {
		return nil, m.WatchError
	}
	if m.WatchResult != nil {
		return m.WatchResult, nil
	}
	return &engine.WatchResult{SeriesID: ev.SeriesID, SeriesTitle: ev.SeriesTitle}, nil
}

func (m *MockEngine) ProcessGrab(_ context.Context, seriesID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Grabs = append(m.Grabs, seriesID)
	return m.GrabError
}

func (m *MockEngine) SyncRuleTags(_ context.Context) (*engine.SyncResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Syncs++
	if m.SyncError != nil {
		return nil, m.SyncError
	}
	if m.SyncResult != nil {
		return m.SyncResult, nil
	}
	return &engine.SyncResult{}, nil
}

func (m *MockEngine) RunGraceSweep(_ context.Context, opts engine.SweepOptions) (*engine.SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sweeps = append(m.Sweeps, opts)
	if m.SweepError != nil {
		return nil, m.SweepError
	}
	if m.SweepResult != nil {
		return m.SweepResult, nil
	}
	return &engine.SweepResult{DryRun: opts.DryRun, Errors: []string{}}, nil
}

func (m *MockEngine) PendingSummary(_ context.Context) (*pending.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.PendingError != nil {
		return nil, m.PendingError
	}
	return m.Summary, nil
}

func (m *MockEngine) PendingForSeries(_ context.Context, seriesID int32) ([]pending.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.PendingError != nil {
		return nil, m.PendingError
	}
	var items []pending.Item
	for _, i := range m.Items {
		if i.SeriesID == seriesID {
			items = append(items, i)
		}
	}
	return items, nil
}

func (m *MockEngine) approve(d Decision) (*pending.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Approvals = append(m.Approvals, d)
	if m.PendingError != nil {
		return nil, m.PendingError
	}
	return m.Result, nil
}

func (m *MockEngine) Approve(_ context.Context, episodeIDs []int32) (*pending.Result, error) {
	return m.approve(Decision{EpisodeIDs: episodeIDs})
}

func (m *MockEngine) ApproveSeries(_ context.Context, seriesID int32) (*pending.Result, error) {
	return m.approve(Decision{SeriesID: seriesID})
}

func (m *MockEngine) ApproveSeason(_ context.Context, seriesID, season int32) (*pending.Result, error) {
	return m.approve(Decision{SeriesID: seriesID, Season: &season})
}

func (m *MockEngine) reject(d Decision, n int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Rejections = append(m.Rejections, d)
	if m.PendingError != nil {
		return 0, m.PendingError
	}
	return n, nil
}

func (m *MockEngine) Reject(_ context.Context, episodeIDs []int32) (int64, error) {
	return m.reject(Decision{EpisodeIDs: episodeIDs}, int64(len(episodeIDs)))
}

func (m *MockEngine) RejectSeries(_ context.Context, seriesID int32) (int64, error) {
	return m.reject(Decision{SeriesID: seriesID}, 1)
}

func (m *MockEngine) ClearPending(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Clears++
	if m.PendingError != nil {
		return 0, m.PendingError
	}
	return int64(m.Summary.EpisodeCount), nil
}

func (m *MockEngine) Activity(_ context.Context, _ int32) ([]database.ActivityRecord, *activity.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Records, m.Position, nil
}

func (m *MockEngine) GetHistory(_ context.Context, filter database.HistoryFilter) ([]database.HistoryEvent, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Filters = append(m.Filters, filter)
	return m.Events, int64(len(m.Events)), nil
}

func (m *MockEngine) ListAssignments(_ context.Context) ([]database.SeriesAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Assignments, nil
}

func (m *MockEngine) AssignRule(_ context.Context, seriesID int32, title, ruleName string, scope rules.GraceScope, source database.AssignmentSource) (*database.SeriesAssignment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AssignError != nil {
		return nil, false, m.AssignError
	}
	a := database.SeriesAssignment{
		SeriesID:   seriesID,
		Title:      title,
		RuleName:   ruleName,
		GraceScope: string(scope),
		Source:     source,
	}
	m.Assigned = append(m.Assigned, a)
	return &a, true, nil
}

func (m *MockEngine) UnassignRule(_ context.Context, seriesID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AssignError != nil {
		return m.AssignError
	}
	m.Unassigned = append(m.Unassigned, seriesID)
	return nil
}

func (m *MockEngine) GetScheduler() *scheduler.Scheduler {
	return m.Scheduler
}

func (m *MockEngine) CacheStats() []*cache.Stats {
	return nil
}

func (m *MockEngine) ClearCache(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CacheCleared++
}
