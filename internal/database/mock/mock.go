package mock

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/jon4hz/episweep/internal/database"
)

var _ database.DB = (*MockDB)(nil)

type activityKey struct {
	seriesID int32
	season   int32
}

// MockDB is a mock implementation of database.DB for testing.
type MockDB struct {
	mu sync.RWMutex

	activity    map[activityKey]database.ActivityRecord
	pending     map[int32]database.PendingDeletion
	rejections  map[int32]database.RejectedEpisode
	assignments map[int32]database.SeriesAssignment
	history     []database.HistoryEvent
	nextID      uint

	// Error simulation
	GetActivityError         error
	UpsertActivityError      error
	SetGraceCleanedError     error
	EnqueueError             error
	ListPendingError         error
	DeletePendingError       error
	RejectPendingError       error
	GetSeriesAssignmentError error
	ListAssignmentsError     error
	UpsertAssignmentError    error
	CreateHistoryEventError  error
}

// NewMockDB creates a new MockDB instance.
func NewMockDB() *MockDB {
	m := &MockDB{}
	m.Reset()
	return m
}

// Reset clears all data and errors from the mock database.
func (m *MockDB) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.activity = make(map[activityKey]database.ActivityRecord)
	m.pending = make(map[int32]database.PendingDeletion)
	m.rejections = make(map[int32]database.RejectedEpisode)
	m.assignments = make(map[int32]database.SeriesAssignment)
	m.history = nil
	m.nextID = 1

	m.GetActivityError = nil
	m.UpsertActivityError = nil
	m.SetGraceCleanedError = nil
	m.EnqueueError = nil
	m.ListPendingError = nil
	m.DeletePendingError = nil
	m.RejectPendingError = nil
	m.GetSeriesAssignmentError = nil
	m.ListAssignmentsError = nil
	m.UpsertAssignmentError = nil
	m.CreateHistoryEventError = nil
}

func (m *MockDB) Close() error { return nil }

// Activity operations

func (m *MockDB) GetActivity(_ context.Context, seriesID, seasonNumber int32) (*database.ActivityRecord, error) {
	if m.GetActivityError != nil {
		return nil, m.GetActivityError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	record, ok := m.activity[activityKey{seriesID, seasonNumber}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (m *MockDB) ListActivity(_ context.Context, seriesID int32) ([]database.ActivityRecord, error) {
	if m.GetActivityError != nil {
		return nil, m.GetActivityError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []database.ActivityRecord
	for key, record := range m.activity {
		if key.seriesID == seriesID {
			records = append(records, record)
		}
	}
	slices.SortFunc(records, func(a, b database.ActivityRecord) int {
		return cmp.Compare(a.SeasonNumber, b.SeasonNumber)
	})
	return records, nil
}

func (m *MockDB) UpsertActivity(_ context.Context, record database.ActivityRecord) error {
	if m.UpsertActivityError != nil {
		return m.UpsertActivityError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := activityKey{record.SeriesID, record.SeasonNumber}
	if existing, ok := m.activity[key]; ok {
		record.ID = existing.ID
	} else {
		record.ID = m.nextID
		m.nextID++
	}
	record.UpdatedAt = time.Now()
	m.activity[key] = record
	return nil
}

func (m *MockDB) SetGraceCleaned(_ context.Context, seriesID, seasonNumber int32, cleaned bool) error {
	if m.SetGraceCleanedError != nil {
		return m.SetGraceCleanedError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := activityKey{seriesID, seasonNumber}
	if record, ok := m.activity[key]; ok {
		record.GraceCleaned = cleaned
		m.activity[key] = record
	}
	return nil
}

func (m *MockDB) SetDormantCleaned(_ context.Context, seriesID int32) error {
	if m.SetGraceCleanedError != nil {
		return m.SetGraceCleanedError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := activityKey{seriesID, database.SeriesScope}
	if record, ok := m.activity[key]; ok {
		record.DormantCleaned = true
		record.GraceCleaned = true
		m.activity[key] = record
	}
	return nil
}

func (m *MockDB) ClearGraceCleaned(_ context.Context, seriesID int32) error {
	if m.SetGraceCleanedError != nil {
		return m.SetGraceCleanedError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, record := range m.activity {
		if key.seriesID == seriesID {
			record.GraceCleaned = false
			record.DormantCleaned = false
			m.activity[key] = record
		}
	}
	return nil
}

func (m *MockDB) DeleteActivity(_ context.Context, seriesID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.activity {
		if key.seriesID == seriesID {
			delete(m.activity, key)
		}
	}
	return nil
}

// Pending operations

func (m *MockDB) EnqueuePendingDeletion(_ context.Context, entry database.PendingDeletion, now time.Time) (bool, error) {
	if m.EnqueueError != nil {
		return false, m.EnqueueError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if rejection, ok := m.rejections[entry.EpisodeID]; ok {
		if rejection.ExpiresAt.After(now) {
			return false, nil
		}
		delete(m.rejections, entry.EpisodeID)
	}
	if _, ok := m.pending[entry.EpisodeID]; ok {
		return false, nil
	}

	if entry.QueuedAt.IsZero() {
		entry.QueuedAt = now
	}
	entry.ID = m.nextID
	m.nextID++
	m.pending[entry.EpisodeID] = entry
	return true, nil
}

func (m *MockDB) ListPendingDeletions(_ context.Context) ([]database.PendingDeletion, error) {
	if m.ListPendingError != nil {
		return nil, m.ListPendingError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]database.PendingDeletion, 0, len(m.pending))
	for _, entry := range m.pending {
		entries = append(entries, entry)
	}
	sortPending(entries)
	return entries, nil
}

func (m *MockDB) GetPendingDeletions(_ context.Context, episodeIDs []int32) ([]database.PendingDeletion, error) {
	if m.ListPendingError != nil {
		return nil, m.ListPendingError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []database.PendingDeletion
	for _, id := range episodeIDs {
		if entry, ok := m.pending[id]; ok {
			entries = append(entries, entry)
		}
	}
	sortPending(entries)
	return entries, nil
}

func (m *MockDB) DeletePendingDeletions(_ context.Context, episodeIDs []int32) (int64, error) {
	if m.DeletePendingError != nil {
		return 0, m.DeletePendingError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range episodeIDs {
		if _, ok := m.pending[id]; ok {
			delete(m.pending, id)
			n++
		}
	}
	return n, nil
}

func (m *MockDB) ClearPendingDeletions(_ context.Context) (int64, error) {
	if m.DeletePendingError != nil {
		return 0, m.DeletePendingError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := int64(len(m.pending))
	m.pending = make(map[int32]database.PendingDeletion)
	return n, nil
}

func (m *MockDB) RejectPendingDeletions(_ context.Context, episodeIDs []int32, expiresAt time.Time) (int64, error) {
	if m.RejectPendingError != nil {
		return 0, m.RejectPendingError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range episodeIDs {
		if _, ok := m.pending[id]; !ok {
			continue
		}
		delete(m.pending, id)
		m.rejections[id] = database.RejectedEpisode{EpisodeID: id, ExpiresAt: expiresAt}
		n++
	}
	return n, nil
}

func (m *MockDB) GetRejection(_ context.Context, episodeID int32) (*database.RejectedEpisode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rejection, ok := m.rejections[episodeID]
	if !ok {
		return nil, nil
	}
	return &rejection, nil
}

func (m *MockDB) ListRejections(_ context.Context) ([]database.RejectedEpisode, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rejections := make([]database.RejectedEpisode, 0, len(m.rejections))
	for _, r := range m.rejections {
		rejections = append(rejections, r)
	}
	slices.SortFunc(rejections, func(a, b database.RejectedEpisode) int {
		return a.ExpiresAt.Compare(b.ExpiresAt)
	})
	return rejections, nil
}

func (m *MockDB) DeleteExpiredRejections(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, r := range m.rejections {
		if !r.ExpiresAt.After(now) {
			delete(m.rejections, id)
			n++
		}
	}
	return n, nil
}

// Series operations

func (m *MockDB) GetSeriesAssignment(_ context.Context, seriesID int32) (*database.SeriesAssignment, error) {
	if m.GetSeriesAssignmentError != nil {
		return nil, m.GetSeriesAssignmentError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	assignment, ok := m.assignments[seriesID]
	if !ok {
		return nil, nil
	}
	return &assignment, nil
}

func (m *MockDB) ListSeriesAssignments(_ context.Context) ([]database.SeriesAssignment, error) {
	if m.ListAssignmentsError != nil {
		return nil, m.ListAssignmentsError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	assignments := make([]database.SeriesAssignment, 0, len(m.assignments))
	for _, a := range m.assignments {
		assignments = append(assignments, a)
	}
	slices.SortFunc(assignments, func(a, b database.SeriesAssignment) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.SeriesID, b.SeriesID))
	})
	return assignments, nil
}

func (m *MockDB) UpsertSeriesAssignment(_ context.Context, assignment database.SeriesAssignment) error {
	if m.UpsertAssignmentError != nil {
		return m.UpsertAssignmentError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.assignments[assignment.SeriesID]; ok {
		assignment.ID = existing.ID
		assignment.CreatedAt = existing.CreatedAt
	} else {
		assignment.ID = m.nextID
		m.nextID++
		assignment.CreatedAt = now
	}
	if assignment.GraceScope == "" {
		assignment.GraceScope = "series"
	}
	assignment.UpdatedAt = now
	m.assignments[assignment.SeriesID] = assignment
	return nil
}

func (m *MockDB) DeleteSeriesAssignment(_ context.Context, seriesID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.assignments, seriesID)
	return nil
}

// History operations

func (m *MockDB) CreateHistoryEvent(_ context.Context, event database.HistoryEvent) error {
	if m.CreateHistoryEventError != nil {
		return m.CreateHistoryEventError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if event.EventTime.IsZero() {
		event.EventTime = time.Now()
	}
	event.ID = m.nextID
	m.nextID++
	m.history = append(m.history, event)
	return nil
}

func (m *MockDB) GetHistoryEvents(_ context.Context, filter database.HistoryFilter) ([]database.HistoryEvent, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []database.HistoryEvent
	for i := len(m.history) - 1; i >= 0; i-- {
		e := m.history[i]
		if filter.SeriesID != 0 && e.SeriesID != filter.SeriesID {
			continue
		}
		if filter.EventType != "" && e.EventType != filter.EventType {
			continue
		}
		matched = append(matched, e)
	}

	total := int64(len(matched))
	page := max(filter.Page, 1)
	pageSize := filter.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	start := min((page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))
	return matched[start:end], total, nil
}

func (m *MockDB) PruneHistoryEvents(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.history[:0]
	var n int64
	for _, e := range m.history {
		if e.EventTime.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	m.history = kept
	return n, nil
}

// HistoryEvents returns all recorded events of the given type, oldest first.
func (m *MockDB) HistoryEvents(eventType database.HistoryEventType) []database.HistoryEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var events []database.HistoryEvent
	for _, e := range m.history {
		if e.EventType == eventType {
			events = append(events, e)
		}
	}
	return events
}

func sortPending(entries []database.PendingDeletion) {
	slices.SortFunc(entries, func(a, b database.PendingDeletion) int {
		return cmp.Or(
			cmp.Compare(a.SeriesID, b.SeriesID),
			cmp.Compare(a.SeasonNumber, b.SeasonNumber),
			cmp.Compare(a.EpisodeNumber, b.EpisodeNumber),
		)
	})
}
