package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/database"
	dbmock "github.com/jon4hz/episweep/internal/database/mock"
	"github.com/jon4hz/episweep/internal/engine/arr"
	arrmock "github.com/jon4hz/episweep/internal/engine/arr/mock"
	"github.com/jon4hz/episweep/internal/engine/stats"
	statsmock "github.com/jon4hz/episweep/internal/engine/stats/mock"
	"github.com/jon4hz/episweep/internal/notify"
	"github.com/jon4hz/episweep/internal/policy"
	"github.com/stretchr/testify/suite"
)

const (
	expanseID int32 = 1
	darkID    int32 = 2
)

type recordingNotifier struct {
	mu      sync.Mutex
	digests []notify.Digest
}

func (r *recordingNotifier) Name() string { return "recording" }

func (r *recordingNotifier) SendDigest(_ context.Context, d notify.Digest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.digests = append(r.digests, d)
	return nil
}

func (r *recordingNotifier) Digests() []notify.Digest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Digest(nil), r.digests...)
}

type gatePolicy struct{ open bool }

func (g gatePolicy) Name() string { return "gate" }

func (g gatePolicy) ShouldTriggerSweep(context.Context) (bool, error) { return g.open, nil }

// EngineTestSuite runs the engine against in-memory mocks of the database, the catalog and the history sources.
type EngineTestSuite struct {
	suite.Suite
	ctx      context.Context
	cfg      *config.Config
	db       *dbmock.MockDB
	sonarr   *arrmock.MockArrer
	tautulli *statsmock.MockHistorySource
	notifier *recordingNotifier
	engine   *Engine
}

func testConfig() *config.Config {
	return &config.Config{
		DefaultRule:    "default",
		HistoryTimeout: time.Second,
		Grace:          &config.GraceConfig{Schedule: "0 0 1 1 *"},
		TagSync:        &config.TagSyncConfig{Enabled: true, Prefix: "episweep_", Schedule: "0 0 1 1 *"},
		RulesConfig: map[string]*config.RuleConfig{
			"default": {
				GetType: "episodes", GetCount: 2,
				KeepType: "episodes", KeepCount: 1,
				ActionOption: "search",
				GraceDays:    14,
			},
			"binge": {
				GetType: "seasons", GetCount: 1,
				KeepType: "seasons", KeepCount: 1,
				ActionOption:   "search",
				MonitorWatched: true,
				GraceDays:      7,
				GraceScope:     "season",
				GraceBookmarks: true,
			},
			"bookmarked": {
				GetType: "episodes", GetCount: 1,
				KeepType:       "all",
				GraceDays:      7,
				GraceBookmarks: true,
			},
			"archive": {
				KeepType: "all",
			},
		},
	}
}

// buildEpisodes creates seasons with perSeason episodes each. Episode ids are season*100+episode.
// Episodes up to and including the given position have a file and are monitored.
func buildEpisodes(seriesID int32, seasons, perSeason int32, downloadedSeason, downloadedEpisode int32, added time.Time) []arr.Episode {
	var episodes []arr.Episode
	for s := int32(1); s <= seasons; s++ {
		for e := int32(1); e <= perSeason; e++ {
			ep := arr.Episode{
				ID:            seriesID*1000 + s*100 + e,
				SeriesID:      seriesID,
				SeasonNumber:  s,
				EpisodeNumber: e,
				Title:         fmt.Sprintf("Episode %d", e),
			}
			if !ep.After(downloadedSeason, downloadedEpisode) {
				ep.HasFile = true
				ep.Monitored = true
				ep.EpisodeFileID = 10000 + ep.ID
				ep.Size = 1 << 30
				ep.DateAdded = added
			}
			episodes = append(episodes, ep)
		}
	}
	return episodes
}

func epID(seriesID, season, episode int32) int32 {
	return seriesID*1000 + season*100 + episode
}

func fileID(seriesID, season, episode int32) int32 {
	return 10000 + epID(seriesID, season, episode)
}

func (s *EngineTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.cfg = testConfig()
	s.db = dbmock.NewMockDB()
	s.sonarr = arrmock.NewMockArrer()
	s.tautulli = statsmock.NewMockHistorySource("tautulli")
	s.notifier = &recordingNotifier{}

	s.sonarr.AddSeries(arr.Series{ID: expanseID, Title: "The Expanse", Year: 2015}, buildEpisodes(expanseID, 2, 4, 1, 4, time.Now().AddDate(0, 0, -60)))
	s.sonarr.AddSeries(arr.Series{ID: darkID, Title: "Dark", Year: 2017}, buildEpisodes(darkID, 3, 4, 1, 4, time.Now().AddDate(0, 0, -60)))

	s.engine = s.newEngine(policy.NewEngine())
}

func (s *EngineTestSuite) TearDownTest() {
	if s.engine != nil {
		s.Require().NoError(s.engine.Close())
	}
}

func (s *EngineTestSuite) newEngine(gate *policy.Engine) *Engine {
	e, err := newEngine(s.cfg, s.db, s.sonarr, []stats.HistorySource{s.tautulli}, notify.NewDispatcher(s.notifier), gate)
	s.Require().NoError(err)
	return e
}

// rebuild recreates the engine after the configuration was changed.
func (s *EngineTestSuite) rebuild() {
	s.Require().NoError(s.engine.Close())
	s.engine = s.newEngine(policy.NewEngine())
}

func (s *EngineTestSuite) assign(seriesID int32, rule string) {
	_, _, err := s.engine.AssignRule(s.ctx, seriesID, "", rule, "", database.AssignmentSourceAPI)
	s.Require().NoError(err)
}

func (s *EngineTestSuite) pendingIDs() []int32 {
	items, err := s.engine.Queue().Items(s.ctx)
	s.Require().NoError(err)
	ids := make([]int32, 0, len(items))
	for _, i := range items {
		ids = append(ids, i.EpisodeID)
	}
	return ids
}

func TestEngineTestSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}
