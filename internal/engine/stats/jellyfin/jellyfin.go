package jellyfin

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/episweep/internal/config"
	"github.com/jon4hz/episweep/internal/engine/stats"
	"github.com/jon4hz/episweep/internal/version"
	"github.com/samber/lo"
	jellyfin "github.com/sj14/jellyfin-go/api"
)

// playedLimit is the number of recently played episodes scanned per lookup.
const playedLimit = 200

var guidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{4}-?[0-9a-fA-F]{12}$`)

var _ stats.HistorySource = (*Client)(nil)

// Client is a watch-history source backed by the played state of a Jellyfin user.
type Client struct {
	jellyfin *jellyfin.APIClient
	cfg      *config.JellyfinConfig

	mu     sync.Mutex
	userID string
}

// New creates a new Jellyfin history source.
func New(cfg *config.JellyfinConfig) *Client {
	return &Client{
		jellyfin: newJellyfinClient(cfg),
		cfg:      cfg,
	}
}

func newJellyfinClient(cfg *config.JellyfinConfig) *jellyfin.APIClient {
	clientConfig := jellyfin.NewConfiguration()
	clientConfig.Servers = jellyfin.ServerConfigurations{
		{
			URL:         cfg.URL,
			Description: "Jellyfin server",
		},
	}
	clientConfig.DefaultHeader = map[string]string{"Authorization": fmt.Sprintf(`MediaBrowser Token="%s"`, cfg.APIKey)}
	clientConfig.UserAgent = fmt.Sprintf("episweep/%s", version.Version)
	return jellyfin.NewAPIClient(clientConfig)
}

func (c *Client) Name() string {
	return string(config.HistorySourceJellyfin)
}

// LastWatched scans the most recently played episodes of the user for the series.
func (c *Client) LastWatched(ctx context.Context, seriesTitle string) (*stats.Watch, error) {
	userID, err := c.resolveUserID(ctx)
	if err != nil {
		return nil, err
	}

	result, _, err := c.jellyfin.ItemsAPI.GetItems(ctx).
		UserId(userID).
		Recursive(true).
		IncludeItemTypes([]jellyfin.BaseItemKind{jellyfin.BASEITEMKIND_EPISODE}).
		IsPlayed(true).
		EnableUserData(true).
		SortBy([]jellyfin.ItemSortBy{jellyfin.ITEMSORTBY_DATE_PLAYED}).
		SortOrder([]jellyfin.SortOrder{jellyfin.SORTORDER_DESCENDING}).
		Limit(playedLimit).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get played episodes: %w", err)
	}

	items := lo.Filter(result.GetItems(), func(item jellyfin.BaseItemDto, _ int) bool {
		userData := item.GetUserData()
		return !userData.GetLastPlayedDate().IsZero()
	})
	log.Debug("Fetched played jellyfin episodes", "count", len(items), "title", seriesTitle)

	idx := stats.BestMatch(seriesTitle, lo.Map(items, func(item jellyfin.BaseItemDto, _ int) string {
		return item.GetSeriesName()
	}))
	if idx < 0 {
		return nil, stats.ErrNoHistory
	}

	matched := items[idx].GetSeriesName()
	item, _ := lo.Find(items, func(item jellyfin.BaseItemDto) bool { return item.GetSeriesName() == matched })
	userData := item.GetUserData()

	w := &stats.Watch{
		WatchedAt: userData.GetLastPlayedDate(),
		Title:     matched,
	}
	if item.HasParentIndexNumber() && item.HasIndexNumber() {
		season, episode := item.GetParentIndexNumber(), item.GetIndexNumber()
		w.Season, w.Episode = &season, &episode
	}
	return w, nil
}

// resolveUserID turns the configured user into a Jellyfin user id.
// The setting may hold an id or a user name. When empty, the first administrator is used.
func (c *Client) resolveUserID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.userID != "" {
		return c.userID, nil
	}
	if guidPattern.MatchString(c.cfg.UserID) {
		c.userID = c.cfg.UserID
		return c.userID, nil
	}

	users, _, err := c.jellyfin.UserAPI.GetUsers(ctx).Execute()
	if err != nil {
		return "", fmt.Errorf("failed to list jellyfin users: %w", err)
	}

	var user *jellyfin.UserDto
	if c.cfg.UserID != "" {
		if u, ok := lo.Find(users, func(u jellyfin.UserDto) bool {
			return strings.EqualFold(u.GetName(), c.cfg.UserID)
		}); ok {
			user = &u
		}
	} else if u, ok := lo.Find(users, func(u jellyfin.UserDto) bool {
		policy := u.GetPolicy()
		return policy.GetIsAdministrator()
	}); ok {
		user = &u
	}
	if user == nil {
		return "", fmt.Errorf("jellyfin user %q not found", c.cfg.UserID)
	}

	log.Info("Resolved jellyfin user", "name", user.GetName(), "id", user.GetId())
	c.userID = user.GetId()
	return c.userID, nil
}
