package sonarr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/charmbracelet/log"
)

// commandRequest is the body of POST /api/v3/command.
// The generated CommandResource has no fields for the search targets, so the request is built by hand.
type commandRequest struct {
	Name         string  `json:"name"`
	EpisodeIDs   []int32 `json:"episodeIds,omitempty"`
	SeriesID     int32   `json:"seriesId,omitempty"`
	SeasonNumber *int32  `json:"seasonNumber,omitempty"`
}

// SearchEpisodes triggers a search for the given episodes.
func (s *Sonarr) SearchEpisodes(ctx context.Context, episodeIDs []int32) error {
	if len(episodeIDs) == 0 {
		return nil
	}
	return s.sendCommand(ctx, commandRequest{Name: "EpisodeSearch", EpisodeIDs: episodeIDs})
}

// SearchSeason triggers a search for a whole season.
func (s *Sonarr) SearchSeason(ctx context.Context, seriesID, seasonNumber int32) error {
	return s.sendCommand(ctx, commandRequest{Name: "SeasonSearch", SeriesID: seriesID, SeasonNumber: &seasonNumber})
}

func (s *Sonarr) sendCommand(ctx context.Context, cmd commandRequest) error {
	body, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal %s command: %w", cmd.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+"/api/v3/command", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", cmd.Name, err)
	}
	req.Header.Set("X-Api-Key", s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s command: %w", cmd.Name, err)
	}
	defer resp.Body.Close() //nolint: errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sonarr %s command returned status %d", cmd.Name, resp.StatusCode)
	}

	log.Debug("Sent sonarr command", "command", cmd.Name, "episodes", len(cmd.EpisodeIDs), "series", cmd.SeriesID)
	return nil
}
