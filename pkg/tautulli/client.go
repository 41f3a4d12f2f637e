package tautulli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jon4hz/episweep/internal/config"
)

const MediaTypeEpisode = "episode"

// Client represents a Tautulli API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new Tautulli API client.
func New(cfg *config.TautulliConfig) *Client {
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FlexInt decodes numbers that Tautulli sends either as JSON numbers or as strings.
// Empty strings and null decode to zero.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", data, err)
	}
	*f = FlexInt(v)
	return nil
}

// HistoryParams represents the query parameters of get_history.
type HistoryParams struct {
	MediaType string
	Search    string
	Length    int
}

// HistoryRow is a single playback in the Tautulli history.
type HistoryRow struct {
	Date             FlexInt `json:"date"`
	Stopped          FlexInt `json:"stopped"`
	GrandparentTitle string  `json:"grandparent_title"`
	Title            string  `json:"title"`
	FullTitle        string  `json:"full_title"`
	ParentMediaIndex FlexInt `json:"parent_media_index"`
	MediaIndex       FlexInt `json:"media_index"`
	WatchedStatus    float64 `json:"watched_status"`
	User             string  `json:"user"`
}

// Time returns the start of the playback.
func (r HistoryRow) Time() time.Time {
	return time.Unix(int64(r.Date), 0)
}

type apiResponse[T any] struct {
	Response struct {
		Result  string  `json:"result"`
		Message *string `json:"message"`
		Data    T       `json:"data"`
	} `json:"response"`
}

type historyData struct {
	RecordsFiltered int          `json:"recordsFiltered"`
	RecordsTotal    int          `json:"recordsTotal"`
	Data            []HistoryRow `json:"data"`
}

// GetHistory returns history rows, newest first.
func (c *Client) GetHistory(ctx context.Context, params HistoryParams) ([]HistoryRow, error) {
	query := url.Values{}
	if params.MediaType != "" {
		query.Set("media_type", params.MediaType)
	}
	if params.Search != "" {
		query.Set("search", params.Search)
	}
	if params.Length > 0 {
		query.Set("length", strconv.Itoa(params.Length))
	}
	query.Set("order_column", "date")
	query.Set("order_dir", "desc")

	var resp apiResponse[historyData]
	if err := c.call(ctx, "get_history", query, &resp); err != nil {
		return nil, err
	}
	return resp.Response.Data.Data, nil
}

func (c *Client) call(ctx context.Context, cmd string, query url.Values, out any) error {
	query.Set("apikey", c.apiKey)
	query.Set("cmd", cmd)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v2?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", cmd, err)
	}
	defer resp.Body.Close() //nolint: errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("tautulli %s returned status %d: %s", cmd, resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", cmd, err)
	}

	var envelope apiResponse[json.RawMessage]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", cmd, err)
	}
	if envelope.Response.Result != "success" {
		msg := "unknown error"
		if envelope.Response.Message != nil {
			msg = *envelope.Response.Message
		}
		return fmt.Errorf("tautulli %s failed: %s", cmd, msg)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", cmd, err)
	}
	return nil
}
