package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
)

// DefaultSteamStoreURL is the public Steam storefront API.
const DefaultSteamStoreURL = "https://store.steampowered.com"

// SearchLimit caps how many storefront matches a search returns.
const SearchLimit = 5

// SteamDetails are the storefront fields kept from an appdetails lookup.
type SteamDetails struct {
	Name             string
	HeaderImage      string
	ShortDescription string
	Genres           []string
}

// SteamReviewSummary is the aggregate review score for an app. Score is
// Steam's 0..9 bucket; nil when unavailable.
type SteamReviewSummary struct {
	Score       *int
	Description string
}

// SearchResult is one storefront search hit.
type SearchResult struct {
	Name    string `json:"name"`
	SteamID int64  `json:"steamId"`
	Cover   string `json:"cover"`
}

// SteamClient queries the Steam storefront API.
type SteamClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewSteamClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *SteamClient {
	if baseURL == "" {
		baseURL = DefaultSteamStoreURL
	}
	return &SteamClient{baseURL: baseURL, http: httpClient, log: log}
}

// Details fetches storefront details for an app. Returns nil when the
// app is unknown or the storefront is unreachable.
func (c *SteamClient) Details(ctx context.Context, appID int64) *SteamDetails {
	var payload map[string]struct {
		Success bool `json:"success"`
		Data    struct {
			Name             string `json:"name"`
			HeaderImage      string `json:"header_image"`
			ShortDescription string `json:"short_description"`
			Genres           []struct {
				Description string `json:"description"`
			} `json:"genres"`
		} `json:"data"`
	}
	endpoint := fmt.Sprintf("%s/api/appdetails?appids=%d&cc=us&l=en", c.baseURL, appID)
	if !c.getJSON(ctx, endpoint, "appdetails", &payload) {
		return nil
	}
	entry, ok := payload[strconv.FormatInt(appID, 10)]
	if !ok || !entry.Success {
		return nil
	}
	details := &SteamDetails{
		Name:             entry.Data.Name,
		HeaderImage:      entry.Data.HeaderImage,
		ShortDescription: entry.Data.ShortDescription,
	}
	for _, genre := range entry.Data.Genres {
		details.Genres = append(details.Genres, genre.Description)
	}
	return details
}

// ReviewSummary fetches the aggregate review score for an app. The
// returned summary is never nil; fields are zero when unavailable.
func (c *SteamClient) ReviewSummary(ctx context.Context, appID int64) *SteamReviewSummary {
	var payload struct {
		QuerySummary struct {
			ReviewScore     json.Number `json:"review_score"`
			ReviewScoreDesc string      `json:"review_score_desc"`
		} `json:"query_summary"`
	}
	endpoint := fmt.Sprintf(
		"%s/appreviews/%d?json=1&language=english&purchase_type=steam&num_per_page=0",
		c.baseURL, appID)
	summary := &SteamReviewSummary{}
	if !c.getJSON(ctx, endpoint, "appreviews", &payload) {
		return summary
	}
	if score, err := payload.QuerySummary.ReviewScore.Int64(); err == nil && score >= 0 && score <= 9 {
		value := int(score)
		summary.Score = &value
	}
	summary.Description = payload.QuerySummary.ReviewScoreDesc
	return summary
}

// Search queries the storefront for apps matching term, keeping the
// first SearchLimit app-typed hits.
func (c *SteamClient) Search(ctx context.Context, term string) ([]SearchResult, error) {
	var payload struct {
		Items []struct {
			Type      string `json:"type"`
			Name      string `json:"name"`
			ID        int64  `json:"id"`
			TinyImage string `json:"tiny_image"`
		} `json:"items"`
	}
	endpoint := fmt.Sprintf("%s/api/storesearch/?term=%s&l=en&cc=us", c.baseURL, url.QueryEscape(term))
	if !c.getJSON(ctx, endpoint, "storesearch", &payload) {
		return nil, nil
	}
	results := make([]SearchResult, 0, SearchLimit)
	for _, item := range payload.Items {
		if item.Type != "app" {
			continue
		}
		results = append(results, SearchResult{Name: item.Name, SteamID: item.ID, Cover: item.TinyImage})
		if len(results) == SearchLimit {
			break
		}
	}
	return results, nil
}

func (c *SteamClient) getJSON(ctx context.Context, endpoint, label string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("endpoint", label).Msg("steam request failed")
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("endpoint", label).Msg("steam request failed")
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Warn().Err(err).Str("endpoint", label).Msg("steam response decode failed")
		return false
	}
	return true
}
