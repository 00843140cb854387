package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultHLTBURL is the HowLongToBeat site root.
const DefaultHLTBURL = "https://howlongtobeat.com"

var hltbHeaders = map[string]string{
	"User-Agent":      "Mozilla/5.0 (compatible; GameClubBot/1.0)",
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.9",
	"Referer":         "https://howlongtobeat.com/",
	"Origin":          "https://howlongtobeat.com",
}

var (
	hltbTimeRe      = regexp.MustCompile(`(?i)<h4>\s*HowLongToBeat\s*</h4>\s*<h5>\s*([^<]+)\s*</h5>`)
	hltbHoursRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*hours?`)
	hltbMinsRe      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*mins?`)
	titleStripRe    = regexp.MustCompile(`[^a-z0-9]+`)
	htmlEntityPairs = strings.NewReplacer("&amp;", "&", "&quot;", `"`, "&#39;", "'", "&frac12;", ".5")
)

// HLTBClient scrapes HowLongToBeat for completion times. It is the
// fallback when IGDB has no entry for a game.
type HLTBClient struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewHLTBClient(baseURL string, httpClient *http.Client, log zerolog.Logger) *HLTBClient {
	if baseURL == "" {
		baseURL = DefaultHLTBURL
	}
	return &HLTBClient{baseURL: baseURL, http: httpClient, log: log}
}

// TimeToBeatMinutes searches for title and parses the main-story time
// from the matched game page. Returns nil when no match parses.
func (c *HLTBClient) TimeToBeatMinutes(ctx context.Context, title string) *int {
	if title == "" {
		return nil
	}
	gamePath := c.search(ctx, title)
	if gamePath == "" {
		c.log.Warn().Str("title", title).Msg("hltb has no match")
		return nil
	}

	html := c.fetchPage(ctx, gamePath)
	if html == "" {
		return nil
	}
	match := hltbTimeRe.FindStringSubmatch(html)
	if match == nil {
		c.log.Warn().Str("title", title).Msg("hltb time not found on page")
		return nil
	}
	minutes := parseDurationMinutes(match[1])
	if minutes == 0 {
		c.log.Warn().Str("raw", match[1]).Msg("hltb time parse failed")
		return nil
	}
	return &minutes
}

// search posts the site's search API and returns the path of the best
// match: an exact normalized-title hit, else the first result.
func (c *HLTBClient) search(ctx context.Context, title string) string {
	body := map[string]any{
		"searchType":  "games",
		"searchTerms": strings.Fields(title),
		"searchPage":  1,
		"size":        20,
		"searchOptions": map[string]any{
			"games": map[string]any{
				"userId":        0,
				"platform":      "",
				"sortCategory":  "popular",
				"rangeCategory": "main",
				"rangeTime":     map[string]int{"min": 0, "max": 0},
				"gameplay":      map[string]string{"perspective": "", "flow": "", "genre": ""},
				"rangeYear":     map[string]int{"min": 0, "max": 0},
				"modifier":      "",
			},
			"users":      map[string]string{"sortCategory": "postcount"},
			"lists":      map[string]string{"sortCategory": "follows"},
			"filter":     "",
			"sort":       0,
			"randomizer": 0,
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/search", bytes.NewReader(encoded))
	if err != nil {
		return ""
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range hltbHeaders {
		req.Header.Set(key, value)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("hltb search failed")
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("hltb search failed")
		return ""
	}

	var payload struct {
		Data []struct {
			GameName string `json:"game_name"`
			GameID   int64  `json:"game_id"`
			GameSlug string `json:"game_slug"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || len(payload.Data) == 0 {
		return ""
	}

	best := payload.Data[0]
	wanted := normalizeTitle(title)
	for _, entry := range payload.Data {
		if normalizeTitle(entry.GameName) == wanted {
			best = entry
			break
		}
	}
	if best.GameID == 0 || best.GameSlug == "" {
		return ""
	}
	return fmt.Sprintf("/game/%d/%s", best.GameID, best.GameSlug)
}

func (c *HLTBClient) fetchPage(ctx context.Context, path string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return ""
	}
	for key, value := range hltbHeaders {
		req.Header.Set(key, value)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("hltb page fetch failed")
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("hltb page fetch failed")
		return ""
	}
	page, err := io.ReadAll(resp.Body)
	if err != nil {
		return ""
	}
	return string(page)
}

// parseDurationMinutes turns strings like "26½ Hours" or "1 Hour 40
// Mins" into minutes. Returns 0 when nothing parses.
func parseDurationMinutes(value string) int {
	text := strings.ToLower(strings.TrimSpace(
		strings.ReplaceAll(htmlEntityPairs.Replace(value), "½", ".5")))

	var hours, mins float64
	if match := hltbHoursRe.FindStringSubmatch(text); match != nil {
		hours, _ = strconv.ParseFloat(match[1], 64)
	}
	if match := hltbMinsRe.FindStringSubmatch(text); match != nil {
		mins, _ = strconv.ParseFloat(match[1], 64)
	}
	total := int(math.Round(hours*60 + mins))
	if total <= 0 {
		return 0
	}
	return total
}

func normalizeTitle(value string) string {
	lowered := strings.ToLower(strings.ReplaceAll(value, "&amp;", "&"))
	return strings.TrimSpace(titleStripRe.ReplaceAllString(lowered, " "))
}
