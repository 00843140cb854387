package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultIGDBAPIURL is the IGDB v4 API root.
	DefaultIGDBAPIURL = "https://api.igdb.com/v4"
	// DefaultTwitchTokenURL issues the client-credentials tokens IGDB
	// requires.
	DefaultTwitchTokenURL = "https://id.twitch.tv/oauth2/token"

	// steamExternalSource is IGDB's source id for Steam in external_games.
	steamExternalSource = 1

	// tokenSlack refreshes the cached token slightly before it expires.
	tokenSlack = 30 * time.Second
)

// IGDBConfig configures the IGDB client. AccessToken bypasses the Twitch
// token exchange when set.
type IGDBConfig struct {
	ClientID     string
	ClientSecret string
	AccessToken  string
	APIURL       string
	TokenURL     string
}

// IGDBClient resolves completion times through IGDB's game_time_to_beats
// dataset, matching games by their Steam app id.
type IGDBClient struct {
	cfg  IGDBConfig
	http *http.Client
	log  zerolog.Logger

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewIGDBClient(cfg IGDBConfig, httpClient *http.Client, log zerolog.Logger) *IGDBClient {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultIGDBAPIURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTwitchTokenURL
	}
	return &IGDBClient{cfg: cfg, http: httpClient, log: log}
}

// TimeToBeatMinutes returns the "normally" completion time for the game
// with the given Steam app id, or nil when IGDB has no answer.
func (c *IGDBClient) TimeToBeatMinutes(ctx context.Context, title string, steamAppID int64) *int {
	token := c.accessToken(ctx)
	if c.cfg.ClientID == "" || token == "" {
		c.log.Warn().Msg("igdb credentials missing")
		return nil
	}
	if steamAppID == 0 {
		c.log.Warn().Str("title", title).Msg("igdb lookup needs a steam app id")
		return nil
	}

	gameID := c.resolveGameID(ctx, token, steamAppID)
	if gameID == 0 {
		c.log.Warn().Str("title", title).Msg("igdb has no match")
		return nil
	}

	var entries []struct {
		Normally int `json:"normally"`
	}
	query := fmt.Sprintf("fields normally; where game_id = %d; limit 1;", gameID)
	if !c.query(ctx, token, "game_time_to_beats", query, &entries) || len(entries) == 0 {
		return nil
	}
	minutes := entries[0].Normally / 60
	if minutes <= 0 {
		return nil
	}
	return &minutes
}

func (c *IGDBClient) resolveGameID(ctx context.Context, token string, steamAppID int64) int64 {
	var entries []struct {
		Game int64 `json:"game"`
	}
	query := fmt.Sprintf("fields game; where external_game_source = %d & uid = \"%d\"; limit 1;",
		steamExternalSource, steamAppID)
	if !c.query(ctx, token, "external_games", query, &entries) || len(entries) == 0 {
		return 0
	}
	return entries[0].Game
}

func (c *IGDBClient) query(ctx context.Context, token, endpoint, body string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIURL+"/"+endpoint, strings.NewReader(body))
	if err != nil {
		return false
	}
	req.Header.Set("Client-ID", c.cfg.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("igdb request failed")
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).Msg("igdb request failed")
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("igdb response decode failed")
		return false
	}
	return true
}

// accessToken returns a cached Twitch app token, refreshing it when it
// is close to expiry.
func (c *IGDBClient) accessToken(ctx context.Context) string {
	if c.cfg.AccessToken != "" {
		return c.cfg.AccessToken
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return ""
	}

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.token != "" && time.Now().Add(tokenSlack).Before(c.tokenExpiry) {
		return c.token
	}

	params := url.Values{}
	params.Set("client_id", c.cfg.ClientID)
	params.Set("client_secret", c.cfg.ClientSecret)
	params.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.TokenURL+"?"+params.Encode(), nil)
	if err != nil {
		return ""
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("twitch token request failed")
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("twitch token request failed")
		return ""
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return ""
	}
	if token.AccessToken == "" || token.ExpiresIn == 0 {
		return ""
	}
	c.token = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	return c.token
}
