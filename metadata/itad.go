package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"
)

// DefaultITADAPIURL is the IsThereAnyDeal API root.
const DefaultITADAPIURL = "https://api.isthereanydeal.com"

// ITADGame identifies a game in the IsThereAnyDeal catalog.
type ITADGame struct {
	ID     string
	Slug   string
	Boxart string
}

// ITADPrices holds the lowest current deal and the historical low, in
// cents. Nil means the store had no figure.
type ITADPrices struct {
	CurrentPriceCents *int
	BestPriceCents    *int
}

// ITADClient queries IsThereAnyDeal for game identity and prices.
type ITADClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewITADClient(apiKey, baseURL string, httpClient *http.Client, log zerolog.Logger) *ITADClient {
	if baseURL == "" {
		baseURL = DefaultITADAPIURL
	}
	return &ITADClient{apiKey: apiKey, baseURL: baseURL, http: httpClient, log: log}
}

// Lookup resolves a Steam app id to an ITAD game, or nil when unknown.
func (c *ITADClient) Lookup(ctx context.Context, steamAppID int64) *ITADGame {
	if c.apiKey == "" {
		return nil
	}
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("appid", strconv.FormatInt(steamAppID, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/games/lookup/v1?"+params.Encode(), nil)
	if err != nil {
		return nil
	}
	var payload struct {
		Found bool `json:"found"`
		Game  struct {
			ID     string `json:"id"`
			Slug   string `json:"slug"`
			Assets struct {
				Boxart string `json:"boxart"`
			} `json:"assets"`
		} `json:"game"`
	}
	if !c.do(req, "lookup", &payload) {
		return nil
	}
	if !payload.Found || payload.Game.ID == "" {
		return nil
	}
	return &ITADGame{ID: payload.Game.ID, Slug: payload.Game.Slug, Boxart: payload.Game.Assets.Boxart}
}

// Prices fetches US prices for an ITAD game id, or nil on failure.
func (c *ITADClient) Prices(ctx context.Context, gameID string) *ITADPrices {
	if c.apiKey == "" {
		return nil
	}
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("country", "US")

	body, err := json.Marshal([]string{gameID})
	if err != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/games/prices/v3?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	var payload []struct {
		ID         string `json:"id"`
		HistoryLow struct {
			All *struct {
				AmountInt int `json:"amountInt"`
			} `json:"all"`
		} `json:"historyLow"`
		Deals []struct {
			Price *struct {
				AmountInt int `json:"amountInt"`
			} `json:"price"`
		} `json:"deals"`
	}
	if !c.do(req, "prices", &payload) || len(payload) == 0 {
		return nil
	}

	entry := payload[0]
	prices := &ITADPrices{}
	if entry.HistoryLow.All != nil {
		best := entry.HistoryLow.All.AmountInt
		prices.BestPriceCents = &best
	}
	for _, deal := range entry.Deals {
		if deal.Price == nil {
			continue
		}
		if prices.CurrentPriceCents == nil || deal.Price.AmountInt < *prices.CurrentPriceCents {
			value := deal.Price.AmountInt
			prices.CurrentPriceCents = &value
		}
	}
	return prices
}

func (c *ITADClient) do(req *http.Request, label string, out any) bool {
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("endpoint", label).Msg("itad request failed")
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("endpoint", label).Msg("itad request failed")
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Warn().Err(err).Str("endpoint", label).Msg("itad response decode failed")
		return false
	}
	return true
}
