package metadata

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mruedinger/game-club/games"
)

// External is everything the fetchers learned about a game. Empty and
// nil fields simply were not available.
type External struct {
	Title             string
	CoverArtURL       string
	Description       string
	TagsJSON          string
	TimeToBeatMinutes *int
	SteamReviewScore  *int
	SteamReviewDesc   string
	ITADGameID        string
	ITADSlug          string
	ITADBoxartURL     string
	CurrentPriceCents *int
	BestPriceCents    *int
}

// Metadata converts the fetched fields for storage alongside the game.
func (e *External) Metadata(steamAppID int64) games.Metadata {
	meta := games.Metadata{
		CoverArtURL:       e.CoverArtURL,
		Description:       e.Description,
		TagsJSON:          e.TagsJSON,
		TimeToBeatMinutes: e.TimeToBeatMinutes,
		CurrentPriceCents: e.CurrentPriceCents,
		BestPriceCents:    e.BestPriceCents,
		ITADGameID:        e.ITADGameID,
		ITADSlug:          e.ITADSlug,
	}
	if steamAppID != 0 {
		meta.SteamAppID = &steamAppID
	}
	return meta
}

// Fetcher fans out to every external catalog at once and assembles the
// results. Individual failures leave their fields empty.
type Fetcher struct {
	steam *SteamClient
	igdb  *IGDBClient
	itad  *ITADClient
	hltb  *HLTBClient
	log   zerolog.Logger
}

func NewFetcher(steam *SteamClient, igdb *IGDBClient, itad *ITADClient, hltb *HLTBClient, log zerolog.Logger) *Fetcher {
	return &Fetcher{steam: steam, igdb: igdb, itad: itad, hltb: hltb, log: log}
}

// Fetch gathers metadata for a Steam app. IGDB answers the completion
// time first; HowLongToBeat fills in when IGDB comes up empty.
func (f *Fetcher) Fetch(ctx context.Context, titleHint string, steamAppID int64) *External {
	external := &External{}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if details := f.steam.Details(groupCtx, steamAppID); details != nil {
			external.Title = details.Name
			external.CoverArtURL = details.HeaderImage
			external.Description = details.ShortDescription
			if len(details.Genres) > 0 {
				if tags, err := json.Marshal(details.Genres); err == nil {
					external.TagsJSON = string(tags)
				}
			}
		}
		return nil
	})
	group.Go(func() error {
		summary := f.steam.ReviewSummary(groupCtx, steamAppID)
		external.SteamReviewScore = summary.Score
		external.SteamReviewDesc = summary.Description
		return nil
	})
	group.Go(func() error {
		game := f.itad.Lookup(groupCtx, steamAppID)
		if game == nil {
			return nil
		}
		external.ITADGameID = game.ID
		external.ITADSlug = game.Slug
		external.ITADBoxartURL = game.Boxart
		if prices := f.itad.Prices(groupCtx, game.ID); prices != nil {
			external.CurrentPriceCents = prices.CurrentPriceCents
			external.BestPriceCents = prices.BestPriceCents
		}
		return nil
	})
	group.Go(func() error {
		if minutes := f.igdb.TimeToBeatMinutes(groupCtx, titleHint, steamAppID); minutes != nil {
			external.TimeToBeatMinutes = minutes
			return nil
		}
		if minutes := f.hltb.TimeToBeatMinutes(groupCtx, titleHint); minutes != nil {
			external.TimeToBeatMinutes = minutes
		}
		return nil
	})

	// Goroutines only return nil; Wait just fences the writes above.
	_ = group.Wait()
	return external
}

// Enrich fetches metadata for a stored game and merges it into the row.
// Meant to run in the background after a game is added.
func (f *Fetcher) Enrich(ctx context.Context, repo games.Repo, gameID int64, title string, steamAppID int64) {
	external := f.Fetch(ctx, title, steamAppID)
	if err := repo.UpdateMetadata(gameID, external.Metadata(steamAppID)); err != nil {
		f.log.Error().Err(err).Int64("gameId", gameID).Msg("metadata update failed")
	}
}

// PriceSyncInterval is how often the price sync sweep runs.
const PriceSyncInterval = 24 * time.Hour

// PriceSync refreshes ITAD prices for games whose last check is stale.
type PriceSync struct {
	repo games.Repo
	itad *ITADClient
	log  zerolog.Logger
}

func NewPriceSync(repo games.Repo, itad *ITADClient, log zerolog.Logger) *PriceSync {
	return &PriceSync{repo: repo, itad: itad, log: log}
}

// Run sweeps immediately, then every PriceSyncInterval until ctx ends.
func (s *PriceSync) Run(ctx context.Context) {
	ticker := time.NewTicker(PriceSyncInterval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep updates prices for every stale game. Per-game failures are
// skipped so one bad lookup cannot stall the rest.
func (s *PriceSync) Sweep(ctx context.Context) {
	candidates, err := s.repo.ListPriceSyncCandidates()
	if err != nil {
		s.log.Error().Err(err).Msg("price sync candidate query failed")
		return
	}
	for _, game := range candidates {
		if ctx.Err() != nil {
			return
		}
		if game.SteamAppID == nil {
			continue
		}

		itadGame := &ITADGame{ID: game.ITADGameID, Slug: game.ITADSlug}
		if itadGame.ID == "" {
			itadGame = s.itad.Lookup(ctx, *game.SteamAppID)
		}
		if itadGame == nil || itadGame.ID == "" {
			continue
		}
		prices := s.itad.Prices(ctx, itadGame.ID)
		if prices == nil {
			continue
		}
		err := s.repo.UpdatePrices(game.ID, itadGame.ID, itadGame.Slug,
			prices.CurrentPriceCents, prices.BestPriceCents)
		if err != nil {
			s.log.Error().Err(err).Int64("gameId", game.ID).Msg("price update failed")
		}
	}
}
