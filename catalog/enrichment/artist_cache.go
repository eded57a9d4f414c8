package enrichment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"songxs_platform/catalog/providers"
	"songxs_platform/catalog/schema"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

type FetchPolicy string

const (
	// FetchFast populates an entry from the primary artist stats lookup only.
	FetchFast FetchPolicy = "fast"
	// FetchComplete additionally runs the location and social lookups, fanned
	// out concurrently.
	FetchComplete FetchPolicy = "complete"
)

func ParseFetchPolicy(policy string) (FetchPolicy, error) {
	switch policy {
	case "", string(FetchFast):
		return FetchFast, nil
	case string(FetchComplete):
		return FetchComplete, nil
	default:
		return "", fmt.Errorf("invalid fetch policy '%v', must be 'fast' or 'complete'", policy)
	}
}

var (
	cacheHitMetric  = promauto.NewCounter(prometheus.CounterOpts{Name: "artist_cache_hits", Help: "Artist cache hits"})
	cacheMissMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "artist_cache_misses", Help: "Artist cache misses"})
)

// ArtistCache amortizes expensive multi-API artist lookups across every track
// by the same artist. Entries are keyed by the external artist id and are
// populate-once: a later resolve with a broader fetch policy does not upgrade
// an existing entry.
type ArtistCache struct {
	db       *gorm.DB
	stats    providers.ArtistStatsProvider
	location providers.LocationProvider
	social   providers.SocialStatsProvider
}

func NewArtistCache(db *gorm.DB, stats providers.ArtistStatsProvider, location providers.LocationProvider, social providers.SocialStatsProvider) *ArtistCache {
	return &ArtistCache{db: db, stats: stats, location: location, social: social}
}

// Resolve returns the cache entry for the artist, creating it on first
// reference. Lookup failures leave the corresponding fields unset; they never
// fail the resolve. Only a failure to read the store is returned as an error.
func (c *ArtistCache) Resolve(ctx context.Context, artistId, artistName string, policy FetchPolicy) (schema.ArtistCacheEntry, error) {
	cached, err := schema.GetArtistCacheEntry(artistId, c.db)
	if err == nil {
		cacheHitMetric.Inc()
		return cached, nil
	}
	if !errors.Is(err, schema.ErrArtistNotCached) {
		return schema.ArtistCacheEntry{}, err
	}

	cacheMissMetric.Inc()

	entry := schema.ArtistCacheEntry{
		Id:         uuid.New(),
		ArtistId:   artistId,
		ArtistName: artistName,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	c.populatePrimary(ctx, &entry)

	if policy == FetchComplete {
		c.populateSecondary(ctx, &entry)
	}

	result := c.db.Create(&entry)
	if result.Error != nil {
		// A concurrent resolver for the same artist may have won the insert
		// race on the artist_id unique constraint. The winner's entry is
		// authoritative; discard ours and return theirs.
		winner, readErr := schema.GetArtistCacheEntry(artistId, c.db)
		if readErr == nil {
			slog.Info("artist cache insert lost race, using existing entry", "artist_id", artistId)
			return winner, nil
		}
		slog.Error("sql error creating artist cache entry", "artist_id", artistId, "error", result.Error)
		return schema.ArtistCacheEntry{}, schema.ErrDbAccessFailed
	}

	return entry, nil
}

func (c *ArtistCache) populatePrimary(ctx context.Context, entry *schema.ArtistCacheEntry) {
	stats, err := c.stats.StatsFor(ctx, entry.ArtistId)
	if err != nil {
		slog.Warn("artist stats lookup failed", "artist", entry.ArtistName, "error", err)
		return
	}
	if stats == nil {
		return
	}

	entry.SpotifyFollowers = &stats.Followers
	entry.SpotifyPopularity = &stats.Popularity
	genres := stats.Genres
	if len(genres) > 5 {
		genres = genres[:5]
	}
	entry.SpotifyGenres = strings.Join(genres, ", ")
	entry.ArtistImageUrl = stats.ImageUrl
}

// populateSecondary fans out the three independent secondary lookups. Each
// task writes into its own result slot so a slow or failed lookup cannot
// affect the others; the entry is only touched after all three have finished.
func (c *ArtistCache) populateSecondary(ctx context.Context, entry *schema.ArtistCacheEntry) {
	var (
		location  *providers.Location
		instagram *providers.SocialStats
		tiktok    *providers.SocialStats
	)

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		result, err := c.location.LocationFor(ctx, entry.ArtistName)
		if err != nil {
			slog.Warn("artist location lookup failed", "artist", entry.ArtistName, "error", err)
			return
		}
		location = result
	}()

	go func() {
		defer wg.Done()
		result, err := c.social.FollowersFor(ctx, entry.ArtistName, providers.PlatformInstagram)
		if err != nil {
			slog.Warn("instagram lookup failed", "artist", entry.ArtistName, "error", err)
			return
		}
		instagram = result
	}()

	go func() {
		defer wg.Done()
		result, err := c.social.FollowersFor(ctx, entry.ArtistName, providers.PlatformTiktok)
		if err != nil {
			slog.Warn("tiktok lookup failed", "artist", entry.ArtistName, "error", err)
			return
		}
		tiktok = result
	}()

	wg.Wait()

	if location != nil {
		entry.ArtistCountry = location.Country
		entry.ArtistCity = location.City
	}
	if instagram != nil {
		entry.InstagramUsername = instagram.Username
		entry.InstagramFollowers = &instagram.Followers
	}
	if tiktok != nil {
		entry.TiktokUsername = tiktok.Username
		entry.TiktokFollowers = &tiktok.Followers
	}
}
