package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"songxs_platform/catalog/enrichment"
	"songxs_platform/catalog/providers"
	"songxs_platform/catalog/schema"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	tracksSavedMetric     = promauto.NewCounter(prometheus.CounterOpts{Name: "ingest_tracks_saved", Help: "Tracks saved by ingestion"})
	tracksDuplicateMetric = promauto.NewCounter(prometheus.CounterOpts{Name: "ingest_tracks_duplicate", Help: "Tracks skipped as duplicates"})
	tracksErrorMetric     = promauto.NewCounter(prometheus.CounterOpts{Name: "ingest_tracks_error", Help: "Tracks skipped due to errors"})
)

const progressLogInterval = 5

type Outcome string

const (
	OutcomeSaved     Outcome = "saved"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeError     Outcome = "error"
)

type TrackResult struct {
	TrackName string    `json:"track_name"`
	Isrc      string    `json:"isrc,omitempty"`
	Outcome   Outcome   `json:"outcome"`
	Reason    string    `json:"reason,omitempty"`
	TrackId   uuid.UUID `json:"track_id"`
}

// Report itemizes a batch import. Saved + Duplicates + Errors always equals the
// number of references processed.
type Report struct {
	Saved      int           `json:"saved"`
	Duplicates int           `json:"duplicates"`
	Errors     int           `json:"errors"`
	Results    []TrackResult `json:"results"`
	Elapsed    float64       `json:"elapsed_seconds"`
}

// Pipeline imports track references into a user's catalog, enriching each via
// the artist cache. References are processed sequentially so that the first
// track by an artist populates the cache for the rest, and so that provider
// rate limits are respected.
type Pipeline struct {
	db       *gorm.DB
	metadata providers.MetadataProvider
	features providers.AudioFeatureProvider
	tags     providers.TrackInfoProvider
	artists  *enrichment.ArtistCache
}

func NewPipeline(db *gorm.DB, metadata providers.MetadataProvider, features providers.AudioFeatureProvider, tags providers.TrackInfoProvider, artists *enrichment.ArtistCache) *Pipeline {
	return &Pipeline{db: db, metadata: metadata, features: features, tags: tags, artists: artists}
}

// IngestPlaylist resolves the playlist into track references and ingests them.
func (p *Pipeline) IngestPlaylist(ctx context.Context, playlist string, userId uuid.UUID, policy enrichment.FetchPolicy) (Report, error) {
	refs, err := p.metadata.PlaylistTracks(ctx, playlist)
	if err != nil {
		return Report{}, fmt.Errorf("unable to resolve playlist: %w", err)
	}

	return p.Ingest(ctx, refs, userId, policy), nil
}

// IngestISRCs looks up each content id and ingests the matches. An ISRC with no
// match is reported as an errored reference, keeping the report counts
// consistent with the batch size.
func (p *Pipeline) IngestISRCs(ctx context.Context, isrcs []string, userId uuid.UUID, policy enrichment.FetchPolicy) Report {
	start := time.Now()
	report := Report{Results: make([]TrackResult, 0, len(isrcs))}

	for i, isrc := range isrcs {
		ref, err := p.metadata.SearchByISRC(ctx, isrc)
		if err != nil {
			slog.Error("isrc search failed", "isrc", isrc, "error", err)
			report.add(TrackResult{Isrc: isrc, Outcome: OutcomeError, Reason: err.Error()})
			continue
		}
		if ref == nil {
			report.add(TrackResult{Isrc: isrc, Outcome: OutcomeError, Reason: "no track found for isrc"})
			continue
		}

		report.add(p.ingestOne(ctx, *ref, userId, policy))
		p.logProgress(i+1, len(isrcs), start)
	}

	report.Elapsed = time.Since(start).Seconds()
	return report
}

// Ingest processes the references in order, returning an itemized report. A
// failure on one reference never aborts the rest of the batch.
func (p *Pipeline) Ingest(ctx context.Context, refs []providers.TrackRef, userId uuid.UUID, policy enrichment.FetchPolicy) Report {
	start := time.Now()
	report := Report{Results: make([]TrackResult, 0, len(refs))}

	for i, ref := range refs {
		report.add(p.ingestOne(ctx, ref, userId, policy))
		p.logProgress(i+1, len(refs), start)
	}

	report.Elapsed = time.Since(start).Seconds()
	slog.Info("ingestion complete",
		"user_id", userId, "saved", report.Saved, "duplicates", report.Duplicates,
		"errors", report.Errors, "elapsed", report.Elapsed)
	return report
}

func (r *Report) add(result TrackResult) {
	r.Results = append(r.Results, result)
	switch result.Outcome {
	case OutcomeSaved:
		r.Saved++
		tracksSavedMetric.Inc()
	case OutcomeDuplicate:
		r.Duplicates++
		tracksDuplicateMetric.Inc()
	case OutcomeError:
		r.Errors++
		tracksErrorMetric.Inc()
	}
}

func (p *Pipeline) logProgress(done, total int, start time.Time) {
	if done%progressLogInterval != 0 && done != total {
		return
	}
	slog.Info("ingestion progress", "processed", done, "total", total, "elapsed", time.Since(start).Seconds())
}

func (p *Pipeline) ingestOne(ctx context.Context, ref providers.TrackRef, userId uuid.UUID, policy enrichment.FetchPolicy) TrackResult {
	track, err := p.buildTrack(ctx, ref, userId, policy)
	if err != nil {
		slog.Error("error ingesting track", "track", ref.Name, "isrc", ref.Isrc, "error", err)
		return TrackResult{TrackName: ref.Name, Isrc: ref.Isrc, Outcome: OutcomeError, Reason: err.Error()}
	}

	saved, err := p.saveTrack(track)
	if err != nil {
		slog.Error("error saving track", "track", ref.Name, "isrc", ref.Isrc, "error", err)
		return TrackResult{TrackName: ref.Name, Isrc: ref.Isrc, Outcome: OutcomeError, Reason: err.Error()}
	}
	if !saved {
		return TrackResult{TrackName: ref.Name, Isrc: ref.Isrc, Outcome: OutcomeDuplicate, Reason: "track already in catalog"}
	}

	return TrackResult{TrackName: ref.Name, Isrc: ref.Isrc, Outcome: OutcomeSaved, TrackId: track.Id}
}

// buildTrack merges primary metadata, best-effort audio features, and the
// artist cache snapshot into a new Track row. Only a missing track name is
// fatal; every lookup failure just leaves its fields unset.
func (p *Pipeline) buildTrack(ctx context.Context, ref providers.TrackRef, userId uuid.UUID, policy enrichment.FetchPolicy) (*schema.Track, error) {
	if ref.Name == "" {
		return nil, errors.New("track reference has no name")
	}

	track := &schema.Track{
		Id:         uuid.New(),
		UserId:     userId,
		TrackName:  ref.Name,
		Artists:    joinArtists(ref.Artists),
		Album:      ref.AlbumName,
		Isrc:       ref.Isrc,
		SpotifyId:  ref.SpotifyId,
		SpotifyUrl: ref.SpotifyUrl,
		CreatedAt:  time.Now().UTC(),
	}

	if ref.AlbumId != "" {
		album, err := p.metadata.Album(ctx, ref.AlbumId)
		if err != nil {
			slog.Warn("album lookup failed", "album_id", ref.AlbumId, "error", err)
		} else if album != nil {
			track.Upc = album.Upc
			track.AlbumImageUrl = album.ImageUrl
			if track.Album == "" {
				track.Album = album.Name
			}
		}
	}

	if ref.SpotifyId != "" {
		features, err := p.features.FeaturesFor(ctx, ref.SpotifyId)
		if err != nil {
			slog.Warn("audio features lookup failed", "track_id", ref.SpotifyId, "error", err)
		} else if features != nil {
			track.Tempo = &features.Tempo
			track.Energy = &features.Energy
			track.Danceability = &features.Danceability
			track.Valence = &features.Valence
			track.Acousticness = &features.Acousticness
			track.Instrumentalness = &features.Instrumentalness
			track.Key = &features.Key
			track.Mode = &features.Mode
			track.TimeSignature = &features.TimeSignature
		}
	}

	if ref.ArtistId != "" {
		artist, err := p.artists.Resolve(ctx, ref.ArtistId, ref.ArtistName, policy)
		if err != nil {
			return nil, fmt.Errorf("artist enrichment failed: %w", err)
		}
		applyArtistSnapshot(track, &artist, policy)
	}

	if policy == enrichment.FetchComplete && ref.ArtistName != "" {
		tags, err := p.tags.TrackInfo(ctx, ref.ArtistName, ref.Name)
		if err != nil {
			slog.Warn("track info lookup failed", "track", ref.Name, "error", err)
		} else if tags != nil {
			track.LastfmTags = joinArtists(tags.Tags)
			track.LastfmPlaycount = &tags.Playcount
			track.LastfmListeners = &tags.Listeners
		}
	}

	return track, nil
}

// applyArtistSnapshot denormalizes the cache entry onto the track at import
// time. Location and social fields are only copied on a complete fetch, even
// if a prior complete resolve already populated them in the cache.
func applyArtistSnapshot(track *schema.Track, artist *schema.ArtistCacheEntry, policy enrichment.FetchPolicy) {
	track.ArtistId = artist.ArtistId
	track.ArtistFollowers = artist.SpotifyFollowers
	track.ArtistPopularity = artist.SpotifyPopularity
	track.ArtistGenres = artist.SpotifyGenres
	track.ArtistImageUrl = artist.ArtistImageUrl

	if policy != enrichment.FetchComplete {
		return
	}

	track.ArtistCountry = artist.ArtistCountry
	track.ArtistCity = artist.ArtistCity
	if artist.InstagramUsername != "" {
		track.InstagramUsername = artist.InstagramUsername
		track.InstagramFollowers = artist.InstagramFollowers
	}
	if artist.TiktokUsername != "" {
		track.TiktokUsername = artist.TiktokUsername
		track.TiktokFollowers = artist.TiktokFollowers
	}
}

// saveTrack persists the track unless the same content id is already in this
// user's catalog. The duplicate check and the insert are not a single atomic
// statement; two concurrent imports of the same ISRC by the same user could
// both pass the check.
func (p *Pipeline) saveTrack(track *schema.Track) (bool, error) {
	if track.Isrc != "" {
		var existing schema.Track
		result := p.db.Limit(1).Find(&existing, "isrc = ? AND user_id = ?", track.Isrc, track.UserId)
		if result.Error != nil {
			slog.Error("sql error checking for duplicate track", "isrc", track.Isrc, "error", result.Error)
			return false, schema.ErrDbAccessFailed
		}
		if result.RowsAffected != 0 {
			return false, nil
		}
	}

	result := p.db.Create(track)
	if result.Error != nil {
		slog.Error("sql error creating track", "track", track.TrackName, "error", result.Error)
		return false, schema.ErrDbAccessFailed
	}

	return true, nil
}

func joinArtists(names []string) string {
	joined := ""
	for i, name := range names {
		if i > 0 {
			joined += ", "
		}
		joined += name
	}
	return joined
}
