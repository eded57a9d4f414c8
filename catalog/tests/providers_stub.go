package tests

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"songxs_platform/catalog/providers"
)

// In-memory stand-ins for the external metadata apis. Counters track how many
// lookups each stub served so tests can assert on cache behavior.

type metadataStub struct {
	playlists map[string][]providers.TrackRef
	albums    map[string]providers.AlbumInfo
	byIsrc    map[string]providers.TrackRef

	playlistCalls int
	albumCalls    int
	isrcCalls     int
}

func (m *metadataStub) PlaylistTracks(ctx context.Context, playlistId string) ([]providers.TrackRef, error) {
	m.playlistCalls++
	refs, ok := m.playlists[playlistId]
	if !ok {
		return nil, fmt.Errorf("playlist %v not found", playlistId)
	}
	return refs, nil
}

func (m *metadataStub) Album(ctx context.Context, albumId string) (*providers.AlbumInfo, error) {
	m.albumCalls++
	album, ok := m.albums[albumId]
	if !ok {
		return nil, nil
	}
	return &album, nil
}

func (m *metadataStub) SearchByISRC(ctx context.Context, isrc string) (*providers.TrackRef, error) {
	m.isrcCalls++
	ref, ok := m.byIsrc[isrc]
	if !ok {
		return nil, nil
	}
	return &ref, nil
}

type featuresStub struct {
	features map[string]providers.AudioFeatures
	calls    int
}

func (f *featuresStub) FeaturesFor(ctx context.Context, trackId string) (*providers.AudioFeatures, error) {
	f.calls++
	features, ok := f.features[trackId]
	if !ok {
		return nil, nil
	}
	return &features, nil
}

type statsStub struct {
	stats map[string]providers.ArtistStats
	calls int
	fail  bool
}

func (s *statsStub) StatsFor(ctx context.Context, artistId string) (*providers.ArtistStats, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("stats lookup unavailable")
	}
	stats, ok := s.stats[artistId]
	if !ok {
		return nil, nil
	}
	return &stats, nil
}

type locationStub struct {
	locations map[string]providers.Location
	calls     int
	fail      bool
}

func (l *locationStub) LocationFor(ctx context.Context, artistName string) (*providers.Location, error) {
	l.calls++
	if l.fail {
		return nil, errors.New("location lookup unavailable")
	}
	location, ok := l.locations[artistName]
	if !ok {
		return nil, nil
	}
	return &location, nil
}

// The instagram and tiktok lookups run concurrently during enrichment, so this
// stub guards its counter.
type socialStub struct {
	mu        sync.Mutex
	followers map[string]providers.SocialStats
	calls     int
}

func (s *socialStub) FollowersFor(ctx context.Context, artistName, platform string) (*providers.SocialStats, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	stats, ok := s.followers[platform+":"+artistName]
	if !ok {
		return nil, nil
	}
	return &stats, nil
}

func (s *socialStub) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type tagsStub struct {
	tags  map[string]providers.TrackTags
	calls int
}

func (s *tagsStub) TrackInfo(ctx context.Context, artistName, trackName string) (*providers.TrackTags, error) {
	s.calls++
	tags, ok := s.tags[artistName+" - "+trackName]
	if !ok {
		return nil, nil
	}
	return &tags, nil
}

type providerStubs struct {
	metadata *metadataStub
	features *featuresStub
	stats    *statsStub
	location *locationStub
	social   *socialStub
	tags     *tagsStub
}

func newProviderStubs() *providerStubs {
	return &providerStubs{
		metadata: &metadataStub{
			playlists: map[string][]providers.TrackRef{},
			albums:    map[string]providers.AlbumInfo{},
			byIsrc:    map[string]providers.TrackRef{},
		},
		features: &featuresStub{features: map[string]providers.AudioFeatures{}},
		stats:    &statsStub{stats: map[string]providers.ArtistStats{}},
		location: &locationStub{locations: map[string]providers.Location{}},
		social:   &socialStub{followers: map[string]providers.SocialStats{}},
		tags:     &tagsStub{tags: map[string]providers.TrackTags{}},
	}
}

// addArtistTracks seeds a playlist of n tracks all credited to the same artist.
func (p *providerStubs) addArtistTracks(playlistId, artistId, artistName string, n int) []providers.TrackRef {
	refs := make([]providers.TrackRef, 0, n)
	for i := 0; i < n; i++ {
		refs = append(refs, providers.TrackRef{
			SpotifyId:  fmt.Sprintf("%v-track-%d", artistId, i),
			Name:       fmt.Sprintf("%v song %d", artistName, i),
			Artists:    []string{artistName},
			ArtistId:   artistId,
			ArtistName: artistName,
			Isrc:       fmt.Sprintf("US%v%05d", artistId, i),
		})
	}
	p.metadata.playlists[playlistId] = refs
	return refs
}
