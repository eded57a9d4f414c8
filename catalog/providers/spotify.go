package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2/clientcredentials"
)

// SpotifyProvider implements MetadataProvider, AudioFeatureProvider, and
// ArtistStatsProvider over the Spotify web API using client credentials.
type SpotifyProvider struct {
	client spotify.Client
}

func NewSpotifyProvider(ctx context.Context, clientId, clientSecret string) (*SpotifyProvider, error) {
	config := &clientcredentials.Config{
		ClientID:     clientId,
		ClientSecret: clientSecret,
		TokenURL:     spotify.TokenURL,
	}

	// config.Client returns an http client that refreshes the token as needed.
	httpClient := config.Client(ctx)

	return &SpotifyProvider{client: spotify.NewClient(httpClient)}, nil
}

// ParsePlaylistId accepts a share URL (open.spotify.com/playlist/<id>?...), a
// spotify:playlist:<id> URI, or a bare playlist id.
func ParsePlaylistId(playlist string) string {
	if strings.Contains(playlist, "spotify.com/playlist/") {
		rest := playlist[strings.Index(playlist, "/playlist/")+len("/playlist/"):]
		rest = strings.SplitN(rest, "?", 2)[0]
		return strings.SplitN(rest, "/", 2)[0]
	}
	if strings.Contains(playlist, "spotify:playlist:") {
		return playlist[strings.Index(playlist, "spotify:playlist:")+len("spotify:playlist:"):]
	}
	return playlist
}

func trackRefFromFullTrack(track *spotify.FullTrack) TrackRef {
	ref := TrackRef{
		SpotifyId:  string(track.ID),
		Name:       track.Name,
		AlbumId:    string(track.Album.ID),
		AlbumName:  track.Album.Name,
		SpotifyUrl: track.ExternalURLs["spotify"],
		Isrc:       track.ExternalIDs["isrc"],
	}
	for _, artist := range track.Artists {
		ref.Artists = append(ref.Artists, artist.Name)
	}
	if len(track.Artists) > 0 {
		ref.ArtistId = string(track.Artists[0].ID)
		ref.ArtistName = track.Artists[0].Name
	}
	return ref
}

func (p *SpotifyProvider) PlaylistTracks(ctx context.Context, playlistId string) ([]TrackRef, error) {
	page, err := p.client.GetPlaylistTracks(spotify.ID(ParsePlaylistId(playlistId)))
	if err != nil {
		return nil, fmt.Errorf("error fetching playlist %v: %w", playlistId, err)
	}

	refs := make([]TrackRef, 0, page.Total)
	for {
		for _, item := range page.Tracks {
			if item.Track.ID == "" {
				continue // local or removed tracks have no playable reference
			}
			track := item.Track
			refs = append(refs, trackRefFromFullTrack(&track))
		}

		err = p.client.NextPage(page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error fetching playlist page: %w", err)
		}
	}

	return refs, nil
}

func (p *SpotifyProvider) Album(ctx context.Context, albumId string) (*AlbumInfo, error) {
	album, err := p.client.GetAlbum(spotify.ID(albumId))
	if err != nil {
		return nil, fmt.Errorf("error fetching album %v: %w", albumId, err)
	}

	info := &AlbumInfo{
		Name: album.Name,
		Upc:  album.ExternalIDs["upc"],
	}
	if len(album.Images) > 1 {
		info.ImageUrl = album.Images[1].URL
	} else if len(album.Images) > 0 {
		info.ImageUrl = album.Images[0].URL
	}

	return info, nil
}

func (p *SpotifyProvider) SearchByISRC(ctx context.Context, isrc string) (*TrackRef, error) {
	results, err := p.client.Search(fmt.Sprintf("isrc:%v", isrc), spotify.SearchTypeTrack)
	if err != nil {
		return nil, fmt.Errorf("error searching for isrc %v: %w", isrc, err)
	}

	if results.Tracks == nil || len(results.Tracks.Tracks) == 0 {
		return nil, nil
	}

	ref := trackRefFromFullTrack(&results.Tracks.Tracks[0])
	ref.Isrc = isrc
	return &ref, nil
}

func (p *SpotifyProvider) FeaturesFor(ctx context.Context, trackId string) (*AudioFeatures, error) {
	features, err := p.client.GetAudioFeatures(spotify.ID(trackId))
	if err != nil {
		return nil, fmt.Errorf("error fetching audio features for %v: %w", trackId, err)
	}
	if len(features) == 0 || features[0] == nil {
		return nil, nil
	}

	f := features[0]
	return &AudioFeatures{
		Tempo:            float64(f.Tempo),
		Energy:           float64(f.Energy),
		Danceability:     float64(f.Danceability),
		Valence:          float64(f.Valence),
		Acousticness:     float64(f.Acousticness),
		Instrumentalness: float64(f.Instrumentalness),
		Key:              int(f.Key),
		Mode:             int(f.Mode),
		TimeSignature:    int(f.TimeSignature),
	}, nil
}

func (p *SpotifyProvider) StatsFor(ctx context.Context, artistId string) (*ArtistStats, error) {
	artist, err := p.client.GetArtist(spotify.ID(artistId))
	if err != nil {
		return nil, fmt.Errorf("error fetching artist %v: %w", artistId, err)
	}

	stats := &ArtistStats{
		Followers:  int(artist.Followers.Count),
		Popularity: artist.Popularity,
		Genres:     artist.Genres,
	}
	if len(artist.Images) > 1 {
		stats.ImageUrl = artist.Images[1].URL
	} else if len(artist.Images) > 0 {
		stats.ImageUrl = artist.Images[0].URL
	}

	return stats, nil
}
