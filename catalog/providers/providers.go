package providers

import "context"

// TrackRef is one track reference returned by the metadata provider. Fields
// that the provider could not supply are left zero valued.
type TrackRef struct {
	SpotifyId  string
	Name       string
	Artists    []string
	ArtistId   string // id of the first listed artist
	ArtistName string // name of the first listed artist

	AlbumId   string
	AlbumName string

	Isrc       string
	SpotifyUrl string
}

type AlbumInfo struct {
	Name     string
	Upc      string
	ImageUrl string
}

type AudioFeatures struct {
	Tempo            float64
	Energy           float64
	Danceability     float64
	Valence          float64
	Acousticness     float64
	Instrumentalness float64
	Key              int
	Mode             int
	TimeSignature    int
}

type ArtistStats struct {
	Followers  int
	Popularity int
	Genres     []string
	ImageUrl   string
}

type Location struct {
	Country string
	City    string
}

type SocialStats struct {
	Username  string
	Followers int
}

type TrackTags struct {
	Tags      []string
	Playcount int
	Listeners int
}

// Social platforms supported by the SocialStatsProvider.
const (
	PlatformInstagram = "instagram"
	PlatformTiktok    = "tiktok"
)

type MetadataProvider interface {
	// PlaylistTracks returns the playlist's tracks in playlist order, following
	// pagination to the end.
	PlaylistTracks(ctx context.Context, playlistId string) ([]TrackRef, error)

	Album(ctx context.Context, albumId string) (*AlbumInfo, error)

	// SearchByISRC returns nil, nil when no track matches the content id.
	SearchByISRC(ctx context.Context, isrc string) (*TrackRef, error)
}

// AudioFeatureProvider lookups are best effort: nil, nil means the provider had
// no features for the track.
type AudioFeatureProvider interface {
	FeaturesFor(ctx context.Context, trackId string) (*AudioFeatures, error)
}

type ArtistStatsProvider interface {
	StatsFor(ctx context.Context, artistId string) (*ArtistStats, error)
}

type LocationProvider interface {
	LocationFor(ctx context.Context, artistName string) (*Location, error)
}

// SocialStatsProvider returns nil, nil for every lookup when no credential is
// configured. That is a normal operating mode, not a failure.
type SocialStatsProvider interface {
	FollowersFor(ctx context.Context, artistName, platform string) (*SocialStats, error)
}

type TrackInfoProvider interface {
	TrackInfo(ctx context.Context, artistName, trackName string) (*TrackTags, error)
}
