package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const musicbrainzBaseUrl = "https://musicbrainz.org/ws/2"

// MusicBrainzClient implements LocationProvider. MusicBrainz imposes a hard
// limit of one request per second and rejects requests without a descriptive
// User-Agent, so both are mandatory here.
type MusicBrainzClient struct {
	client  *resty.Client
	limiter *rate.Limiter
}

func NewMusicBrainzClient(userAgent string) *MusicBrainzClient {
	client := resty.New().
		SetBaseURL(musicbrainzBaseUrl).
		SetTimeout(10 * time.Second).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return &MusicBrainzClient{
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

type mbArea struct {
	Name string `json:"name"`
}

type mbArtist struct {
	Name      string  `json:"name"`
	Country   string  `json:"country"`
	Area      *mbArea `json:"area"`
	BeginArea *mbArea `json:"begin-area"`
}

type mbSearchResponse struct {
	Artists []mbArtist `json:"artists"`
}

func (c *MusicBrainzClient) LocationFor(ctx context.Context, artistName string) (*Location, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait interrupted: %w", err)
	}

	var result mbSearchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query": fmt.Sprintf("artist:%q", artistName),
			"fmt":   "json",
			"limit": "1",
		}).
		SetResult(&result).
		Get("/artist/")
	if err != nil {
		return nil, fmt.Errorf("musicbrainz request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("musicbrainz returned status %v", resp.StatusCode())
	}

	if len(result.Artists) == 0 {
		return nil, nil
	}

	artist := result.Artists[0]

	location := Location{}
	if artist.Area != nil {
		location.Country = artist.Area.Name
	}
	if artist.BeginArea != nil {
		location.City = artist.BeginArea.Name
	}

	if location.Country == "" && location.City == "" {
		return nil, nil
	}
	return &location, nil
}
