package providers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const lastfmBaseUrl = "https://ws.audioscrobbler.com/2.0/"

// LastfmClient implements TrackInfoProvider, supplying listening tags and play
// counts for a track.
type LastfmClient struct {
	client *resty.Client
	apiKey string
}

func NewLastfmClient(apiKey string) *LastfmClient {
	client := resty.New().
		SetBaseURL(lastfmBaseUrl).
		SetTimeout(5 * time.Second)

	return &LastfmClient{client: client, apiKey: apiKey}
}

type lastfmTag struct {
	Name string `json:"name"`
}

type lastfmTrackInfo struct {
	Playcount string `json:"playcount"`
	Listeners string `json:"listeners"`
	TopTags   struct {
		Tag []lastfmTag `json:"tag"`
	} `json:"toptags"`
}

type lastfmResponse struct {
	Track *lastfmTrackInfo `json:"track"`
}

func (c *LastfmClient) TrackInfo(ctx context.Context, artistName, trackName string) (*TrackTags, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	var result lastfmResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"method":  "track.getInfo",
			"api_key": c.apiKey,
			"artist":  artistName,
			"track":   trackName,
			"format":  "json",
		}).
		SetResult(&result).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("last.fm request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("last.fm returned status %v", resp.StatusCode())
	}

	if result.Track == nil {
		return nil, nil
	}

	tags := TrackTags{}
	for i, tag := range result.Track.TopTags.Tag {
		if i >= 5 {
			break
		}
		tags.Tags = append(tags.Tags, tag.Name)
	}
	// last.fm serializes counts as strings; unparseable values are left zero
	tags.Playcount, _ = strconv.Atoi(result.Track.Playcount)
	tags.Listeners, _ = strconv.Atoi(result.Track.Listeners)

	return &tags, nil
}
