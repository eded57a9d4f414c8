package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RapidAPISocialClient implements SocialStatsProvider over the RapidAPI
// Instagram and TikTok endpoints. Without an API key every lookup returns
// nil, nil; the platform runs fine without social enrichment.
type RapidAPISocialClient struct {
	client        *resty.Client
	apiKey        string
	instagramHost string
	tiktokHost    string
}

func NewRapidAPISocialClient(apiKey, instagramHost, tiktokHost string) *RapidAPISocialClient {
	client := resty.New().SetTimeout(10 * time.Second)
	return &RapidAPISocialClient{
		client:        client,
		apiKey:        apiKey,
		instagramHost: instagramHost,
		tiktokHost:    tiktokHost,
	}
}

func (c *RapidAPISocialClient) Enabled() bool {
	return c.apiKey != ""
}

// guessUsername derives a likely social handle from the artist's display name.
func guessUsername(artistName string) string {
	username := strings.ToLower(artistName)
	username = strings.ReplaceAll(username, " ", "")
	username = strings.ReplaceAll(username, "ñ", "n")
	return username
}

type instagramResponse struct {
	FollowerCount *int `json:"follower_count"`
	Followers     *int `json:"followers"`
	Data          *struct {
		FollowerCount *int `json:"follower_count"`
	} `json:"data"`
}

func (r *instagramResponse) followers() *int {
	if r.FollowerCount != nil {
		return r.FollowerCount
	}
	if r.Followers != nil {
		return r.Followers
	}
	if r.Data != nil {
		return r.Data.FollowerCount
	}
	return nil
}

type tiktokStats struct {
	FollowerCount *int `json:"followerCount"`
}

type tiktokResponse struct {
	FollowerCount *int         `json:"followerCount"`
	Stats         *tiktokStats `json:"stats"`
	UserInfo      *struct {
		Stats *tiktokStats `json:"stats"`
	} `json:"userInfo"`
}

func (r *tiktokResponse) followers() *int {
	if r.FollowerCount != nil {
		return r.FollowerCount
	}
	if r.Stats != nil && r.Stats.FollowerCount != nil {
		return r.Stats.FollowerCount
	}
	if r.UserInfo != nil && r.UserInfo.Stats != nil {
		return r.UserInfo.Stats.FollowerCount
	}
	return nil
}

func (c *RapidAPISocialClient) get(ctx context.Context, host, path, username string, result interface{}) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("x-rapidapi-key", c.apiKey).
		SetHeader("x-rapidapi-host", host).
		SetQueryParam("username", username).
		SetResult(result).
		Get(fmt.Sprintf("https://%v%v", host, path))
	if err != nil {
		return fmt.Errorf("rapidapi request failed: %w", err)
	}
	if !resp.IsSuccess() {
		return fmt.Errorf("rapidapi returned status %v", resp.StatusCode())
	}
	return nil
}

func (c *RapidAPISocialClient) FollowersFor(ctx context.Context, artistName, platform string) (*SocialStats, error) {
	if !c.Enabled() {
		return nil, nil
	}

	username := guessUsername(artistName)

	switch platform {
	case PlatformInstagram:
		var result instagramResponse
		if err := c.get(ctx, c.instagramHost, "/api/instagram/user", username, &result); err != nil {
			return nil, err
		}
		if followers := result.followers(); followers != nil {
			return &SocialStats{Username: username, Followers: *followers}, nil
		}
		return nil, nil

	case PlatformTiktok:
		var result tiktokResponse
		if err := c.get(ctx, c.tiktokHost, "/api/user/info", username, &result); err != nil {
			return nil, err
		}
		if followers := result.followers(); followers != nil {
			return &SocialStats{Username: username, Followers: *followers}, nil
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown social platform '%v'", platform)
	}
}
