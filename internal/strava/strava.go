package strava

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Channels are the stream types the remote normalizer requests.
var Channels = []string{ChannelTime, ChannelHeartRate, ChannelPower, ChannelCadence}

const (
	ChannelTime      = "time"
	ChannelHeartRate = "heartrate"
	ChannelPower     = "watts"
	ChannelCadence   = "cadence"
)

// Athlete holds the fields we use from the authenticated athlete.
type Athlete struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	FirstName     string `json:"firstname"`
	LastName      string `json:"lastname"`
	FollowerCount int    `json:"follower_count"`
	FriendCount   int    `json:"friend_count"`
}

// Activity holds only the data we want from the Strava API for an activity.
// StartDate is kept as text so that a malformed value does not fail the
// whole decode.
type Activity struct {
	ID               int64    `json:"id"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	StartDate        string   `json:"start_date"`
	StartDateLocal   string   `json:"start_date_local"`
	Distance         *float64 `json:"distance"`
	MovingTime       *float64 `json:"moving_time"`
	ElapsedTime      *float64 `json:"elapsed_time"`
	AverageWatts     *float64 `json:"average_watts"`
	AverageHeartrate *float64 `json:"average_heartrate"`
	Kilojoules       *float64 `json:"kilojoules"`
}

// GetAthlete returns the athlete the client is authenticated as.
func (c *Client) GetAthlete(ctx context.Context) (*Athlete, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, "athlete", nil)
	if err != nil {
		return nil, fmt.Errorf("creating get athlete request: %w", err)
	}
	var a Athlete
	if err := c.Do("getting athlete", req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetActivities lists the athlete's activities, newest first.
func (c *Client) GetActivities(ctx context.Context, perPage, page int) ([]Activity, error) {
	if perPage <= 0 {
		perPage = 30
	}
	if page <= 0 {
		page = 1
	}
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("page", strconv.Itoa(page))

	req, err := c.NewRequest(ctx, http.MethodGet, "athlete/activities?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating list activities request: %w", err)
	}
	var activities []Activity
	if err := c.Do("listing activities", req, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// GetActivity returns the summary of one activity.
func (c *Client) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, fmt.Sprintf("activities/%d", id), nil)
	if err != nil {
		return nil, fmt.Errorf("creating get activity request: %w", err)
	}
	var a Activity
	if err := c.Do(fmt.Sprintf("getting activity %d", id), req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetActivityStreams returns the requested channels of an activity keyed by type.
func (c *Client) GetActivityStreams(ctx context.Context, id int64, channels []string) (StreamSet, error) {
	q := url.Values{}
	q.Set("keys", strings.Join(channels, ","))
	q.Set("key_by_type", "true")

	req, err := c.NewRequest(ctx, http.MethodGet, fmt.Sprintf("activities/%d/streams?%s", id, q.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("creating get streams request: %w", err)
	}
	var streams StreamSet
	if err := c.Do(fmt.Sprintf("getting streams for activity %d", id), req, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}
