// Package groupex fetches class schedules from the GroupEx embed API and
// folds them into the local cache.
package groupex

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultBaseURL is the public GroupEx Pro API root.
	DefaultBaseURL = "https://www.groupexpro.com"

	schedulePath   = "/schedule/embed/json.php"
	defaultTimeout = 30 * time.Second
)

// Class is one row of the GroupEx schedule feed. Repeating classes appear
// once per date with the same ID.
type Class struct {
	ID                 string `json:"id"`
	Category           string `json:"category"`
	Location           string `json:"location"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	Date               string `json:"date"`
	Time               string `json:"time"`
	Instructor         string `json:"instructor"`
	OriginalInstructor string `json:"original_instructor"`
	SubInstructor      string `json:"sub_instructor"`
	Studio             string `json:"studio"`
	Length             string `json:"length"`
}

// FetchResult holds the rows of every location that answered. Failed lists
// the locations whose request did not succeed.
type FetchResult struct {
	Classes []Class
	Failed  []string
}

// Complete reports whether every location was fetched.
func (r *FetchResult) Complete() bool {
	return len(r.Failed) == 0
}

// Options configure a Client.
type Options struct {
	BaseURL   string
	Account   string
	Locations []string
	Timeout   time.Duration
}

// Client is an HTTP client for the GroupEx schedule feed.
type Client struct {
	client    *resty.Client
	account   string
	locations []string
	logger    *slog.Logger
}

// NewClient creates a GroupEx client.
func NewClient(opts Options, logger *slog.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "gcalsync")

	return &Client{
		client:    client,
		account:   opts.Account,
		locations: opts.Locations,
		logger:    logger,
	}
}

// Fetch downloads the schedule of every configured location between start
// and end. A failing location is logged and reported in the result; it does
// not stop the others.
func (c *Client) Fetch(ctx context.Context, start, end time.Time) (*FetchResult, error) {
	if len(c.locations) == 0 {
		return nil, fmt.Errorf("no GroupEx locations configured")
	}

	result := &FetchResult{}
	for _, location := range c.locations {
		classes, err := c.fetchLocation(ctx, location, start, end)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Error("Failed to get schedules for location", "location", location, "error", err)
			result.Failed = append(result.Failed, location)
			continue
		}
		c.logger.Debug("Fetched GroupEx schedule", "location", location, "rows", len(classes))
		result.Classes = append(result.Classes, classes...)
	}
	return result, nil
}

func (c *Client) fetchLocation(ctx context.Context, location string, start, end time.Time) ([]Class, error) {
	var classes []Class
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"schedule": "",
			"a":        c.account,
			"location": location,
			"start":    strconv.FormatInt(start.Unix(), 10),
			"end":      strconv.FormatInt(end.Unix(), 10),
		}).
		ForceContentType("application/json").
		SetResult(&classes).
		Get(schedulePath)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}
	return classes, nil
}
