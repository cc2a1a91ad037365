package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Container processing states reported by the Graph API.
const (
	ContainerInProgress = "IN_PROGRESS"
	ContainerFinished   = "FINISHED"
	ContainerError      = "ERROR"
)

var (
	// ErrRemoteRejected marks a client-side rejection (4xx): malformed image,
	// bad token, unsupported format. Never retried.
	ErrRemoteRejected = errors.New("rejected by instagram")
	// ErrUnavailable marks a transient failure (network, 5xx). Safe to retry
	// within bounds.
	ErrUnavailable = errors.New("instagram api unavailable")
)

// Client talks to the Instagram Graph API. It covers the three publishing
// calls (create container, container status, publish) plus the read-only
// media feed used for grid previews.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// NewClientWithHTTP is used by tests to inject a fake transport.
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

// CreateContainer registers an image URL + caption as a media container and
// returns its id. The platform fetches the image itself, asynchronously.
func (c *Client) CreateContainer(ctx context.Context, userID, token, imageURL, caption string) (string, error) {
	const op = "instagram.Client.CreateContainer"

	form := url.Values{
		"image_url":    {imageURL},
		"caption":      {caption},
		"access_token": {token},
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, fmt.Sprintf("%s/%s/media", c.baseURL, userID), form, &out); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%s: %w: empty container id", op, ErrRemoteRejected)
	}
	return out.ID, nil
}

// ContainerStatus returns the processing state of a container.
func (c *Client) ContainerStatus(ctx context.Context, containerID, token string) (string, error) {
	const op = "instagram.Client.ContainerStatus"

	q := url.Values{
		"fields":       {"status_code"},
		"access_token": {token},
	}

	var out struct {
		StatusCode string `json:"status_code"`
	}
	if err := c.get(ctx, fmt.Sprintf("%s/%s", c.baseURL, containerID), q, &out); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if out.StatusCode == "" {
		return "UNKNOWN", nil
	}
	return out.StatusCode, nil
}

// PublishContainer makes a finished container live and returns the remote
// media id.
func (c *Client) PublishContainer(ctx context.Context, userID, token, containerID string) (string, error) {
	const op = "instagram.Client.PublishContainer"

	form := url.Values{
		"creation_id":  {containerID},
		"access_token": {token},
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.postForm(ctx, fmt.Sprintf("%s/%s/media_publish", c.baseURL, userID), form, &out); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("%s: %w: empty media id", op, ErrRemoteRejected)
	}
	return out.ID, nil
}

// VerifyPost confirms a published media id resolves. Used as a post-publish
// sanity check only.
func (c *Client) VerifyPost(ctx context.Context, mediaID, token string) error {
	const op = "instagram.Client.VerifyPost"

	q := url.Values{
		"fields":       {"id,timestamp"},
		"access_token": {token},
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.get(ctx, fmt.Sprintf("%s/%s", c.baseURL, mediaID), q, &out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Media is one published feed item.
type Media struct {
	ID           string `json:"id"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Permalink    string `json:"permalink"`
	Caption      string `json:"caption,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// RecentMedia fetches the latest published items, newest first. Twelve covers
// four grid rows of the profile preview.
func (c *Client) RecentMedia(ctx context.Context, userID, token string, limit int) ([]Media, error) {
	const op = "instagram.Client.RecentMedia"

	q := url.Values{
		"fields":       {"id,media_type,media_url,thumbnail_url,permalink,caption,timestamp"},
		"limit":        {strconv.Itoa(limit)},
		"access_token": {token},
	}

	var out struct {
		Data []Media `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("%s/%s/media", c.baseURL, userID), q, &out); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out.Data, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, graphErrorMessage(body))
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d: %s", ErrRemoteRejected, resp.StatusCode, graphErrorMessage(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
	}
	return nil
}

func graphErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	if len(body) > 256 {
		body = body[:256]
	}
	return string(body)
}
