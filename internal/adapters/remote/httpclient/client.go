package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hylla/atelier/internal/app"
	"github.com/hylla/atelier/internal/domain"
)

// maxErrorBody caps how much of an error response is kept for messages.
const maxErrorBody = 4 << 10

// Options configures a Client.
type Options struct {
	BaseURL    string
	AuthToken  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Clock      func() time.Time
}

// Client replays records against the project REST service.
type Client struct {
	baseURL    *url.URL
	authToken  string
	httpClient *http.Client
	clock      func() time.Time
}

// New constructs a client for the service rooted at opts.BaseURL.
func New(opts Options) (*Client, error) {
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		return nil, errors.New("remote base_url is required")
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid remote base_url %q", raw)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Client{
		baseURL:    base,
		authToken:  strings.TrimSpace(opts.AuthToken),
		httpClient: httpClient,
		clock:      clock,
	}, nil
}

// Apply sends one record. The record id travels as the Idempotency-Key header.
func (c *Client) Apply(ctx context.Context, rec domain.Record) (domain.Ack, error) {
	if rec.Mutation == nil {
		return domain.Ack{}, fmt.Errorf("%w: %v", app.ErrRemoteApplyRejected, domain.ErrInvalidPayload)
	}
	b := &requestBuilder{}
	if err := rec.Mutation.Accept(b); err != nil {
		return domain.Ack{}, fmt.Errorf("%w: %v", app.ErrRemoteApplyRejected, err)
	}

	var body io.Reader
	if b.body != nil {
		raw, err := json.Marshal(b.body)
		if err != nil {
			return domain.Ack{}, fmt.Errorf("%w: encode %s: %v", app.ErrRemoteApplyRejected, rec.Kind(), err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := c.newRequest(ctx, b.method, b.path, body)
	if err != nil {
		return domain.Ack{}, fmt.Errorf("%w: %v", app.ErrRemoteApplyFailed, err)
	}
	req.Header.Set("Idempotency-Key", rec.ID)
	req.Header.Set("X-Mutation-Kind", string(rec.Kind()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Ack{}, fmt.Errorf("%w: %v", app.ErrRemoteApplyFailed, err)
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp); err != nil {
		return domain.Ack{}, err
	}

	ack := domain.Ack{RecordID: rec.ID, AppliedAt: c.clock().UTC()}
	var created struct {
		ID string `json:"id"`
	}
	if raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20)); len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &created); err == nil {
			ack.RemoteID = created.ID
		}
	}
	return ack, nil
}

// FetchProject reads the full current state of one project.
func (c *Client) FetchProject(ctx context.Context, projectID string) (domain.ProjectState, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/projects/"+url.PathEscape(projectID), nil)
	if err != nil {
		return domain.ProjectState{}, fmt.Errorf("%w: %v", app.ErrRemoteApplyFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ProjectState{}, fmt.Errorf("%w: %v", app.ErrRemoteApplyFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.ProjectState{}, fmt.Errorf("%w: project %q", app.ErrNotFound, projectID)
	}
	if err := classifyStatus(resp); err != nil {
		return domain.ProjectState{}, err
	}
	var state domain.ProjectState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return domain.ProjectState{}, fmt.Errorf("%w: decode project: %v", app.ErrRemoteApplyFailed, err)
	}
	if state.ProjectID == "" {
		state.ProjectID = projectID
	}
	return state, nil
}

// Ping checks that the remote answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("ping: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	target := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

// classifyStatus maps non-2xx responses onto the remote failure sentinels.
// Timeouts and rate limits are retryable failures; other 4xx are rejections.
func classifyStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		switch {
		case envelope.Error.Message != "":
			msg = envelope.Error.Message
		case envelope.Message != "":
			msg = envelope.Message
		}
	}
	sentinel := app.ErrRemoteApplyFailed
	switch {
	case resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		sentinel = app.ErrRemoteApplyRejected
	}
	if msg == "" {
		return fmt.Errorf("%w: status %d", sentinel, resp.StatusCode)
	}
	return fmt.Errorf("%w: status %d: %s", sentinel, resp.StatusCode, msg)
}

// requestBuilder turns each mutation variant into a REST call.
type requestBuilder struct {
	method string
	path   string
	body   any
}

func itemsPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/items"
}

func roomsPath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/rooms"
}

func (b *requestBuilder) HandleCreateItem(m domain.CreateItem) error {
	b.method, b.path, b.body = http.MethodPost, itemsPath(m.Item.ProjectID), m.Item
	return nil
}

func (b *requestBuilder) HandleUpdateItem(m domain.UpdateItem) error {
	b.method, b.path, b.body = http.MethodPatch, itemsPath(m.ProjectID)+"/"+url.PathEscape(m.ItemID), m.ItemPatch
	return nil
}

func (b *requestBuilder) HandleDeleteItem(m domain.DeleteItem) error {
	b.method, b.path = http.MethodDelete, itemsPath(m.ProjectID)+"/"+url.PathEscape(m.ItemID)
	return nil
}

func (b *requestBuilder) HandleCreateRoom(m domain.CreateRoom) error {
	b.method, b.path, b.body = http.MethodPost, roomsPath(m.Room.ProjectID), m.Room
	return nil
}

func (b *requestBuilder) HandleUpdateRoom(m domain.UpdateRoom) error {
	b.method, b.path, b.body = http.MethodPatch, roomsPath(m.ProjectID)+"/"+url.PathEscape(m.RoomID), m.RoomPatch
	return nil
}

func (b *requestBuilder) HandleDeleteRoom(m domain.DeleteRoom) error {
	b.method, b.path = http.MethodDelete, roomsPath(m.ProjectID)+"/"+url.PathEscape(m.RoomID)
	return nil
}
