package palace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultAPIBase   = "https://api.cranky.app"
	DefaultFrontBase = "https://cranky.app"
	defaultUserAgent = "cranky/0.1"

	requestTimeout = 30 * time.Second
	// Scene generation runs the layout model server side.
	sceneTimeout = 1000 * time.Second
)

// Client talks to the palace HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	token     string
	coupon    string
}

// NewClient builds a Client for apiBase. An empty base selects the public
// service.
func NewClient(apiBase string) (*Client, error) {
	base, err := parseBaseURL(apiBase)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}, nil
}

// WithToken returns a copy of c that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	clone := *c
	clone.token = strings.TrimSpace(token)
	return &clone
}

// WithCoupon returns a copy of c that sends coupon on media uploads.
func (c *Client) WithCoupon(coupon string) *Client {
	clone := *c
	clone.coupon = strings.TrimSpace(coupon)
	return &clone
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return strings.TrimSuffix(c.baseURL.String(), "/")
}

// GenerateScene submits a card batch and returns the created session.
func (c *Client) GenerateScene(ctx context.Context, req SceneRequest) (Scene, error) {
	if c == nil {
		return Scene{}, fmt.Errorf("client is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, sceneTimeout)
	defer cancel()

	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/v2/generate_scene"}, req, &raw); err != nil {
		return Scene{}, err
	}
	var head struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Scene{}, fmt.Errorf("decode response: %w", err)
	}
	sessionID := head.SessionID
	if sessionID == "" {
		sessionID = req.SessionID
	}
	if sessionID == "" {
		return Scene{}, fmt.Errorf("generate scene: response has no session_id")
	}
	return Scene{SessionID: sessionID, Layout: raw}, nil
}

// UploadMedia sends files as a multipart form with one "files" part per file.
func (c *Client) UploadMedia(ctx context.Context, sessionID string, paths []string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if len(paths) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, sceneTimeout)
	defer cancel()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for _, p := range paths {
		if err := addFile(form, p); err != nil {
			return err
		}
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}

	rel := sessionPath("/upload_media/", sessionID)
	req, err := c.newRequest(ctx, http.MethodPost, rel, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.coupon != "" {
		req.Header.Set("X-Coupon-Token", c.coupon)
	}
	return c.send(req, rel, nil)
}

func addFile(form *multipart.Writer, p string) error {
	f, err := os.Open(p)
	if err != nil {
		return fmt.Errorf("open %s: %w", p, err)
	}
	defer func() { _ = f.Close() }()
	part, err := form.CreateFormFile("files", filepath.Base(p))
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read %s: %w", p, err)
	}
	return nil
}

// Status reports the progress of a session.
func (c *Client) Status(ctx context.Context, sessionID string) (Status, error) {
	if c == nil {
		return Status{}, fmt.Errorf("client is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var payload Status
	if err := c.doJSON(ctx, http.MethodGet, sessionPath("/v2/status/", sessionID), nil, &payload); err != nil {
		return Status{}, err
	}
	if payload.Status == "" {
		payload.Status = "pending"
	}
	return payload, nil
}

// GenerateViewer publishes layout and returns the viewer page URL.
func (c *Client) GenerateViewer(ctx context.Context, sessionID string, layout json.RawMessage) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	ctx, cancel := context.WithTimeout(ctx, sceneTimeout)
	defer cancel()

	var payload struct {
		URL string `json:"url"`
	}
	req := struct {
		Layout json.RawMessage `json:"layout"`
	}{Layout: layout}
	if err := c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/generate_viewer"}, req, &payload); err != nil {
		return "", err
	}
	if payload.URL != "" {
		return payload.URL, nil
	}
	return c.ViewerURL(sessionID), nil
}

// ViewerURL is the conventional location of a session's viewer page.
func (c *Client) ViewerURL(sessionID string) string {
	return c.BaseURL() + path.Join("/viewer", url.PathEscape(sessionID), "cranky_viewer.html")
}

// sessionPath appends id to prefix as a single path segment. Path holds the
// raw id and RawPath its escaped form, so it is encoded once on the wire.
func sessionPath(prefix, id string) *url.URL {
	return &url.URL{Path: prefix + id, RawPath: prefix + url.PathEscape(id)}
}

func (c *Client) doJSON(ctx context.Context, method string, rel *url.URL, in, dest any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, rel, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, rel, dest)
}

func (c *Client) newRequest(ctx context.Context, method string, rel *url.URL, body io.Reader) (*http.Request, error) {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, rel *url.URL, dest any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Path: rel.Path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultAPIBase
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
