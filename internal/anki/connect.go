package anki

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ConnectClient talks to the AnkiConnect automation API.
type ConnectClient struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

// Ensure ConnectClient implements Store at compile time.
var _ Store = (*ConnectClient)(nil)

const (
	DefaultConnectURL = "http://127.0.0.1:8765"
	connectVersion    = 6
	defaultUserAgent  = "cranky/0.1"
	requestTimeout    = 30 * time.Second
	todaySearchRange  = 30
)

// ConnectError is an error reported inside a successful AnkiConnect reply.
type ConnectError struct {
	Action  string
	Message string
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("ankiconnect %s: %s", e.Action, e.Message)
}

// NewConnectClient builds a client for the AnkiConnect server at rawURL.
func NewConnectClient(rawURL string) (*ConnectClient, error) {
	base, err := parseBaseURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &ConnectClient{
		baseURL:   base,
		http:      &http.Client{Timeout: requestTimeout},
		userAgent: defaultUserAgent,
	}, nil
}

// Version returns the AnkiConnect API version. It doubles as the
// reachability check for the local service.
func (c *ConnectClient) Version(ctx context.Context) (int, error) {
	var v int
	if err := c.do(ctx, "version", nil, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// DeckNames lists deck names sorted case-insensitively.
func (c *ConnectClient) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}
	sortFold(names)
	return names, nil
}

// Tags lists every tag in the collection.
func (c *ConnectClient) Tags(ctx context.Context) ([]string, error) {
	var tags []string
	if err := c.do(ctx, "getTags", nil, &tags); err != nil {
		return nil, err
	}
	sort.Strings(tags)
	return tags, nil
}

// FindCards runs q as a host search.
func (c *ConnectClient) FindCards(ctx context.Context, q Query) ([]int64, error) {
	var ids []int64
	params := map[string]any{"query": q.String()}
	if err := c.do(ctx, "findCards", params, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CardsInfo fetches scheduling details for ids.
func (c *ConnectClient) CardsInfo(ctx context.Context, ids []int64) ([]Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var cards []Card
	if err := c.do(ctx, "cardsInfo", map[string]any{"cards": ids}, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

type connectNote struct {
	NoteID    int64    `json:"noteId"`
	ModelName string   `json:"modelName"`
	Tags      []string `json:"tags"`
	Fields    map[string]struct {
		Value string `json:"value"`
		Order int    `json:"order"`
	} `json:"fields"`
}

// NotesInfo fetches the notes for ids. Unknown ids are dropped.
func (c *ConnectClient) NotesInfo(ctx context.Context, ids []int64) ([]Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var raw []connectNote
	if err := c.do(ctx, "notesInfo", map[string]any{"notes": ids}, &raw); err != nil {
		return nil, err
	}
	notes := make([]Note, 0, len(raw))
	for _, r := range raw {
		if r.NoteID == 0 {
			continue
		}
		note := Note{
			ID:        r.NoteID,
			ModelName: r.ModelName,
			Tags:      r.Tags,
			Fields:    make(map[string]string, len(r.Fields)),
		}
		order := make([]string, 0, len(r.Fields))
		for name, f := range r.Fields {
			note.Fields[name] = f.Value
			order = append(order, name)
		}
		sort.SliceStable(order, func(i, j int) bool {
			return r.Fields[order[i]].Order < r.Fields[order[j]].Order
		})
		note.FieldOrder = order
		notes = append(notes, note)
	}
	return notes, nil
}

type connectModel struct {
	Name  string `json:"name"`
	Type  int    `json:"type"`
	Tmpls []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
		Qfmt string `json:"qfmt"`
		Afmt string `json:"afmt"`
	} `json:"tmpls"`
	Flds []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
	} `json:"flds"`
}

// Model fetches the note type called name.
func (c *ConnectClient) Model(ctx context.Context, name string) (Model, error) {
	var raw []connectModel
	if err := c.do(ctx, "findModelsByName", map[string]any{"modelNames": []string{name}}, &raw); err != nil {
		return Model{}, err
	}
	if len(raw) == 0 {
		return Model{}, fmt.Errorf("model %q: %w", name, ErrNotFound)
	}
	return raw[0].toModel(), nil
}

func (r connectModel) toModel() Model {
	m := Model{Name: r.Name, Cloze: r.Type == 1}
	sort.SliceStable(r.Flds, func(i, j int) bool { return r.Flds[i].Ord < r.Flds[j].Ord })
	for _, f := range r.Flds {
		m.Fields = append(m.Fields, f.Name)
	}
	for _, t := range r.Tmpls {
		m.Templates = append(m.Templates, Template{Name: t.Name, Ord: t.Ord, Front: t.Qfmt, Back: t.Afmt})
	}
	sort.SliceStable(m.Templates, func(i, j int) bool { return m.Templates[i].Ord < m.Templates[j].Ord })
	return m
}

// RetrieveMediaFile downloads a media file. AnkiConnect answers false for
// missing files.
func (c *ConnectClient) RetrieveMediaFile(ctx context.Context, name string) ([]byte, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "retrieveMediaFile", map[string]any{"filename": name}, &raw); err != nil {
		return nil, err
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil || encoded == "" {
		return nil, fmt.Errorf("media %q: %w", name, ErrNotFound)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode media %q: %w", name, err)
	}
	return data, nil
}

// Today derives the scheduler day from a review card due near today, since
// AnkiConnect does not expose the collection creation time.
func (c *ConnectClient) Today(ctx context.Context) (int, error) {
	for i := 0; i <= 2*todaySearchRange; i++ {
		offset := (i + 1) / 2
		if i%2 == 0 {
			offset = -offset
		}
		var ids []int64
		query := "is:review prop:due=" + strconv.Itoa(offset)
		if err := c.do(ctx, "findCards", map[string]any{"query": query}, &ids); err != nil {
			return 0, err
		}
		if len(ids) == 0 {
			continue
		}
		cards, err := c.CardsInfo(ctx, ids[:1])
		if err != nil {
			return 0, err
		}
		if len(cards) == 0 {
			continue
		}
		return cards[0].Due - offset, nil
	}
	return 0, errors.New("ankiconnect: no review card due within a month of today")
}

// SetDueDates reschedules cards with setDueDate, one call per day offset.
// AnkiConnect cannot move cards into the past, so overdue targets land on
// today.
func (c *ConnectClient) SetDueDates(ctx context.Context, label string, due map[int64]int) error {
	if len(due) == 0 {
		return nil
	}
	today, err := c.Today(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	byDays := make(map[int][]int64)
	for id, d := range due {
		days := d - today
		if days < 0 {
			days = 0
		}
		byDays[days] = append(byDays[days], id)
	}
	offsets := make([]int, 0, len(byDays))
	for days := range byDays {
		offsets = append(offsets, days)
	}
	sort.Ints(offsets)
	for _, days := range offsets {
		ids := byDays[days]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		params := map[string]any{"cards": ids, "days": strconv.Itoa(days)}
		if err := c.do(ctx, "setDueDate", params, nil); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
	}
	return nil
}

// CreateFilteredDeck is not available over AnkiConnect.
func (c *ConnectClient) CreateFilteredDeck(context.Context, string, Query, int, bool) (int64, error) {
	return 0, ErrUnsupported
}

// Close is a no-op; the client holds no resources.
func (c *ConnectClient) Close() error { return nil }

type connectRequest struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type connectResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

func (c *ConnectClient) do(ctx context.Context, action string, params any, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	body, err := json.Marshal(connectRequest{Action: action, Version: connectVersion, Params: params})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", action, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("ankiconnect %s returned status %d", action, resp.StatusCode)
	}
	var envelope connectResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil && *envelope.Error != "" {
		return &ConnectError{Action: action, Message: *envelope.Error}
	}
	if dest == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, dest); err != nil {
		return fmt.Errorf("decode %s result: %w", action, err)
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultConnectURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse ankiconnect url %q: %w", raw, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

func sortFold(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
}
