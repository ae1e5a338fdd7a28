package anki

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	fieldSeparator = "\x1f"
	dayLength      = 86400
	// dynDue orders filtered deck cards by due date.
	dynDue = 6
	// filteredDueBase is where cards moved into a filtered deck are queued.
	filteredDueBase = -100000
)

// Collection reads an Anki collection file directly.
type Collection struct {
	db       *sql.DB
	path     string
	mediaDir string
	modern   bool
	now      func() time.Time

	models    map[int64]Model
	modelIDs  map[string]int64
	deckNames map[int64]string
}

// Ensure Collection implements Store at compile time.
var _ Store = (*Collection)(nil)

// OpenCollection opens the collection at path. Media is read from the
// sibling "collection.media" directory.
func OpenCollection(path string) (*Collection, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}
	c := &Collection{
		db:       db,
		path:     path,
		mediaDir: strings.TrimSuffix(path, filepath.Ext(path)) + ".media",
		now:      time.Now,
	}
	if err := c.load(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Collection) load(ctx context.Context) error {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = 'notetypes'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	c.modern = n > 0
	if c.modern {
		err = c.loadModern(ctx)
	} else {
		err = c.loadLegacy(ctx)
	}
	if err != nil {
		return fmt.Errorf("load collection metadata: %w", err)
	}
	c.modelIDs = make(map[string]int64, len(c.models))
	for id, m := range c.models {
		c.modelIDs[m.Name] = id
	}
	return nil
}

type legacyModel struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	Flds []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
	} `json:"flds"`
	Tmpls []struct {
		Name string `json:"name"`
		Ord  int    `json:"ord"`
		Qfmt string `json:"qfmt"`
		Afmt string `json:"afmt"`
	} `json:"tmpls"`
}

type legacyDeck struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Dyn  int    `json:"dyn"`
}

func (c *Collection) loadLegacy(ctx context.Context) error {
	var modelsJSON, decksJSON string
	if err := c.db.QueryRowContext(ctx, `SELECT models, decks FROM col`).Scan(&modelsJSON, &decksJSON); err != nil {
		return err
	}
	var models map[string]legacyModel
	if err := json.Unmarshal([]byte(modelsJSON), &models); err != nil {
		return fmt.Errorf("decode models: %w", err)
	}
	c.models = make(map[int64]Model, len(models))
	for key, lm := range models {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			continue
		}
		m := Model{Name: lm.Name, Cloze: lm.Type == 1}
		sort.SliceStable(lm.Flds, func(i, j int) bool { return lm.Flds[i].Ord < lm.Flds[j].Ord })
		for _, f := range lm.Flds {
			m.Fields = append(m.Fields, f.Name)
		}
		for _, t := range lm.Tmpls {
			m.Templates = append(m.Templates, Template{Name: t.Name, Ord: t.Ord, Front: t.Qfmt, Back: t.Afmt})
		}
		sort.SliceStable(m.Templates, func(i, j int) bool { return m.Templates[i].Ord < m.Templates[j].Ord })
		c.models[id] = m
	}

	var decks map[string]legacyDeck
	if err := json.Unmarshal([]byte(decksJSON), &decks); err != nil {
		return fmt.Errorf("decode decks: %w", err)
	}
	c.deckNames = make(map[int64]string, len(decks))
	for _, d := range decks {
		c.deckNames[d.ID] = d.Name
	}
	return nil
}

func (c *Collection) loadModern(ctx context.Context) error {
	c.models = make(map[int64]Model)
	rows, err := c.db.QueryContext(ctx, `SELECT id, name, config FROM notetypes`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			id     int64
			name   string
			config []byte
		)
		if err := rows.Scan(&id, &name, &config); err != nil {
			rows.Close()
			return err
		}
		c.models[id] = Model{Name: name, Cloze: notetypeIsCloze(config)}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = c.db.QueryContext(ctx, `SELECT ntid, name FROM fields ORDER BY ntid, ord`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			ntid int64
			name string
		)
		if err := rows.Scan(&ntid, &name); err != nil {
			rows.Close()
			return err
		}
		m := c.models[ntid]
		m.Fields = append(m.Fields, name)
		c.models[ntid] = m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = c.db.QueryContext(ctx, `SELECT ntid, ord, name, config FROM templates ORDER BY ntid, ord`)
	if err != nil {
		return err
	}
	for rows.Next() {
		var (
			ntid   int64
			ord    int
			name   string
			config []byte
		)
		if err := rows.Scan(&ntid, &ord, &name, &config); err != nil {
			rows.Close()
			return err
		}
		front, back := templateFormats(config)
		m := c.models[ntid]
		m.Templates = append(m.Templates, Template{Name: name, Ord: ord, Front: front, Back: back})
		c.models[ntid] = m
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	c.deckNames = make(map[int64]string)
	rows, err = c.db.QueryContext(ctx, `SELECT id, name FROM decks`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		c.deckNames[id] = strings.ReplaceAll(name, fieldSeparator, "::")
	}
	return rows.Err()
}

// Version reports the collection schema version.
func (c *Collection) Version(ctx context.Context) (int, error) {
	var ver int
	if err := c.db.QueryRowContext(ctx, `SELECT ver FROM col`).Scan(&ver); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return ver, nil
}

// DeckNames lists deck names sorted case-insensitively.
func (c *Collection) DeckNames(context.Context) ([]string, error) {
	names := make([]string, 0, len(c.deckNames))
	for _, name := range c.deckNames {
		names = append(names, name)
	}
	sortFold(names)
	return names, nil
}

// Tags lists the distinct tags used by notes.
func (c *Collection) Tags(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT tags FROM notes WHERE tags != ''`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()
	seen := make(map[string]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan tags: %w", err)
		}
		for _, tag := range strings.Fields(raw) {
			seen[tag] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

// FindCards evaluates q against every card. Predicates are checked in Go so
// deck and tag matching follow the host's hierarchical, case-insensitive
// rules.
func (c *Collection) FindCards(ctx context.Context, q Query) ([]int64, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT c.id, c.did, c.odid, c.type, c.queue, n.tags
		FROM cards c JOIN notes n ON n.id = c.nid
		ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	defer rows.Close()

	decks := c.matchingDecks(q.Deck)
	wanted := make(map[int64]bool, len(q.CardIDs))
	for _, id := range q.CardIDs {
		wanted[id] = true
	}

	var ids []int64
	for rows.Next() {
		var (
			id, did, odid int64
			typ, queue    int
			tags          string
		)
		if err := rows.Scan(&id, &did, &odid, &typ, &queue, &tags); err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		if decks != nil && !decks[did] && !decks[odid] {
			continue
		}
		if !MatchTags(strings.Fields(tags), q.Tags, q.AnyTag) {
			continue
		}
		if q.ExcludeSuspended && queue == QueueSuspended {
			continue
		}
		if q.ReviewOnly && typ != CardTypeReview && typ != CardTypeRelearning {
			continue
		}
		if q.NewOnly && typ != CardTypeNew {
			continue
		}
		if len(wanted) > 0 && !wanted[id] {
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query cards: %w", err)
	}
	return ids, nil
}

// matchingDecks returns the ids of deck and its subdecks, or nil when the
// query has no deck predicate.
func (c *Collection) matchingDecks(deck string) map[int64]bool {
	if IsAllDecks(deck) {
		return nil
	}
	ids := make(map[int64]bool)
	for id, name := range c.deckNames {
		if DeckMatches(name, deck) {
			ids[id] = true
		}
	}
	return ids
}

// CardsInfo fetches scheduling details for ids, in id order.
func (c *Collection) CardsInfo(ctx context.Context, ids []int64) ([]Card, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT c.id, c.nid, c.did, c.ord, c.type, c.queue, c.due, c.ivl, c.reps, c.lapses, n.mid
		FROM cards c JOIN notes n ON n.id = c.nid
		WHERE c.id IN (` + placeholders(len(ids)) + `)
		ORDER BY c.id`
	rows, err := c.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query cards info: %w", err)
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		var (
			card     Card
			did, mid int64
		)
		if err := rows.Scan(&card.ID, &card.NoteID, &did, &card.Ord, &card.Type, &card.Queue,
			&card.Due, &card.Interval, &card.Reps, &card.Lapses, &mid); err != nil {
			return nil, fmt.Errorf("scan card info: %w", err)
		}
		card.Deck = c.deckNames[did]
		card.ModelName = c.models[mid].Name
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query cards info: %w", err)
	}
	return cards, nil
}

// NotesInfo fetches the notes for ids. Unknown ids are dropped.
func (c *Collection) NotesInfo(ctx context.Context, ids []int64) ([]Note, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, mid, tags, flds FROM notes WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`
	rows, err := c.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var (
			id, mid    int64
			tags, flds string
		)
		if err := rows.Scan(&id, &mid, &tags, &flds); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		model := c.models[mid]
		values := strings.Split(flds, fieldSeparator)
		note := Note{
			ID:         id,
			ModelName:  model.Name,
			Tags:       strings.Fields(tags),
			Fields:     make(map[string]string, len(model.Fields)),
			FieldOrder: append([]string(nil), model.Fields...),
		}
		for i, name := range model.Fields {
			if i < len(values) {
				note.Fields[name] = values[i]
			} else {
				note.Fields[name] = ""
			}
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	return notes, nil
}

// Model returns the note type called name.
func (c *Collection) Model(_ context.Context, name string) (Model, error) {
	id, ok := c.modelIDs[name]
	if !ok {
		return Model{}, fmt.Errorf("model %q: %w", name, ErrNotFound)
	}
	return c.models[id], nil
}

// RetrieveMediaFile reads a file from the collection's media folder.
func (c *Collection) RetrieveMediaFile(_ context.Context, name string) ([]byte, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("media %q: %w", name, ErrNotFound)
	}
	data, err := os.ReadFile(filepath.Join(c.mediaDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("media %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read media %q: %w", name, err)
	}
	return data, nil
}

// Today returns the number of days since the collection was created.
func (c *Collection) Today(ctx context.Context) (int, error) {
	var crt int64
	if err := c.db.QueryRowContext(ctx, `SELECT crt FROM col`).Scan(&crt); err != nil {
		return 0, fmt.Errorf("read creation time: %w", err)
	}
	return int((c.now().Unix() - crt) / dayLength), nil
}

// SetDueDates writes all due values in a single transaction.
func (c *Collection) SetDueDates(ctx context.Context, label string, due map[int64]int) error {
	if len(due) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", label, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE cards SET due = ?, mod = ?, usn = -1 WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("%s: prepare: %w", label, err)
	}
	defer stmt.Close()

	mod := c.now().Unix()
	for id, d := range due {
		if _, err := stmt.ExecContext(ctx, d, mod, id); err != nil {
			return fmt.Errorf("%s: update card %d: %w", label, id, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE col SET mod = ?`, c.now().UnixMilli()); err != nil {
		return fmt.Errorf("%s: touch collection: %w", label, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", label, err)
	}
	return nil
}

// CreateFilteredDeck creates (or refills) a filtered deck holding the cards
// matched by q and returns its id. Only the JSON-based legacy schema is
// writable.
func (c *Collection) CreateFilteredDeck(ctx context.Context, name string, q Query, limit int, reschedule bool) (int64, error) {
	if c.modern {
		return 0, fmt.Errorf("filtered decks on schema 18 collections: %w", ErrUnsupported)
	}
	ids, err := c.FindCards(ctx, q)
	if err != nil {
		return 0, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var decksJSON string
	if err := tx.QueryRowContext(ctx, `SELECT decks FROM col`).Scan(&decksJSON); err != nil {
		return 0, fmt.Errorf("read decks: %w", err)
	}
	var decks map[string]map[string]any
	if err := json.Unmarshal([]byte(decksJSON), &decks); err != nil {
		return 0, fmt.Errorf("decode decks: %w", err)
	}

	now := c.now()
	var did int64
	for key, d := range decks {
		if n, _ := d["name"].(string); strings.EqualFold(n, name) {
			if dyn, _ := d["dyn"].(float64); dyn != 1 {
				return 0, fmt.Errorf("deck %q exists and is not a filtered deck", name)
			}
			did, _ = strconv.ParseInt(key, 10, 64)
		}
	}
	if did == 0 {
		did = now.UnixMilli()
	}
	decks[strconv.FormatInt(did, 10)] = filteredDeck(did, name, q.String(), limit, reschedule, now)

	encoded, err := json.Marshal(decks)
	if err != nil {
		return 0, fmt.Errorf("encode decks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE col SET decks = ?, mod = ?`, string(encoded), now.UnixMilli()); err != nil {
		return 0, fmt.Errorf("write decks: %w", err)
	}

	// Cards already in a filtered deck or suspended stay where they are.
	moved := 0
	for _, id := range ids {
		if limit > 0 && moved >= limit {
			break
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE cards SET odid = did, odue = due, did = ?, due = ?, mod = ?, usn = -1
			WHERE id = ? AND odid = 0 AND queue != ?`,
			did, filteredDueBase+moved, now.Unix(), id, QueueSuspended)
		if err != nil {
			return 0, fmt.Errorf("move card %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			moved++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	c.deckNames[did] = name
	return did, nil
}

func filteredDeck(id int64, name, search string, limit int, reschedule bool, now time.Time) map[string]any {
	return map[string]any{
		"id":               id,
		"name":             name,
		"mod":              now.Unix(),
		"usn":              -1,
		"dyn":              1,
		"desc":             "",
		"collapsed":        false,
		"browserCollapsed": false,
		"terms":            []any{[]any{search, limit, dynDue}},
		"resched":          reschedule,
		"return":           true,
		"separate":         true,
		"delays":           nil,
		"previewDelay":     10,
		"newToday":         []int{0, 0},
		"revToday":         []int{0, 0},
		"lrnToday":         []int{0, 0},
		"timeToday":        []int{0, 0},
	}
}

// Close releases the database handle.
func (c *Collection) Close() error {
	return c.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
