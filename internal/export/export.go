// Package export turns a card selection into the batch the palace service
// consumes: one plain-text front/back pair per note plus the media files the
// note references, copied into a working directory.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/five82/cranky/internal/anki"
	"github.com/five82/cranky/internal/extract"
	"github.com/five82/cranky/internal/media"
	"github.com/five82/cranky/internal/selection"
)

// Card is one exported record. Images holds local file names inside the
// media directory, in reference order.
type Card struct {
	UID    string   `json:"uid" yaml:"uid"`
	Front  string   `json:"front" yaml:"front"`
	Back   string   `json:"back" yaml:"back"`
	Images []string `json:"images" yaml:"images"`
}

// Exporter builds export batches from a host store.
type Exporter struct {
	Store     anki.Store
	Media     *media.Transfer
	Templates *extract.Cache
	Logger    *slog.Logger
}

// Export selects cards by criteria and converts them. A failure to read
// cards or notes is logged and yields an empty batch; the error is still
// returned. Cards whose note, note type or template cannot be resolved are
// skipped.
func (e *Exporter) Export(ctx context.Context, criteria selection.Criteria, rng *rand.Rand) ([]Card, error) {
	runID := ulid.Make().String()
	logger := e.logger().With("run", runID)
	logger.Info("export started",
		"deck", criteria.Deck,
		"tags", criteria.Tags,
		"mode", criteria.Mode.String(),
		"query", criteria.Query().String(),
	)

	picked, err := selection.Select(ctx, e.Store, criteria, rng)
	if err != nil {
		logger.Error("card fetch failed", "error", err)
		return []Card{}, err
	}
	if len(picked) == 0 {
		logger.Info("no cards matched")
		return []Card{}, nil
	}

	noteIDs := make([]int64, len(picked))
	for i, c := range picked {
		noteIDs[i] = c.NoteID
	}
	notes, err := e.Store.NotesInfo(ctx, noteIDs)
	if err != nil {
		logger.Error("note fetch failed", "error", err)
		return []Card{}, fmt.Errorf("notes info: %w", err)
	}
	byID := make(map[int64]anki.Note, len(notes))
	for _, n := range notes {
		byID[n.ID] = n
	}

	templates := e.Templates
	if templates == nil {
		templates = extract.NewCache()
	}
	models := map[string]anki.Model{}

	out := make([]Card, 0, len(picked))
	for _, c := range picked {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		note, ok := byID[c.NoteID]
		if !ok {
			logger.Warn("note missing", "note", c.NoteID)
			continue
		}
		modelName := note.ModelName
		if modelName == "" {
			modelName = c.ModelName
		}
		model, ok := models[modelName]
		if !ok {
			model, err = e.Store.Model(ctx, modelName)
			if err != nil {
				logger.Warn("note type unavailable", "model", modelName, "error", err)
				continue
			}
			models[modelName] = model
		}
		info, ok := templates.Lookup(model, c.Ord)
		if !ok {
			logger.Warn("template missing", "model", modelName, "ord", c.Ord)
			continue
		}

		res := extract.Extract(note, info)
		out = append(out, Card{
			UID:    strconv.FormatInt(note.ID, 10),
			Front:  res.Front(),
			Back:   res.Back(),
			Images: e.fetchMedia(ctx, note),
		})
	}
	logger.Info("export finished", "cards", len(out), "templates", templates.Len())
	return out, nil
}

// fetchMedia transfers every file referenced by any field of note.
func (e *Exporter) fetchMedia(ctx context.Context, note anki.Note) []string {
	if e.Media == nil {
		return []string{}
	}
	var names []string
	seen := map[string]bool{}
	for _, field := range note.FieldOrder {
		for _, name := range media.ExtractNames(note.Fields[field]) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	if len(names) == 0 {
		return []string{}
	}
	return e.Media.Fetch(ctx, names)
}

func (e *Exporter) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
