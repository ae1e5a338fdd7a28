package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/five82/cranky/internal/export"
	"github.com/five82/cranky/internal/palace"
	"github.com/five82/cranky/internal/state"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultMaxPolls     = 1000
)

// ErrTimeout is reported when the service never reports completion within
// the poll ceiling.
var ErrTimeout = errors.New("scene generation took too long")

// SceneClient is the part of the palace API a run needs.
type SceneClient interface {
	GenerateScene(ctx context.Context, req palace.SceneRequest) (palace.Scene, error)
	UploadMedia(ctx context.Context, sessionID string, paths []string) error
	Status(ctx context.Context, sessionID string) (palace.Status, error)
}

var _ SceneClient = (*palace.Client)(nil)

// Job is one exported batch to turn into a scene.
type Job struct {
	Theme    string
	DeckName string
	Cards    []export.Card
	MediaDir string
}

// Result is delivered exactly once per run.
type Result struct {
	SessionID string
	Scene     palace.Scene
	Err       error
}

// StageError is a run failure tagged with the step that failed.
type StageError struct {
	Stage state.Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Title is the heading shown to the user for the failure.
func (e *StageError) Title() string {
	switch e.Stage {
	case state.StageScene:
		return "Scene Creation Error"
	case state.StagePoll:
		return "Status Poll Error"
	case state.StageTimeout:
		return "Timeout"
	default:
		return "Workflow Error"
	}
}

// Runner executes jobs against the palace service.
type Runner struct {
	Client       SceneClient
	PollInterval time.Duration
	MaxPolls     int
	Store        *state.Store
	Logger       *slog.Logger
}

// Start runs job in a new goroutine and returns a channel that receives its
// single Result. Progress is published to r.Store while it runs.
func (r *Runner) Start(ctx context.Context, job Job) <-chan Result {
	out := make(chan Result, 1)
	r.store()
	go func() {
		defer close(out)
		out <- r.Run(ctx, job)
	}()
	return out
}

// Run executes job on the calling goroutine.
func (r *Runner) Run(ctx context.Context, job Job) Result {
	store := r.store()
	logger := r.logger().With("theme", job.Theme, "deck", job.DeckName)
	store.Begin(job.Theme, len(job.Cards), r.maxPolls())

	store.SetStage(state.StageScene)
	logger.Info("creating scene", "cards", len(job.Cards))
	scene, err := r.Client.GenerateScene(ctx, palace.SceneRequest{
		Theme:    job.Theme,
		Cards:    job.Cards,
		DeckName: job.DeckName,
	})
	if err != nil {
		return r.fail(logger, state.StageScene, err)
	}
	store.SetSession(scene.SessionID)
	logger = logger.With("session", scene.SessionID)
	logger.Info("scene created")

	store.SetStage(state.StageUpload)
	r.upload(ctx, logger, scene.SessionID, job)

	store.SetStage(state.StagePoll)
	if err := r.poll(ctx, logger, scene.SessionID); err != nil {
		stage := state.StagePoll
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			stage, err = stageErr.Stage, stageErr.Err
		}
		res := r.fail(logger, stage, err)
		res.SessionID, res.Scene = scene.SessionID, scene
		return res
	}

	store.Finish(nil)
	logger.Info("scene complete")
	return Result{SessionID: scene.SessionID, Scene: scene}
}

// upload sends the batch's media files. Failures are logged and the run
// continues.
func (r *Runner) upload(ctx context.Context, logger *slog.Logger, sessionID string, job Job) {
	paths := MediaPaths(job.MediaDir, job.Cards)
	if len(paths) == 0 {
		logger.Info("no media to upload")
		return
	}
	if err := r.Client.UploadMedia(ctx, sessionID, paths); err != nil {
		logger.Warn("media upload failed", "files", len(paths), "error", err)
		return
	}
	r.store().SetUploaded(len(paths))
	logger.Info("media uploaded", "files", len(paths))
}

func (r *Runner) poll(ctx context.Context, logger *slog.Logger, sessionID string) error {
	store := r.store()
	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	for attempt := 1; attempt <= r.maxPolls(); attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		st, err := r.Client.Status(ctx, sessionID)
		if err != nil {
			var apiErr *palace.APIError
			if errors.As(err, &apiErr) {
				store.Update("", err)
				logger.Debug("status poll not ok", "attempt", attempt, "status_code", apiErr.StatusCode)
				continue
			}
			return &StageError{Stage: state.StagePoll, Err: err}
		}
		store.Update(st.Status, nil)
		logger.Debug("status", "attempt", attempt, "status", st.Status)
		if st.Complete() {
			return nil
		}
	}
	return &StageError{Stage: state.StageTimeout, Err: ErrTimeout}
}

func (r *Runner) fail(logger *slog.Logger, stage state.Stage, err error) Result {
	stageErr := &StageError{Stage: stage, Err: err}
	logger.Error("scene run failed", "stage", string(stage), "error", err)
	r.store().SetStage(stage)
	r.store().Finish(stageErr)
	return Result{Err: stageErr}
}

// MediaPaths lists the files of cards' media that exist in dir, once each,
// in card order.
func MediaPaths(dir string, cards []export.Card) []string {
	if dir == "" {
		return nil
	}
	seen := map[string]bool{}
	var paths []string
	for _, c := range cards {
		for _, name := range c.Images {
			if seen[name] {
				continue
			}
			seen[name] = true
			p := filepath.Join(dir, filepath.Base(name))
			if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
				paths = append(paths, p)
			}
		}
	}
	return paths
}

func (r *Runner) interval() time.Duration {
	if r.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return r.PollInterval
}

func (r *Runner) maxPolls() int {
	if r.MaxPolls <= 0 {
		return DefaultMaxPolls
	}
	return r.MaxPolls
}

func (r *Runner) store() *state.Store {
	if r.Store == nil {
		r.Store = &state.Store{}
	}
	return r.Store
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
