// Package digest sequences one daily run: plan, generate, persist, and
// optionally render a cover and publish.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sawzhang/daily-tech-digest/cover"
	"github.com/sawzhang/daily-tech-digest/generator"
	"github.com/sawzhang/daily-tech-digest/metrics"
	"github.com/sawzhang/daily-tech-digest/planner"
	"github.com/sawzhang/daily-tech-digest/publisher"
	"github.com/sawzhang/daily-tech-digest/store"
)

// Generator produces a parsed digest from a request.
type Generator interface {
	Generate(ctx context.Context, req generator.Request) (generator.Result, error)
}

// CoverRenderer draws the article cover.
type CoverRenderer interface {
	Render(date time.Time, headline string) (cover.Image, error)
}

// Publisher pushes a digest to the content platform.
type Publisher interface {
	Publish(ctx context.Context, c publisher.Content) (*publisher.Attempt, error)
}

// Ledger persists run records.
type Ledger interface {
	SaveRun(ctx context.Context, r store.Run) error
}

// Options wires a Runner. Publisher and Ledger may be nil; Cover is needed
// only with a Publisher.
type Options struct {
	Planner   *planner.Planner
	Generator Generator
	Cover     CoverRenderer
	Publisher Publisher
	Ledger    Ledger
	Metrics   *metrics.Metrics
	OutputDir string
	Style     string
	Verbose   bool
	Logger    *log.Logger
	Now       func() time.Time
}

// RunOptions are the per-invocation inputs.
type RunOptions struct {
	// Date of the digest; zero means today.
	Date time.Time
	// Publish requests cover rendering and the publish sequence.
	Publish bool
}

// Runner owns every entity of a run for its duration. Runs are serialized.
type Runner struct {
	opts Options
	mu   sync.Mutex
}

func NewRunner(opts Options) (*Runner, error) {
	if opts.Planner == nil {
		return nil, errors.New("digest: planner is required")
	}
	if opts.Generator == nil {
		return nil, errors.New("digest: generator is required")
	}
	if opts.Publisher != nil && opts.Cover == nil {
		return nil, errors.New("digest: cover renderer is required for publishing")
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{opts: opts}, nil
}

func (r *Runner) infof(format string, args ...interface{}) {
	if !r.opts.Verbose {
		return
	}
	r.opts.Logger.Printf("[INFO] "+format, args...)
}

// Title is the article title for a digest date, e.g. "Tech Digest 10.18".
func Title(date time.Time) string {
	return "Tech Digest " + date.Format("01.02")
}

// Run executes one digest run. The returned Record is non-nil unless the run
// could not start; the error is non-nil for failed_generation and
// failed_publish.
func (r *Runner) Run(ctx context.Context, ro RunOptions) (*Record, error) {
	if !r.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer r.mu.Unlock()

	started := r.opts.Now()
	lock, err := acquireLock(r.opts.OutputDir, started)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.release(); err != nil {
			r.opts.Logger.Printf("[WARN] releasing run lock: %v", err)
		}
	}()

	date := ro.Date
	if date.IsZero() {
		date = started
	}
	rec := &Record{
		ID:        uuid.NewString(),
		Date:      date.Format("2006-01-02"),
		Publish:   ro.Publish,
		StartedAt: started,
	}
	r.opts.Logger.Printf("[INFO] run %s started for %s (publish=%t)", rec.ID, rec.Date, ro.Publish)

	runErr := r.run(ctx, ro, date, rec)
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	rec.FinishedAt = r.opts.Now()

	if rec.Status.Produced() {
		if path, err := writeSidecar(r.opts.OutputDir, rec); err != nil {
			r.opts.Logger.Printf("[WARN] %v", err)
		} else {
			r.infof("run record written to %s", path)
		}
	}
	if r.opts.Ledger != nil {
		// the ledger write must survive a cancelled run context
		if err := r.opts.Ledger.SaveRun(context.WithoutCancel(ctx), rec.ledgerRun()); err != nil {
			r.opts.Logger.Printf("[WARN] saving run to ledger: %v", err)
		}
	}
	r.opts.Metrics.ObserveRun(string(rec.Status), rec.FinishedAt, rec.Status.Produced())

	if runErr != nil {
		r.opts.Logger.Printf("[ERROR] run %s finished with status %s: %v", rec.ID, rec.Status, runErr)
	} else {
		r.opts.Logger.Printf("[INFO] run %s finished with status %s", rec.ID, rec.Status)
	}
	return rec, runErr
}

func (r *Runner) run(ctx context.Context, ro RunOptions, date time.Time, rec *Record) error {
	req := generator.Request{
		Dimensions: r.opts.Planner.Plan(),
		Date:       date,
		Style:      r.opts.Style,
	}
	genStart := time.Now()
	res, err := r.opts.Generator.Generate(ctx, req)
	r.opts.Metrics.ObserveGeneration(time.Since(genStart))
	if err != nil {
		rec.Status = StatusFailedGeneration
		return fmt.Errorf("generate digest: %w", err)
	}
	rec.Result = res

	if err := r.persist(rec); err != nil {
		rec.Status = StatusFailedGeneration
		return err
	}
	rec.Headline, _ = extractHeadline(res.Markdown)
	rec.Title = Title(date)
	rec.Status = StatusGenerated

	if !ro.Publish {
		return nil
	}
	if r.opts.Publisher == nil {
		r.opts.Logger.Printf("[WARN] publishing requested but no platform credentials are configured; skipping")
		return nil
	}
	return r.publish(ctx, date, rec)
}

// persist writes both reports, overwriting an earlier run for the same date.
func (r *Runner) persist(rec *Record) error {
	base := filepath.Join(r.opts.OutputDir, "tech_digest_"+rec.Date)
	mdPath, htmlPath := base+".md", base+".html"
	if err := os.WriteFile(mdPath, []byte(rec.Result.Markdown), 0o644); err != nil {
		return fmt.Errorf("writing markdown report: %w", err)
	}
	rec.MarkdownPath = mdPath
	if err := os.WriteFile(htmlPath, []byte(rec.Result.HTML), 0o644); err != nil {
		// both reports or neither
		if rmErr := os.Remove(mdPath); rmErr != nil {
			r.opts.Logger.Printf("[WARN] removing partial markdown report: %v", rmErr)
		}
		rec.MarkdownPath = ""
		return fmt.Errorf("writing html report: %w", err)
	}
	rec.HTMLPath = htmlPath
	r.infof("digest saved to %s and %s", mdPath, htmlPath)
	return nil
}

func (r *Runner) publish(ctx context.Context, date time.Time, rec *Record) error {
	_, summary := extractHeadline(rec.Result.Markdown)

	img, err := r.opts.Cover.Render(date, rec.Headline)
	if err != nil {
		rec.Status = StatusFailedPublish
		return fmt.Errorf("render cover: %w", err)
	}
	coverPath := filepath.Join(r.opts.OutputDir, fmt.Sprintf("cover_%s.jpg", rec.Date))
	if err := os.WriteFile(coverPath, img.Data, 0o644); err != nil {
		r.opts.Logger.Printf("[WARN] writing cover file: %v", err)
	} else {
		rec.CoverPath = coverPath
	}

	attempt, err := r.opts.Publisher.Publish(ctx, publisher.Content{
		Title:   rec.Title,
		Digest:  summary,
		HTML:    rec.Result.HTML,
		Cover:   img,
		BaseDir: r.opts.OutputDir,
	})
	rec.applyAttempt(attempt)
	if attempt != nil {
		r.opts.Metrics.ObservePublish(string(attempt.Outcome))
	}
	if err != nil {
		rec.Status = StatusFailedPublish
		if rec.DraftID != "" {
			r.opts.Logger.Printf("[WARN] draft %s was created; finish publishing it manually", rec.DraftID)
		}
		return fmt.Errorf("publish digest: %w", err)
	}
	if attempt == nil {
		rec.Status = StatusFailedPublish
		return errors.New("publish digest: publisher returned no attempt")
	}

	switch attempt.Outcome {
	case publisher.OutcomePublished:
		rec.Status = StatusPublished
	case publisher.OutcomeDraftOnly:
		rec.Status = StatusDraftOnly
		r.opts.Logger.Printf("[WARN] publish API not authorized; draft %s awaits manual publishing", rec.DraftID)
	default:
		rec.Status = StatusFailedPublish
		return fmt.Errorf("publish digest: unexpected outcome %s", attempt.Outcome)
	}
	return nil
}
