package digest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/sawzhang/daily-tech-digest/generator"
	"github.com/sawzhang/daily-tech-digest/publisher"
	"github.com/sawzhang/daily-tech-digest/store"
)

// Status is the terminal status of one run.
type Status string

const (
	StatusPublished        Status = "published"
	StatusDraftOnly        Status = "draft_only"
	StatusGenerated        Status = "generated"
	StatusFailedGeneration Status = "failed_generation"
	StatusFailedPublish    Status = "failed_publish"
)

// Produced reports whether the run left a digest on disk.
func (s Status) Produced() bool {
	return s != StatusFailedGeneration && s != ""
}

// Record describes one invocation from start to terminal status.
type Record struct {
	ID           string    `json:"id" yaml:"id"`
	Date         string    `json:"date" yaml:"date"`
	Status       Status    `json:"status" yaml:"status"`
	Publish      bool      `json:"publish" yaml:"publish"`
	Headline     string    `json:"headline,omitempty" yaml:"headline,omitempty"`
	Title        string    `json:"title,omitempty" yaml:"title,omitempty"`
	MarkdownPath string    `json:"markdown_path,omitempty" yaml:"markdown_path,omitempty"`
	HTMLPath     string    `json:"html_path,omitempty" yaml:"html_path,omitempty"`
	CoverPath    string    `json:"cover_path,omitempty" yaml:"cover_path,omitempty"`
	CoverMediaID string    `json:"cover_media_id,omitempty" yaml:"cover_media_id,omitempty"`
	DraftID      string    `json:"draft_id,omitempty" yaml:"draft_id,omitempty"`
	PublishID    string    `json:"publish_id,omitempty" yaml:"publish_id,omitempty"`
	Outcome      string    `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Error        string    `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt    time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt   time.Time `json:"finished_at" yaml:"finished_at"`

	Result  generator.Result   `json:"-" yaml:"-"`
	Attempt *publisher.Attempt `json:"-" yaml:"-"`
}

// Paths lists the artifact files this run wrote.
func (r *Record) Paths() []string {
	var paths []string
	for _, p := range []string{r.MarkdownPath, r.HTMLPath, r.CoverPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}

func (r *Record) applyAttempt(a *publisher.Attempt) {
	if a == nil {
		return
	}
	r.Attempt = a
	r.CoverMediaID = a.CoverMediaID
	r.DraftID = a.DraftID
	r.PublishID = a.PublishID
	r.Outcome = string(a.Outcome)
}

func (r *Record) ledgerRun() store.Run {
	return store.Run{
		ID:           r.ID,
		Date:         r.Date,
		Status:       string(r.Status),
		Publish:      r.Publish,
		MarkdownPath: r.MarkdownPath,
		HTMLPath:     r.HTMLPath,
		CoverPath:    r.CoverPath,
		CoverMediaID: r.CoverMediaID,
		DraftID:      r.DraftID,
		PublishID:    r.PublishID,
		Outcome:      r.Outcome,
		Error:        r.Error,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
}

// writeSidecar stores the record as YAML next to the artifacts.
func writeSidecar(dir string, r *Record) (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encoding run record: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("tech_digest_%s.run.yaml", r.Date))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing run record: %w", err)
	}
	return path, nil
}

// ReadSidecar loads a record written by a previous run.
func ReadSidecar(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding run record %s: %w", path, err)
	}
	return &r, nil
}
