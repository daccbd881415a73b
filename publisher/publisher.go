// Package publisher uploads a generated digest to a WeChat Official Account:
// cover, in-article images, draft, then a publish attempt.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"

	"github.com/sawzhang/daily-tech-digest/cover"
)

var (
	// ErrTransport marks network or authentication failures talking to the platform.
	ErrTransport = errors.New("platform transport error")
	// ErrAuthorizationDenied means the account may create drafts but not publish them.
	ErrAuthorizationDenied = errors.New("publish authorization denied")
)

// State is the last step an attempt completed. States only move forward.
type State string

const (
	StateStart              State = "START"
	StateCoverUploaded      State = "COVER_UPLOADED"
	StateBodyImagesUploaded State = "BODY_IMAGES_UPLOADED"
	StateDraftCreated       State = "DRAFT_CREATED"
	StatePublished          State = "PUBLISHED"
	StateDraftOnly          State = "DRAFT_ONLY"
)

// Outcome is the terminal result of an attempt.
type Outcome string

const (
	OutcomePublished Outcome = "PUBLISHED"
	OutcomeDraftOnly Outcome = "DRAFT_ONLY"
	OutcomeFailed    Outcome = "FAILED"
)

// Article is the draft submitted to the platform.
type Article struct {
	Title        string
	Author       string
	Digest       string
	HTML         string
	ThumbMediaID string
	OpenComment  bool
}

// Platform is the content API surface the publish sequence needs.
type Platform interface {
	UploadCover(ctx context.Context, filename string, data []byte) (string, error)
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
	CreateDraft(ctx context.Context, art Article) (string, error)
	SubmitPublish(ctx context.Context, draftID string) (string, error)
}

// Content is one digest ready to publish. Relative <img> sources in HTML are
// resolved against BaseDir.
type Content struct {
	Title   string
	Digest  string
	HTML    string
	Cover   cover.Image
	BaseDir string
}

// Attempt records how far one publish run got. Once Outcome is set it is final.
type Attempt struct {
	CoverMediaID  string
	BodyImageURLs map[string]string
	DraftID       string
	PublishID     string
	State         State
	Outcome       Outcome
	Err           error
}

func (a *Attempt) advance(s State) {
	a.State = s
}

func (a *Attempt) fail(err error) (*Attempt, error) {
	a.Outcome = OutcomeFailed
	a.Err = err
	return a, err
}

// Publisher drives the publish sequence against a Platform.
type Publisher struct {
	platform Platform
	cfg      Config
	verbose  bool
	logger   *log.Logger
}

func New(platform Platform, cfg Config, verbose bool, logger *log.Logger) (*Publisher, error) {
	if platform == nil {
		return nil, errors.New("publisher: platform is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{platform: platform, cfg: cfg, verbose: verbose, logger: logger}, nil
}

func (p *Publisher) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// Publish runs cover → body images → draft → publish once. It never retries.
// The returned Attempt is always non-nil; the error is non-nil only for a
// FAILED outcome, and a draft id created before the failure is kept.
func (p *Publisher) Publish(ctx context.Context, c Content) (*Attempt, error) {
	a := &Attempt{State: StateStart, BodyImageURLs: map[string]string{}}

	if len(c.Cover.Data) == 0 {
		return a.fail(errors.New("cover image is empty"))
	}
	refs := localImageRefs(c.HTML)
	paths := make(map[string]string, len(refs))
	for _, ref := range refs {
		path, err := resolveImagePath(ref, c.BaseDir)
		if err != nil {
			return a.fail(err)
		}
		paths[ref] = path
	}
	mediaID, err := p.platform.UploadCover(ctx, "cover."+coverExt(c.Cover), c.Cover.Data)
	if err != nil {
		return a.fail(fmt.Errorf("upload cover: %w", err))
	}
	a.CoverMediaID = mediaID
	a.advance(StateCoverUploaded)
	p.infof("Uploaded cover -> media_id=%s", mediaID)

	// Upload every local image before touching the HTML so a draft never
	// carries a dangling local reference.
	for _, ref := range refs {
		path := paths[ref]
		data, err := os.ReadFile(path)
		if err != nil {
			return a.fail(fmt.Errorf("read body image %s: %w", ref, err))
		}
		url, err := p.platform.UploadImage(ctx, filepath.Base(path), data)
		if err != nil {
			return a.fail(fmt.Errorf("upload body image %s: %w", ref, err))
		}
		a.BodyImageURLs[ref] = url
		p.infof("Uploaded body image %s -> %s", ref, url)
	}
	html := rewriteImageRefs(c.HTML, a.BodyImageURLs)
	a.advance(StateBodyImagesUploaded)

	html = normalizeForWeChat(html)
	p.infof("Normalized HTML for WeChat compatibility")

	digest := c.Digest
	if digest == "" {
		digest = p.cfg.Digest
	}
	draftID, err := p.platform.CreateDraft(ctx, Article{
		Title:        c.Title,
		Author:       p.cfg.Author,
		Digest:       digest,
		HTML:         html,
		ThumbMediaID: mediaID,
		OpenComment:  p.cfg.OpenComment,
	})
	if err != nil {
		return a.fail(fmt.Errorf("create draft: %w", err))
	}
	a.DraftID = draftID
	a.advance(StateDraftCreated)
	p.logger.Printf("[publisher] draft created: media_id=%s", draftID)

	publishID, err := p.platform.SubmitPublish(ctx, draftID)
	switch {
	case errors.Is(err, ErrAuthorizationDenied):
		a.Outcome = OutcomeDraftOnly
		a.advance(StateDraftOnly)
		p.logger.Printf("[publisher] account cannot auto-publish; draft %s left for manual publishing", draftID)
		return a, nil
	case err != nil:
		p.logger.Printf("[publisher] publish failed, draft %s kept for recovery: %v", draftID, err)
		return a.fail(fmt.Errorf("submit publish: %w", err))
	}
	a.PublishID = publishID
	a.Outcome = OutcomePublished
	a.advance(StatePublished)
	p.logger.Printf("[publisher] published: publish_id=%s", publishID)
	return a, nil
}

func coverExt(img cover.Image) string {
	if img.Format == "" || img.Format == "jpeg" {
		return "jpg"
	}
	return img.Format
}

// resolveImagePath maps a body image reference into baseDir. Only relative
// file paths that stay inside baseDir are accepted.
func resolveImagePath(ref, baseDir string) (string, error) {
	if u, err := url.Parse(ref); err != nil || u.Scheme != "" {
		return "", fmt.Errorf("image reference %q is not a relative file path", ref)
	}
	if !filepath.IsLocal(ref) {
		return "", fmt.Errorf("image reference %q escapes the output directory", ref)
	}
	return filepath.Join(baseDir, ref), nil
}
