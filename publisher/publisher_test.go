package publisher

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawzhang/daily-tech-digest/cover"
)

type fakePlatform struct {
	coverErr   error
	imageErr   map[string]error
	draftErr   error
	publishErr error

	calls    []string
	uploaded map[string][]byte
	draft    *Article
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{imageErr: map[string]error{}, uploaded: map[string][]byte{}}
}

func (f *fakePlatform) UploadCover(_ context.Context, name string, data []byte) (string, error) {
	f.calls = append(f.calls, "cover")
	if f.coverErr != nil {
		return "", f.coverErr
	}
	f.uploaded[name] = data
	return "thumb-1", nil
}

func (f *fakePlatform) UploadImage(_ context.Context, name string, data []byte) (string, error) {
	f.calls = append(f.calls, "image:"+name)
	if err := f.imageErr[name]; err != nil {
		return "", err
	}
	f.uploaded[name] = data
	return "https://mmbiz.qpic.cn/" + name, nil
}

func (f *fakePlatform) CreateDraft(_ context.Context, art Article) (string, error) {
	f.calls = append(f.calls, "draft")
	if f.draftErr != nil {
		return "", f.draftErr
	}
	f.draft = &art
	return "draft-1", nil
}

func (f *fakePlatform) SubmitPublish(_ context.Context, draftID string) (string, error) {
	f.calls = append(f.calls, "publish:"+draftID)
	if f.publishErr != nil {
		return "", f.publishErr
	}
	return "pub-1", nil
}

func testPublisher(t *testing.T, platform Platform) *Publisher {
	t.Helper()
	p, err := New(platform, Config{Author: "Tech Digest", Digest: "每日技术趋势精选", OpenComment: true}, true, log.New(io.Discard, "", 0))
	require.NoError(t, err)
	return p
}

func testContent(html, dir string) Content {
	return Content{
		Title:   "Tech Digest 10.18",
		HTML:    html,
		Cover:   cover.Image{Data: []byte("jpeg-bytes"), Width: 900, Height: 383, Format: "jpeg"},
		BaseDir: dir,
	}
}

func TestPublishPublished(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chart.png"), []byte("png"), 0o644))
	f := newFakePlatform()

	html := `<div><h2>头条</h2><img src="chart.png"><img src="https://example.com/x.png"><img src="chart.png"></div>`
	a, err := testPublisher(t, f).Publish(context.Background(), testContent(html, dir))
	require.NoError(t, err)

	assert.Equal(t, OutcomePublished, a.Outcome)
	assert.Equal(t, StatePublished, a.State)
	assert.Equal(t, "thumb-1", a.CoverMediaID)
	assert.Equal(t, "draft-1", a.DraftID)
	assert.Equal(t, "pub-1", a.PublishID)
	assert.Equal(t, map[string]string{"chart.png": "https://mmbiz.qpic.cn/chart.png"}, a.BodyImageURLs)
	assert.Equal(t, []string{"cover", "image:chart.png", "draft", "publish:draft-1"}, f.calls)

	require.NotNil(t, f.draft)
	assert.Equal(t, "thumb-1", f.draft.ThumbMediaID)
	assert.Equal(t, "Tech Digest", f.draft.Author)
	assert.Equal(t, "每日技术趋势精选", f.draft.Digest)
	assert.True(t, f.draft.OpenComment)
	assert.NotContains(t, f.draft.HTML, `src="chart.png"`)
	assert.Contains(t, f.draft.HTML, `src="https://mmbiz.qpic.cn/chart.png"`)
	assert.Contains(t, f.draft.HTML, `src="https://example.com/x.png"`)
	assert.NotContains(t, f.draft.HTML, "<h2>")
	assert.Equal(t, []byte("jpeg-bytes"), f.uploaded["cover.jpg"])
}

func TestPublishAuthorizationDeniedIsDraftOnly(t *testing.T) {
	f := newFakePlatform()
	f.publishErr = errors.Join(ErrAuthorizationDenied, &APIError{Op: "submit publish", Code: 48001, Msg: "api unauthorized"})

	a, err := testPublisher(t, f).Publish(context.Background(), testContent("<div>x</div>", t.TempDir()))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDraftOnly, a.Outcome)
	assert.Equal(t, StateDraftOnly, a.State)
	assert.Equal(t, "draft-1", a.DraftID)
	assert.Empty(t, a.PublishID)
	assert.Nil(t, a.Err)
}

func TestPublishOtherPublishFailureKeepsDraft(t *testing.T) {
	f := newFakePlatform()
	f.publishErr = &APIError{Op: "submit publish", Code: 45009, Msg: "reach max api daily quota limit"}

	a, err := testPublisher(t, f).Publish(context.Background(), testContent("<div>x</div>", t.TempDir()))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, a.Outcome)
	assert.Equal(t, StateDraftCreated, a.State)
	assert.Equal(t, "draft-1", a.DraftID)
	assert.Equal(t, err, a.Err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 45009, apiErr.Code)
}

func TestPublishBodyImageFailureSkipsDraft(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.png"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.png"), []byte("b"), 0o644))
	f := newFakePlatform()
	f.imageErr["b.png"] = errors.New("upload failed")

	a, err := testPublisher(t, f).Publish(context.Background(), testContent(`<img src="a.png"><img src="b.png">`, dir))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, a.Outcome)
	assert.Equal(t, StateCoverUploaded, a.State)
	assert.Empty(t, a.DraftID)
	assert.NotContains(t, f.calls, "draft")
}

func TestPublishMissingLocalImageSkipsDraft(t *testing.T) {
	f := newFakePlatform()

	a, err := testPublisher(t, f).Publish(context.Background(), testContent(`<img src="gone.png">`, t.TempDir()))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, a.Outcome)
	assert.NotContains(t, f.calls, "draft")
}

func TestPublishRejectsImageOutsideBaseDir(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "output")
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "digest.yaml"), []byte("app_secret: s3cret"), 0o644))
	abs := filepath.Join(root, "digest.yaml")

	for _, ref := range []string{"../digest.yaml", "sub/../../digest.yaml", abs, "file://" + abs, "file:digest.yaml"} {
		t.Run(ref, func(t *testing.T) {
			f := newFakePlatform()
			a, err := testPublisher(t, f).Publish(context.Background(), testContent(`<p>x</p><img src="`+ref+`">`, dir))
			require.Error(t, err)
			assert.Equal(t, OutcomeFailed, a.Outcome)
			assert.Equal(t, StateStart, a.State)
			assert.Empty(t, f.calls)
			assert.Empty(t, f.uploaded)
		})
	}
}

func TestResolveImagePath(t *testing.T) {
	got, err := resolveImagePath("img/chart.png", "/srv/output")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/output", "img", "chart.png"), got)

	_, err = resolveImagePath("/etc/hostname", "/srv/output")
	assert.ErrorContains(t, err, "escapes the output directory")
	_, err = resolveImagePath("file:///etc/hostname", "/srv/output")
	assert.ErrorContains(t, err, "not a relative file path")
}

func TestPublishCoverFailure(t *testing.T) {
	f := newFakePlatform()
	f.coverErr = errors.Join(ErrTransport, errors.New("dial tcp: timeout"))

	a, err := testPublisher(t, f).Publish(context.Background(), testContent("<div>x</div>", t.TempDir()))
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, OutcomeFailed, a.Outcome)
	assert.Equal(t, StateStart, a.State)
	assert.Equal(t, []string{"cover"}, f.calls)
}

func TestPublishEmptyCover(t *testing.T) {
	f := newFakePlatform()
	c := testContent("<div>x</div>", t.TempDir())
	c.Cover = cover.Image{}

	a, err := testPublisher(t, f).Publish(context.Background(), c)
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, a.Outcome)
	assert.Empty(t, f.calls)
}

func TestPublishDraftFailure(t *testing.T) {
	f := newFakePlatform()
	f.draftErr = &APIError{Op: "add draft", Code: 40007, Msg: "invalid media_id"}

	a, err := testPublisher(t, f).Publish(context.Background(), testContent("<div>x</div>", t.TempDir()))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, a.Outcome)
	assert.Equal(t, StateBodyImagesUploaded, a.State)
	assert.NotContains(t, f.calls, "publish:draft-1")
}

func TestPublishPrefersContentDigest(t *testing.T) {
	f := newFakePlatform()
	c := testContent("<div>x</div>", t.TempDir())
	c.Digest = "今天聊聊 Claude"

	_, err := testPublisher(t, f).Publish(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, "今天聊聊 Claude", f.draft.Digest)
}
