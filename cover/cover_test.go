package cover

import (
	"bytes"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

var day = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

// latinRenderer uses Go Regular, which lacks CJK glyphs; NewRenderer refuses it.
func latinRenderer(t *testing.T) *Renderer {
	t.Helper()
	f, err := parseFont(goregular.TTF)
	require.NoError(t, err)
	return &Renderer{font: f}
}

func TestRenderIsDeterministic(t *testing.T) {
	r := latinRenderer(t)

	a, err := r.Render(day, "Tech Digest")
	require.NoError(t, err)
	b, err := r.Render(day, "Tech Digest")
	require.NoError(t, err)

	assert.Equal(t, a.Data, b.Data)
	assert.Equal(t, Width, a.Width)
	assert.Equal(t, Height, a.Height)
	assert.Equal(t, "jpeg", a.Format)
}

func TestRenderDependsOnInputs(t *testing.T) {
	r := latinRenderer(t)

	a, err := r.Render(day, "Tech Digest")
	require.NoError(t, err)
	b, err := r.Render(day.AddDate(0, 0, 1), "Tech Digest")
	require.NoError(t, err)
	c, err := r.Render(day, "Something else")
	require.NoError(t, err)

	assert.NotEqual(t, a.Data, b.Data)
	assert.NotEqual(t, a.Data, c.Data)
}

func TestRenderProducesValidJPEG(t *testing.T) {
	r := latinRenderer(t)

	img, err := r.Render(day, "A very long headline that certainly does not fit on a nine hundred pixel wide card at all")
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, Width, cfg.Width)
	assert.Equal(t, Height, cfg.Height)
}

func TestNewRendererFromFile(t *testing.T) {
	const wqy = "/usr/share/fonts/truetype/wqy/wqy-zenhei.ttc"
	if _, err := os.Stat(wqy); err != nil {
		t.Skip("wqy-zenhei not installed")
	}
	r, err := NewRenderer(wqy)
	require.NoError(t, err)

	face, err := r.newFace(headlineSize)
	require.NoError(t, err)
	defer face.Close()
	assert.Empty(t, missingGlyphs(face, day.Format("2006年01月02日")+"今日头条：Anthropic 发布新模型"))

	_, err = r.Render(day, "今日头条：Anthropic 发布新模型")
	assert.NoError(t, err)
}

func TestNewRendererRejectsFontWithoutCJK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0o644))

	_, err := NewRenderer(path)
	require.ErrorIs(t, err, ErrAssetMissing)
	assert.Contains(t, err.Error(), "年月日")

	_, err = NewRenderer("")
	assert.ErrorIs(t, err, ErrAssetMissing)
}

func TestGlyphCoverage(t *testing.T) {
	r := latinRenderer(t)
	face, err := r.newFace(dateSize)
	require.NoError(t, err)
	defer face.Close()

	assert.Empty(t, missingGlyphs(face, "Tech Digest 10.18"))
	assert.Equal(t, []rune("年月日"), missingGlyphs(face, day.Format("2006年01月02日")))
	assert.Equal(t, "20261018", dropMissing(face, day.Format("2006年01月02日")))
	assert.Equal(t, "Claude  launch", dropMissing(face, "Claude 🚀 launch"))
}

func TestNewRendererAssetMissing(t *testing.T) {
	_, err := NewRenderer(filepath.Join(t.TempDir(), "nope.ttc"))
	assert.ErrorIs(t, err, ErrAssetMissing)

	garbage := filepath.Join(t.TempDir(), "bad.ttf")
	require.NoError(t, os.WriteFile(garbage, []byte("not a font"), 0o644))
	_, err = NewRenderer(garbage)
	assert.ErrorIs(t, err, ErrAssetMissing)
}
