package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		kw     Keywords
		cfgs   []DimensionConfig
		errMsg string
	}{
		{
			name:   "no dimensions",
			kw:     DefaultKeywords(),
			errMsg: "at least one dimension",
		},
		{
			name:   "unknown keyword group",
			kw:     DefaultKeywords(),
			cfgs:   []DimensionConfig{{Key: "missing", Name: "x"}},
			errMsg: "has no terms",
		},
		{
			name:   "blank terms only",
			kw:     Keywords{"blank": {"", "  "}},
			cfgs:   []DimensionConfig{{Key: "blank"}},
			errMsg: "has no terms",
		},
		{
			name: "duplicate names",
			kw:   DefaultKeywords(),
			cfgs: []DimensionConfig{
				{Key: "models", Name: "same"},
				{Key: "companies", Name: "same"},
			},
			errMsg: "duplicate dimension",
		},
		{
			name: "name defaults to key",
			kw:   DefaultKeywords(),
			cfgs: []DimensionConfig{{Key: "models"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.kw, tt.cfgs)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, p.Plan())
		})
	}
}

func TestPlanDefaultsRespectCaps(t *testing.T) {
	p, err := New(DefaultKeywords(), DefaultDimensions())
	require.NoError(t, err)

	dims := p.Plan()
	require.Len(t, dims, 5)
	for _, d := range dims {
		assert.NotEmpty(t, d.Terms, d.Name)
		if d.MaxTerms > 0 {
			assert.LessOrEqual(t, len(d.Terms), d.MaxTerms, d.Name)
		}
	}
	assert.Zero(t, dims[0].MaxTerms, "breaking news is uncapped")
	assert.Equal(t, 6, dims[3].MaxTerms)

	assert.Equal(t, "AI突发新闻", dims[0].Name)
	assert.Len(t, dims[0].Terms, 7)
	assert.Equal(t, []string{"Claude Code", "Claude Cowork", "Cursor", "GitHub Copilot", "Windsurf", "v0"}, dims[3].Terms)
}

func TestPlanTruncatesInConfigOrder(t *testing.T) {
	kw := Keywords{"k": {"a", "b", "c", "d"}}
	p, err := New(kw, []DimensionConfig{{Key: "k", Name: "K", MaxTerms: 2}})
	require.NoError(t, err)

	dims := p.Plan()
	assert.Equal(t, []string{"a", "b"}, dims[0].Terms)
	assert.Equal(t, 2, dims[0].MaxTerms)
}

func TestPlanKeepsConfiguredCap(t *testing.T) {
	kw := Keywords{"k": {"a", "b"}}
	p, err := New(kw, []DimensionConfig{{Key: "k", MaxTerms: 5}, {Key: "k", Name: "all"}})
	require.NoError(t, err)

	dims := p.Plan()
	assert.Equal(t, []string{"a", "b"}, dims[0].Terms)
	assert.Equal(t, 5, dims[0].MaxTerms, "cap is the configured value, not the term count")
	assert.Zero(t, dims[1].MaxTerms)
}

func TestPlanIsIsolatedFromInputs(t *testing.T) {
	kw := Keywords{"breaking_news": {"Anthropic launches"}}
	p, err := New(kw, []DimensionConfig{{Key: "breaking_news"}})
	require.NoError(t, err)

	kw["breaking_news"][0] = "changed"
	first := p.Plan()
	first[0].Terms[0] = "mutated"

	assert.Equal(t, []string{"Anthropic launches"}, p.Plan()[0].Terms)
}

func TestDimensionQuery(t *testing.T) {
	d := Dimension{Name: "n", Terms: []string{"OpenAI", "Anthropic"}}
	assert.Equal(t, "(OpenAI OR Anthropic) latest news 2026 site:x.com OR site:twitter.com", d.Query(2026))
}
