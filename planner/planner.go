// Package planner turns the static keyword table into the named search
// dimensions carried by one digest generation request.
package planner

import (
	"errors"
	"fmt"
	"strings"
)

// SiteFilter scopes social-media dimensions to X/Twitter results.
const SiteFilter = "site:x.com OR site:twitter.com"

// Keywords 是启动时加载一次的关键词表（分组名 -> 关键词），运行期只读。
type Keywords map[string][]string

// DimensionConfig selects a keyword group and caps how many of its terms are used.
// MaxTerms <= 0 means every configured term.
type DimensionConfig struct {
	Key      string
	Name     string
	MaxTerms int
}

// Dimension is one named query group of a digest request. MaxTerms is the
// configured cap, zero when uncapped.
type Dimension struct {
	Name     string
	Terms    []string
	MaxTerms int
}

// Query renders the dimension as a web search query for the given year.
func (d Dimension) Query(year int) string {
	return fmt.Sprintf("(%s) latest news %d %s", strings.Join(d.Terms, " OR "), year, SiteFilter)
}

// Planner holds the validated dimension set. It is built once at startup.
type Planner struct {
	dims []Dimension
}

// New validates cfgs against kw and freezes the resulting dimensions.
// Terms are copied so later changes to kw never reach the planner.
func New(kw Keywords, cfgs []DimensionConfig) (*Planner, error) {
	if len(cfgs) == 0 {
		return nil, errors.New("planner: at least one dimension is required")
	}
	seen := make(map[string]bool, len(cfgs))
	dims := make([]Dimension, 0, len(cfgs))
	for _, c := range cfgs {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			name = c.Key
		}
		if name == "" {
			return nil, errors.New("planner: dimension needs a key or name")
		}
		if seen[name] {
			return nil, fmt.Errorf("planner: duplicate dimension %q", name)
		}
		seen[name] = true

		terms := nonEmpty(kw[c.Key])
		if len(terms) == 0 {
			return nil, fmt.Errorf("planner: dimension %q has no terms (keyword group %q)", name, c.Key)
		}
		n := c.MaxTerms
		if n <= 0 || n > len(terms) {
			n = len(terms)
		}
		dims = append(dims, Dimension{
			Name:     name,
			Terms:    append([]string(nil), terms[:n]...),
			MaxTerms: c.MaxTerms,
		})
	}
	return &Planner{dims: dims}, nil
}

// Plan returns the dimensions in configuration order. The caller gets its own copy.
func (p *Planner) Plan() []Dimension {
	out := make([]Dimension, len(p.dims))
	for i, d := range p.dims {
		d.Terms = append([]string(nil), d.Terms...)
		out[i] = d
	}
	return out
}

func nonEmpty(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
