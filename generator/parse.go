package generator

import (
	"fmt"
	"strings"
	"time"
)

var allMarkers = []string{MarkdownStart, MarkdownEnd, HTMLStart, HTMLEnd}

// Parse extracts the markdown and WeChat HTML sections from a raw answer.
// Text outside the markers is discarded. When a section appears more than once
// the first complete pair wins. A section that is missing, empty, closed before
// it is opened, or that contains another marker fails with ErrMalformedOutput.
func Parse(raw string, date time.Time) (Result, error) {
	md, err := section(raw, MarkdownStart, MarkdownEnd)
	if err != nil {
		return Result{}, err
	}
	html, err := section(raw, HTMLStart, HTMLEnd)
	if err != nil {
		return Result{}, err
	}
	return Result{Markdown: md, HTML: html, Date: date}, nil
}

func section(raw, start, end string) (string, error) {
	s := strings.Index(raw, start)
	if s < 0 {
		if strings.Contains(raw, end) {
			return "", fmt.Errorf("%w: %s appears without %s", ErrMalformedOutput, end, start)
		}
		return "", fmt.Errorf("%w: %s section missing", ErrMalformedOutput, start)
	}
	if e := strings.Index(raw, end); e >= 0 && e < s {
		return "", fmt.Errorf("%w: %s appears before %s", ErrMalformedOutput, end, start)
	}

	body := raw[s+len(start):]
	e := strings.Index(body, end)
	if e < 0 {
		return "", fmt.Errorf("%w: %s is never closed", ErrMalformedOutput, start)
	}
	body = body[:e]

	for _, m := range allMarkers {
		if strings.Contains(body, m) {
			return "", fmt.Errorf("%w: %s section contains %s", ErrMalformedOutput, start, m)
		}
	}

	body = strings.TrimSpace(body)
	if body == "" {
		return "", fmt.Errorf("%w: %s section is empty", ErrMalformedOutput, start)
	}
	return body, nil
}
