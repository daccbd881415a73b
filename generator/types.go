package generator

import (
	"errors"
	"time"

	"github.com/sawzhang/daily-tech-digest/planner"
)

var (
	// ErrTransport marks network or authentication failures talking to the model.
	ErrTransport = errors.New("generation transport error")
	// ErrGeneration marks an answer that came back empty, refused or filtered.
	ErrGeneration = errors.New("generation failed")
	// ErrMalformedOutput marks an answer missing a required tagged section.
	ErrMalformedOutput = errors.New("malformed generation output")
)

// Request 描述一次日报生成请求，每次运行构造一次，之后不再修改。
type Request struct {
	Dimensions []planner.Dimension
	Date       time.Time
	Style      string
}

// Result 是模型一次回答中解析出的两份日报。
type Result struct {
	Markdown string
	HTML     string
	Date     time.Time
}
