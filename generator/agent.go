package generator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Agent 负责把一次日报请求发给模型并校验回答。
type Agent struct {
	llm    LLMClient
	logger *log.Logger
}

func NewAgent(llm LLMClient, logger *log.Logger) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Agent{llm: llm, logger: logger}, nil
}

// Generate 发出唯一一次模型调用；失败不在本次运行内重试。
func (a *Agent) Generate(ctx context.Context, req Request) (Result, error) {
	if len(req.Dimensions) == 0 {
		return Result{}, errors.New("generate: request has no dimensions")
	}
	prompt := BuildDigestPrompt(req)

	start := time.Now()
	a.logger.Printf("[generator] requesting digest for %s (%d dimensions)", req.Date.Format("2006-01-02"), len(req.Dimensions))
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrTransport) || errors.Is(err, ErrGeneration) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if strings.TrimSpace(raw) == "" {
		return Result{}, fmt.Errorf("%w: model returned an empty answer", ErrGeneration)
	}
	a.logger.Printf("[generator] answer received in %s (%d bytes)", time.Since(start).Round(time.Second), len(raw))

	return Parse(raw, req.Date)
}
