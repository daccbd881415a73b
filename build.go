package main

import (
	"fmt"
	"net/http"

	"github.com/sawzhang/daily-tech-digest/config"
	"github.com/sawzhang/daily-tech-digest/cover"
	"github.com/sawzhang/daily-tech-digest/digest"
	"github.com/sawzhang/daily-tech-digest/generator"
	"github.com/sawzhang/daily-tech-digest/metrics"
	"github.com/sawzhang/daily-tech-digest/publisher"
	"github.com/sawzhang/daily-tech-digest/store"
)

// app holds the components shared by the run, schedule and serve commands.
type app struct {
	runner  *digest.Runner
	ledger  *store.Store
	metrics *metrics.Metrics
}

func (a *app) Close() {
	if err := a.ledger.Close(); err != nil {
		logger.Printf("[WARN] closing ledger: %v", err)
	}
}

// buildApp wires every component from cfg. answerFile replaces the model with
// a saved raw answer.
func buildApp(c *config.Config, answerFile string) (*app, error) {
	pl, err := c.Planner()
	if err != nil {
		return nil, err
	}
	llm, err := buildLLM(c.LLM, answerFile)
	if err != nil {
		return nil, err
	}
	agent, err := generator.NewAgent(llm, logger)
	if err != nil {
		return nil, err
	}
	pub, err := buildPublisher(c)
	if err != nil {
		return nil, err
	}
	// covers are drawn only for publishing; a missing font is then a
	// deployment error, so fail before any run starts
	var renderer *cover.Renderer
	if pub != nil {
		if renderer, err = cover.NewRenderer(c.FontPath); err != nil {
			return nil, err
		}
	}
	ledger, err := store.Open(c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening run ledger: %w", err)
	}
	m := metrics.New()

	opts := digest.Options{
		Planner:   pl,
		Generator: agent,
		Ledger:    ledger,
		Metrics:   m,
		OutputDir: c.OutputDir,
		Style:     c.Style,
		Verbose:   verbose,
		Logger:    logger,
	}
	if pub != nil {
		opts.Cover = renderer
		opts.Publisher = pub
	}
	runner, err := digest.NewRunner(opts)
	if err != nil {
		ledger.Close()
		return nil, err
	}
	return &app{runner: runner, ledger: ledger, metrics: m}, nil
}

func buildLLM(c config.LLMConfig, answerFile string) (generator.LLMClient, error) {
	if answerFile != "" {
		infof("using saved answer %s instead of the model", answerFile)
		return generator.NewStaticLLMFromFile(answerFile)
	}
	settings := &generator.LLMSettings{
		Provider:  c.Provider,
		Model:     c.Model,
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Timeout:   c.Timeout,
		MaxTokens: c.MaxTokens,
		WebSearch: c.WebSearch,
	}
	switch c.Provider {
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 base_url（例如官方/网关地址）。
		if c.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	default:
		return nil, fmt.Errorf("llm provider %s not supported", c.Provider)
	}
}

// buildPublisher returns nil when no WeChat credentials are configured.
func buildPublisher(c *config.Config) (*publisher.Publisher, error) {
	if !c.PublishEnabled() {
		return nil, nil
	}
	pcfg := publisher.Config{
		AppID:       c.WeChat.AppID,
		AppSecret:   c.WeChat.AppSecret,
		Author:      c.WeChat.Author,
		Digest:      c.WeChat.Digest,
		OpenComment: c.WeChat.OpenComment,
		BaseURL:     c.WeChat.BaseURL,
		Timeout:     c.WeChat.Timeout,
	}
	client, err := publisher.NewWeChatClient(pcfg, &http.Client{Timeout: c.WeChat.Timeout}, logger)
	if err != nil {
		return nil, err
	}
	return publisher.New(client, pcfg, verbose, logger)
}
