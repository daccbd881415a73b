// Package config loads digest settings from a YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sawzhang/daily-tech-digest/planner"
)

// EnvPrefix prefixes environment overrides, e.g. DIGEST_WECHAT_APP_SECRET.
const EnvPrefix = "DIGEST"

// Config is the full runtime configuration.
type Config struct {
	LLM        LLMConfig           `mapstructure:"llm"`
	WeChat     WeChatConfig        `mapstructure:"wechat"`
	OutputDir  string              `mapstructure:"output_dir"`
	FontPath   string              `mapstructure:"font_path"`
	Style      string              `mapstructure:"style"`
	Keywords   map[string][]string `mapstructure:"keywords"`
	Dimensions []DimensionConfig   `mapstructure:"dimensions"`
	Schedule   string              `mapstructure:"schedule"`
	ServerAddr string              `mapstructure:"server_addr"`
	DBPath     string              `mapstructure:"db_path"`
	LogFile    string              `mapstructure:"log_file"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// LLMConfig 生成模块的模型配置。
type LLMConfig struct {
	Provider  string        `mapstructure:"provider"`
	Model     string        `mapstructure:"model"`
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	WebSearch bool          `mapstructure:"web_search"`
}

// WeChatConfig 公众号凭证与文章默认值。
type WeChatConfig struct {
	AppID       string        `mapstructure:"app_id"`
	AppSecret   string        `mapstructure:"app_secret"`
	Author      string        `mapstructure:"author"`
	Digest      string        `mapstructure:"digest"`
	OpenComment bool          `mapstructure:"open_comment"`
	Timeout     time.Duration `mapstructure:"timeout"`
	BaseURL     string        `mapstructure:"base_url"`
}

// DimensionConfig selects a keyword group for the planner.
type DimensionConfig struct {
	Key      string `mapstructure:"key"`
	Name     string `mapstructure:"name"`
	MaxTerms int    `mapstructure:"max_terms"`
}

// PublishEnabled reports whether WeChat credentials are configured.
func (c *Config) PublishEnabled() bool {
	return c.WeChat.AppID != "" && c.WeChat.AppSecret != ""
}

// Planner builds the planner from the keyword table and dimension list.
func (c *Config) Planner() (*planner.Planner, error) {
	dims := make([]planner.DimensionConfig, len(c.Dimensions))
	for i, d := range c.Dimensions {
		dims[i] = planner.DimensionConfig{Key: d.Key, Name: d.Name, MaxTerms: d.MaxTerms}
	}
	return planner.New(planner.Keywords(c.Keywords), dims)
}

// Load reads path, or digest.yaml from the working directory or
// ~/.config/daily-tech-digest when path is empty. A missing default file is
// not an error; defaults and the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("digest")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "daily-tech-digest"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range envAliases {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envAliases keeps the plain variable names the deployment already uses.
var envAliases = map[string][]string{
	"llm.api_key":       {EnvPrefix + "_LLM_API_KEY", "OPENAI_API_KEY"},
	"wechat.app_id":     {EnvPrefix + "_WECHAT_APP_ID", "WECHAT_APP_ID"},
	"wechat.app_secret": {EnvPrefix + "_WECHAT_APP_SECRET", "WECHAT_APP_SECRET"},
}

// DefaultFontPath is the WenQuanYi Zen Hei collection shipped by Debian and
// Ubuntu (fonts-wqy-zenhei). Covers need a font with CJK glyphs.
const DefaultFontPath = "/usr/share/fonts/truetype/wqy/wqy-zenhei.ttc"

func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-search-preview")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 10*time.Minute)
	v.SetDefault("llm.max_tokens", 16384)
	v.SetDefault("llm.web_search", true)

	v.SetDefault("wechat.app_id", "")
	v.SetDefault("wechat.app_secret", "")
	v.SetDefault("wechat.author", "Tech Digest")
	v.SetDefault("wechat.digest", "每日技术趋势精选")
	v.SetDefault("wechat.open_comment", true)
	v.SetDefault("wechat.timeout", 30*time.Second)
	v.SetDefault("wechat.base_url", "")

	v.SetDefault("output_dir", "output")
	v.SetDefault("font_path", DefaultFontPath)
	v.SetDefault("style", "")
	v.SetDefault("schedule", "0 8 * * *")
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("db_path", filepath.Join("output", "digest.db"))
	v.SetDefault("log_file", "")

	kw := planner.DefaultKeywords()
	keywords := make(map[string]any, len(kw))
	for k, terms := range kw {
		keywords[k] = terms
	}
	v.SetDefault("keywords", keywords)

	var dims []map[string]any
	for _, d := range planner.DefaultDimensions() {
		dims = append(dims, map[string]any{"key": d.Key, "name": d.Name, "max_terms": d.MaxTerms})
	}
	v.SetDefault("dimensions", dims)
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai":
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，必须填写 base_url。
		if c.LLM.BaseURL == "" {
			return errors.New("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
	case "":
		return errors.New("llm.provider is required")
	default:
		return fmt.Errorf("llm provider %s not supported", c.LLM.Provider)
	}
	if c.LLM.Timeout <= 0 {
		return errors.New("llm.timeout must be positive")
	}
	if c.WeChat.Timeout <= 0 {
		return errors.New("wechat.timeout must be positive")
	}
	if (c.WeChat.AppID == "") != (c.WeChat.AppSecret == "") {
		return errors.New("wechat config must include both app_id and app_secret")
	}
	if c.OutputDir == "" {
		return errors.New("output_dir is required")
	}
	if len(c.Dimensions) == 0 {
		return errors.New("at least one dimension is required")
	}
	if _, err := c.Planner(); err != nil {
		return err
	}
	return nil
}
