package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL = "https://api.weixin.qq.com"

	accessTokenPath   = "/cgi-bin/token"
	uploadImagePath   = "/cgi-bin/material/add_material"
	uploadImgPath     = "/cgi-bin/media/uploadimg"
	addDraftPath      = "/cgi-bin/draft/add"
	submitPublishPath = "/cgi-bin/freepublish/submit"

	// errcode returned by freepublish/submit when the account has no publish rights.
	codeUnauthorized = 48001
	// Token invalid or expired.
	codeInvalidToken = 40001
	codeExpiredToken = 42001

	tokenSafetyMargin = 5 * time.Minute
)

// Config holds the WeChat app credentials and article defaults.
type Config struct {
	AppID       string
	AppSecret   string
	Author      string
	Digest      string
	OpenComment bool
	BaseURL     string
	Timeout     time.Duration
}

// APIError is a non-zero errcode returned by the WeChat API.
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("failed to %s: %d %s", e.Op, e.Code, e.Msg)
}

type apiStatus struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type accessTokenResp struct {
	apiStatus
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type uploadImageResp struct {
	apiStatus
	MediaID string `json:"media_id"`
}

type uploadImgResp struct {
	apiStatus
	URL string `json:"url"`
}

type addDraftResp struct {
	apiStatus
	MediaID string `json:"media_id"`
}

type submitPublishResp struct {
	apiStatus
	PublishID string `json:"publish_id"`
}

type article struct {
	Title              string `json:"title"`
	Author             string `json:"author"`
	Digest             string `json:"digest"`
	Content            string `json:"content"`
	ThumbMediaID       string `json:"thumb_media_id"`
	NeedOpenComment    int    `json:"need_open_comment"`
	OnlyFansCanComment int    `json:"only_fans_can_comment"`
}

type addDraftPayload struct {
	Articles []article `json:"articles"`
}

// WeChatClient talks to the Official Account API. The access token is fetched
// on first use and cached until shortly before it expires.
type WeChatClient struct {
	cfg     Config
	client  *http.Client
	baseURL string
	logger  *log.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
	now         func() time.Time
}

// NewWeChatClient validates credentials; no request is made until the first call.
func NewWeChatClient(cfg Config, client *http.Client, logger *log.Logger) (*WeChatClient, error) {
	if cfg.AppID == "" || cfg.AppSecret == "" {
		return nil, errors.New("config must include app_id and app_secret")
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = log.Default()
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return &WeChatClient{
		cfg:     cfg,
		client:  client,
		baseURL: base,
		logger:  logger,
		now:     time.Now,
	}, nil
}

func (c *WeChatClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+accessTokenPath, nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("grant_type", "client_credential")
	q.Set("appid", c.cfg.AppID)
	q.Set("secret", c.cfg.AppSecret)
	req.URL.RawQuery = q.Encode()

	var data accessTokenResp
	if err := c.do(req, &data); err != nil {
		return "", err
	}
	if data.AccessToken == "" {
		return "", fmt.Errorf("%w: %v", ErrTransport, &APIError{Op: "get access_token", Code: data.ErrCode, Msg: data.ErrMsg})
	}
	ttl := time.Duration(data.ExpiresIn) * time.Second
	if ttl <= tokenSafetyMargin {
		ttl = 2 * tokenSafetyMargin
	}
	c.accessToken = data.AccessToken
	c.expiresAt = c.now().Add(ttl - tokenSafetyMargin)
	c.logger.Printf("[wechat] access_token refreshed, valid for %s", ttl)
	return c.accessToken, nil
}

func (c *WeChatClient) invalidate(code int) {
	if code != codeInvalidToken && code != codeExpiredToken {
		return
	}
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

// do sends req and decodes the JSON body. Network and decoding failures are
// transport errors; the errcode is left for the caller.
func (c *WeChatClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrTransport, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s: http %d: %s", ErrTransport, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: decoding response: %v", ErrTransport, req.URL.Path, err)
	}
	return nil
}

func (c *WeChatClient) postMultipart(ctx context.Context, path string, query map[string]string, filename string, data []byte, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	q := req.URL.Query()
	q.Set("access_token", token)
	for k, v := range query {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	return c.do(req, out)
}

func (c *WeChatClient) postJSON(ctx context.Context, path string, payload, out any) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	// Keep Chinese text and HTML tags unescaped in the payload.
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	q := req.URL.Query()
	q.Set("access_token", token)
	req.URL.RawQuery = q.Encode()

	return c.do(req, out)
}

func (c *WeChatClient) check(op string, s apiStatus) error {
	if s.ErrCode == 0 {
		return nil
	}
	c.invalidate(s.ErrCode)
	return &APIError{Op: op, Code: s.ErrCode, Msg: s.ErrMsg}
}

// UploadCover stores data as a permanent image material and returns its media_id.
func (c *WeChatClient) UploadCover(ctx context.Context, filename string, data []byte) (string, error) {
	var resp uploadImageResp
	if err := c.postMultipart(ctx, uploadImagePath, map[string]string{"type": "image"}, filename, data, &resp); err != nil {
		return "", err
	}
	if err := c.check("upload image", resp.apiStatus); err != nil {
		return "", err
	}
	if resp.MediaID == "" {
		return "", &APIError{Op: "upload image", Msg: "empty media_id"}
	}
	return resp.MediaID, nil
}

// UploadImage uploads an in-article image and returns the URL to embed.
func (c *WeChatClient) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	var resp uploadImgResp
	if err := c.postMultipart(ctx, uploadImgPath, nil, filename, data, &resp); err != nil {
		return "", err
	}
	if err := c.check("upload content image", resp.apiStatus); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", &APIError{Op: "upload content image", Msg: "empty url"}
	}
	return resp.URL, nil
}

// CreateDraft adds a single-article draft and returns the draft media_id.
func (c *WeChatClient) CreateDraft(ctx context.Context, art Article) (string, error) {
	comment := 0
	if art.OpenComment {
		comment = 1
	}
	payload := addDraftPayload{Articles: []article{{
		Title:           art.Title,
		Author:          art.Author,
		Digest:          art.Digest,
		Content:         art.HTML,
		ThumbMediaID:    art.ThumbMediaID,
		NeedOpenComment: comment,
	}}}

	var resp addDraftResp
	if err := c.postJSON(ctx, addDraftPath, payload, &resp); err != nil {
		return "", err
	}
	if err := c.check("add draft", resp.apiStatus); err != nil {
		return "", err
	}
	if resp.MediaID == "" {
		return "", &APIError{Op: "add draft", Msg: "empty media_id"}
	}
	return resp.MediaID, nil
}

// SubmitPublish asks WeChat to publish a draft. Accounts without publish rights
// get ErrAuthorizationDenied.
func (c *WeChatClient) SubmitPublish(ctx context.Context, draftID string) (string, error) {
	var resp submitPublishResp
	if err := c.postJSON(ctx, submitPublishPath, map[string]string{"media_id": draftID}, &resp); err != nil {
		return "", err
	}
	if resp.ErrCode == codeUnauthorized {
		return "", fmt.Errorf("%w: %v", ErrAuthorizationDenied, &APIError{Op: "submit publish", Code: resp.ErrCode, Msg: resp.ErrMsg})
	}
	if err := c.check("submit publish", resp.apiStatus); err != nil {
		return "", err
	}
	return resp.PublishID, nil
}
