// Package apiclient 是被测 API 的 HTTP 客户端，基于 fasthttp。
package apiclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasthttp"

	"yqhp/perf-suite/internal/config"
)

const defaultTimeout = 30 * time.Second

// ErrTimeout 请求超时
var ErrTimeout = errors.New("请求超时")

// Config 客户端配置
type Config struct {
	BaseURL               string
	Timeout               time.Duration
	InsecureSkipTLSVerify bool
	// Headers 每个请求都携带的请求头
	Headers map[string]string
	// Dial 自定义拨号函数，为 nil 时使用 fasthttp 默认拨号
	Dial fasthttp.DialFunc
}

// ConfigFrom 从全局配置构建客户端配置
func ConfigFrom(c config.APIConfig) Config {
	return Config{
		BaseURL:               c.BaseURL,
		Timeout:               c.Timeout,
		InsecureSkipTLSVerify: c.InsecureSkipTLSVerify,
	}
}

// Client 被测 API 客户端，可并发使用
type Client struct {
	cfg    Config
	client *fasthttp.Client
}

// New 创建客户端
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")

	return &Client{
		cfg: cfg,
		client: &fasthttp.Client{
			MaxIdleConnDuration:    90 * time.Second,
			ReadTimeout:            cfg.Timeout,
			WriteTimeout:           cfg.Timeout,
			TLSConfig:              &tls.Config{InsecureSkipVerify: cfg.InsecureSkipTLSVerify},
			Dial:                   cfg.Dial,
			DisablePathNormalizing: true,
		},
	}
}

// BaseURL 返回基础地址
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Get 发送 GET 请求
func (c *Client) Get(ctx context.Context, endpoint string, opts ...Option) (*Response, error) {
	return c.Do(ctx, fasthttp.MethodGet, endpoint, nil, opts...)
}

// Post 发送 POST 请求，body 编码为 JSON
func (c *Client) Post(ctx context.Context, endpoint string, body any, opts ...Option) (*Response, error) {
	return c.Do(ctx, fasthttp.MethodPost, endpoint, body, opts...)
}

// Put 发送 PUT 请求，body 编码为 JSON
func (c *Client) Put(ctx context.Context, endpoint string, body any, opts ...Option) (*Response, error) {
	return c.Do(ctx, fasthttp.MethodPut, endpoint, body, opts...)
}

// Delete 发送 DELETE 请求
func (c *Client) Delete(ctx context.Context, endpoint string, opts ...Option) (*Response, error) {
	return c.Do(ctx, fasthttp.MethodDelete, endpoint, nil, opts...)
}

// Do 发送请求。传输失败（超时、连接失败）返回错误，任何 HTTP 状态码都返回响应。
func (c *Client) Do(ctx context.Context, method, endpoint string, body any, opts ...Option) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := newOptions(method, endpoint)
	for _, opt := range opts {
		opt(o)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	if err := c.buildRequest(req, method, endpoint, body, o); err != nil {
		return nil, err
	}
	requestURL := string(req.URI().FullURI())

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	start := time.Now()
	err := c.client.DoDeadline(req, resp, deadline)
	elapsed := msSince(start)
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) || time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s %s", ErrTimeout, method, requestURL)
		}
		return nil, fmt.Errorf("HTTP 请求失败: %s %s: %w", method, requestURL, err)
	}

	return newResponse(method, requestURL, resp, Timings{Waiting: elapsed, Duration: elapsed}, o.tags), nil
}

// buildRequest 构建 fasthttp 请求
func (c *Client) buildRequest(req *fasthttp.Request, method, endpoint string, body any, o *options) error {
	req.Header.SetMethod(method)
	req.SetRequestURI(c.cfg.BaseURL + endpoint)

	args := req.URI().QueryArgs()
	for _, kv := range o.query {
		args.Add(kv[0], kv[1])
	}

	// 先设置全局 headers，再设置请求级 headers（覆盖全局）
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
	for _, kv := range o.headers {
		req.Header.Set(kv[0], kv[1])
	}

	if body == nil {
		return nil
	}
	var payload []byte
	switch b := body.(type) {
	case []byte:
		payload = b
	case string:
		payload = []byte(b)
	default:
		data, err := sonic.Marshal(b)
		if err != nil {
			return fmt.Errorf("编码请求体失败: %w", err)
		}
		payload = data
	}
	req.SetBody(payload)
	if len(req.Header.ContentType()) == 0 {
		req.Header.SetContentType("application/json")
	}
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Millisecond)
}
