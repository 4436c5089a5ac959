// Package auth 管理被测 API 的登录令牌。
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"yqhp/perf-suite/internal/apiclient"
	"yqhp/perf-suite/internal/config"
	"yqhp/perf-suite/pkg/logger"
)

var (
	// ErrLoginFailed 登录失败
	ErrLoginFailed = errors.New("登录失败")
	// ErrCreateUserFailed 创建用户失败
	ErrCreateUserFailed = errors.New("创建用户失败")
)

// Poster 发送 POST 请求的客户端
type Poster interface {
	Post(ctx context.Context, endpoint string, body any, opts ...apiclient.Option) (*apiclient.Response, error)
}

// Credentials 登录凭据，作为令牌缓存的键
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session 按凭据缓存令牌，可并发使用
type Session struct {
	client    Poster
	endpoints config.EndpointConfig
	now       func() time.Time

	mu     sync.RWMutex
	tokens map[Credentials]string
}

// NewSession 创建会话
func NewSession(client Poster, endpoints config.EndpointConfig) *Session {
	return &Session{
		client:    client,
		endpoints: endpoints,
		now:       time.Now,
		tokens:    make(map[Credentials]string),
	}
}

// Login 返回凭据对应的令牌，缓存中没有时调用登录接口
func (s *Session) Login(ctx context.Context, creds Credentials) (string, error) {
	if token, ok := s.Cached(creds); ok {
		return token, nil
	}

	resp, err := s.client.Post(ctx, s.endpoints.Login, creds)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if resp.Status != http.StatusOK {
		return "", fmt.Errorf("%w: %s 状态码 %d", ErrLoginFailed, creds.Email, resp.Status)
	}
	token, ok := resp.String("$.authorization")
	if !ok || token == "" {
		return "", fmt.Errorf("%w: %s 响应中没有 authorization", ErrLoginFailed, creds.Email)
	}

	s.mu.Lock()
	s.tokens[creds] = token
	s.mu.Unlock()

	logger.Debug("登录成功", zap.String("email", creds.Email))
	return token, nil
}

// CreateAdmin 创建一个管理员用户并登录
func (s *Session) CreateAdmin(ctx context.Context) (Credentials, string, error) {
	ts := s.now().UnixMilli()
	creds := Credentials{
		Email:    fmt.Sprintf("admin-%d@test.com", ts),
		Password: fmt.Sprintf("AdminPass%d", ts),
	}
	payload := map[string]string{
		"nome":          "Admin Test User",
		"email":         creds.Email,
		"password":      creds.Password,
		"administrador": "true",
	}

	resp, err := s.client.Post(ctx, s.endpoints.Users, payload)
	if err != nil {
		return creds, "", fmt.Errorf("%w: %w", ErrCreateUserFailed, err)
	}
	if resp.Status != http.StatusCreated {
		return creds, "", fmt.Errorf("%w: %s 状态码 %d", ErrCreateUserFailed, creds.Email, resp.Status)
	}

	token, err := s.Login(ctx, creds)
	return creds, token, err
}

// Cached 返回缓存的令牌
func (s *Session) Cached(creds Credentials) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[creds]
	return token, ok
}

// Invalidate 移除单个凭据的令牌
func (s *Session) Invalidate(creds Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, creds)
}

// InvalidateAll 清空缓存
func (s *Session) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[Credentials]string)
}
