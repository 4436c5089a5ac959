// Package probe 对被测 API 做一次顺序冒烟探测，输出 k6 格式的 NDJSON 结果。
// 它不是负载生成器：每个场景只跑一遍，便于端到端验证分析流程。
package probe

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/apiclient"
	"yqhp/perf-suite/internal/auth"
	"yqhp/perf-suite/internal/checks"
	"yqhp/perf-suite/internal/config"
	"yqhp/perf-suite/internal/datafactory"
	"yqhp/perf-suite/internal/record"
	"yqhp/perf-suite/pkg/logger"
)

// 场景名称
const (
	ScenarioUsers    = "users"
	ScenarioProducts = "products"
)

// Client 被测 API 客户端
type Client interface {
	Get(ctx context.Context, endpoint string, opts ...apiclient.Option) (*apiclient.Response, error)
	Post(ctx context.Context, endpoint string, body any, opts ...apiclient.Option) (*apiclient.Response, error)
	Put(ctx context.Context, endpoint string, body any, opts ...apiclient.Option) (*apiclient.Response, error)
	Delete(ctx context.Context, endpoint string, opts ...apiclient.Option) (*apiclient.Response, error)
}

// Config 探测配置
type Config struct {
	Endpoints config.EndpointConfig
	// MaxDuration 响应时间检查的上限（毫秒）
	MaxDuration float64
	// Delay 两个步骤之间的等待时间
	Delay time.Duration
}

// ConfigFrom 从全局配置构建探测配置
func ConfigFrom(c *config.Config) Config {
	return Config{
		Endpoints:   c.Endpoints,
		MaxDuration: c.Thresholds.P95,
		Delay:       c.Delays.ShortDuration(),
	}
}

// Summary 一次探测的统计
type Summary struct {
	Requests int
	Failed   int
	Checks   analysis.PassFail
}

// Probe 顺序执行用户和商品场景
type Probe struct {
	client  Client
	session *auth.Session
	factory *datafactory.Factory
	cfg     Config
	enc     *record.Encoder
	now     func() time.Time

	summary Summary
}

// New 创建探测器，结果写入 w
func New(client Client, cfg Config, w io.Writer) *Probe {
	p := &Probe{
		client:  client,
		factory: datafactory.New(nil),
		cfg:     cfg,
		enc:     record.NewEncoder(w),
		now:     time.Now,
	}
	p.session = auth.NewSession(sessionPoster{p: p, scenario: ScenarioProducts}, cfg.Endpoints)
	return p
}

// sessionPoster 让会话发出的注册和登录请求同样记录 http_* 样本
type sessionPoster struct {
	p        *Probe
	scenario string
}

func (sp sessionPoster) Post(ctx context.Context, endpoint string, body any, opts ...apiclient.Option) (*apiclient.Response, error) {
	group := "POST " + endpoint
	switch endpoint {
	case sp.p.cfg.Endpoints.Login:
		group += " - Login"
	case sp.p.cfg.Endpoints.Users:
		group += " - Create Admin User"
	}

	resp, err := sp.p.client.Post(ctx, endpoint, body, opts...)
	if _, rerr := sp.p.record(ctx, step{sp.scenario, group}, resp, err); rerr != nil {
		return nil, rerr
	}
	return resp, err
}

// Run 依次执行用户场景和商品场景
func (p *Probe) Run(ctx context.Context) (Summary, error) {
	p.summary = Summary{}
	err := p.users(ctx)
	if err == nil {
		err = p.products(ctx)
	}
	if ferr := p.enc.Flush(); err == nil {
		err = ferr
	}
	logger.Info("探测完成",
		zap.Int("requests", p.summary.Requests),
		zap.Int("failed", p.summary.Failed),
		zap.Int("checks_passed", p.summary.Checks.Passed),
		zap.Int("checks_failed", p.summary.Checks.Failed),
	)
	return p.summary, err
}

// step 一个分组内的一次请求
type step struct {
	scenario string
	group    string
}

func (s step) tags() record.Tags {
	return record.Tags{record.TagGroup: "::" + s.group, record.TagScenario: s.scenario}
}

func (p *Probe) users(ctx context.Context) error {
	ep := p.cfg.Endpoints.Users
	sc := ScenarioUsers

	s := step{sc, "GET /usuarios - List Users"}
	resp, err := p.get(ctx, s, ep)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 200, p.cfg.MaxDuration,
		checks.IsJSON(resp), checks.HasField(resp, "quantidade"), checks.HasField(resp, "usuarios"))); err != nil {
		return err
	}

	s = step{sc, "POST /usuarios - Create User"}
	user := p.factory.NewUser(false)
	resp, err = p.post(ctx, s, ep, user)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 201, p.cfg.MaxDuration,
		checks.IsJSON(resp), checks.HasField(resp, "_id"))); err != nil {
		return err
	}
	id := responseID(resp)
	if id == "" {
		logger.Warn("创建用户失败，跳过后续用户步骤", zap.Int("status", statusOf(resp)))
		return p.errorRate(ctx, sc, ep)
	}

	s = step{sc, "GET /usuarios/{id} - Get User By ID"}
	resp, err = p.get(ctx, s, ep+"/"+id)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 200, p.cfg.MaxDuration, checks.IsJSON(resp))); err != nil {
		return err
	}

	s = step{sc, "PUT /usuarios/{id} - Update User"}
	user.Nome += " Atualizado"
	resp, err = p.put(ctx, s, ep+"/"+id, user)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 200, p.cfg.MaxDuration)); err != nil {
		return err
	}

	s = step{sc, "DELETE /usuarios/{id} - Delete User"}
	resp, err = p.delete(ctx, s, ep+"/"+id)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 200, p.cfg.MaxDuration)); err != nil {
		return err
	}

	return p.errorRate(ctx, sc, ep)
}

func (p *Probe) products(ctx context.Context) error {
	ep := p.cfg.Endpoints.Products
	sc := ScenarioProducts

	s := step{sc, "GET /produtos - List Products"}
	resp, err := p.get(ctx, s, ep)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 200, p.cfg.MaxDuration,
		checks.IsJSON(resp), checks.HasField(resp, "quantidade"), checks.HasField(resp, "produtos"))); err != nil {
		return err
	}

	// 未登录创建商品应返回 401
	s = step{sc, "POST /produtos - Create Product (Unauthenticated)"}
	resp, err = p.post(ctx, s, ep, p.factory.NewProduct())
	if err != nil {
		return err
	}
	if err := p.check(s, []checks.Check{{Name: "authentication required (401)", Pass: statusOf(resp) == 401}}); err != nil {
		return err
	}

	_, token, err := p.session.CreateAdmin(ctx)
	if err != nil {
		logger.Warn("创建管理员失败，跳过需要认证的商品步骤", zap.Error(err))
		return p.errorRate(ctx, sc, ep)
	}
	authz := apiclient.WithAuthorization(token)

	s = step{sc, "POST /produtos - Create Product (Authenticated)"}
	product := p.factory.NewProduct()
	resp, err = p.post(ctx, s, ep, product, authz)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 201, p.cfg.MaxDuration, checks.HasField(resp, "_id"))); err != nil {
		return err
	}
	id := responseID(resp)
	if id == "" {
		logger.Warn("创建商品失败，跳过后续商品步骤", zap.Int("status", statusOf(resp)))
		return p.errorRate(ctx, sc, ep)
	}

	s = step{sc, "GET /produtos/{id} - Get Product By ID"}
	resp, err = p.get(ctx, s, ep+"/"+id)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 200, p.cfg.MaxDuration, checks.IsJSON(resp))); err != nil {
		return err
	}

	s = step{sc, "PUT /produtos/{id} - Update Product"}
	product.Preco++
	resp, err = p.put(ctx, s, ep+"/"+id, product, authz)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 200, p.cfg.MaxDuration)); err != nil {
		return err
	}

	s = step{sc, "DELETE /produtos/{id} - Delete Product"}
	resp, err = p.delete(ctx, s, ep+"/"+id, authz)
	if err != nil {
		return err
	}
	if err := p.check(s, checks.Request(resp, 200, p.cfg.MaxDuration)); err != nil {
		return err
	}

	return p.errorRate(ctx, sc, ep)
}

func (p *Probe) errorRate(ctx context.Context, scenario, endpoint string) error {
	s := step{scenario, "Error Rate Validation"}
	resp, err := p.get(ctx, s, endpoint)
	if err != nil {
		return err
	}
	status := statusOf(resp)
	return p.check(s, []checks.Check{
		{Name: "status is 2xx", Pass: status >= 200 && status < 300},
		{Name: "no connection error", Pass: status != 0},
	})
}

func (p *Probe) get(ctx context.Context, s step, endpoint string, opts ...apiclient.Option) (*apiclient.Response, error) {
	resp, err := p.client.Get(ctx, endpoint, opts...)
	return p.record(ctx, s, resp, err)
}

func (p *Probe) post(ctx context.Context, s step, endpoint string, body any, opts ...apiclient.Option) (*apiclient.Response, error) {
	resp, err := p.client.Post(ctx, endpoint, body, opts...)
	return p.record(ctx, s, resp, err)
}

func (p *Probe) put(ctx context.Context, s step, endpoint string, body any, opts ...apiclient.Option) (*apiclient.Response, error) {
	resp, err := p.client.Put(ctx, endpoint, body, opts...)
	return p.record(ctx, s, resp, err)
}

func (p *Probe) delete(ctx context.Context, s step, endpoint string, opts ...apiclient.Option) (*apiclient.Response, error) {
	resp, err := p.client.Delete(ctx, endpoint, opts...)
	return p.record(ctx, s, resp, err)
}

// record 记录一次请求的 http_* 样本，然后等待步骤间隔。
// 传输失败不中断探测，按 k6 的方式记为状态码 0。
func (p *Probe) record(ctx context.Context, s step, resp *apiclient.Response, reqErr error) (*apiclient.Response, error) {
	if reqErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Warn("请求失败", zap.String("group", s.group), zap.Error(reqErr))
		resp = nil
	}

	status := statusOf(resp)
	failed := status < 200 || status >= 400
	tags := s.tags()
	tags[record.TagStatus] = strconv.Itoa(status)
	tags[record.TagExpectedResponse] = strconv.FormatBool(!failed)
	if resp != nil {
		for k, v := range resp.Tags {
			tags[k] = v
		}
	}

	var timings apiclient.Timings
	if resp != nil {
		timings = resp.Timings
	}
	failedValue := 0.0
	if failed {
		failedValue = 1
		p.summary.Failed++
	}
	p.summary.Requests++

	at := p.now()
	samples := []struct {
		metric string
		value  float64
	}{
		{record.MetricHTTPReqs, 1},
		{record.MetricHTTPReqDuration, timings.Duration},
		{record.MetricHTTPReqWaiting, timings.Waiting},
		{record.MetricHTTPReqFailed, failedValue},
	}
	for _, sample := range samples {
		if err := p.enc.Encode(record.Record{
			Type:   record.TypePoint,
			Metric: sample.metric,
			Data:   record.Data{Time: at, Value: record.Float(sample.value), Tags: tags},
		}); err != nil {
			return nil, err
		}
	}

	if err := p.sleep(ctx); err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *Probe) check(s step, cs []checks.Check) error {
	for _, rec := range checks.Points(cs, s.tags(), p.now()) {
		if err := p.enc.Encode(rec); err != nil {
			return err
		}
	}
	for _, c := range cs {
		if c.Pass {
			p.summary.Checks.Passed++
		} else {
			p.summary.Checks.Failed++
			logger.Debug("检查未通过", zap.String("group", s.group), zap.String("check", c.Name))
		}
	}
	return nil
}

func (p *Probe) sleep(ctx context.Context) error {
	if p.cfg.Delay <= 0 {
		return nil
	}
	timer := time.NewTimer(p.cfg.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func statusOf(resp *apiclient.Response) int {
	if resp == nil {
		return 0
	}
	return resp.Status
}

func responseID(resp *apiclient.Response) string {
	if resp == nil {
		return ""
	}
	id, _ := resp.String("$._id")
	return id
}

// String 返回一行摘要
func (s Summary) String() string {
	return fmt.Sprintf("%d requests (%d failed), %d/%d checks passed",
		s.Requests, s.Failed, s.Checks.Passed, s.Checks.Total())
}
