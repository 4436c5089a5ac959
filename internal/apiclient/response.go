package apiclient

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/ohler55/ojg/jp"
	"github.com/valyala/fasthttp"
)

// ErrNoMatch JSONPath 没有匹配
var ErrNoMatch = errors.New("JSONPath 无匹配结果")

// Timings 请求耗时（毫秒）。fasthttp 不暴露首字节时间，Waiting 取整个往返时间。
type Timings struct {
	Waiting  float64
	Duration float64
}

// Response HTTP 响应
type Response struct {
	Method  string
	URL     string
	Status  int
	Body    []byte
	Headers map[string]string
	Timings Timings
	// Tags 请求标签，name 默认为 endpoint，method 为请求方法
	Tags map[string]string
}

// newResponse 从 fasthttp.Response 复制数据（resp.Body() 返回的是内部缓冲区的引用）
func newResponse(method, url string, resp *fasthttp.Response, timings Timings, tags map[string]string) *Response {
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())

	headers := make(map[string]string)
	resp.Header.VisitAll(func(key, value []byte) {
		k := string(key)
		if _, exists := headers[k]; !exists {
			headers[k] = string(value)
		}
	})

	return &Response{
		Method:  method,
		URL:     url,
		Status:  resp.StatusCode(),
		Body:    body,
		Headers: headers,
		Timings: timings,
		Tags:    tags,
	}
}

// JSON 把响应体解码到 v
func (r *Response) JSON(v any) error {
	if err := sonic.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("解析响应 JSON 失败: %w", err)
	}
	return nil
}

// Path 用 JSONPath 表达式取响应体中的第一个匹配值
func (r *Response) Path(expr string) (any, error) {
	path, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("无效的 JSONPath 表达式 '%s': %w", expr, err)
	}
	var data any
	if err := r.JSON(&data); err != nil {
		return nil, err
	}
	results := path.Get(data)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, expr)
	}
	return results[0], nil
}

// String 返回 Path 取到的字符串值
func (r *Response) String(expr string) (string, bool) {
	v, err := r.Path(expr)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
