// Package checks 对响应做 k6 风格的检查，并把结果转换成 checks 样本。
package checks

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/ohler55/ojg/jp"

	"yqhp/perf-suite/internal/apiclient"
	"yqhp/perf-suite/internal/record"
)

// Check 一次检查的结果
type Check struct {
	Name string
	Pass bool
}

func status(resp *apiclient.Response) int {
	if resp == nil {
		return 0
	}
	return resp.Status
}

func body(resp *apiclient.Response) []byte {
	if resp == nil {
		return nil
	}
	return resp.Body
}

// StatusIs 状态码等于 expected
func StatusIs(resp *apiclient.Response, expected int) Check {
	return Check{Name: fmt.Sprintf("status is %d", expected), Pass: status(resp) == expected}
}

// StatusIn 状态码属于 expected 之一
func StatusIn(resp *apiclient.Response, expected ...int) Check {
	return Check{Name: "status is one of expected", Pass: slices.Contains(expected, status(resp))}
}

// ResponseTimeBelow 等待时间小于 maxMs，没有响应时按 0 计
func ResponseTimeBelow(resp *apiclient.Response, maxMs float64) Check {
	waiting := 0.0
	if resp != nil {
		waiting = resp.Timings.Waiting
	}
	return Check{Name: fmt.Sprintf("response time < %gms", maxMs), Pass: waiting < maxMs}
}

// NotEmpty 响应体非空
func NotEmpty(resp *apiclient.Response) Check {
	return Check{Name: "response is not empty", Pass: len(body(resp)) > 0}
}

// Contains 响应体包含 text
func Contains(resp *apiclient.Response, text string) Check {
	return Check{Name: fmt.Sprintf("response contains %q", text), Pass: bytes.Contains(body(resp), []byte(text))}
}

// IsJSON 响应体是合法 JSON
func IsJSON(resp *apiclient.Response) Check {
	b := body(resp)
	return Check{Name: "response is valid JSON", Pass: len(b) > 0 && sonic.Valid(b)}
}

// HasField 响应体含有字段。以 $ 开头的 field 按 JSONPath 处理，否则是顶层键。
func HasField(resp *apiclient.Response, field string) Check {
	c := Check{Name: fmt.Sprintf("response has field %q", field)}

	var data any
	if err := sonic.Unmarshal(body(resp), &data); err != nil {
		return c
	}
	var path jp.Expr
	if strings.HasPrefix(field, "$") {
		p, err := jp.ParseString(field)
		if err != nil {
			return c
		}
		path = p
	} else {
		path = jp.C(field)
	}
	c.Pass = path.Has(data)
	return c
}

// Request 三项基础检查：状态码、响应时间、响应体非空，后面追加 extra
func Request(resp *apiclient.Response, expectedStatus int, maxMs float64, extra ...Check) []Check {
	out := []Check{
		StatusIs(resp, expectedStatus),
		ResponseTimeBelow(resp, maxMs),
		NotEmpty(resp),
	}
	return append(out, extra...)
}

// AllPassed 是否全部通过
func AllPassed(checks []Check) bool {
	for _, c := range checks {
		if !c.Pass {
			return false
		}
	}
	return true
}

// Points 把检查结果转换成 checks 样本，通过为 1，失败为 0。tags 会复制到每个样本。
func Points(checks []Check, tags record.Tags, at time.Time) []record.Record {
	out := make([]record.Record, 0, len(checks))
	for _, c := range checks {
		t := make(record.Tags, len(tags)+1)
		for k, v := range tags {
			t[k] = v
		}
		t[record.TagCheck] = c.Name

		value := 0.0
		if c.Pass {
			value = 1
		}
		out = append(out, record.Record{
			Type:   record.TypePoint,
			Metric: record.MetricChecks,
			Data:   record.Data{Time: at, Value: record.Float(value), Tags: t},
		})
	}
	return out
}
