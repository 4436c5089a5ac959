package thresholds

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrBadExpression 无法解析的阈值表达式
var ErrBadExpression = errors.New("invalid threshold expression")

// Aggregation 阈值使用的聚合方式
type Aggregation string

const (
	AggRate       Aggregation = "rate"
	AggCount      Aggregation = "count"
	AggAvg        Aggregation = "avg"
	AggMin        Aggregation = "min"
	AggMax        Aggregation = "max"
	AggMed        Aggregation = "med"
	AggPercentile Aggregation = "p"
)

// Expression 解析后的阈值表达式，例如 p(95)<500
type Expression struct {
	Source     string
	Agg        Aggregation
	Percentile float64
	Op         string
	Target     float64
}

var exprPattern = regexp.MustCompile(`^\s*(rate|count|avg|min|max|med|p\(\s*(\d+(?:\.\d+)?)\s*\))\s*(<=|>=|==|!=|<|>)\s*(-?\d+(?:\.\d+)?)\s*$`)

// Parse 解析阈值表达式
func Parse(src string) (Expression, error) {
	m := exprPattern.FindStringSubmatch(src)
	if m == nil {
		return Expression{}, fmt.Errorf("%w: %q", ErrBadExpression, src)
	}

	expr := Expression{Source: src, Op: m[3]}
	if m[2] != "" {
		p, err := strconv.ParseFloat(m[2], 64)
		if err != nil || p > 100 {
			return Expression{}, fmt.Errorf("%w: percentile out of range in %q", ErrBadExpression, src)
		}
		expr.Agg = AggPercentile
		expr.Percentile = p
	} else {
		expr.Agg = Aggregation(m[1])
	}

	target, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return Expression{}, fmt.Errorf("%w: %q", ErrBadExpression, src)
	}
	expr.Target = target
	return expr, nil
}

// Check 判断观测值是否满足表达式
func (e Expression) Check(observed float64) bool {
	switch e.Op {
	case "<":
		return observed < e.Target
	case "<=":
		return observed <= e.Target
	case ">":
		return observed > e.Target
	case ">=":
		return observed >= e.Target
	case "==":
		return observed == e.Target
	case "!=":
		return observed != e.Target
	}
	return false
}
