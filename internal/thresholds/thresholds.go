// Package thresholds 构建 k6 阈值集合，并根据分析结果离线评估阈值。
package thresholds

import (
	"slices"
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/duke-git/lancet/v2/maputil"

	"yqhp/perf-suite/internal/config"
)

// Profile 阈值档位
type Profile string

const (
	ProfileNormal Profile = "normal"
	ProfileStress Profile = "stress"
	ProfileSpike  Profile = "spike"
	ProfileSmoke  Profile = "smoke"
)

// Profiles 所有档位
var Profiles = []Profile{ProfileNormal, ProfileStress, ProfileSpike, ProfileSmoke}

// ProfileFor 根据测试类型选择档位，load/soak/default 使用 normal
func ProfileFor(testType string) Profile {
	switch Profile(testType) {
	case ProfileStress, ProfileSpike, ProfileSmoke:
		return Profile(testType)
	}
	return ProfileNormal
}

// Set 指标名到阈值表达式列表，格式与 k6 options.thresholds 相同
type Set map[string][]string

// Metrics 排序后的指标名
func (s Set) Metrics() []string {
	names := maputil.Keys(s)
	slices.Sort(names)
	return names
}

// JSON 以稳定的键顺序输出
func (s Set) JSON() ([]byte, error) {
	return sonic.ConfigStd.MarshalIndent(s, "", "  ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// pick CI 环境取 ci，否则取 local
func pick(ci bool, ciValue, local string) string {
	if ci {
		return ciValue
	}
	return local
}

// Build 生成档位对应的阈值集合。CI 环境按固定倍数放宽。
func Build(profile Profile, t config.ThresholdConfig, ci bool) Set {
	set := Set{
		"http_reqs": {"count > 0"},
	}

	switch profile {
	case ProfileStress:
		m := 1.0
		if ci {
			m = 3
		}
		set["http_req_failed"] = []string{pick(ci, "rate<0.30", "rate<"+num(t.StressErrorRate))}
		set["http_req_duration"] = []string{
			"p(95)<" + num(t.StressP95*m),
			"p(99)<" + num(t.StressP99*m),
		}
		set["checks"] = []string{pick(ci, "rate>0.80", "rate>"+num(t.StressCheckSuccessRate))}

	case ProfileSpike:
		m := 2.0
		if ci {
			m = 4
		}
		set["http_req_failed"] = []string{pick(ci, "rate<0.35", "rate<0.15")}
		set["http_req_duration"] = []string{
			"p(95)<" + num(t.P95*m),
			"p(99)<" + num(t.P99*m),
		}
		set["checks"] = []string{pick(ci, "rate>0.75", "rate>0.80")}

	case ProfileSmoke:
		set["http_req_failed"] = []string{pick(ci, "rate<0.25", "rate<"+num(t.SmokeErrorRate))}
		set["checks"] = []string{pick(ci, "rate>0.85", "rate>"+num(t.SmokeCheckSuccessRate))}

	default:
		m := 1.0
		if ci {
			m = 2
		}
		set["http_req_failed"] = []string{pick(ci, "rate<0.20", "rate<0.10")}
		set["http_req_duration"] = []string{
			"p(95)<" + num(t.P95*m),
			"p(99)<" + num(t.P99*m),
		}
		set["http_req_tls_handshaking"] = []string{pick(ci, "p(95)<200", "p(95)<100")}
		set["http_req_waiting"] = []string{"p(95)<" + num(t.P95*m)}
		set["checks"] = []string{pick(ci, "rate>0.85", "rate>"+num(t.CheckSuccessRate))}
	}

	return set
}
