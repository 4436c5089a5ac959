package stats

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"pgregory.net/rapid"
)

// TestPercentileBoundsProperty checks that p(100) is the maximum and p(0) the minimum.
func TestPercentileBoundsProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("p(100) equals max", prop.ForAll(
		func(values []float64) bool {
			if len(values) == 0 {
				return Percentile(values, 100) == 0
			}
			return Percentile(values, 100) == Max(values)
		},
		gen.SliceOf(gen.Float64Range(-1e6, 1e6)),
	))

	properties.Property("p(0) equals min", prop.ForAll(
		func(values []float64) bool {
			if len(values) == 0 {
				return Percentile(values, 0) == 0
			}
			return Percentile(values, 0) == Min(values)
		},
		gen.SliceOf(gen.Float64Range(-1e6, 1e6)),
	))

	properties.TestingRun(t)
}

// TestPercentileMonotonic checks that a higher percentile never yields a lower value
// and that the result is always an element of the series.
func TestPercentileMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Float64Range(0, 10000), 1, 200).Draw(t, "values")
		p1 := rapid.Float64Range(0, 100).Draw(t, "p1")
		p2 := rapid.Float64Range(0, 100).Draw(t, "p2")
		if p1 > p2 {
			p1, p2 = p2, p1
		}

		v1 := Percentile(values, p1)
		v2 := Percentile(values, p2)
		if v1 > v2 {
			t.Fatalf("p(%v)=%v > p(%v)=%v", p1, v1, p2, v2)
		}

		found := false
		for _, v := range values {
			if v == v2 {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("p(%v)=%v is not an element of the series", p2, v2)
		}
	})
}

// TestSummaryConsistency checks that Summarize agrees with the individual functions.
func TestSummaryConsistency(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		values := rapid.SliceOfN(rapid.Float64Range(-500, 500), 1, 100).Draw(t, "values")

		s, ok := Summarize(values)
		if !ok {
			t.Fatal("non-empty series reported as empty")
		}
		if s.Min != Min(values) || s.Max != Max(values) {
			t.Fatalf("min/max mismatch: %+v", s)
		}
		if s.Mean != Mean(values) {
			t.Fatalf("mean mismatch: %v vs %v", s.Mean, Mean(values))
		}
		if s.P95 != Percentile(values, 95) {
			t.Fatalf("p95 mismatch: %v vs %v", s.P95, Percentile(values, 95))
		}
		if s.Min > s.Med || s.Med > s.P90 || s.P90 > s.P95 || s.P95 > s.P99 || s.P99 > s.Max {
			t.Fatalf("summary not ordered: %+v", s)
		}
	})
}
