package checks

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yqhp/perf-suite/internal/analysis"
	"yqhp/perf-suite/internal/apiclient"
	"yqhp/perf-suite/internal/record"
)

func response(status int, body string, waiting float64) *apiclient.Response {
	return &apiclient.Response{Status: status, Body: []byte(body), Timings: apiclient.Timings{Waiting: waiting, Duration: waiting}}
}

func TestHelpers(t *testing.T) {
	resp := response(200, `{"quantidade":2,"usuarios":[{"_id":"a1"}]}`, 120)

	tests := []struct {
		check Check
		name  string
		pass  bool
	}{
		{StatusIs(resp, 200), "status is 200", true},
		{StatusIs(resp, 201), "status is 201", false},
		{StatusIn(resp, 200, 201), "status is one of expected", true},
		{StatusIn(resp, 400), "status is one of expected", false},
		{ResponseTimeBelow(resp, 500), "response time < 500ms", true},
		{ResponseTimeBelow(resp, 120), "response time < 120ms", false},
		{NotEmpty(resp), "response is not empty", true},
		{Contains(resp, "usuarios"), `response contains "usuarios"`, true},
		{Contains(resp, "produtos"), `response contains "produtos"`, false},
		{IsJSON(resp), "response is valid JSON", true},
		{HasField(resp, "quantidade"), `response has field "quantidade"`, true},
		{HasField(resp, "message"), `response has field "message"`, false},
		{HasField(resp, "$.usuarios[0]._id"), `response has field "$.usuarios[0]._id"`, true},
		{HasField(resp, "$["), `response has field "$["`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.check.Name)
			assert.Equal(t, tt.pass, tt.check.Pass)
		})
	}
}

func TestHelpers_NoResponse(t *testing.T) {
	assert.False(t, StatusIs(nil, 200).Pass)
	assert.True(t, ResponseTimeBelow(nil, 500).Pass)
	assert.False(t, NotEmpty(nil).Pass)
	assert.False(t, IsJSON(nil).Pass)
	assert.False(t, HasField(nil, "id").Pass)

	bad := response(502, "<html>bad gateway</html>", 10)
	assert.False(t, IsJSON(bad).Pass)
	assert.False(t, HasField(bad, "id").Pass)
}

func TestRequest(t *testing.T) {
	resp := response(201, `{"_id":"x"}`, 80)
	got := Request(resp, 201, 1000, HasField(resp, "_id"))

	require.Len(t, got, 4)
	assert.Equal(t, []string{"status is 201", "response time < 1000ms", "response is not empty", `response has field "_id"`},
		[]string{got[0].Name, got[1].Name, got[2].Name, got[3].Name})
	assert.True(t, AllPassed(got))

	got = Request(response(500, "", 80), 201, 1000)
	assert.False(t, AllPassed(got))
	assert.True(t, AllPassed(nil))
}

func TestPoints_RoundTripThroughAnalysis(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tags := record.Tags{record.TagGroup: "::Users", record.TagScenario: "probe"}
	points := Points([]Check{{Name: "status is 200", Pass: true}, {Name: "status is 200", Pass: false}}, tags, at)

	require.Len(t, points, 2)
	assert.Equal(t, "status is 200", points[0].Data.Tags[record.TagCheck])
	_, shared := tags[record.TagCheck]
	assert.False(t, shared)

	var buf bytes.Buffer
	enc := record.NewEncoder(&buf)
	for _, p := range points {
		require.NoError(t, enc.Encode(p))
	}
	require.NoError(t, enc.Flush())

	res, err := analysis.Analyze(strings.NewReader(buf.String()))
	require.NoError(t, err)
	check := res.Checks["status is 200"]
	require.NotNil(t, check)
	assert.Equal(t, analysis.PassFail{Passed: 1, Failed: 1}, check.PassFail)
	assert.Equal(t, []string{"::Users"}, res.GroupNames())
}
