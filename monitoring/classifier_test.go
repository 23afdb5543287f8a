package monitoring

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicClassifiesSocialMedia(t *testing.T) {
	c := NewClassifier(nil, nil, nil, ClassifierThresholds{}, nil)

	pre := c.Prescreen(testCtx(t), "emp-1", AppEvent{
		Name:  "chrome",
		URL:   "https://facebook.com/feed",
		Title: "Facebook",
	})

	assert.Equal(t, "heuristic", pre.Source)
	assert.False(t, pre.IsWorkRelated)
	assert.True(t, pre.ShouldMonitor)
	assert.True(t, c.ShouldMonitor(pre))
}

func TestHeuristicClassifiesDevelopmentWork(t *testing.T) {
	c := NewClassifier(nil, nil, nil, ClassifierThresholds{}, nil)

	pre := c.Prescreen(testCtx(t), "emp-1", AppEvent{
		Name:  "chrome",
		URL:   "https://github.com/acme/api",
		Title: "Pull request - GitHub",
	})

	assert.True(t, pre.IsWorkRelated)
	assert.False(t, pre.ShouldMonitor)
}

func TestShouldMonitorPolicy(t *testing.T) {
	c := NewClassifier(nil, nil, nil, ClassifierThresholds{
		WorkConfidence:      70,
		NonWorkConfidence:   60,
		UncertainConfidence: 50,
	}, nil)

	cases := []struct {
		name string
		pre  PrescreenResult
		want bool
	}{
		{"confident work", PrescreenResult{IsWorkRelated: true, Confidence: 85}, false},
		{"confident non-work", PrescreenResult{IsWorkRelated: false, Confidence: 75}, true},
		{"explicit monitor flag", PrescreenResult{IsWorkRelated: true, Confidence: 55, ShouldMonitor: true}, true},
		{"genuinely unsure", PrescreenResult{IsWorkRelated: true, Confidence: 40}, true},
		{"moderate work confidence", PrescreenResult{IsWorkRelated: true, Confidence: 65}, false},
		{"moderate non-work confidence", PrescreenResult{IsWorkRelated: false, Confidence: 55}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.ShouldMonitor(tc.pre))
		})
	}
}

func TestPrescreenAIParsed(t *testing.T) {
	ai := &scriptedAI{replies: []string{
		"```json\n{\"is_work_related\": false, \"confidence\": 88, \"should_monitor\": true, \"reasoning\": \"streaming site\"}\n```",
	}}
	c := NewClassifier(ai, nil, nil, ClassifierThresholds{}, nil)

	pre := c.Prescreen(testCtx(t), "emp-1", AppEvent{Name: "chrome", URL: "https://netflix.com"})

	assert.Equal(t, "ai", pre.Source)
	assert.False(t, pre.IsWorkRelated)
	assert.Equal(t, 88, pre.Confidence)
	assert.True(t, pre.ShouldMonitor)
}

func TestPrescreenAIErrorFallsBack(t *testing.T) {
	ai := &scriptedAI{err: errors.New("connection refused")}
	c := NewClassifier(ai, nil, nil, ClassifierThresholds{}, nil)

	pre := c.Prescreen(testCtx(t), "emp-1", AppEvent{Name: "chrome", URL: "https://facebook.com"})

	assert.Equal(t, "heuristic", pre.Source)
	assert.False(t, pre.IsWorkRelated)
}

func TestPrescreenAIRejectsOutOfRangeConfidence(t *testing.T) {
	ai := &scriptedAI{replies: []string{
		`{"is_work_related": true, "confidence": 250, "should_monitor": false, "reasoning": "x"}`,
	}}
	c := NewClassifier(ai, nil, nil, ClassifierThresholds{}, nil)

	pre := c.Prescreen(testCtx(t), "emp-1", AppEvent{Name: "chrome", URL: "https://github.com"})
	assert.Equal(t, "heuristic", pre.Source)
}

func TestPrescreenAIRejectsMalformedJSON(t *testing.T) {
	ai := &scriptedAI{replies: []string{"I think this is probably fine."}}
	c := NewClassifier(ai, nil, nil, ClassifierThresholds{}, nil)

	pre := c.Prescreen(testCtx(t), "emp-1", AppEvent{Name: "chrome", URL: "https://github.com"})
	assert.Equal(t, "heuristic", pre.Source)
}

type failingOCR struct{}

func (failingOCR) ExtractText(ctx context.Context, image []byte) (string, float64, error) {
	return "", 0, errors.New("ocr unavailable")
}

func TestAnalyzeOCRFailureDegrades(t *testing.T) {
	c := NewClassifier(nil, failingOCR{}, nil, ClassifierThresholds{}, nil)

	analysis, ocrText := c.Analyze(testCtx(t), "emp-1", AppEvent{
		Name: "chrome", URL: "https://facebook.com",
	}, []byte("jpeg"))

	assert.Empty(t, ocrText)
	assert.Equal(t, "heuristic", analysis.Source)
	assert.False(t, analysis.IsWorkRelated)
	assert.True(t, analysis.ShouldAlert)
}

func TestAnalyzeAIResult(t *testing.T) {
	ai := &scriptedAI{replies: []string{
		`{"is_work_related": true, "task_relevance": 80, "activity_type": "research",
		  "activity_description": "reading docs", "productivity_level": "high",
		  "should_alert": false, "confidence": 90, "reasoning": "matches task"}`,
	}}
	c := NewClassifier(ai, nil, nil, ClassifierThresholds{}, nil)

	analysis, _ := c.Analyze(testCtx(t), "emp-1", AppEvent{Name: "chrome"}, nil)

	require.Equal(t, "ai", analysis.Source)
	assert.True(t, analysis.IsWorkRelated)
	assert.Equal(t, 80, analysis.TaskRelevance)
	assert.False(t, analysis.ShouldAlert)
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`{"a": 1}`:                          `{"a": 1}`,
		"```json\n{\"a\": 1}\n```":          `{"a": 1}`,
		"Sure! Here you go: {\"a\": 1} ok?": `{"a": 1}`,
		"no json here":                      "no json here",
	}
	for in, want := range cases {
		assert.Equal(t, want, extractJSON(in))
	}
}

func TestHeuristicConfidenceScaling(t *testing.T) {
	c := NewClassifier(nil, nil, nil, ClassifierThresholds{}, nil)

	// No indicators at all: the 40-confidence floor, below the uncertain
	// threshold, so the policy errs toward monitoring.
	pre := c.heuristic(AppEvent{Name: "someapp", Title: "untitled"}, "")
	assert.Equal(t, 40, pre.Confidence)
	assert.True(t, c.ShouldMonitor(pre))

	// Many matching indicators cap at 90.
	pre = c.heuristic(AppEvent{
		Title: "github gitlab jira confluence grafana kibana docker",
	}, "")
	assert.Equal(t, 90, pre.Confidence)
	assert.True(t, pre.IsWorkRelated)
}
