package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"go.uber.org/zap"
)

// PrescreenResult is the evidence-free stage-one classification of an
// application/website context.
type PrescreenResult struct {
	IsWorkRelated bool   `json:"is_work_related"`
	Confidence    int    `json:"confidence"`
	ShouldMonitor bool   `json:"should_monitor"`
	Reasoning     string `json:"reasoning"`
	Source        string `json:"source"` // "ai" or "heuristic"
}

// AnalysisResult is the stage-two post-capture classification.
type AnalysisResult struct {
	IsWorkRelated       bool   `json:"is_work_related"`
	TaskRelevance       int    `json:"task_relevance"`
	ActivityType        string `json:"activity_type"`
	ActivityDescription string `json:"activity_description"`
	ProductivityLevel   string `json:"productivity_level"`
	ShouldAlert         bool   `json:"should_alert"`
	Confidence          int    `json:"confidence"`
	Reasoning           string `json:"reasoning"`
	Source              string `json:"source"`
}

// ClassifierThresholds are the tunable decision cut-offs.
type ClassifierThresholds struct {
	WorkConfidence      int // confidently work-related: do not monitor
	NonWorkConfidence   int // confidently non-work: monitor
	UncertainConfidence int // below this, monitor when genuinely unsure
}

// Classifier is the two-stage content classifier: a cheap pre-screen that
// gates evidence capture, and a post-capture OCR + relevance analysis. The
// external service is optional; every path has a keyword-heuristic fallback
// so a third-party outage degrades quality, never availability.
type Classifier struct {
	ai         TextClassifier
	ocr        OCREngine
	tasks      TaskProvider
	thresholds ClassifierThresholds
	metrics    *Metrics
}

func NewClassifier(ai TextClassifier, ocr OCREngine, tasks TaskProvider, thresholds ClassifierThresholds, metrics *Metrics) *Classifier {
	if tasks == nil {
		tasks = NoTasks{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if thresholds.WorkConfidence == 0 {
		thresholds.WorkConfidence = 70
	}
	if thresholds.NonWorkConfidence == 0 {
		thresholds.NonWorkConfidence = 60
	}
	if thresholds.UncertainConfidence == 0 {
		thresholds.UncertainConfidence = 50
	}
	return &Classifier{
		ai:         ai,
		ocr:        ocr,
		tasks:      tasks,
		thresholds: thresholds,
		metrics:    metrics,
	}
}

// Prescreen estimates work-relatedness from the context alone, before any
// evidence is captured.
func (c *Classifier) Prescreen(ctx context.Context, employeeID string, evt AppEvent) PrescreenResult {
	task, err := c.tasks.CurrentTask(ctx, employeeID)
	if err != nil {
		zapctx.Warn(ctx, "Task lookup failed, pre-screening without task context",
			zap.Error(err), zap.String("employee_id", employeeID))
		task = nil
	}

	if c.ai != nil {
		result, err := c.prescreenAI(ctx, evt, task)
		if err == nil {
			result.Source = "ai"
			return result
		}
		zapctx.Warn(ctx, "AI pre-screening failed, falling back to heuristic",
			zap.Error(err), zap.String("employee_id", employeeID))
		c.metrics.ClassifierFallbacks.WithLabelValues("prescreen").Inc()
	}

	return c.heuristic(evt, "")
}

// ShouldMonitor applies the decision policy to a pre-screen result. The
// policy errs toward capturing when genuinely unsure.
func (c *Classifier) ShouldMonitor(r PrescreenResult) bool {
	switch {
	case r.IsWorkRelated && r.Confidence > c.thresholds.WorkConfidence:
		return false
	case !r.IsWorkRelated && r.Confidence > c.thresholds.NonWorkConfidence:
		return true
	case r.ShouldMonitor:
		return true
	default:
		return r.Confidence < c.thresholds.UncertainConfidence
	}
}

// Analyze runs the post-capture stage: OCR text extraction plus a
// work-relevance assessment against the employee's current task.
func (c *Classifier) Analyze(ctx context.Context, employeeID string, evt AppEvent, image []byte) (AnalysisResult, string) {
	ocrText := ""
	if c.ocr != nil && len(image) > 0 {
		text, conf, err := c.ocr.ExtractText(ctx, image)
		if err != nil {
			// OCR failure yields empty text, not a hard error.
			zapctx.Warn(ctx, "OCR extraction failed",
				zap.Error(err), zap.String("employee_id", employeeID))
		} else {
			zapctx.Debug(ctx, "OCR extracted text",
				zap.Int("chars", len(text)), zap.Float64("confidence", conf))
			ocrText = text
		}
	}

	task, err := c.tasks.CurrentTask(ctx, employeeID)
	if err != nil {
		task = nil
	}

	if c.ai != nil {
		result, err := c.analyzeAI(ctx, evt, task, ocrText)
		if err == nil {
			result.Source = "ai"
			return result, ocrText
		}
		zapctx.Warn(ctx, "AI analysis failed, falling back to heuristic",
			zap.Error(err), zap.String("employee_id", employeeID))
		c.metrics.ClassifierFallbacks.WithLabelValues("analysis").Inc()
	}

	pre := c.heuristic(evt, ocrText)
	return analysisFromHeuristic(pre), ocrText
}

func (c *Classifier) prescreenAI(ctx context.Context, evt AppEvent, task *Task) (PrescreenResult, error) {
	prompt := fmt.Sprintf(`You are screening workplace activity for policy compliance.
Context:
- Application: %s
- URL: %s
- Window title: %s
%s
Respond with ONLY a JSON object, no prose:
{"is_work_related": <bool>, "confidence": <0-100>, "should_monitor": <bool>, "reasoning": "<one sentence>"}`,
		evt.Name, evt.URL, evt.Title, taskContext(task))

	reply, err := c.ai.Complete(ctx, prompt)
	if err != nil {
		return PrescreenResult{}, err
	}

	var result PrescreenResult
	if err := json.Unmarshal([]byte(extractJSON(reply)), &result); err != nil {
		return PrescreenResult{}, fmt.Errorf("malformed pre-screen response: %w", err)
	}
	if result.Confidence < 0 || result.Confidence > 100 {
		return PrescreenResult{}, fmt.Errorf("pre-screen confidence %d out of range", result.Confidence)
	}
	return result, nil
}

func (c *Classifier) analyzeAI(ctx context.Context, evt AppEvent, task *Task, ocrText string) (AnalysisResult, error) {
	if len(ocrText) > 2000 {
		ocrText = ocrText[:2000]
	}

	prompt := fmt.Sprintf(`You are assessing whether captured workplace activity relates to the employee's assigned task.
Context:
- Application: %s
- URL: %s
- Window title: %s
%s- Text visible on screen: %q
Respond with ONLY a JSON object, no prose:
{"is_work_related": <bool>, "task_relevance": <0-100>, "activity_type": "<short label>", "activity_description": "<one sentence>", "productivity_level": "<high|medium|low>", "should_alert": <bool>, "confidence": <0-100>, "reasoning": "<one sentence>"}`,
		evt.Name, evt.URL, evt.Title, taskContext(task), ocrText)

	reply, err := c.ai.Complete(ctx, prompt)
	if err != nil {
		return AnalysisResult{}, err
	}

	var result AnalysisResult
	if err := json.Unmarshal([]byte(extractJSON(reply)), &result); err != nil {
		return AnalysisResult{}, fmt.Errorf("malformed analysis response: %w", err)
	}
	if result.TaskRelevance < 0 || result.TaskRelevance > 100 {
		return AnalysisResult{}, fmt.Errorf("task relevance %d out of range", result.TaskRelevance)
	}
	return result, nil
}

var workIndicators = []string{
	"github", "gitlab", "bitbucket", "stackoverflow", "stack overflow",
	"localhost", "127.0.0.1", "jira", "confluence", "slack", "teams",
	"zoom", "meet.google", "docs.google", "sheets.google", "notion",
	"aws.amazon", "console.cloud", "azure", "jenkins", "grafana",
	"kibana", "postman", "swagger", "vscode", "visual studio",
	"intellij", "pycharm", "terminal", "docker", "kubernetes",
	"documentation", "readthedocs", "developer.mozilla", "npmjs", "pypi",
}

var nonWorkIndicators = []string{
	"facebook", "instagram", "twitter", "x.com", "tiktok", "snapchat",
	"youtube", "netflix", "twitch", "spotify", "hulu", "primevideo",
	"reddit", "9gag", "buzzfeed", "tmz", "amazon.com/gp", "ebay",
	"aliexpress", "flipkart", "shopping", "steam", "epicgames",
	"game", "gossip", "celebrity", "dating", "tinder",
}

// heuristic is the keyword fallback: count work-indicator matches against
// non-work matches; confidence scales with the absolute difference.
func (c *Classifier) heuristic(evt AppEvent, extraText string) PrescreenResult {
	haystack := strings.ToLower(evt.Name + " " + evt.URL + " " + evt.Title + " " + extraText)

	work := 0
	for _, kw := range workIndicators {
		if strings.Contains(haystack, kw) {
			work++
		}
	}
	nonWork := 0
	for _, kw := range nonWorkIndicators {
		if strings.Contains(haystack, kw) {
			nonWork++
		}
	}

	diff := work - nonWork
	if diff < 0 {
		diff = -diff
	}
	confidence := 40 + diff*15
	if confidence > 90 {
		confidence = 90
	}

	isWork := work > nonWork
	return PrescreenResult{
		IsWorkRelated: isWork,
		Confidence:    confidence,
		ShouldMonitor: nonWork > work,
		Reasoning:     fmt.Sprintf("keyword heuristic: %d work vs %d non-work indicators", work, nonWork),
		Source:        "heuristic",
	}
}

// analysisFromHeuristic degrades a pre-screen heuristic into a stage-two
// shaped result at reduced confidence.
func analysisFromHeuristic(pre PrescreenResult) AnalysisResult {
	relevance := 20
	productivity := "low"
	if pre.IsWorkRelated {
		relevance = 60
		productivity = "medium"
	}

	confidence := pre.Confidence - 15
	if confidence < 10 {
		confidence = 10
	}

	return AnalysisResult{
		IsWorkRelated:       pre.IsWorkRelated,
		TaskRelevance:       relevance,
		ActivityType:        "unclassified",
		ActivityDescription: pre.Reasoning,
		ProductivityLevel:   productivity,
		ShouldAlert:         !pre.IsWorkRelated,
		Confidence:          confidence,
		Reasoning:           pre.Reasoning,
		Source:              "heuristic",
	}
}

func taskContext(task *Task) string {
	if task == nil {
		return "- Current task: none assigned\n"
	}
	return fmt.Sprintf("- Current task: %s (%s), priority %s\n", task.Title, task.Description, task.Priority)
}

// extractJSON strips markdown fences and surrounding prose from a model
// reply, keeping the outermost JSON object.
func extractJSON(reply string) string {
	s := strings.TrimSpace(reply)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			return s[i : j+1]
		}
	}
	return s
}
