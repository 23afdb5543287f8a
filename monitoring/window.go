package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sharmavijay45/Infiverse-BHL-sub000/zapctx"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SiteIdentity is the normalized result of a window detection: which
// application is focused, and for browsers, which site.
type SiteIdentity struct {
	Application string `json:"application"`
	Domain      string `json:"domain"`
	URL         string `json:"url"`
	Title       string `json:"title"`
}

// Key is the comparison identity used for change detection.
func (s SiteIdentity) Key() string {
	return s.Application + "|" + s.Domain
}

func (s SiteIdentity) empty() bool {
	return s.Application == "" && s.Domain == ""
}

// ObserverConfig bounds the OS-call frequency of a window observer.
type ObserverConfig struct {
	CacheTTL        time.Duration
	MinDelay        time.Duration
	DailyUsageLimit time.Duration
}

// windowObserver is the per-employee detection loop state. Owned by the
// employee's actor goroutine. It caches the last detection for a short TTL
// and rate-limits OS queries so polling stays cheap.
type windowObserver struct {
	employeeID string
	backend    Backend
	alerts     *AlertFactory
	metrics    *Metrics

	cacheTTL time.Duration
	limiter  *rate.Limiter

	cachedAt time.Time
	cached   SiteIdentity
	hasCache bool

	last     SiteIdentity
	hasLast  bool
	lastSeen time.Time

	usageDay     string
	domainUsage  map[string]time.Duration
	usageAlerted map[string]bool
	dailyLimit   time.Duration
	recordUsage  func(domain string, d time.Duration)

	now func() time.Time
}

func newWindowObserver(employeeID string, backend Backend, alerts *AlertFactory, metrics *Metrics, cfg ObserverConfig) *windowObserver {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 2 * time.Second
	}
	if cfg.MinDelay == 0 {
		cfg.MinDelay = time.Second
	}
	if cfg.DailyUsageLimit == 0 {
		cfg.DailyUsageLimit = 2 * time.Hour
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &windowObserver{
		employeeID:   employeeID,
		backend:      backend,
		alerts:       alerts,
		metrics:      metrics,
		cacheTTL:     cfg.CacheTTL,
		limiter:      rate.NewLimiter(rate.Every(cfg.MinDelay), 1),
		domainUsage:  make(map[string]time.Duration),
		usageAlerted: make(map[string]bool),
		dailyLimit:   cfg.DailyUsageLimit,
		now:          time.Now,
	}
}

// poll queries the backend (through cache and rate limit) and reports a
// change event when the derived identity differs from the previous tick.
func (wo *windowObserver) poll(ctx context.Context) (AppEvent, bool) {
	now := wo.now()

	identity, ok := wo.detect(ctx, now)
	if !ok {
		return AppEvent{}, false
	}

	wo.accountUsage(ctx, now)

	if wo.hasLast && identity.Key() == wo.last.Key() {
		wo.lastSeen = now
		return AppEvent{}, false
	}

	wo.last = identity
	wo.hasLast = true
	wo.lastSeen = now

	if identity.empty() {
		return AppEvent{}, false
	}

	zapctx.Debug(ctx, "Active window changed",
		zap.String("employee_id", wo.employeeID),
		zap.String("application", identity.Application),
		zap.String("domain", identity.Domain),
	)

	return AppEvent{
		Name:  identity.Application,
		URL:   identity.URL,
		Title: identity.Title,
	}, true
}

func (wo *windowObserver) detect(ctx context.Context, now time.Time) (SiteIdentity, bool) {
	if wo.hasCache && now.Sub(wo.cachedAt) < wo.cacheTTL {
		return wo.cached, true
	}
	if !wo.limiter.Allow() {
		if wo.hasCache {
			return wo.cached, true
		}
		return SiteIdentity{}, false
	}

	info, err := wo.backend.ActiveWindow(ctx)
	if err != nil {
		wo.metrics.DetectionFailures.Inc()
		zapctx.Warn(ctx, "Window detection failed",
			zap.Error(err), zap.String("employee_id", wo.employeeID))
		return SiteIdentity{}, false
	}

	var identity SiteIdentity
	if info != nil {
		identity = NormalizeWindow(info)
	}

	wo.cached = identity
	wo.cachedAt = now
	wo.hasCache = true
	return identity, true
}

// accountUsage attributes time since the previous tick to the previous
// domain and raises the excessive-usage alert when the daily limit trips.
func (wo *windowObserver) accountUsage(ctx context.Context, now time.Time) {
	day := now.Format("2006-01-02")
	if wo.usageDay != day {
		first := wo.usageDay == ""
		wo.usageDay = day
		wo.domainUsage = make(map[string]time.Duration)
		wo.usageAlerted = make(map[string]bool)
		if !first {
			// The interval spanned midnight; do not charge it to either day.
			return
		}
	}

	if !wo.hasLast || wo.last.Domain == "" || wo.lastSeen.IsZero() {
		return
	}

	elapsed := now.Sub(wo.lastSeen)
	wo.domainUsage[wo.last.Domain] += elapsed
	if wo.recordUsage != nil {
		wo.recordUsage(wo.last.Domain, elapsed)
	}

	if wo.domainUsage[wo.last.Domain] > wo.dailyLimit && !wo.usageAlerted[wo.last.Domain] {
		wo.usageAlerted[wo.last.Domain] = true
		wo.alerts.Create(ctx, wo.employeeID, AlertExcessiveUsage, SeverityMedium,
			"Excessive daily usage",
			fmt.Sprintf("More than %s spent on %s today", wo.dailyLimit, wo.last.Domain),
			map[string]interface{}{
				"domain":   wo.last.Domain,
				"duration": wo.domainUsage[wo.last.Domain].String(),
			})
	}
}

// usageFor returns accumulated usage for a domain today.
func (wo *windowObserver) usageFor(domain string) time.Duration {
	return wo.domainUsage[domain]
}

var knownBrowsers = []string{"chrome", "chromium", "firefox", "msedge", "edge", "brave", "safari", "opera", "vivaldi"}

// siteNames maps display names that appear in browser titles to canonical
// domains, for titles that carry no URL.
var siteNames = map[string]string{
	"facebook":       "facebook.com",
	"instagram":      "instagram.com",
	"youtube":        "youtube.com",
	"twitter":        "x.com",
	"reddit":         "reddit.com",
	"linkedin":       "linkedin.com",
	"netflix":        "netflix.com",
	"tiktok":         "tiktok.com",
	"github":         "github.com",
	"stack overflow": "stackoverflow.com",
	"gmail":          "mail.google.com",
	"whatsapp":       "web.whatsapp.com",
}

// NormalizeWindow derives the site identity from a raw window detection.
// Shared with the endpoint agent, which reports normalized events to the
// server API.
func NormalizeWindow(info *WindowInfo) SiteIdentity {
	app := strings.TrimSuffix(strings.ToLower(info.ProcessName), ".exe")

	identity := SiteIdentity{
		Application: app,
		Title:       info.Title,
	}

	if !isBrowserProcess(app) {
		return identity
	}

	title := stripBrowserSuffix(info.Title)
	identity.Title = title

	if domain := extractDomain(title); domain != "" {
		identity.Domain = domain
		identity.URL = "https://" + domain
		return identity
	}

	lower := strings.ToLower(title)
	for name, domain := range siteNames {
		if strings.Contains(lower, name) {
			identity.Domain = domain
			identity.URL = "https://" + domain
			return identity
		}
	}

	return identity
}

func isBrowserProcess(app string) bool {
	for _, b := range knownBrowsers {
		if strings.Contains(app, b) {
			return true
		}
	}
	return false
}

// stripBrowserSuffix drops the trailing "- Google Chrome" style segment
// browsers append to the page title.
func stripBrowserSuffix(title string) string {
	for _, sep := range []string{" - ", " — "} {
		parts := strings.Split(title, sep)
		if len(parts) < 2 {
			continue
		}
		tail := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
		for _, b := range []string{"chrome", "firefox", "edge", "mozilla", "safari", "brave", "opera", "vivaldi", "chromium"} {
			if strings.Contains(tail, b) {
				return strings.TrimSpace(strings.Join(parts[:len(parts)-1], sep))
			}
		}
	}
	return strings.TrimSpace(title)
}

// extractDomain finds a domain-looking token in a title, if any.
func extractDomain(title string) string {
	for _, tok := range strings.Fields(title) {
		candidate := tok
		if i := strings.Index(candidate, "://"); i >= 0 {
			candidate = candidate[i+3:]
		} else if !strings.HasPrefix(candidate, "www.") {
			continue
		}

		candidate = strings.Split(candidate, "/")[0]
		candidate = strings.Split(candidate, "?")[0]
		candidate = strings.TrimPrefix(candidate, "www.")
		if strings.Contains(candidate, ".") {
			return strings.ToLower(candidate)
		}
	}
	return ""
}
