package monitoring

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"
)

// TimeRestrictions limits when a whitelist entry applies, evaluated in the
// entry's timezone.
type TimeRestrictions struct {
	StartHour int            `json:"start_hour" yaml:"start_hour"`
	EndHour   int            `json:"end_hour" yaml:"end_hour"`
	Days      []time.Weekday `json:"days" yaml:"days"`
	Timezone  string         `json:"timezone" yaml:"timezone"`
}

// UsageLimits caps how long an entry may be used per day or per session.
type UsageLimits struct {
	MaxDailyMinutes   int `json:"max_daily_minutes" yaml:"max_daily_minutes"`
	MaxSessionMinutes int `json:"max_session_minutes" yaml:"max_session_minutes"`
}

// WhitelistEntry is an admin-approved domain or application. The engine
// treats entries as read-only except for usage accounting.
type WhitelistEntry struct {
	Domain           string            `json:"domain" yaml:"domain"`
	DomainPattern    string            `json:"domain_pattern" yaml:"domain_pattern"`
	Patterns         []string          `json:"patterns" yaml:"patterns"`
	Category         string            `json:"category" yaml:"category"`
	TrustLevel       string            `json:"trust_level" yaml:"trust_level"`
	AllowedPaths     []string          `json:"allowed_paths" yaml:"allowed_paths"`
	BlockedPaths     []string          `json:"blocked_paths" yaml:"blocked_paths"`
	TimeRestrictions *TimeRestrictions `json:"time_restrictions" yaml:"time_restrictions"`
	UsageLimits      *UsageLimits      `json:"usage_limits" yaml:"usage_limits"`
	MonitoringLevel  string            `json:"monitoring_level" yaml:"monitoring_level"`
	AutoScreenshot   bool              `json:"auto_screenshot" yaml:"auto_screenshot"`
}

// Verdict is the result of a whitelist evaluation.
type Verdict struct {
	Allowed         bool            `json:"allowed"`
	Entry           *WhitelistEntry `json:"entry,omitempty"`
	MonitoringLevel string          `json:"monitoring_level,omitempty"`
	AutoScreenshot  bool            `json:"auto_screenshot,omitempty"`
	Reason          string          `json:"reason,omitempty"`
}

type entryUsage struct {
	day      string
	visits   int
	duration time.Duration
}

// Whitelist evaluates URLs and application names against the approved
// entries. Evaluation fails closed: a malformed URL or broken entry yields
// a deny and the downstream pipeline decides whether to monitor.
type Whitelist struct {
	mu      sync.RWMutex
	entries []*WhitelistEntry
	usage   map[string]*entryUsage // keyed by employeeID|domain
	now     func() time.Time
}

func NewWhitelist(entries []*WhitelistEntry) *Whitelist {
	return &Whitelist{
		entries: entries,
		usage:   make(map[string]*entryUsage),
		now:     time.Now,
	}
}

// SetEntries replaces the entry set. Called by the admin collaborator.
func (w *Whitelist) SetEntries(entries []*WhitelistEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = entries
}

// Entries returns a snapshot of the current entry set.
func (w *Whitelist) Entries() []*WhitelistEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]*WhitelistEntry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Evaluate checks a URL or bare application name for an employee and
// returns the verdict. On match it increments the usage counter.
func (w *Whitelist) Evaluate(employeeID, rawURL string) Verdict {
	host, path, err := splitTarget(rawURL)
	if err != nil {
		return Verdict{Allowed: false, Reason: fmt.Sprintf("malformed target: %v", err)}
	}

	w.mu.RLock()
	entries := w.entries
	w.mu.RUnlock()

	for _, entry := range entries {
		if !matchesDomain(entry, host, rawURL) {
			continue
		}

		if reason, blocked := pathBlocked(entry, path); blocked {
			return Verdict{Allowed: false, Entry: entry, Reason: reason}
		}

		if entry.TimeRestrictions != nil {
			if ok, reason := w.withinTimeWindow(entry.TimeRestrictions); !ok {
				return Verdict{Allowed: false, Entry: entry, Reason: reason}
			}
		}

		if entry.UsageLimits != nil && entry.UsageLimits.MaxDailyMinutes > 0 {
			if w.dailyUsage(employeeID, entry.Domain) > time.Duration(entry.UsageLimits.MaxDailyMinutes)*time.Minute {
				return Verdict{Allowed: false, Entry: entry, Reason: "daily usage limit exceeded"}
			}
		}

		w.recordVisit(employeeID, entry.Domain)

		return Verdict{
			Allowed:         true,
			Entry:           entry,
			MonitoringLevel: entry.MonitoringLevel,
			AutoScreenshot:  entry.AutoScreenshot,
		}
	}

	return Verdict{Allowed: false, Reason: "no whitelist entry matches"}
}

// RecordUsage adds observed time on a domain, feeding the daily usage limit.
func (w *Whitelist) RecordUsage(employeeID, domain string, d time.Duration) {
	if domain == "" || d <= 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	u := w.usageLocked(employeeID, domain)
	u.duration += d
}

func (w *Whitelist) recordVisit(employeeID, domain string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	u := w.usageLocked(employeeID, domain)
	u.visits++
}

func (w *Whitelist) dailyUsage(employeeID, domain string) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.usageLocked(employeeID, domain).duration
}

// usageLocked returns the usage bucket for today, resetting stale days.
func (w *Whitelist) usageLocked(employeeID, domain string) *entryUsage {
	key := employeeID + "|" + domain
	day := w.now().Format("2006-01-02")
	u, ok := w.usage[key]
	if !ok || u.day != day {
		u = &entryUsage{day: day}
		w.usage[key] = u
	}
	return u
}

func (w *Whitelist) withinTimeWindow(tr *TimeRestrictions) (bool, string) {
	loc := time.Local
	if tr.Timezone != "" {
		l, err := time.LoadLocation(tr.Timezone)
		if err != nil {
			// Broken timezone fails closed.
			return false, fmt.Sprintf("invalid timezone %q", tr.Timezone)
		}
		loc = l
	}

	now := w.now().In(loc)

	if len(tr.Days) > 0 {
		dayOK := false
		for _, d := range tr.Days {
			if now.Weekday() == d {
				dayOK = true
				break
			}
		}
		if !dayOK {
			return false, "outside allowed days"
		}
	}

	if tr.StartHour != 0 || tr.EndHour != 0 {
		h := now.Hour()
		inWindow := h >= tr.StartHour && h < tr.EndHour
		if tr.EndHour < tr.StartHour {
			// The window wraps past midnight, e.g. 22 to 6.
			inWindow = h >= tr.StartHour || h < tr.EndHour
		}
		if !inWindow {
			return false, "outside allowed hours"
		}
	}

	return true, ""
}

func matchesDomain(entry *WhitelistEntry, host, rawURL string) bool {
	if entry.Domain != "" {
		if host == entry.Domain || strings.HasSuffix(host, "."+entry.Domain) {
			return true
		}
	}

	if entry.DomainPattern != "" {
		re, err := regexp.Compile(entry.DomainPattern)
		if err == nil && re.MatchString(host) {
			return true
		}
	}

	for _, p := range entry.Patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		if re.MatchString(rawURL) {
			return true
		}
	}

	return false
}

// pathBlocked applies blocked-path precedence over allowed paths.
func pathBlocked(entry *WhitelistEntry, path string) (string, bool) {
	for _, blocked := range entry.BlockedPaths {
		if blocked != "" && strings.HasPrefix(path, blocked) {
			return fmt.Sprintf("path %s is blocked", path), true
		}
	}

	if len(entry.AllowedPaths) > 0 {
		for _, allowed := range entry.AllowedPaths {
			if strings.HasPrefix(path, allowed) {
				return "", false
			}
		}
		return fmt.Sprintf("path %s is not in the allowed set", path), true
	}

	return "", false
}

// splitTarget extracts hostname and path from a URL, or treats a bare
// application name as its own host.
func splitTarget(raw string) (host, path string, err error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", fmt.Errorf("empty target")
	}

	if !strings.Contains(trimmed, "://") {
		if strings.ContainsAny(trimmed, " \t") && !strings.Contains(trimmed, ".") {
			// Bare application name ("Visual Studio Code")
			return strings.ToLower(trimmed), "/", nil
		}
		trimmed = "https://" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", "", err
	}
	if u.Hostname() == "" {
		return "", "", fmt.Errorf("no hostname in %q", raw)
	}

	p := u.Path
	if p == "" {
		p = "/"
	}
	return strings.ToLower(u.Hostname()), p, nil
}
