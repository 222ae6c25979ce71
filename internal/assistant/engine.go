// Package assistant answers stakeholder chat messages from the incident snapshot.
package assistant

import (
	"bytes"
	"cmp"
	"embed"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/incident-portal/internal/digest"
	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/incidents"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// Rule names, in evaluation order.
const (
	RuleActiveIncidents = "active_incidents"
	RuleCritical        = "critical"
	RulePayments        = "payments"
	RuleMobile          = "mobile"
	RuleStatus          = "status"
	RuleWeeklySummary   = "weekly_summary"
	RuleHelp            = "help"
	RuleFallback        = "fallback"
)

type rule struct {
	name     string
	triggers []string
}

// rules are evaluated in order; the first rule with a matching trigger wins.
var rules = []rule{
	{name: RuleActiveIncidents, triggers: []string{"active", "open"}},
	{name: RuleCritical, triggers: []string{"p1", "critical"}},
	{name: RulePayments, triggers: []string{"payment", "billing"}},
	{name: RuleMobile, triggers: []string{"mobile", "app"}},
	{name: RuleStatus, triggers: []string{"status", "health"}},
	{name: RuleWeeklySummary, triggers: []string{"week", "summary"}},
	{name: RuleHelp, triggers: []string{"help", "what can you"}},
}

// Input is everything a response is computed from.
type Input struct {
	Utterance string
	Scope     domain.AccessScope
	Incidents []domain.Incident
	Now       time.Time
}

// Response is the engine's answer to one utterance.
type Response struct {
	Rule       string
	Content    string
	Attachment domain.Attachment
}

// EngineConfig configures rendering.
type EngineConfig struct {
	ReportedUptime float64
	Location       *time.Location
}

// Engine matches utterances against the rule table and renders the answer.
type Engine struct {
	templates map[string]*template.Template
	cfg       EngineConfig
}

// NewEngine parses the embedded rule templates.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	e := &Engine{
		templates: make(map[string]*template.Template, len(rules)+1),
		cfg:       cfg,
	}

	funcs := e.funcMap()
	names := make([]string, 0, len(rules)+1)
	for _, r := range rules {
		names = append(names, r.name)
	}
	names = append(names, RuleFallback)

	for _, name := range names {
		filename := "templates/" + name + ".tmpl"
		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}
		tmpl, err := template.New(name).Funcs(funcs).Option("missingkey=error").Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", filename, err)
		}
		e.templates[name] = tmpl
	}

	return e, nil
}

// Match returns the name of the first rule triggered by utterance, or RuleFallback.
func (e *Engine) Match(utterance string) string {
	// a Caser is stateful, so each call gets its own
	normalized := cases.Lower(language.Und).String(utterance)
	for _, r := range rules {
		for _, trigger := range r.triggers {
			if strings.Contains(normalized, trigger) {
				return r.name
			}
		}
	}
	return RuleFallback
}

// Respond answers the utterance. Only incidents of brands in scope are used.
func (e *Engine) Respond(in Input) (Response, error) {
	name := e.Match(in.Utterance)
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	visible := incidents.FilterIncidents(in.Incidents, in.Scope, domain.DefaultFilterCriteria())

	var (
		data       any
		attachment domain.Attachment
	)

	switch name {
	case RuleActiveIncidents:
		active := activeIncidents(visible)
		summaries := make([]domain.IncidentSummary, 0, len(active))
		for i := range active {
			summaries = append(summaries, active[i].Summary())
		}
		data = struct{ Incidents []domain.Incident }{active}
		attachment = domain.IncidentListAttachment{Incidents: summaries}

	case RuleCritical:
		data = criticalData(visible)

	case RulePayments:
		data = struct{ Incidents []domain.Incident }{openMatching(visible, mentionsPayments)}

	case RuleMobile:
		data = struct {
			Incidents []domain.Incident
			Now       time.Time
		}{openMatching(visible, mentionsMobile), in.Now}

	case RuleStatus:
		data = e.statusData(visible, in.Scope, in.Now)

	case RuleWeeklySummary:
		data = e.weeklyData(visible, in.Now)

	case RuleHelp:
		data = nil

	default:
		data = struct{ Brands []string }{in.Scope.Brands}
	}

	content, err := e.render(name, data)
	if err != nil {
		return Response{}, err
	}

	recordRuleMatch(name)
	return Response{Rule: name, Content: content, Attachment: attachment}, nil
}

func (e *Engine) render(name string, data any) (string, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute template %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (e *Engine) funcMap() template.FuncMap {
	return template.FuncMap{
		"join":          strings.Join,
		"clock":         func(t time.Time) string { return t.In(e.cfg.Location).Format("3:04 PM") },
		"day":           e.relativeDay,
		"dateRange":     e.dateRange,
		"percent":       func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
		"plural":        plural,
		"inc":           func(i int) int { return i + 1 },
		"severityLabel": severityLabel,
		"statusNote":    statusNote,
		"healthIcon":    healthIcon,
		"healthNote":    healthNote,
	}
}

func activeIncidents(list []domain.Incident) []domain.Incident {
	out := make([]domain.Incident, 0, len(list))
	for i := range list {
		if list[i].Status.IsActive() {
			out = append(out, list[i])
		}
	}
	return out
}

type critical struct {
	Critical []domain.Incident
	Top      *domain.Incident
	Others   []domain.Incident
}

// criticalData picks the most recently started active P1 as the most relevant one.
func criticalData(list []domain.Incident) critical {
	var c critical
	for i := range list {
		if list[i].IsCritical() {
			c.Critical = append(c.Critical, list[i])
		}
	}
	if len(c.Critical) == 0 {
		return c
	}

	slices.SortStableFunc(c.Critical, func(a, b domain.Incident) int {
		return b.StartTime.Compare(a.StartTime)
	})
	c.Top = &c.Critical[0]
	c.Others = c.Critical[1:]
	return c
}

var appWord = regexp.MustCompile(`\bapps?\b`)

func mentionsPayments(text string) bool {
	return strings.Contains(text, "payment") || strings.Contains(text, "billing")
}

func mentionsMobile(text string) bool {
	return strings.Contains(text, "mobile") || appWord.MatchString(text)
}

// openMatching returns unresolved incidents whose title or impact matches.
// Descriptions mention channels in passing and are not searched.
func openMatching(list []domain.Incident, match func(string) bool) []domain.Incident {
	var out []domain.Incident
	for i := range list {
		inc := &list[i]
		if inc.Status == domain.StatusResolved {
			continue
		}
		text := strings.ToLower(inc.Title + " " + inc.Impact)
		if match(text) {
			out = append(out, *inc)
		}
	}
	return out
}

// BrandHealth is the state of one brand in the status answer.
type BrandHealth struct {
	Brand  string
	Worst  *domain.Incident
	Active int
}

type statusView struct {
	Brands        []BrandHealth
	Uptime        float64
	Active        int
	ResolvedToday int
}

func (e *Engine) statusData(list []domain.Incident, scope domain.AccessScope, now time.Time) statusView {
	v := statusView{
		Brands: make([]BrandHealth, 0, len(scope.Brands)),
		Uptime: e.cfg.ReportedUptime,
		Active: incidents.ActiveCount(list),
	}

	for _, brand := range scope.Brands {
		h := BrandHealth{Brand: brand}
		for i := range list {
			inc := &list[i]
			if inc.Brand != brand || !inc.Status.IsActive() {
				continue
			}
			h.Active++
			if h.Worst == nil || worse(inc, h.Worst) {
				h.Worst = inc
			}
		}
		v.Brands = append(v.Brands, h)
	}

	y, m, d := now.In(e.cfg.Location).Date()
	for i := range list {
		if list[i].Status != domain.StatusResolved {
			continue
		}
		ry, rm, rd := list[i].LastUpdate.In(e.cfg.Location).Date()
		if ry == y && rm == m && rd == d {
			v.ResolvedToday++
		}
	}
	return v
}

// worse orders by severity rank, then by most recent start.
func worse(a, b *domain.Incident) bool {
	if c := cmp.Compare(a.Severity.Rank(), b.Severity.Rank()); c != 0 {
		return c < 0
	}
	return a.StartTime.After(b.StartTime)
}

func healthIcon(h BrandHealth) string {
	switch {
	case h.Worst == nil:
		return "🟢"
	case h.Worst.Severity == domain.SeverityP1:
		return "🔴"
	default:
		return "🟡"
	}
}

func healthNote(h BrandHealth) string {
	if h.Worst == nil {
		return "All systems operational"
	}

	var note string
	if h.Worst.Severity == domain.SeverityP1 {
		note = fmt.Sprintf("%s (P1 incident active)", h.Worst.Title)
	} else {
		note = fmt.Sprintf("%s in %s (%s)", h.Worst.Title, h.Worst.Market, h.Worst.Severity)
	}
	if more := h.Active - 1; more > 0 {
		note += fmt.Sprintf(", +%d more", more)
	}
	return note
}

type weeklyView struct {
	digest.Summary
	P1, P2, P3 int
}

// weeklyData summarises the current day and the six days before it.
func (e *Engine) weeklyData(list []domain.Incident, now time.Time) weeklyView {
	local := now.In(e.cfg.Location)
	y, m, d := local.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, e.cfg.Location).AddDate(0, 0, -6)

	s := digest.Summarize(list, from, local, e.cfg.ReportedUptime)
	return weeklyView{
		Summary: s,
		P1:      s.BySeverity[domain.SeverityP1],
		P2:      s.BySeverity[domain.SeverityP2],
		P3:      s.BySeverity[domain.SeverityP3],
	}
}

func (e *Engine) dateRange(from, to time.Time) string {
	from, to = from.In(e.cfg.Location), to.In(e.cfg.Location)
	switch {
	case from.Year() != to.Year():
		return from.Format("Jan 2, 2006") + " - " + to.Format("Jan 2, 2006")
	case from.Month() != to.Month():
		return from.Format("Jan 2") + " - " + to.Format("Jan 2, 2006")
	default:
		return fmt.Sprintf("%s %d-%d, %d", from.Format("Jan"), from.Day(), to.Day(), to.Year())
	}
}

func (e *Engine) relativeDay(t, now time.Time) string {
	t, now = t.In(e.cfg.Location), now.In(e.cfg.Location)
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	switch {
	case ty == ny && tm == nm && td == nd:
		return "today"
	case now.AddDate(0, 0, -1).Format(time.DateOnly) == t.Format(time.DateOnly):
		return "yesterday"
	default:
		return "on " + t.Format("Jan 2")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func severityLabel(s domain.Severity) string {
	switch s {
	case domain.SeverityP1:
		return "Critical"
	case domain.SeverityP2:
		return "High"
	case domain.SeverityP3:
		return "Medium"
	default:
		return ""
	}
}

func statusNote(s domain.Status) string {
	switch s {
	case domain.StatusActive:
		return "Engineers are working on a fix"
	case domain.StatusInvestigating:
		return "The team is investigating the root cause"
	case domain.StatusMonitoring:
		return "A fix is in place and being monitored"
	default:
		return string(s)
	}
}
