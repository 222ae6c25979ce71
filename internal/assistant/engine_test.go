package assistant

import (
	"testing"
	"time"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/incidents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultScope = domain.AccessScope{
	Brands:  []string{"Pizza Hut", "KFC", "Taco Bell"},
	Markets: []string{"North America", "EMEA"},
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(EngineConfig{ReportedUptime: 96.8})
	require.NoError(t, err)
	return e
}

func cannedInput(utterance string, scope domain.AccessScope) Input {
	return Input{Utterance: utterance, Scope: scope, Incidents: incidents.FallbackIncidents(), Now: cannedNow}
}

func TestEngine_Match(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		utterance string
		want      string
	}{
		{utterance: "Show me active incidents for Pizza Hut", want: RuleActiveIncidents},
		{utterance: "anything OPEN?", want: RuleActiveIncidents},
		{utterance: "show active P1 incidents", want: RuleActiveIncidents},
		{utterance: "Were there any P1 incidents this week?", want: RuleCritical},
		{utterance: "critical stuff", want: RuleCritical},
		{utterance: "What's the status of the payment system?", want: RulePayments},
		{utterance: "billing", want: RulePayments},
		{utterance: "Show incidents affecting mobile apps", want: RuleMobile},
		{utterance: "is everything happy", want: RuleMobile},
		{utterance: "system health", want: RuleStatus},
		{utterance: "Weekly incident summary", want: RuleWeeklySummary},
		{utterance: "HELP", want: RuleHelp},
		{utterance: "What can you do?", want: RuleHelp},
		{utterance: "xyzzy", want: RuleFallback},
		{utterance: "", want: RuleFallback},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Match(tt.utterance))
		})
	}
}

func TestEngine_Respond_FirstMatchWins(t *testing.T) {
	e := newTestEngine(t)

	resp, err := e.Respond(cannedInput("show active P1 incidents", defaultScope))
	require.NoError(t, err)

	assert.Equal(t, RuleActiveIncidents, resp.Rule)
	assert.Equal(t, "Here are the current active incidents visible to you:", resp.Content)

	list, ok := resp.Attachment.(domain.IncidentListAttachment)
	require.True(t, ok)
	require.Len(t, list.Incidents, 2)
	assert.Equal(t, "INC-001", list.Incidents[0].ID)
	assert.Equal(t, "INC-002", list.Incidents[1].ID)
}

func TestEngine_Respond_Fallback(t *testing.T) {
	e := newTestEngine(t)
	scope := domain.AccessScope{Brands: []string{"Pizza Hut", "KFC"}}

	resp, err := e.Respond(cannedInput("xyzzy", scope))
	require.NoError(t, err)

	assert.Equal(t, RuleFallback, resp.Rule)
	assert.Nil(t, resp.Attachment)
	assert.Contains(t, resp.Content, "Could you be more specific?")
	assert.Contains(t, resp.Content, "I have access to incidents for: Pizza Hut, KFC")
}

func TestEngine_Respond_CannedAnswers(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name      string
		utterance string
		want      string
	}{
		{
			name:      "critical",
			utterance: "any P1?",
			want: "I found 1 P1 critical incident currently active:\n\n" +
				"**INC-001: Payment Processing Delayed**\n" +
				"- Brand: Pizza Hut\n" +
				"- Status: Active since 3:30 PM\n" +
				"- Impact: High - affecting order completion\n\n" +
				"This incident is being actively worked on by the engineering team. Would you like more details or updates?",
		},
		{
			name:      "payments",
			utterance: "payment problems?",
			want: "There is currently a known issue with payment processing:\n\n" +
				"**Active Issue:** Payment Processing Delayed (INC-001)\n" +
				"- Affects: Pizza Hut payment systems\n" +
				"- Severity: P1 Critical\n" +
				"- Status: Engineers are working on a fix\n\n" +
				"Customers experiencing delays in payment processing across mobile and web platforms",
		},
		{
			name:      "mobile",
			utterance: "mobile issues",
			want: "I found mobile app related incidents:\n\n" +
				"**INC-002: Mobile App Login Issues**\n" +
				"- Brand: KFC\n" +
				"- Region: EMEA\n" +
				"- Severity: P2\n" +
				"- Status: Investigating\n" +
				"- Started: 2:15 PM today\n\n" +
				"Users unable to log into mobile application in UK and Germany",
		},
		{
			name:      "status",
			utterance: "status",
			want: "Current system status across your accessible brands:\n\n" +
				"🔴 **Pizza Hut**: Payment Processing Delayed (P1 incident active)\n" +
				"🟡 **KFC**: Mobile App Login Issues in EMEA (P2)\n" +
				"🟢 **Taco Bell**: All systems operational\n\n" +
				"Overall uptime this week: 96.8%\n" +
				"Active incidents: 2\n" +
				"Resolved incidents today: 0",
		},
		{
			name:      "weekly summary",
			utterance: "weekly summary",
			want: "**Weekly Incident Summary (Jan 16-22, 2025)**\n\n" +
				"📊 **Statistics:**\n" +
				"- Total incidents: 2\n" +
				"- P1 Critical: 1\n" +
				"- P2 High: 1\n" +
				"- P3 Medium: 0\n" +
				"- Average resolution time: n/a\n" +
				"- Uptime: 96.8%\n\n" +
				"🔥 **Most affected brands:**\n" +
				"1. KFC (1 incident)\n" +
				"2. Pizza Hut (1 incident)\n\n" +
				"Would you like details on any specific incident or brand?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := e.Respond(cannedInput(tt.utterance, defaultScope))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Content)
			assert.Nil(t, resp.Attachment)
		})
	}
}

func TestEngine_Respond_Help(t *testing.T) {
	resp, err := newTestEngine(t).Respond(cannedInput("help", defaultScope))
	require.NoError(t, err)

	assert.Contains(t, resp.Content, "I can help you with:")
	assert.Contains(t, resp.Content, `- "Weekly incident summary"`)
	assert.Contains(t, resp.Content, "Just ask me anything about incidents in natural language!")
}

func TestEngine_Respond_RestrictedToScope(t *testing.T) {
	e := newTestEngine(t)
	kfcOnly := domain.AccessScope{Brands: []string{"KFC"}}

	tests := []struct {
		utterance string
		want      string
	}{
		{utterance: "p1", want: "There are no active P1 critical incidents for your brands right now."},
		{utterance: "billing", want: "Payment and billing systems are operating normally for your brands. No related incidents are open."},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			resp, err := e.Respond(cannedInput(tt.utterance, kfcOnly))
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Content)
		})
	}

	resp, err := e.Respond(cannedInput("open incidents", kfcOnly))
	require.NoError(t, err)
	list := resp.Attachment.(domain.IncidentListAttachment)
	require.Len(t, list.Incidents, 1)
	assert.Equal(t, "KFC", list.Incidents[0].Brand)

	resp, err = e.Respond(cannedInput("health", kfcOnly))
	require.NoError(t, err)
	assert.NotContains(t, resp.Content, "Pizza Hut")
	assert.Contains(t, resp.Content, "Active incidents: 1")
}

func TestEngine_Respond_NoActiveIncidents(t *testing.T) {
	e := newTestEngine(t)
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

	resolved := []domain.Incident{{
		ID: "INC-9", Title: "Menu sync", Severity: domain.SeverityP3, Status: domain.StatusResolved,
		Brand: "KFC", StartTime: now.Add(-3 * time.Hour), LastUpdate: now.Add(-time.Hour),
	}}

	resp, err := e.Respond(Input{Utterance: "active?", Scope: defaultScope, Incidents: resolved, Now: now})
	require.NoError(t, err)
	assert.Equal(t, "There are no active incidents visible to you right now.", resp.Content)

	list, ok := resp.Attachment.(domain.IncidentListAttachment)
	require.True(t, ok, "the list attachment is always present")
	assert.Empty(t, list.Incidents)

	resp, err = e.Respond(Input{Utterance: "status", Scope: defaultScope, Incidents: resolved, Now: now})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "Resolved incidents today: 1")
	assert.Contains(t, resp.Content, "🟢 **KFC**: All systems operational")
}

func TestEngine_Respond_MostRelevantCritical(t *testing.T) {
	e := newTestEngine(t)
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

	list := []domain.Incident{
		{ID: "INC-10", Title: "Older outage", Severity: domain.SeverityP1, Status: domain.StatusActive, Brand: "KFC", StartTime: now.Add(-5 * time.Hour)},
		{ID: "INC-11", Title: "Newer outage", Severity: domain.SeverityP1, Status: domain.StatusInvestigating, Brand: "Taco Bell", StartTime: now.Add(-time.Hour)},
		{ID: "INC-12", Title: "Resolved outage", Severity: domain.SeverityP1, Status: domain.StatusResolved, Brand: "KFC", StartTime: now},
	}

	resp, err := e.Respond(Input{Utterance: "critical", Scope: defaultScope, Incidents: list, Now: now})
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "I found 2 P1 critical incidents currently active:")
	assert.Contains(t, resp.Content, "**INC-11: Newer outage**")
	assert.Contains(t, resp.Content, "- Also active: INC-10 (KFC)")
	assert.NotContains(t, resp.Content, "INC-12")
}

func TestEngine_Timezone(t *testing.T) {
	e, err := NewEngine(EngineConfig{ReportedUptime: 99, Location: time.FixedZone("EST", -5*60*60)})
	require.NoError(t, err)

	resp, err := e.Respond(cannedInput("p1", defaultScope))
	require.NoError(t, err)
	assert.Contains(t, resp.Content, "Active since 10:30 AM")
}

func TestEngine_DateRange(t *testing.T) {
	e := newTestEngine(t)
	d := func(y int, m time.Month, day int) time.Time { return time.Date(y, m, day, 0, 0, 0, 0, time.UTC) }

	assert.Equal(t, "Jan 16-22, 2025", e.dateRange(d(2025, 1, 16), d(2025, 1, 22)))
	assert.Equal(t, "Jan 29 - Feb 4, 2025", e.dateRange(d(2025, 1, 29), d(2025, 2, 4)))
	assert.Equal(t, "Dec 29, 2024 - Jan 4, 2025", e.dateRange(d(2024, 12, 29), d(2025, 1, 4)))
}

func TestEngine_RelativeDay(t *testing.T) {
	e := newTestEngine(t)
	now := time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "today", e.relativeDay(now.Add(-time.Hour), now))
	assert.Equal(t, "yesterday", e.relativeDay(now.Add(-20*time.Hour), now))
	assert.Equal(t, "on Feb 27", e.relativeDay(now.AddDate(0, 0, -4), now))
}
