package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterCriteria(t *testing.T) {
	tests := []struct {
		name     string
		severity string
		brand    string
		status   string
		want     FilterCriteria
		wantErr  error
	}{
		{"empty means all", "", "", "", DefaultFilterCriteria(), nil},
		{"explicit all", "all", "all", "all", DefaultFilterCriteria(), nil},
		{"concrete values", "P1", "KFC", "Active", FilterCriteria{Severity: "P1", Brand: "KFC", Status: "Active"}, nil},
		{"unknown brand accepted", "", "Nope", "", FilterCriteria{Severity: "all", Brand: "Nope", Status: "all"}, nil},
		{"bad severity", "P4", "", "", FilterCriteria{}, ErrInvalidSeverityFilter},
		{"bad status", "", "", "active", FilterCriteria{}, ErrInvalidStatusFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilterCriteria(tt.severity, tt.brand, tt.status)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatus_IsActive(t *testing.T) {
	assert.True(t, StatusActive.IsActive())
	assert.True(t, StatusInvestigating.IsActive())
	assert.False(t, StatusMonitoring.IsActive())
	assert.False(t, StatusResolved.IsActive())
}

func TestSeverity_Rank(t *testing.T) {
	assert.Less(t, SeverityP1.Rank(), SeverityP2.Rank())
	assert.Less(t, SeverityP2.Rank(), SeverityP3.Rank())
	assert.Equal(t, 0, Severity("P9").Rank())
}

func TestAccessScope_Intersect(t *testing.T) {
	s := AccessScope{Brands: []string{"Pizza Hut", "KFC", "Taco Bell"}, Markets: []string{"EMEA", "APAC"}}
	other := AccessScope{Brands: []string{"Taco Bell", "Pizza Hut"}, Markets: []string{"EMEA"}}

	got := s.Intersect(other)
	assert.Equal(t, []string{"Pizza Hut", "Taco Bell"}, got.Brands)
	assert.Equal(t, []string{"EMEA"}, got.Markets)
}

func TestTurn_JSONWithAttachment(t *testing.T) {
	ts := time.Date(2025, 1, 22, 15, 30, 0, 0, time.UTC)
	turn := Turn{
		ID:        "t1",
		Speaker:   SpeakerAssistant,
		Content:   "Here you go",
		Timestamp: ts,
		Attachment: IncidentListAttachment{Incidents: []IncidentSummary{
			{ID: "INC-001", Title: "Payment Processing Delayed", Severity: SeverityP1, Brand: "Pizza Hut", Status: StatusActive, StartTime: ts},
		}},
	}

	b, err := json.Marshal(turn)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.Equal(t, "bot", raw["type"])
	data, ok := raw["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "incident-list", data["type"])

	var back Turn
	require.NoError(t, json.Unmarshal(b, &back))
	list, ok := back.Attachment.(IncidentListAttachment)
	require.True(t, ok)
	assert.Equal(t, "INC-001", list.Incidents[0].ID)
}

func TestTurn_JSONWithoutAttachment(t *testing.T) {
	b, err := json.Marshal(Turn{ID: "t2", Speaker: SpeakerUser, Content: "hi"})
	require.NoError(t, err)
	assert.NotContains(t, string(b), `"data"`)
}

func TestDecodeAttachment_UnknownType(t *testing.T) {
	_, err := DecodeAttachment(json.RawMessage(`{"type":"chart"}`))
	assert.Error(t, err)
}

func TestIncidentReport_NeedsOnCall(t *testing.T) {
	assert.True(t, (&IncidentReport{Severity: SeverityP1}).NeedsOnCall())
	assert.True(t, (&IncidentReport{Severity: SeverityP2}).NeedsOnCall())
	assert.False(t, (&IncidentReport{Severity: SeverityP3}).NeedsOnCall())
	assert.True(t, (&IncidentReport{Severity: SeverityP3, UrgentNotification: true}).NeedsOnCall())
}
