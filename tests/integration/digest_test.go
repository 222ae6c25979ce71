//go:build integration

package integration

import (
	"net/http"
	"testing"

	"github.com/bissquit/incident-portal/internal/digest"
	"github.com/bissquit/incident-portal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestPreferences_Lifecycle(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, "digest.reader@example.com")

	resp, err := client.GET("/api/v1/digest/preferences")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got digest.PreferencesResponse
	testutil.DecodeJSON(t, resp, &got)
	assert.Equal(t, digest.DefaultPreferences(), got.Preferences)
	assert.NotNil(t, got.NextDelivery)

	want := digest.Preferences{
		Enabled:         true,
		DeliveryDay:     "friday",
		DeliveryTime:    "09:30",
		Brands:          []string{"Taco Bell"},
		IncludeResolved: false,
		IncludeMetrics:  true,
	}
	resp, err = client.PUT("/api/v1/digest/preferences", want)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &got)
	assert.Equal(t, want, got.Preferences)

	resp, err = client.POST("/api/v1/digest/preferences/actions", map[string]string{
		"type":  "toggle_brand",
		"value": "KFC",
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &got)
	assert.Equal(t, []string{"Taco Bell", "KFC"}, got.Preferences.Brands)

	resp, err = client.GET("/api/v1/digest/preferences")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	testutil.DecodeJSON(t, resp, &got)
	assert.Equal(t, "friday", got.Preferences.DeliveryDay)
}

func TestDigestPreferences_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body digest.Preferences
	}{
		{
			name: "weekend day",
			body: digest.Preferences{DeliveryDay: "sunday", DeliveryTime: "17:00", Brands: []string{}},
		},
		{
			name: "bad time",
			body: digest.Preferences{DeliveryDay: "monday", DeliveryTime: "25:61", Brands: []string{}},
		},
		{
			name: "unknown brand",
			body: digest.Preferences{DeliveryDay: "monday", DeliveryTime: "17:00", Brands: []string{"Burger Planet"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClientWithoutValidation()
			client.LoginAs(t, "digest.invalid@example.com")

			resp, err := client.PUT("/api/v1/digest/preferences", tt.body)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestDigestPreview(t *testing.T) {
	client := newTestClient(t)
	client.LoginAs(t, "digest.preview@example.com")

	resp, err := client.GET("/api/v1/digest/preview")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out digest.PreviewResponse
	testutil.DecodeJSON(t, resp, &out)

	assert.False(t, out.Fallback)
	require.NotNil(t, out.Summary)

	ids := make([]string, 0, len(out.Incidents))
	for _, s := range out.Incidents {
		ids = append(ids, s.ID)
	}
	// default preferences cover Pizza Hut and KFC
	assert.ElementsMatch(t, []string{"PG-1", "PG-2"}, ids)
}
