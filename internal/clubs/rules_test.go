package clubs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `[
	{
		"name": "Sunday Morning Club",
		"days": ["sunday"],
		"time_window": {"start": "10:30", "end": "12:30"}
	},
	{
		"name": "Tuesday Track Club",
		"days": ["tuesday"],
		"time_window": {"start": "18:00", "end": "20:00"},
		"city": "Singapore",
		"country": "Singapore"
	}
]`

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	// File order is preserved as priority order
	assert.Equal(t, []string{"Sunday Morning Club", "Tuesday Track Club"}, rules.Names())

	assert.Equal(t, []time.Weekday{time.Sunday}, rules[0].Days)
	assert.Equal(t, "10:30", rules[0].Start.String())
	assert.Equal(t, "12:30", rules[0].End.String())
	assert.Empty(t, rules[0].City)

	assert.Equal(t, "Singapore", rules[1].City)
	assert.Equal(t, "Singapore", rules[1].Country)
}

func TestParseRulesValidation(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing name", `[{"days": ["sunday"], "time_window": {"start": "10:00", "end": "11:00"}}]`},
		{"no days", `[{"name": "X", "days": [], "time_window": {"start": "10:00", "end": "11:00"}}]`},
		{"unknown weekday", `[{"name": "X", "days": ["funday"], "time_window": {"start": "10:00", "end": "11:00"}}]`},
		{"bad time", `[{"name": "X", "days": ["sunday"], "time_window": {"start": "25:00", "end": "11:00"}}]`},
		{"end before start", `[{"name": "X", "days": ["sunday"], "time_window": {"start": "12:00", "end": "11:00"}}]`},
		{"not an array", `{"name": "X"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRules([]byte(tt.json))
			assert.Error(t, err)
		})
	}
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("06:45")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay(6*3600+45*60), tod)
	assert.Equal(t, "06:45", tod.String())

	_, err = ParseTimeOfDay("6:45pm")
	assert.Error(t, err)
}

func TestSlugs(t *testing.T) {
	assert.Equal(t, "sunday-morning-club", NameToSlug("Sunday Morning Club"))
	assert.Equal(t, "Sunday Morning Club", SlugToName("sunday-morning-club"))
}
