package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSensorTypeMatchesKeywords(t *testing.T) {
	cases := map[string]string{
		"WaterDepth_m":       "Depth",
		"CDOM_ppb":           "CDOM",
		"Turb_NTU":           "Turbidity",
		"BattVoltage":        "Battery",
		"DOdegC":             "DO_Temperature",
		"DOTdegC":            "DO_Temperature",
		"DOuM":               "Dissolved_O2",
		"CondumS":            "Conductivity",
		"CondTdegC":          "Cond_Temperature",
		"SomethingElseEntirely": "SomethingElseEntirely",
	}
	for name, want := range cases {
		assert.Equal(t, want, deriveSensorType(name), "name=%s", name)
	}
}

func TestDeriveSensorTypeFirstMatchWins(t *testing.T) {
	// "Depth" appears before "Batt" in the rule table, so a name carrying
	// both keywords resolves to Depth.
	assert.Equal(t, "Depth", deriveSensorType("BattDepthProbe"))
}
