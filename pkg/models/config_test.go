package models

import (
	"encoding/json"
	"testing"
)

func TestWithDefaultsFillsZeroFields(t *testing.T) {
	partial := MatchConfig{BallType: "leather", StumpHeight: 30}
	got := partial.WithDefaults()

	if got.BallType != "leather" {
		t.Errorf("BallType = %q, explicit value overwritten", got.BallType)
	}
	if got.StumpHeight != 30 {
		t.Errorf("StumpHeight = %v, explicit value overwritten", got.StumpHeight)
	}
	if got.PitchLength != 22 {
		t.Errorf("PitchLength = %v, want default 22", got.PitchLength)
	}
	if got.PitchSurface != "concrete" {
		t.Errorf("PitchSurface = %q, want default concrete", got.PitchSurface)
	}
	if got.ConfidenceThreshold != 0.75 {
		t.Errorf("ConfidenceThreshold = %v, want default 0.75", got.ConfidenceThreshold)
	}
}

func TestWithDefaultsOnZeroValue(t *testing.T) {
	if got := (MatchConfig{}).WithDefaults(); got != DefaultMatchConfig() {
		t.Errorf("zero config = %+v, want full defaults", got)
	}
}

func TestMatchConfigJSONFieldNames(t *testing.T) {
	// The settings payload travels with snake_case keys.
	b, err := json.Marshal(DefaultMatchConfig())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"pitch_length", "pitch_surface", "ball_type", "stump_height", "camera_distance"} {
		if _, ok := m[key]; !ok {
			t.Errorf("settings JSON missing key %q", key)
		}
	}
}

func TestConfidenceBucket(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{0, "0-25"}, {25, "0-25"}, {25.1, "26-50"}, {50, "26-50"},
		{51, "51-75"}, {75, "51-75"}, {75.5, "76-100"}, {100, "76-100"},
	}
	for _, tt := range tests {
		if got := ConfidenceBucket(tt.confidence); got != tt.want {
			t.Errorf("ConfidenceBucket(%v) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}

func TestDefaultCriteria(t *testing.T) {
	out := DefaultCriteria(DecisionOut)
	if !(out.PitchedInLine && out.ImpactInLine && out.LegBeforeBat && out.WouldHitWickets) {
		t.Errorf("OUT defaults = %+v, want all true", out)
	}
	notOut := DefaultCriteria(DecisionNotOut)
	if notOut.WouldHitWickets {
		t.Errorf("NOT_OUT defaults = %+v, want WouldHitWickets false", notOut)
	}
}

func TestHistoryItemProjection(t *testing.T) {
	r := &DecisionReport{
		ID: "lbw-h", VideoName: "h.mp4", Thumbnail: "/placeholder",
		Decision: DecisionOut, Confidence: 77.7,
	}
	item := r.HistoryItem()
	if item.ID != r.ID || item.Decision != r.Decision || item.Confidence != r.Confidence {
		t.Errorf("HistoryItem = %+v, fields lost from %+v", item, r)
	}
}
