package models

import "time"

// HistoryEntry is the list-view projection of a DecisionReport. It is always
// derived, never created independently.
type HistoryEntry struct {
	ID         string    `json:"id"`
	VideoName  string    `json:"videoName"`
	Thumbnail  string    `json:"thumbnail"`
	Decision   Decision  `json:"decision"`
	Confidence float64   `json:"confidence"`
	AnalyzedAt time.Time `json:"analyzedAt"`
}

// StatsSummary aggregates the reports visible to one caller. Recomputed on
// demand, never cached.
type StatsSummary struct {
	TotalAnalyses     int            `json:"totalAnalyses"`
	OutDecisions      int            `json:"outDecisions"`
	NotOutDecisions   int            `json:"notOutDecisions"`
	AverageConfidence float64        `json:"averageConfidence"`
	Recent            []HistoryEntry `json:"recentAnalyses"`
}

// MetricsSummary carries the distribution breakdowns for the metrics view.
type MetricsSummary struct {
	DecisionDistribution   DecisionDistribution `json:"decisionDistribution"`
	ConfidenceDistribution map[string]int       `json:"confidenceDistribution"`
	ImpactZones            map[string]int       `json:"impactZoneDistribution"`
	PitchingZones          map[string]int       `json:"pitchingDistribution"`
	WicketPrediction       HitMissCount         `json:"wicketPrediction"`
	TotalAnalyses          int                  `json:"totalAnalyses"`
	AverageProcessingSec   float64              `json:"averageProcessingTime"`
}

type DecisionDistribution struct {
	Out    int `json:"out"`
	NotOut int `json:"notOut"`
}

type HitMissCount struct {
	Hitting int `json:"hitting"`
	Missing int `json:"missing"`
}

// ConfidenceBuckets are the fixed histogram ranges used by the metrics view.
var ConfidenceBuckets = []string{"0-25", "26-50", "51-75", "76-100"}

// ConfidenceBucket places a confidence value into its histogram range.
func ConfidenceBucket(confidence float64) string {
	switch {
	case confidence <= 25:
		return "0-25"
	case confidence <= 50:
		return "26-50"
	case confidence <= 75:
		return "51-75"
	default:
		return "76-100"
	}
}
