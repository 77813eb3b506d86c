package stream

import (
	"time"

	"github.com/wicketlens/WicketLens/pkg/models"
)

// Backend payloads arrive with either snake_case or camelCase field names
// depending on the deployment. Every field is read with a pair of lookups
// (snake first, camel fallback) and coerced to its expected type, defaulting
// to a safe zero value when absent.

func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func getNumber(m map[string]any, keys ...string) float64 {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			switch n := v.(type) {
			case float64:
				return n
			case int:
				return float64(n)
			}
		}
	}
	return 0
}

func getBool(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
		}
	}
	return false
}

func getObject(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if o, ok := v.(map[string]any); ok {
				return o
			}
		}
	}
	return nil
}

func getArray(m map[string]any, keys ...string) []any {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if a, ok := v.([]any); ok {
				return a
			}
		}
	}
	return nil
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func mapPoint(m map[string]any) *models.Point3 {
	if m == nil {
		return nil
	}
	return &models.Point3{
		X: getNumber(m, "x"),
		Y: getNumber(m, "y"),
		Z: getNumber(m, "z"),
	}
}

func mapStep(m map[string]any) models.Step {
	status := getString(m, "status")
	if status == "" {
		status = string(models.StepProcessing)
	}
	return models.Step{
		Name:   getString(m, "step", "name"),
		Status: models.StepStatus(status),
	}
}

// mapReport translates a backend report payload into the canonical shape.
func mapReport(m map[string]any) *models.DecisionReport {
	decision := models.Decision(getString(m, "decision"))
	if decision != models.DecisionOut {
		decision = models.DecisionNotOut
	}

	report := &models.DecisionReport{
		ID:         getString(m, "id", "analysis_id", "analysisId"),
		VideoName:  getString(m, "video_name", "videoName"),
		Thumbnail:  getString(m, "thumbnail", "thumbnail_url", "thumbnailUrl"),
		Decision:   decision,
		Confidence: clampConfidence(getNumber(m, "confidence")),
		UmpiresCall: getBool(m, "is_umpires_call", "isUmpiresCall") ||
			getBool(m, "umpires_call", "umpiresCall"),
		CreatedAt: parseTimestamp(getString(m, "created_at", "createdAt", "timestamp")),
	}
	if report.Thumbnail == "" {
		report.Thumbnail = "/placeholder"
	}

	if c := getObject(m, "criteria"); c != nil {
		report.Criteria = models.Criteria{
			PitchedInLine:   getBool(c, "pitched_in_line", "pitchedInLine"),
			ImpactInLine:    getBool(c, "impact_in_line", "impactInLine"),
			LegBeforeBat:    getBool(c, "leg_before_bat", "legBeforeBat"),
			WouldHitWickets: getBool(c, "would_hit_wickets", "wouldHitWickets"),
		}
	} else {
		report.Criteria = models.DefaultCriteria(decision)
	}

	if steps := getArray(m, "steps"); steps != nil {
		for _, s := range steps {
			if sm, ok := s.(map[string]any); ok {
				report.Steps = append(report.Steps, mapStep(sm))
			}
		}
	}
	if len(report.Steps) == 0 {
		report.Steps = models.CompletedSteps()
	}

	for _, p := range getArray(m, "trajectory") {
		if pm, ok := p.(map[string]any); ok {
			if pt := mapPoint(pm); pt != nil {
				report.Trajectory = append(report.Trajectory, *pt)
			}
		}
	}
	if report.Trajectory == nil {
		report.Trajectory = []models.Point3{}
	}

	report.ImpactPoint = mapPoint(getObject(m, "impact_point", "impactPoint"))
	report.BouncePoint = mapPoint(getObject(m, "bounce_point", "bouncePoint", "pitching_point", "pitchingPoint"))
	report.PredictedWicketHit = mapPoint(getObject(m, "predicted_wicket_hit", "predictedWicketHit", "wicket_point", "wicketPoint"))

	if bm := getObject(m, "ball_metrics", "ballMetrics"); bm != nil {
		report.BallMetrics = &models.BallMetrics{
			Category:         getString(bm, "category", "type"),
			ReleaseSpeedKmh:  getNumber(bm, "release_speed_kmh", "releaseSpeedKmh", "release_speed", "releaseSpeed"),
			ImpactSpeedKmh:   getNumber(bm, "impact_speed_kmh", "impactSpeedKmh", "impact_speed", "impactSpeed"),
			SpinRateRpm:      getNumber(bm, "spin_rate_rpm", "spinRateRpm", "spin_rate", "spinRate"),
			SwingDeviationCm: getNumber(bm, "swing_deviation_cm", "swingDeviationCm", "swing", "swingDeviation"),
			EntryAngleDeg:    getNumber(bm, "entry_angle_deg", "entryAngleDeg", "entry_angle", "entryAngle"),
		}
	}

	if pa := getObject(m, "pitch_analysis", "pitchAnalysis", "pitching"); pa != nil {
		report.PitchAnalysis = &models.PitchAnalysis{
			Zone:                   getString(pa, "zone"),
			DistanceFromLegStumpCm: getNumber(pa, "distance_from_leg_stump_cm", "distanceFromLegStumpCm", "distance_from_leg_stump", "distanceFromLegStump"),
			DistanceFromOffStumpCm: getNumber(pa, "distance_from_off_stump_cm", "distanceFromOffStumpCm", "distance_from_off_stump", "distanceFromOffStump"),
			BounceAngleDeg:         getNumber(pa, "bounce_angle_deg", "bounceAngleDeg", "bounce_angle", "bounceAngle"),
		}
	}

	if ia := getObject(m, "impact_analysis", "impactAnalysis", "impact_zone", "impactZone"); ia != nil {
		report.ImpactAnalysis = &models.ImpactAnalysis{
			Zone:                   getString(ia, "zone"),
			HeightCm:               getNumber(ia, "height_cm", "heightCm", "height"),
			DistanceFromLegStumpCm: getNumber(ia, "distance_from_leg_stump_cm", "distanceFromLegStumpCm", "distance_from_leg_stump", "distanceFromLegStump"),
			AboveStumps:            getBool(ia, "is_above_stumps", "isAboveStumps", "above_stumps", "aboveStumps"),
			Call:                   mapCall(ia),
		}
	}

	if wp := getObject(m, "wicket_prediction", "wicketPrediction"); wp != nil {
		report.WicketPrediction = &models.WicketPrediction{
			Hitting:         getBool(wp, "hitting", "would_hit", "wouldHit"),
			Stump:           getString(wp, "stump"),
			HitPercentage:   clampConfidence(getNumber(wp, "hit_percentage", "hitPercentage", "probability")),
			MarginOfErrorCm: getNumber(wp, "margin_of_error_cm", "marginOfErrorCm", "margin"),
			Call:            mapCall(wp),
		}
	}

	for _, kf := range getArray(m, "key_frames", "keyFrames") {
		if km, ok := kf.(map[string]any); ok {
			report.KeyFrames = append(report.KeyFrames, models.KeyFrame{
				Type:        getString(km, "type"),
				FrameNumber: int(getNumber(km, "frame_number", "frameNumber")),
				Timestamp:   getNumber(km, "timestamp"),
				ImageURL:    getString(km, "image_url", "imageUrl"),
				Label:       getString(km, "label"),
				Description: getString(km, "description"),
			})
		}
	}

	return report
}

func mapCall(m map[string]any) models.CallStatus {
	s := getString(m, "umpires_call", "umpiresCall", "call")
	if s == string(models.CallUmpiresCall) {
		return models.CallUmpiresCall
	}
	if getBool(m, "umpires_call", "umpiresCall", "is_marginal", "isMarginal") {
		return models.CallUmpiresCall
	}
	return models.CallClear
}

func mapHistoryEntry(m map[string]any) models.HistoryEntry {
	thumb := getString(m, "thumbnail", "thumbnail_url", "thumbnailUrl")
	if thumb == "" {
		thumb = "/placeholder"
	}
	decision := models.Decision(getString(m, "decision"))
	if decision != models.DecisionOut {
		decision = models.DecisionNotOut
	}
	return models.HistoryEntry{
		ID:         getString(m, "id", "analysis_id", "analysisId"),
		VideoName:  getString(m, "video_name", "videoName"),
		Thumbnail:  thumb,
		Decision:   decision,
		Confidence: clampConfidence(getNumber(m, "confidence")),
		AnalyzedAt: parseTimestamp(getString(m, "analyzed_at", "analyzedAt", "timestamp", "created_at", "createdAt")),
	}
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
