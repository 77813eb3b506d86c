// Package synth deterministically produces complete decision reports from a
// content fingerprint, for use whenever no live analysis backend is
// reachable. Synthesize is a pure function of (seed, config): the draw order
// against the seeded sequence is fixed and documented inline, and must never
// be reordered — stored reports are reproduced seed-for-seed.
package synth

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wicketlens/WicketLens/pkg/models"
)

// speedRange is a [min,max] km/h band.
type speedRange struct {
	min, max float64
}

var ballCategories = []string{"inswing", "outswing", "seam", "offspin", "legspin", "straight"}

var speedRanges = map[string]map[string]speedRange{
	"tennis":  {"pace": {90, 120}, "spin": {65, 85}},
	"tape":    {"pace": {100, 130}, "spin": {70, 90}},
	"leather": {"pace": {115, 145}, "spin": {80, 100}},
}

var surfaceFactors = map[string]float64{
	"concrete": 1.3,
	"turf":     1.0,
	"matting":  0.9,
	"mud":      0.6,
}

const (
	inchToCm       = 2.54
	pitchUnits     = 400  // canvas-length of a standard 22-yard pitch
	bounceAt       = 0.60 // fraction of pitch length where the ball bounces
	impactAt       = 0.85 // fraction where it strikes the pad
	marginalDistCm = 5.0
)

// Synthesize builds a complete report from a fingerprint seed and the match
// configuration. It never fails; missing config fields fall back to defaults.
func Synthesize(videoName string, seed int64, cfg models.MatchConfig) *models.DecisionReport {
	cfg = cfg.WithDefaults()
	seq := NewSequence(seed)

	surface := surfaceFactors[cfg.PitchSurface]
	if surface == 0 {
		surface = surfaceFactors["concrete"]
	}
	halfStumpsCm := cfg.StumpWidth * inchToCm / 2
	stumpHeightCm := cfg.StumpHeight * inchToCm

	// Draw 1: decision. OUT with probability 0.55.
	out := seq.Next() > 0.45

	// Draw 2: confidence.
	confidence := round1(65 + seq.Next()*30)

	// Draws 3-6: criteria. Always consumed, even when the OUT override below
	// rewrites them, so later fields see the same sequence position.
	pitchedInLine := seq.Next() > 0.3
	impactInLine := seq.Next() > 0.35
	legBeforeBat := seq.Next() > 0.25
	var wouldHitWickets bool
	if out {
		wouldHitWickets = seq.Next() > 0.2
	} else {
		wouldHitWickets = seq.Next() > 0.7
	}
	if out {
		pitchedInLine, impactInLine, legBeforeBat, wouldHitWickets = true, true, true, true
	} else if pitchedInLine && impactInLine && legBeforeBat && wouldHitWickets {
		// NOT OUT must leave at least one criterion false.
		wouldHitWickets = false
	}

	metrics := synthesizeBallMetrics(seq, cfg.BallType)

	// Pitch analysis. The zone draw happens only when the ball pitched in
	// line; outside_leg needs no choice.
	var pitchZone string
	if pitchedInLine {
		if seq.Next() > 0.5 {
			pitchZone = "inline"
		} else {
			pitchZone = "outside_off"
		}
	} else {
		pitchZone = "outside_leg"
	}
	pitchOffset := lateralOffset(seq, pitchZone, 20)
	pitch := &models.PitchAnalysis{
		Zone:                   pitchZone,
		DistanceFromLegStumpCm: round1(pitchOffset + halfStumpsCm),
		DistanceFromOffStumpCm: round1(pitchOffset - halfStumpsCm),
		BounceAngleDeg:         round1((5 + seq.Next()*10) * surface),
	}

	// Impact analysis. The zone draw happens only when impact was not in
	// line; the marginal draw happens only for an inline impact whose
	// distance clause already failed (short-circuit order is part of the
	// sequence contract).
	var impactZone string
	if impactInLine {
		impactZone = "inline"
	} else if seq.Next() > 0.5 {
		impactZone = "outside_off"
	} else {
		impactZone = "outside_leg"
	}
	impactOffset := lateralOffset(seq, impactZone, 15)
	impactHeight := 15 + seq.Next()*50
	distFromLeg := impactOffset + halfStumpsCm
	marginal := math.Abs(distFromLeg) < marginalDistCm ||
		(impactZone == "inline" && seq.Next() > 0.7)
	impact := &models.ImpactAnalysis{
		Zone:                   impactZone,
		HeightCm:               round1(impactHeight),
		DistanceFromLegStumpCm: round1(distFromLeg),
		AboveStumps:            impactHeight > stumpHeightCm,
		Call:                   callFor(marginal),
	}

	// Wicket prediction.
	var stump string
	if wouldHitWickets {
		stump = []string{"leg", "middle", "off"}[int(seq.Next()*3)]
	} else {
		stump = []string{"missing_leg", "missing_off", "over"}[int(seq.Next()*3)]
	}
	var hitPct float64
	if wouldHitWickets {
		hitPct = 25 + seq.Next()*75
	} else {
		hitPct = seq.Next() * 25
	}
	wicket := &models.WicketPrediction{
		Hitting:         wouldHitWickets,
		Stump:           stump,
		HitPercentage:   hitPct,
		MarginOfErrorCm: round1(1 + seq.Next()*3),
		Call:            callFor(hitPct >= 25 && hitPct < 50),
	}

	// Trajectory: three piecewise segments, jitter drawn per sample.
	length := pitchUnits * (cfg.PitchLength / 22)
	bounceX := bounceAt * length
	impactX := impactAt * length
	wicketY := stumpLateral(stump, halfStumpsCm)

	trajectory := make([]models.Point3, 0, 27)
	for i := 0; i <= 10; i++ { // release -> bounce, 11 samples
		t := float64(i) / 10
		trajectory = append(trajectory, models.Point3{
			X: t * bounceX,
			Y: pitchOffset*t + (seq.Next()*10 - 5),
			Z: 200 * (1 - t) * (1 - t),
		})
	}
	for i := 0; i <= 10; i++ { // bounce -> impact, 11 samples
		t := float64(i) / 10
		trajectory = append(trajectory, models.Point3{
			X: bounceX + t*(impactX-bounceX),
			Y: pitchOffset + (impactOffset-pitchOffset)*t + (seq.Next()*10 - 5),
			Z: 4*t*(1-t)*60*surface + t*impactHeight,
		})
	}
	for i := 1; i <= 5; i++ { // impact -> stumps; t=0 is the impact point above
		t := float64(i) / 5
		trajectory = append(trajectory, models.Point3{
			X: impactX + t*(length-impactX),
			Y: impactOffset*(1-t) + wicketY*t + (seq.Next()*15 - 7.5),
			Z: impactHeight*(1-t) + 20*surface*math.Sin(math.Pi*t)*math.Exp(-1.2*t),
		})
	}

	decision := models.DecisionNotOut
	if out {
		decision = models.DecisionOut
	}

	report := &models.DecisionReport{
		ID:         ReportID(seed, videoName),
		VideoName:  videoName,
		Thumbnail:  "/placeholder",
		Decision:   decision,
		Confidence: confidence,
		Criteria: models.Criteria{
			PitchedInLine:   pitchedInLine,
			ImpactInLine:    impactInLine,
			LegBeforeBat:    legBeforeBat,
			WouldHitWickets: wouldHitWickets,
		},
		Steps:            models.CompletedSteps(),
		Trajectory:       trajectory,
		ImpactPoint:      &models.Point3{X: impactX, Y: impactOffset, Z: impactHeight},
		BouncePoint:      &models.Point3{X: bounceX, Y: pitchOffset, Z: 0},
		BallMetrics:      metrics,
		PitchAnalysis:    pitch,
		ImpactAnalysis:   impact,
		WicketPrediction: wicket,
		UmpiresCall:      impact.Call == models.CallUmpiresCall || wicket.Call == models.CallUmpiresCall,
		CreatedAt:        time.Now().UTC(),
	}
	if wouldHitWickets {
		report.PredictedWicketHit = &models.Point3{X: length, Y: wicketY, Z: impactHeight * 0.9}
	}
	return report
}

// synthesizeBallMetrics consumes, in order: category, release speed, impact
// speed, spin rate (spin categories only), swing deviation, entry angle.
func synthesizeBallMetrics(seq *Sequence, ballType string) *models.BallMetrics {
	ranges, ok := speedRanges[ballType]
	if !ok {
		ranges = speedRanges["tennis"]
	}
	category := ballCategories[int(seq.Next()*6)]
	spin := category == "offspin" || category == "legspin"

	band := ranges["pace"]
	if spin {
		band = ranges["spin"]
	}

	m := &models.BallMetrics{
		Category:        category,
		ReleaseSpeedKmh: band.min + 10 + seq.Next()*(band.max-(band.min+10)),
		ImpactSpeedKmh:  band.min - 5 + seq.Next()*(band.max-band.min),
	}
	if spin {
		m.SpinRateRpm = 1500 + seq.Next()*1500
	}
	m.SwingDeviationCm = 2 + seq.Next()*8
	m.EntryAngleDeg = 5 + seq.Next()*15
	return m
}

// lateralOffset draws the signed cm offset from the middle-stump line for a
// zone. Outside zones land strictly farther from center than inline ones.
func lateralOffset(seq *Sequence, zone string, spread float64) float64 {
	switch zone {
	case "outside_off":
		return 15 + seq.Next()*spread
	case "outside_leg":
		return -(15 + seq.Next()*spread)
	default: // inline
		return (seq.Next() - 0.5) * 20
	}
}

func stumpLateral(stump string, halfStumpsCm float64) float64 {
	switch stump {
	case "leg":
		return -halfStumpsCm
	case "off":
		return halfStumpsCm
	case "missing_leg":
		return -25
	case "missing_off":
		return 25
	default: // middle, over
		return 0
	}
}

func callFor(marginal bool) models.CallStatus {
	if marginal {
		return models.CallUmpiresCall
	}
	return models.CallClear
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ReportID derives the report identity from the fingerprint seed and the
// normalized video name, so re-analyzing identical content yields the same id.
func ReportID(seed int64, videoName string) string {
	slug := normalizeName(videoName)
	if slug == "" {
		return fmt.Sprintf("lbw-%08x", uint32(seed))
	}
	return fmt.Sprintf("lbw-%08x-%s", uint32(seed), slug)
}

func normalizeName(name string) string {
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 24 {
		slug = strings.Trim(slug[:24], "-")
	}
	return slug
}
