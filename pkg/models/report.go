package models

import "time"

// Decision is the outcome of an adjudication.
type Decision string

const (
	DecisionOut    Decision = "OUT"
	DecisionNotOut Decision = "NOT_OUT"
)

// CallStatus marks whether a sub-analysis is clear-cut or inside the
// umpire's-call tolerance band.
type CallStatus string

const (
	CallClear       CallStatus = "CLEAR"
	CallUmpiresCall CallStatus = "UMPIRES_CALL"
)

// StepStatus is the lifecycle of one pipeline stage.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// PipelineStages lists the canonical analysis stages, in order. The
// synthesizer, the streaming client's single-JSON mode and the server's
// event stream all share this vocabulary.
var PipelineStages = []string{
	"preprocessing",
	"ball_detection",
	"ball_tracking",
	"leg_detection",
	"impact_detection",
	"bounce_detection",
	"trajectory_extrapolation",
	"wicket_prediction",
	"decision",
}

// Step is one pipeline stage with its current status.
type Step struct {
	Name   string     `json:"name"`
	Status StepStatus `json:"status"`
}

// CompletedSteps returns the full pipeline with every stage marked completed.
func CompletedSteps() []Step {
	steps := make([]Step, len(PipelineStages))
	for i, name := range PipelineStages {
		steps[i] = Step{Name: name, Status: StepCompleted}
	}
	return steps
}

// Point3 is a position along the ball path. X runs down the pitch from the
// release point toward the stumps, Y is the lateral offset from the
// middle-stump line (positive toward off side), Z is height.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Criteria are the four conditions that must all hold for an OUT decision.
type Criteria struct {
	PitchedInLine   bool `json:"pitchedInLine"`
	ImpactInLine    bool `json:"impactInLine"`
	LegBeforeBat    bool `json:"legBeforeBat"`
	WouldHitWickets bool `json:"wouldHitWickets"`
}

// DefaultCriteria returns decision-consistent criteria for a record that was
// stored without them.
func DefaultCriteria(d Decision) Criteria {
	if d == DecisionOut {
		return Criteria{PitchedInLine: true, ImpactInLine: true, LegBeforeBat: true, WouldHitWickets: true}
	}
	return Criteria{PitchedInLine: true, ImpactInLine: true, LegBeforeBat: true, WouldHitWickets: false}
}

// BallMetrics describes the delivery's kinematics.
type BallMetrics struct {
	Category         string  `json:"category"`
	ReleaseSpeedKmh  float64 `json:"releaseSpeedKmh"`
	ImpactSpeedKmh   float64 `json:"impactSpeedKmh"`
	SpinRateRpm      float64 `json:"spinRateRpm"`
	SwingDeviationCm float64 `json:"swingDeviationCm"`
	EntryAngleDeg    float64 `json:"entryAngleDeg"`
}

// PitchAnalysis classifies where the ball bounced.
type PitchAnalysis struct {
	Zone                   string  `json:"zone"` // inline | outside_off | outside_leg
	DistanceFromLegStumpCm float64 `json:"distanceFromLegStumpCm"`
	DistanceFromOffStumpCm float64 `json:"distanceFromOffStumpCm"`
	BounceAngleDeg         float64 `json:"bounceAngleDeg"`
}

// ImpactAnalysis classifies where the ball struck the batter.
type ImpactAnalysis struct {
	Zone                   string     `json:"zone"`
	HeightCm               float64    `json:"heightCm"`
	DistanceFromLegStumpCm float64    `json:"distanceFromLegStumpCm"`
	AboveStumps            bool       `json:"aboveStumps"`
	Call                   CallStatus `json:"umpiresCall"`
}

// WicketPrediction is the extrapolated outcome at the stumps.
type WicketPrediction struct {
	Hitting         bool       `json:"hitting"`
	Stump           string     `json:"stump"` // leg|middle|off|missing_leg|missing_off|over
	HitPercentage   float64    `json:"hitPercentage"`
	MarginOfErrorCm float64    `json:"marginOfErrorCm"`
	Call            CallStatus `json:"umpiresCall"`
}

// KeyFrame references a notable frame extracted by a live backend.
type KeyFrame struct {
	Type        string  `json:"type"`
	FrameNumber int     `json:"frameNumber"`
	Timestamp   float64 `json:"timestamp"`
	ImageURL    string  `json:"imageUrl"`
	Label       string  `json:"label"`
	Description string  `json:"description"`
}

// DecisionReport is the complete adjudication record. It is never exposed
// partially constructed: synthesis or streaming yields a full record or an
// error.
type DecisionReport struct {
	ID         string   `json:"id"`
	VideoName  string   `json:"videoName"`
	Thumbnail  string   `json:"thumbnail"`
	Decision   Decision `json:"decision"`
	Confidence float64  `json:"confidence"` // 0..100

	Criteria Criteria `json:"criteria"`
	Steps    []Step   `json:"steps"`

	Trajectory         []Point3 `json:"trajectory"`
	ImpactPoint        *Point3  `json:"impactPoint,omitempty"`
	BouncePoint        *Point3  `json:"bouncePoint,omitempty"`
	PredictedWicketHit *Point3  `json:"predictedWicketHit,omitempty"`

	BallMetrics      *BallMetrics      `json:"ballMetrics,omitempty"`
	PitchAnalysis    *PitchAnalysis    `json:"pitchAnalysis,omitempty"`
	ImpactAnalysis   *ImpactAnalysis   `json:"impactAnalysis,omitempty"`
	WicketPrediction *WicketPrediction `json:"wicketPrediction,omitempty"`

	UmpiresCall bool       `json:"isUmpiresCall"`
	KeyFrames   []KeyFrame `json:"keyFrames,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// HistoryItem projects a report for list views.
func (r *DecisionReport) HistoryItem() HistoryEntry {
	return HistoryEntry{
		ID:         r.ID,
		VideoName:  r.VideoName,
		Thumbnail:  r.Thumbnail,
		Decision:   r.Decision,
		Confidence: r.Confidence,
		AnalyzedAt: r.CreatedAt,
	}
}
