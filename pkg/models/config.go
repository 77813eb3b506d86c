package models

// MatchConfig is the externally owned physical configuration. It only
// influences synthesis and is serialized as the `settings` multipart field on
// live analyze submissions; this core never mutates it.
type MatchConfig struct {
	PitchLength         float64 `json:"pitch_length"`    // yards, standard 22
	PitchWidth          float64 `json:"pitch_width"`     // feet
	CreaseDistance      float64 `json:"crease_distance"` // feet from stumps
	PitchSurface        string  `json:"pitch_surface"`   // concrete|turf|matting|mud
	BallType            string  `json:"ball_type"`       // tennis|tape|leather
	StumpHeight         float64 `json:"stump_height"`    // inches
	StumpWidth          float64 `json:"stump_width"`     // inches, full set of three
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	CameraAngle         float64 `json:"camera_angle"`    // degrees from square
	CameraDistance      string  `json:"camera_distance"` // near|medium|far
}

// DefaultMatchConfig returns the gully-cricket defaults used when no settings
// are supplied.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		PitchLength:         22,
		PitchWidth:          10,
		CreaseDistance:      4,
		PitchSurface:        "concrete",
		BallType:            "tennis",
		StumpHeight:         28,
		StumpWidth:          9,
		ConfidenceThreshold: 0.75,
		CameraAngle:         0,
		CameraDistance:      "medium",
	}
}

// WithDefaults fills any zero-valued field from DefaultMatchConfig, so a
// partially populated settings payload still synthesizes.
func (c MatchConfig) WithDefaults() MatchConfig {
	def := DefaultMatchConfig()
	if c.PitchLength <= 0 {
		c.PitchLength = def.PitchLength
	}
	if c.PitchWidth <= 0 {
		c.PitchWidth = def.PitchWidth
	}
	if c.CreaseDistance <= 0 {
		c.CreaseDistance = def.CreaseDistance
	}
	if c.PitchSurface == "" {
		c.PitchSurface = def.PitchSurface
	}
	if c.BallType == "" {
		c.BallType = def.BallType
	}
	if c.StumpHeight <= 0 {
		c.StumpHeight = def.StumpHeight
	}
	if c.StumpWidth <= 0 {
		c.StumpWidth = def.StumpWidth
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if c.CameraDistance == "" {
		c.CameraDistance = def.CameraDistance
	}
	return c
}
