package synth

const (
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
	lcgModulus    = 1 << 31
)

// Sequence is a seeded linear congruential generator producing a reproducible
// stream of floats in [0, 1). Each synthesis call constructs its own Sequence
// so concurrent syntheses never share state.
type Sequence struct {
	state int64
}

// NewSequence seeds a generator. Seeds are expected in [0, 2^31); larger
// values are reduced mod 2^31 so a 32-bit fingerprint always round-trips.
func NewSequence(seed int64) *Sequence {
	s := seed % lcgModulus
	if s < 0 {
		s += lcgModulus
	}
	return &Sequence{state: s}
}

// Next advances the generator and returns the next float in [0, 1).
func (s *Sequence) Next() float64 {
	s.state = (s.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(s.state) / float64(lcgModulus-1)
}
