package schedule

import (
	"math"
	"time"

	"github.com/conorfennell/cramdeck/internal/domain"
)

// MaxStability caps the review interval, in days.
const MaxStability = 36500.0

// Params holds the parameters of the stability model.
type Params struct {
	A                float64 // scales the overall memory increase
	B                float64 // difficulty exponent
	C                float64 // stability exponent
	D                float64 // retention effect scaler
	Difficulty       float64 // fixed card difficulty, cards carry no per-card rating
	DesiredRetention float64 // desired retention rate (e.g., 0.9 for 90%)
}

// DefaultParams returns the parameters used when nothing is configured.
func DefaultParams() *Params {
	return &Params{
		A:                1.5,
		B:                0.5,
		C:                0.1,
		D:                4.0,
		Difficulty:       5.0,
		DesiredRetention: 0.9,
	}
}

// Stability estimates, in days, how long a card stays recalled after the given
// number of successful (mastered) attempts. It never exceeds MaxStability.
func (p *Params) Stability(attempts int) float64 {
	s := 1.0
	for i := 0; i < attempts && s < MaxStability; i++ {
		s = p.nextStability(s)
	}
	return s
}

// nextStability applies the stability update for one successful recall.
// S' = S * (1 + a * D^(-b) * S^c * (e^(d * (1-R)) - 1))
func (p *Params) nextStability(stability float64) float64 {
	difficulty := math.Max(1, p.Difficulty)
	stability = math.Max(1, stability)

	factor := p.A * math.Pow(difficulty, -p.B) * math.Pow(stability, p.C)
	multiplier := math.Exp(p.D*(1-p.DesiredRetention)) - 1

	return math.Min(MaxStability, stability*(1+factor*multiplier))
}

// NextReview returns when a card should be looked at again, or the zero time
// for a card that has never been reviewed.
func (p *Params) NextReview(progress domain.CardProgress) time.Time {
	if progress.LastReviewDate == nil {
		return time.Time{}
	}
	if !progress.IsMastered {
		return *progress.LastReviewDate
	}
	days := time.Duration(math.Round(p.Stability(progress.AttemptCount)))
	return progress.LastReviewDate.Add(days * 24 * time.Hour)
}

// IsDue reports whether a card needs attention at now: it has been reviewed and
// is either flagged for review or past its next review time.
func (p *Params) IsDue(progress domain.CardProgress, now time.Time) bool {
	if progress.LastReviewDate == nil {
		return false
	}
	return !progress.IsMastered || !now.Before(p.NextReview(progress))
}
