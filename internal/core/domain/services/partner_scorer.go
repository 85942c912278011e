package services

import (
	"fmt"
	"math"
	"time"

	"campusdelivery/internal/core/domain/model/partner"
	"campusdelivery/internal/pkg/errs"
)

// Strategy names a weighting profile for partner scoring.
type Strategy string

const (
	// StrategyBalanced weighs distance 0.4, rating 0.3, experience 0.2,
	// availability 0.1. The default for everyday assignment.
	StrategyBalanced Strategy = "balanced"
	// StrategyDistanceFirst weighs distance 0.7 and is used when speed of
	// pickup dominates, e.g. hot food at peak hours.
	StrategyDistanceFirst Strategy = "distance_first"
	// StrategyQualityFirst weighs rating 0.5 and experience 0.25, used for
	// fragile or high-value orders.
	StrategyQualityFirst Strategy = "quality_first"
)

// Weights holds the relative importance of the four scoring components.
// The components are each normalized to [0,1] before weighting.
type Weights struct {
	Distance     float64
	Rating       float64
	Experience   float64
	Availability float64
}

func strategyWeights() map[Strategy]Weights {
	return map[Strategy]Weights{
		StrategyBalanced:      {Distance: 0.4, Rating: 0.3, Experience: 0.2, Availability: 0.1},
		StrategyDistanceFirst: {Distance: 0.7, Rating: 0.15, Experience: 0.1, Availability: 0.05},
		StrategyQualityFirst:  {Distance: 0.2, Rating: 0.5, Experience: 0.25, Availability: 0.05},
	}
}

// ParseStrategy converts a raw string into a Strategy, failing on unknown names.
func ParseStrategy(raw string) (Strategy, error) {
	s := Strategy(raw)
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// Validate checks that the Strategy is one of the known profiles.
func (s Strategy) Validate() error {
	if _, ok := strategyWeights()[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("strategy",
			fmt.Errorf("%q is not a valid scoring strategy", string(s)))
	}
	return nil
}

// Weights returns the weighting profile for the strategy. Unknown strategies
// fall back to the balanced profile.
func (s Strategy) Weights() Weights {
	if w, ok := strategyWeights()[s]; ok {
		return w
	}
	return strategyWeights()[StrategyBalanced]
}

// Candidate pairs a partner with its distance to the pickup or delivery
// point, as computed by the caller.
type Candidate struct {
	Partner    *partner.Partner
	DistanceKm float64
}

// PartnerScorer ranks delivery partners for an order.
//
// Each component score is normalized to [0,1] and monotonic in its input:
// a closer, higher-rated, or more experienced partner never scores lower,
// all else being equal.
type PartnerScorer struct {
	strategy Strategy
}

// NewPartnerScorer creates a scorer with the given strategy.
func NewPartnerScorer(strategy Strategy) (PartnerScorer, error) {
	if err := strategy.Validate(); err != nil {
		return PartnerScorer{}, err
	}
	return PartnerScorer{strategy: strategy}, nil
}

// Score computes the weighted total score for one candidate.
//
// Components:
//   - distance: (maxDistance - distance) / maxDistance, clamped at 0
//   - rating: (rating - 1) / 4
//   - experience: log(deliveries+1) / log(101), capped at 1 so the score
//     saturates near 100 lifetime deliveries
//   - availability: 0.5 online + 0.3 active + 0.2 position reported within
//     the last hour
func (ps PartnerScorer) Score(c Candidate, maxDistanceKm float64, now time.Time) float64 {
	w := ps.strategy.Weights()

	return w.Distance*distanceScore(c.DistanceKm, maxDistanceKm) +
		w.Rating*ratingScore(c.Partner.Rating()) +
		w.Experience*experienceScore(c.Partner.TotalDeliveries()) +
		w.Availability*availabilityScore(c.Partner, now)
}

// SelectBest returns the highest-scoring candidate. Ties resolve to the
// earliest candidate in the slice, so the scan order is stable. Returns nil
// when the slice is empty.
func (ps PartnerScorer) SelectBest(candidates []Candidate, maxDistanceKm float64, now time.Time) *Candidate {
	var (
		best      *Candidate
		bestScore = -math.MaxFloat64
	)

	for i := range candidates {
		score := ps.Score(candidates[i], maxDistanceKm, now)
		if score > bestScore {
			bestScore = score
			best = &candidates[i]
		}
	}

	return best
}

func distanceScore(distanceKm float64, maxDistanceKm float64) float64 {
	if maxDistanceKm <= 0 {
		return 0
	}
	score := (maxDistanceKm - distanceKm) / maxDistanceKm
	if score < 0 {
		return 0
	}
	return score
}

func ratingScore(rating float64) float64 {
	return (rating - partner.RatingMin) / (partner.RatingMax - partner.RatingMin)
}

func experienceScore(totalDeliveries int) float64 {
	score := math.Log(float64(totalDeliveries)+1) / math.Log(101)
	if score > 1 {
		return 1
	}
	return score
}

func availabilityScore(p *partner.Partner, now time.Time) float64 {
	var score float64
	if p.IsOnline() {
		score += 0.5
	}
	if p.IsActive() {
		score += 0.3
	}
	if seen := p.LastLocationAt(); seen != nil && now.Sub(*seen) <= time.Hour {
		score += 0.2
	}
	return score
}
