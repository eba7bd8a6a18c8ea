package recommender

import "math"

// SignalWeights maps each raw signal to its contribution in the interaction
// matrix. Reviews contribute rating/ReviewScale with the rating clamped to
// [0, MaxRating].
type SignalWeights struct {
	Booking     float64
	Favorite    float64
	ReviewScale float64
	MaxRating   float64
}

// DefaultSignalWeights returns booking=5, favorite=4, review=rating/5.
func DefaultSignalWeights() SignalWeights {
	return SignalWeights{
		Booking:     5.0,
		Favorite:    4.0,
		ReviewScale: 5.0,
		MaxRating:   5.0,
	}
}

// ReviewWeight converts a rating into a weight. Missing or malformed ratings
// contribute nothing.
func (w SignalWeights) ReviewWeight(rating *float64) float64 {
	if rating == nil || w.ReviewScale <= 0 {
		return 0
	}
	r := *rating
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	r = math.Max(0, math.Min(r, w.MaxRating))
	return r / w.ReviewScale
}
