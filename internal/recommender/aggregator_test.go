package recommender

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rating(v float64) *float64 {
	return &v
}

func TestAggregate_SumsAllSignalsForSamePair(t *testing.T) {
	facts := Facts{
		Bookings:  []BookingFact{{RenterID: "u1", PropertyID: "p1"}},
		Favorites: []FavoriteFact{{UserID: "u1", PropertyID: "p1"}},
		Reviews:   []ReviewFact{{UserID: "u1", PropertyID: "p1", Rating: rating(4)}},
	}

	interactions, stats := Aggregate(facts, DefaultSignalWeights())

	require.Len(t, interactions, 1)
	assert.Equal(t, "u1", interactions[0].UserID)
	assert.Equal(t, "p1", interactions[0].ItemID)
	assert.InDelta(t, 5.0+4.0+0.8, interactions[0].Weight, 1e-12)
	assert.Equal(t, 1, stats.Pairs)
	assert.Equal(t, 0, stats.Filtered)
}

func TestAggregate_RepeatedBookingsAccumulate(t *testing.T) {
	facts := Facts{
		Bookings: []BookingFact{
			{RenterID: "u1", PropertyID: "p1"},
			{RenterID: "u1", PropertyID: "p1"},
			{RenterID: "u2", PropertyID: "p1"},
		},
	}

	interactions, _ := Aggregate(facts, DefaultSignalWeights())

	require.Len(t, interactions, 2)
	assert.Equal(t, Interaction{UserID: "u1", ItemID: "p1", Weight: 10}, interactions[0])
	assert.Equal(t, Interaction{UserID: "u2", ItemID: "p1", Weight: 5}, interactions[1])
}

func TestAggregate_FiltersMissingIdentifiers(t *testing.T) {
	facts := Facts{
		Bookings:  []BookingFact{{RenterID: "", PropertyID: "p1"}, {RenterID: "u1", PropertyID: ""}},
		Favorites: []FavoriteFact{{UserID: "", PropertyID: "p2"}},
		Reviews:   []ReviewFact{{UserID: "u3", PropertyID: "p3", Rating: rating(5)}},
	}

	interactions, stats := Aggregate(facts, DefaultSignalWeights())

	require.Len(t, interactions, 1)
	assert.Equal(t, "u3", interactions[0].UserID)
	assert.Equal(t, 3, stats.Filtered)
	assert.Equal(t, 2, stats.Bookings)
	assert.Equal(t, 1, stats.Favorites)
	assert.Equal(t, 1, stats.Reviews)
}

func TestAggregate_EmptyStreams(t *testing.T) {
	interactions, stats := Aggregate(Facts{}, DefaultSignalWeights())

	assert.NotNil(t, interactions)
	assert.Empty(t, interactions)
	assert.Equal(t, AggregateStats{}, stats)
	assert.True(t, ColdStart(interactions))
}

func TestAggregate_CustomWeights(t *testing.T) {
	weights := SignalWeights{Booking: 1, Favorite: 0.5, ReviewScale: 10, MaxRating: 5}
	facts := Facts{
		Bookings:  []BookingFact{{RenterID: "u1", PropertyID: "p1"}},
		Favorites: []FavoriteFact{{UserID: "u1", PropertyID: "p1"}},
		Reviews:   []ReviewFact{{UserID: "u1", PropertyID: "p1", Rating: rating(5)}},
	}

	interactions, _ := Aggregate(facts, weights)

	require.Len(t, interactions, 1)
	assert.InDelta(t, 2.0, interactions[0].Weight, 1e-12)
}

func TestSignalWeights_ReviewWeight(t *testing.T) {
	w := DefaultSignalWeights()

	tests := []struct {
		name     string
		rating   *float64
		expected float64
	}{
		{name: "missing rating", rating: nil, expected: 0},
		{name: "zero", rating: rating(0), expected: 0},
		{name: "mid scale", rating: rating(2.5), expected: 0.5},
		{name: "top of scale", rating: rating(5), expected: 1},
		{name: "above scale is clamped", rating: rating(9), expected: 1},
		{name: "negative is clamped", rating: rating(-3), expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, w.ReviewWeight(tt.rating), 1e-12)
		})
	}
}

func TestAggregate_NullRatingKeepsPair(t *testing.T) {
	facts := Facts{
		Reviews: []ReviewFact{{UserID: "u1", PropertyID: "p1", Rating: nil}},
	}

	interactions, _ := Aggregate(facts, DefaultSignalWeights())

	require.Len(t, interactions, 1)
	assert.Equal(t, 0.0, interactions[0].Weight)
	assert.False(t, ColdStart(interactions))
}
