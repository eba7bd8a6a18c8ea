package recommender

type pairKey struct {
	user string
	item string
}

// AggregateStats counts what Aggregate saw.
type AggregateStats struct {
	Bookings  int
	Favorites int
	Reviews   int
	Filtered  int
	Pairs     int
}

// Aggregate reduces the raw fact streams to one weighted interaction per
// (user, property) pair. Weights of repeated signals are summed. Rows with a
// missing user or property id are skipped. Output order is the order in which
// each pair first appears: bookings, then favorites, then reviews.
func Aggregate(facts Facts, weights SignalWeights) ([]Interaction, AggregateStats) {
	stats := AggregateStats{
		Bookings:  len(facts.Bookings),
		Favorites: len(facts.Favorites),
		Reviews:   len(facts.Reviews),
	}

	index := make(map[pairKey]int)
	interactions := make([]Interaction, 0)

	add := func(userID, itemID string, weight float64) {
		if userID == "" || itemID == "" {
			stats.Filtered++
			return
		}
		key := pairKey{user: userID, item: itemID}
		if i, ok := index[key]; ok {
			interactions[i].Weight += weight
			return
		}
		index[key] = len(interactions)
		interactions = append(interactions, Interaction{
			UserID: userID,
			ItemID: itemID,
			Weight: weight,
		})
	}

	for _, b := range facts.Bookings {
		add(b.RenterID, b.PropertyID, weights.Booking)
	}
	for _, f := range facts.Favorites {
		add(f.UserID, f.PropertyID, weights.Favorite)
	}
	for _, r := range facts.Reviews {
		add(r.UserID, r.PropertyID, weights.ReviewWeight(r.Rating))
	}

	stats.Pairs = len(interactions)
	return interactions, stats
}

// ColdStart reports whether the whole system has no interaction at all.
func ColdStart(interactions []Interaction) bool {
	return len(interactions) == 0
}
