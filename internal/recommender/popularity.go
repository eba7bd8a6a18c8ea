package recommender

import "sort"

// Popularity ranks properties by 2*bookings + favorites, highest first.
// Equal scores keep first-appearance order. Rows without a property id are
// ignored; bookings without a renter still count.
func Popularity(bookings []BookingFact, favorites []FavoriteFact, limit int) []PopularItem {
	if limit <= 0 {
		return []PopularItem{}
	}

	scores := make(map[string]float64)
	var order []string
	bump := func(itemID string, by float64) {
		if itemID == "" {
			return
		}
		if _, ok := scores[itemID]; !ok {
			order = append(order, itemID)
		}
		scores[itemID] += by
	}

	for _, b := range bookings {
		bump(b.PropertyID, 2)
	}
	for _, f := range favorites {
		bump(f.PropertyID, 1)
	}

	ranked := make([]PopularItem, len(order))
	for i, id := range order {
		ranked[i] = PopularItem{ItemID: id, Score: scores[id]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
