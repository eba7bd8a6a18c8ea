// Package recommender holds the pure recompute pipeline: interaction
// aggregation, item-item cosine similarity, popularity ranking and per-user
// scoring. Nothing in here talks to storage.
package recommender

// BookingFact is a single booking row. An empty RenterID or PropertyID stands
// for a NULL column.
type BookingFact struct {
	RenterID   string
	PropertyID string
}

// FavoriteFact is a single favorite row.
type FavoriteFact struct {
	UserID     string
	PropertyID string
}

// ReviewFact is a review joined with its details. Rating is nil when the
// review carries no overall rating.
type ReviewFact struct {
	UserID     string
	PropertyID string
	Rating     *float64
}

// Facts are the three raw behavioral streams read from storage.
type Facts struct {
	Bookings  []BookingFact
	Favorites []FavoriteFact
	Reviews   []ReviewFact
}

// Interaction is the aggregated weight linking one user to one property.
type Interaction struct {
	UserID string
	ItemID string
	Weight float64
}

// SimilarItem is one outgoing similarity edge.
type SimilarItem struct {
	ItemID string
	Sim    float64
}

// PopularItem is one entry of the global popularity ranking.
type PopularItem struct {
	ItemID string
	Score  float64
}

// Source tells where a recommended item came from.
type Source string

const (
	SourcePersonalized Source = "personalized"
	SourcePopular      Source = "popular"
)

// ScoredItem is a candidate in a user's ordered recommendation list.
type ScoredItem struct {
	ItemID string
	Score  float64
	Source Source
}

// RankedItem is a ScoredItem with its 1-based position.
type RankedItem struct {
	ItemID string
	Score  float64
	Rank   int
	Source Source
}

// Rank assigns dense 1-based ranks following the list order.
func Rank(items []ScoredItem) []RankedItem {
	ranked := make([]RankedItem, len(items))
	for i, item := range items {
		ranked[i] = RankedItem{
			ItemID: item.ItemID,
			Score:  item.Score,
			Rank:   i + 1,
			Source: item.Source,
		}
	}
	return ranked
}
