package recommender

import "sort"

// UserRecommendations is the ordered per-user output of ScoreUsers.
type UserRecommendations struct {
	users []string
	lists map[string][]ScoredItem
}

// Users returns every scored user in first-seen order.
func (r UserRecommendations) Users() []string {
	return r.users
}

// For returns the ordered list computed for a user.
func (r UserRecommendations) For(userID string) []ScoredItem {
	return r.lists[userID]
}

// Len returns the number of users.
func (r UserRecommendations) Len() int {
	return len(r.users)
}

// RowCount returns the total number of recommended items across users.
func (r UserRecommendations) RowCount() int {
	n := 0
	for _, l := range r.lists {
		n += len(l)
	}
	return n
}

// FallbackCount returns how many items were appended from the popular list.
func (r UserRecommendations) FallbackCount() int {
	n := 0
	for _, l := range r.lists {
		for _, item := range l {
			if item.Source == SourcePopular {
				n++
			}
		}
	}
	return n
}

// ScoreUsers builds a ranked list for every user with history.
//
// A candidate q scores sum(w(u,p) * sim(p,q)) over the user's history items p
// that list q among their edges. Items the user already interacted with are
// never candidates. Candidates are sorted by score with ties kept in discovery
// order, truncated to topn, and then topped up from popular.
func ScoreUsers(interactions []Interaction, sims SimilarityMap, popular []PopularItem, topn int) UserRecommendations {
	out := UserRecommendations{
		users: []string{},
		lists: make(map[string][]ScoredItem),
	}

	history := make(map[string][]Interaction)
	seen := make(map[string]map[string]struct{})
	for _, in := range interactions {
		if _, ok := history[in.UserID]; !ok {
			out.users = append(out.users, in.UserID)
			seen[in.UserID] = make(map[string]struct{})
		}
		history[in.UserID] = append(history[in.UserID], in)
		seen[in.UserID][in.ItemID] = struct{}{}
	}

	for _, userID := range out.users {
		exclude := seen[userID]
		scores := make(map[string]float64)
		var discovered []string

		for _, h := range history[userID] {
			for _, edge := range sims.Edges(h.ItemID) {
				if _, ok := exclude[edge.ItemID]; ok {
					continue
				}
				if _, ok := scores[edge.ItemID]; !ok {
					discovered = append(discovered, edge.ItemID)
				}
				scores[edge.ItemID] += h.Weight * edge.Sim
			}
		}

		ranked := make([]ScoredItem, len(discovered))
		for i, id := range discovered {
			ranked[i] = ScoredItem{ItemID: id, Score: scores[id], Source: SourcePersonalized}
		}
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Score > ranked[j].Score
		})
		if topn <= 0 {
			ranked = ranked[:0]
		} else if len(ranked) > topn {
			ranked = ranked[:topn]
		}

		out.lists[userID] = FillWithPopular(ranked, popular, topn, exclude)
	}

	return out
}

// FillWithPopular appends popular items after the given list until it holds
// topn entries or the popular list runs out. Items already in the list or in
// exclude are skipped. Appended scores are capped at the score of the entry
// before them so the list stays non-increasing.
func FillWithPopular(list []ScoredItem, popular []PopularItem, topn int, exclude map[string]struct{}) []ScoredItem {
	have := make(map[string]struct{}, len(list))
	for _, item := range list {
		have[item.ItemID] = struct{}{}
	}

	for _, p := range popular {
		if len(list) >= topn {
			break
		}
		if _, ok := have[p.ItemID]; ok {
			continue
		}
		if _, ok := exclude[p.ItemID]; ok {
			continue
		}
		score := p.Score
		if n := len(list); n > 0 && list[n-1].Score < score {
			score = list[n-1].Score
		}
		list = append(list, ScoredItem{ItemID: p.ItemID, Score: score, Source: SourcePopular})
		have[p.ItemID] = struct{}{}
	}
	return list
}

// FallbackPoolSize is how many popular items ScoreUsers needs so that every
// user can be topped up to topn even when the user's whole history sits at
// the head of the popular ranking.
func FallbackPoolSize(interactions []Interaction, topn int) int {
	if topn <= 0 {
		return 0
	}
	perUser := make(map[string]int)
	longest := 0
	for _, in := range interactions {
		perUser[in.UserID]++
		if perUser[in.UserID] > longest {
			longest = perUser[in.UserID]
		}
	}
	return topn + longest
}

// PopularList is the cold-start answer: the popular ranking as a
// recommendation list.
func PopularList(popular []PopularItem, topn int) []ScoredItem {
	return FillWithPopular(make([]ScoredItem, 0, len(popular)), popular, topn, nil)
}
