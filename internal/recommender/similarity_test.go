package recommender

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edgeIDs(edges []SimilarItem) []string {
	ids := make([]string, len(edges))
	for i, e := range edges {
		ids[i] = e.ItemID
	}
	return ids
}

func syntheticInteractions(seed int64, users, items, perUser int) []Interaction {
	rng := rand.New(rand.NewSource(seed))
	var out []Interaction
	for u := 0; u < users; u++ {
		picked := make(map[int]bool)
		for n := 0; n < perUser; n++ {
			j := rng.Intn(items)
			if picked[j] {
				continue
			}
			picked[j] = true
			out = append(out, Interaction{
				UserID: fmt.Sprintf("u%03d", u),
				ItemID: fmt.Sprintf("p%03d", j),
				Weight: 0.1 + rng.Float64()*5,
			})
		}
	}
	return out
}

// denseCosine is a brute-force reference used only to check the sparse path.
func denseCosine(interactions []Interaction) map[string]map[string]float64 {
	vectors := make(map[string]map[string]float64)
	for _, in := range interactions {
		if vectors[in.ItemID] == nil {
			vectors[in.ItemID] = make(map[string]float64)
		}
		vectors[in.ItemID][in.UserID] += in.Weight
	}
	norm := func(v map[string]float64) float64 {
		s := 0.0
		for _, x := range v {
			s += x * x
		}
		return math.Sqrt(s)
	}
	out := make(map[string]map[string]float64)
	for a, va := range vectors {
		out[a] = make(map[string]float64)
		for b, vb := range vectors {
			if a == b {
				continue
			}
			dot := 0.0
			for u, x := range va {
				dot += x * vb[u]
			}
			if dot != 0 {
				out[a][b] = dot / (norm(va) * norm(vb))
			}
		}
	}
	return out
}

func TestComputeSimilarity_TwoItems(t *testing.T) {
	interactions := []Interaction{
		{UserID: "u1", ItemID: "A", Weight: 1},
		{UserID: "u1", ItemID: "B", Weight: 1},
		{UserID: "u2", ItemID: "A", Weight: 1},
	}

	sims, stats := ComputeSimilarity(interactions, 10, nil)

	assert.Equal(t, []string{"A", "B"}, sims.Items())
	require.Len(t, sims.Edges("A"), 1)
	assert.Equal(t, "B", sims.Edges("A")[0].ItemID)
	assert.InDelta(t, 1/math.Sqrt2, sims.Edges("A")[0].Sim, 1e-12)
	require.Len(t, sims.Edges("B"), 1)
	assert.Equal(t, "A", sims.Edges("B")[0].ItemID)
	assert.Equal(t, SimilarityStats{Users: 2, Items: 2, NonZeros: 3, Edges: 2}, stats)
}

func TestComputeSimilarity_TiesBrokenByColumnIndex(t *testing.T) {
	interactions := []Interaction{
		{UserID: "u1", ItemID: "A", Weight: 1},
		{UserID: "u1", ItemID: "B", Weight: 1},
		{UserID: "u1", ItemID: "C", Weight: 1},
	}

	sims, _ := ComputeSimilarity(interactions, 10, nil)
	assert.Equal(t, []string{"B", "C"}, edgeIDs(sims.Edges("A")))
	assert.Equal(t, []string{"A", "C"}, edgeIDs(sims.Edges("B")))
	assert.Equal(t, []string{"A", "B"}, edgeIDs(sims.Edges("C")))

	top1, _ := ComputeSimilarity(interactions, 1, nil)
	assert.Equal(t, []string{"B"}, edgeIDs(top1.Edges("A")))
	assert.Equal(t, []string{"A"}, edgeIDs(top1.Edges("C")))
}

func TestComputeSimilarity_UniqueItemHasNoEdges(t *testing.T) {
	interactions := []Interaction{
		{UserID: "u1", ItemID: "A", Weight: 5},
		{UserID: "u2", ItemID: "B", Weight: 4},
	}

	sims, stats := ComputeSimilarity(interactions, 10, nil)

	assert.Equal(t, 2, sims.Len())
	assert.Empty(t, sims.Edges("A"))
	assert.Empty(t, sims.Edges("B"))
	assert.Equal(t, 0, stats.Edges)
}

func TestComputeSimilarity_Empty(t *testing.T) {
	sims, stats := ComputeSimilarity(nil, 100, nil)

	assert.Equal(t, 0, sims.Len())
	assert.Equal(t, 0, sims.EdgeCount())
	assert.Equal(t, SimilarityStats{}, stats)
}

func TestComputeSimilarity_DuplicateCellsAreSummed(t *testing.T) {
	interactions := []Interaction{
		{UserID: "u1", ItemID: "A", Weight: 2},
		{UserID: "u1", ItemID: "A", Weight: 3},
		{UserID: "u1", ItemID: "B", Weight: 1},
		{UserID: "u2", ItemID: "B", Weight: 1},
	}

	sims, stats := ComputeSimilarity(interactions, 10, nil)

	assert.Equal(t, 3, stats.NonZeros)
	require.Len(t, sims.Edges("A"), 1)
	assert.InDelta(t, 5/(5*math.Sqrt2), sims.Edges("A")[0].Sim, 1e-12)
}

func TestComputeSimilarity_DropsUnmappedRowsWithWarning(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	interactions := []Interaction{
		{UserID: "u1", ItemID: "A", Weight: 1},
		{UserID: "u1", ItemID: "B", Weight: 1},
		{UserID: "", ItemID: "A", Weight: 1},
		{UserID: "u2", ItemID: "", Weight: 1},
	}

	sims, stats := ComputeSimilarity(interactions, 10, logger)

	assert.Equal(t, 2, stats.Dropped)
	assert.Equal(t, 2, sims.Len())
	assert.Equal(t, 1, stats.Users)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, 2, hook.LastEntry().Data["dropped"])
}

func TestComputeSimilarity_InvalidWeightsAreReported(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	interactions := []Interaction{
		{UserID: "u1", ItemID: "A", Weight: math.NaN()},
		{UserID: "u1", ItemID: "B", Weight: 1},
		{UserID: "u2", ItemID: "B", Weight: math.Inf(1)},
		{UserID: "", ItemID: "A", Weight: 1},
	}

	_, stats := ComputeSimilarity(interactions, 10, logger)

	assert.Equal(t, 3, stats.Dropped)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, []string{"u1/A", "u2/B"}, entry.Data["invalid_weights"])
	assert.Equal(t, []string{""}, entry.Data["unknown_users"])
	assert.Empty(t, entry.Data["unknown_items"])
}

func TestComputeSimilarity_MatchesDenseReference(t *testing.T) {
	interactions := syntheticInteractions(42, 60, 40, 8)
	reference := denseCosine(interactions)
	const k = 5

	sims, _ := ComputeSimilarity(interactions, k, nil)

	for _, item := range sims.Items() {
		expected := make([]SimilarItem, 0, len(reference[item]))
		for other, s := range reference[item] {
			expected = append(expected, SimilarItem{ItemID: other, Sim: s})
		}
		sort.Slice(expected, func(a, b int) bool { return expected[a].Sim > expected[b].Sim })
		if len(expected) > k {
			expected = expected[:k]
		}

		got := sims.Edges(item)
		require.Len(t, got, len(expected), "item %s", item)
		for i := range got {
			assert.Equal(t, expected[i].ItemID, got[i].ItemID, "item %s rank %d", item, i)
			assert.InDelta(t, expected[i].Sim, got[i].Sim, 1e-9)
		}
	}
}

func TestComputeSimilarity_Invariants(t *testing.T) {
	interactions := syntheticInteractions(7, 120, 80, 10)
	const k = 7

	sims, stats := ComputeSimilarity(interactions, k, nil)
	assert.Equal(t, sims.EdgeCount(), stats.Edges)

	for _, item := range sims.Items() {
		edges := sims.Edges(item)
		assert.LessOrEqual(t, len(edges), k)
		for i, e := range edges {
			assert.NotEqual(t, item, e.ItemID, "self edge on %s", item)
			assert.GreaterOrEqual(t, e.Sim, -1.0)
			assert.LessOrEqual(t, e.Sim, 1.0)
			if i > 0 {
				assert.GreaterOrEqual(t, edges[i-1].Sim, e.Sim)
			}
		}
	}
}

func TestComputeSimilarity_Deterministic(t *testing.T) {
	interactions := syntheticInteractions(99, 50, 30, 6)

	first, _ := ComputeSimilarity(interactions, 10, nil)
	second, _ := ComputeSimilarity(interactions, 10, nil)

	assert.Equal(t, first, second)
}
