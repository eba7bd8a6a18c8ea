package recommender

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// SimilarityMap holds the top-K similar items of every item, keyed by item
// id. Items() preserves first-seen order so callers iterate deterministically.
type SimilarityMap struct {
	items []string
	edges map[string][]SimilarItem
}

// Items returns every item id known to the map in first-seen order.
func (m SimilarityMap) Items() []string {
	return m.items
}

// Edges returns the similarity edges of an item, strongest first.
func (m SimilarityMap) Edges(itemID string) []SimilarItem {
	return m.edges[itemID]
}

// Len returns the number of items.
func (m SimilarityMap) Len() int {
	return len(m.items)
}

// EdgeCount returns the total number of edges across all items.
func (m SimilarityMap) EdgeCount() int {
	n := 0
	for _, e := range m.edges {
		n += len(e)
	}
	return n
}

// SimilarityStats describes one similarity computation.
type SimilarityStats struct {
	Users    int
	Items    int
	NonZeros int
	Dropped  int
	Edges    int
}

type vocabulary struct {
	ids   []string
	index map[string]int
}

func newVocabulary() *vocabulary {
	return &vocabulary{index: make(map[string]int)}
}

func (v *vocabulary) add(id string) {
	if _, ok := v.index[id]; ok {
		return
	}
	v.index[id] = len(v.ids)
	v.ids = append(v.ids, id)
}

func (v *vocabulary) lookup(id string) (int, bool) {
	i, ok := v.index[id]
	return i, ok
}

type cell struct {
	row int
	col int
	val float64
}

// sparseMatrix stores a users x items matrix twice: compressed by column
// (item vectors) and compressed by row (user histories).
type sparseMatrix struct {
	rows int
	cols int

	colPtr []int
	colIdx []int
	colVal []float64

	rowPtr []int
	rowIdx []int
	rowVal []float64
}

// newSparseMatrix builds the matrix from cells. Duplicate coordinates are
// summed into one cell.
func newSparseMatrix(rows, cols int, cells []cell) *sparseMatrix {
	seen := make(map[[2]int]int, len(cells))
	unique := make([]cell, 0, len(cells))
	for _, c := range cells {
		key := [2]int{c.row, c.col}
		if i, ok := seen[key]; ok {
			unique[i].val += c.val
			continue
		}
		seen[key] = len(unique)
		unique = append(unique, c)
	}

	m := &sparseMatrix{
		rows:   rows,
		cols:   cols,
		colPtr: make([]int, cols+1),
		colIdx: make([]int, len(unique)),
		colVal: make([]float64, len(unique)),
		rowPtr: make([]int, rows+1),
		rowIdx: make([]int, len(unique)),
		rowVal: make([]float64, len(unique)),
	}

	for _, c := range unique {
		m.colPtr[c.col+1]++
	}
	for j := 0; j < cols; j++ {
		m.colPtr[j+1] += m.colPtr[j]
	}
	next := make([]int, cols)
	copy(next, m.colPtr[:cols])
	for _, c := range unique {
		pos := next[c.col]
		next[c.col]++
		m.colIdx[pos] = c.row
		m.colVal[pos] = c.val
	}
	return m
}

func (m *sparseMatrix) column(j int) ([]int, []float64) {
	lo, hi := m.colPtr[j], m.colPtr[j+1]
	return m.colIdx[lo:hi], m.colVal[lo:hi]
}

func (m *sparseMatrix) row(i int) ([]int, []float64) {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	return m.rowIdx[lo:hi], m.rowVal[lo:hi]
}

// normalizeColumns scales every item vector to unit L2 norm and then derives
// the row-compressed copy from the normalized values. Zero columns stay zero.
func (m *sparseMatrix) normalizeColumns() {
	for j := 0; j < m.cols; j++ {
		_, vals := m.column(j)
		if len(vals) == 0 {
			continue
		}
		if norm := floats.Norm(vals, 2); norm > 0 {
			floats.Scale(1/norm, vals)
		}
	}

	for i := range m.rowPtr {
		m.rowPtr[i] = 0
	}
	for _, r := range m.colIdx {
		m.rowPtr[r+1]++
	}
	for i := 0; i < m.rows; i++ {
		m.rowPtr[i+1] += m.rowPtr[i]
	}
	next := make([]int, m.rows)
	copy(next, m.rowPtr[:m.rows])
	for j := 0; j < m.cols; j++ {
		idx, vals := m.column(j)
		for k, r := range idx {
			pos := next[r]
			next[r]++
			m.rowIdx[pos] = j
			m.rowVal[pos] = vals[k]
		}
	}
}

// ComputeSimilarity derives, for every item, its k most cosine-similar items
// from the user x item interaction matrix. The product normalize(Mt) *
// normalize(Mt)t is evaluated one item row at a time with a sparse
// accumulator, so only pairs of items sharing at least one user are touched.
//
// Edges are sorted by similarity descending with ties broken by item column
// index; self edges and structural zeros are never returned. Interaction rows
// that cannot be mapped onto the vocabulary are dropped and logged.
func ComputeSimilarity(interactions []Interaction, k int, logger logrus.FieldLogger) (SimilarityMap, SimilarityStats) {
	var stats SimilarityStats
	result := SimilarityMap{items: []string{}, edges: make(map[string][]SimilarItem)}
	if len(interactions) == 0 {
		return result, stats
	}

	users := newVocabulary()
	items := newVocabulary()
	for _, in := range interactions {
		if in.UserID == "" || in.ItemID == "" {
			continue
		}
		users.add(in.UserID)
		items.add(in.ItemID)
	}

	cells := make([]cell, 0, len(interactions))
	var badUsers, badItems, badWeights []string
	for _, in := range interactions {
		row, okUser := users.lookup(in.UserID)
		col, okItem := items.lookup(in.ItemID)
		okWeight := !math.IsNaN(in.Weight) && !math.IsInf(in.Weight, 0)
		if !okUser || !okItem || !okWeight {
			stats.Dropped++
			if !okUser {
				badUsers = append(badUsers, in.UserID)
			}
			if !okItem {
				badItems = append(badItems, in.ItemID)
			}
			if okUser && okItem {
				badWeights = append(badWeights, in.UserID+"/"+in.ItemID)
			}
			continue
		}
		cells = append(cells, cell{row: row, col: col, val: in.Weight})
	}
	if stats.Dropped > 0 && logger != nil {
		logger.WithFields(logrus.Fields{
			"dropped":         stats.Dropped,
			"unknown_users":   badUsers,
			"unknown_items":   badItems,
			"invalid_weights": badWeights,
			"total_interacts": len(interactions),
		}).Warn("Dropping interactions that cannot enter the similarity matrix")
	}

	m := newSparseMatrix(len(users.ids), len(items.ids), cells)
	m.normalizeColumns()

	stats.Users = m.rows
	stats.Items = m.cols
	stats.NonZeros = len(m.colVal)

	acc := make([]float64, m.cols)
	touched := make([]bool, m.cols)
	var candidates []int

	result.items = items.ids
	for j := 0; j < m.cols; j++ {
		candidates = candidates[:0]

		rowsOfJ, valsOfJ := m.column(j)
		for a, u := range rowsOfJ {
			cols, vals := m.row(u)
			for b, other := range cols {
				if other == j {
					continue
				}
				if !touched[other] {
					touched[other] = true
					candidates = append(candidates, other)
				}
				acc[other] += valsOfJ[a] * vals[b]
			}
		}

		sort.Ints(candidates)
		edges := make([]SimilarItem, 0, len(candidates))
		for _, other := range candidates {
			sim := acc[other]
			acc[other] = 0
			touched[other] = false
			if sim == 0 {
				continue
			}
			edges = append(edges, SimilarItem{
				ItemID: items.ids[other],
				Sim:    math.Max(-1, math.Min(1, sim)),
			})
		}

		sort.SliceStable(edges, func(a, b int) bool {
			return edges[a].Sim > edges[b].Sim
		})
		if k <= 0 {
			edges = edges[:0]
		} else if len(edges) > k {
			edges = edges[:k]
		}

		result.edges[items.ids[j]] = edges
		stats.Edges += len(edges)
	}

	return result, stats
}
