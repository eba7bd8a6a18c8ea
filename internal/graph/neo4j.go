// Package graph mirrors the property similarity snapshot into Neo4j as
// SIMILAR_TO relationships between Property nodes.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/pkg/models"
)

const (
	clearSimilaritiesCypher = `
		MATCH (:Property)-[r:SIMILAR_TO]->(:Property)
		DELETE r`

	mergeSimilaritiesCypher = `
		UNWIND $edges AS edge
		MERGE (a:Property {id: edge.property_a})
		MERGE (b:Property {id: edge.property_b})
		MERGE (a)-[r:SIMILAR_TO]->(b)
		SET r.sim = edge.sim, r.generated_at = edge.generated_at`
)

// writer runs one write statement in its own managed transaction.
type writer interface {
	Write(ctx context.Context, cypher string, params map[string]interface{}) error
}

type driverWriter struct {
	driver neo4j.DriverWithContext
}

func (w driverWriter) Write(ctx context.Context, cypher string, params map[string]interface{}) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (interface{}, error) {
		result, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	return err
}

// SimilarityMirror replaces the SIMILAR_TO graph with the latest snapshot.
type SimilarityMirror struct {
	writer    writer
	batchSize int
	logger    *logrus.Logger
}

func NewSimilarityMirror(driver neo4j.DriverWithContext, batchSize int, logger *logrus.Logger) *SimilarityMirror {
	return newSimilarityMirror(driverWriter{driver: driver}, batchSize, logger)
}

func newSimilarityMirror(w writer, batchSize int, logger *logrus.Logger) *SimilarityMirror {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &SimilarityMirror{
		writer:    w,
		batchSize: batchSize,
		logger:    logger,
	}
}

// MirrorSimilarities drops every SIMILAR_TO edge and writes sims in batches.
// The graph is a read-side copy; a failure part way leaves it incomplete
// until the next run.
func (m *SimilarityMirror) MirrorSimilarities(ctx context.Context, sims []models.PropertySimilarity) error {
	if err := m.writer.Write(ctx, clearSimilaritiesCypher, nil); err != nil {
		return fmt.Errorf("failed to clear similarity graph: %w", err)
	}

	batches := 0
	for start := 0; start < len(sims); start += m.batchSize {
		end := start + m.batchSize
		if end > len(sims) {
			end = len(sims)
		}

		params := map[string]interface{}{"edges": edgeParams(sims[start:end])}
		if err := m.writer.Write(ctx, mergeSimilaritiesCypher, params); err != nil {
			return fmt.Errorf("failed to write similarity batch at offset %d: %w", start, err)
		}
		batches++
	}

	m.logger.WithFields(logrus.Fields{
		"edges":   len(sims),
		"batches": batches,
	}).Info("Similarity graph mirrored")

	return nil
}

func edgeParams(sims []models.PropertySimilarity) []map[string]interface{} {
	edges := make([]map[string]interface{}, len(sims))
	for i, s := range sims {
		edges[i] = map[string]interface{}{
			"property_a":   s.PropertyA,
			"property_b":   s.PropertyB,
			"sim":          s.Sim,
			"generated_at": s.GeneratedAt.UTC(),
		}
	}
	return edges
}
