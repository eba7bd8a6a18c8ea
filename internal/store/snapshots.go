package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/pkg/models"
)

const (
	RecommendationsTable = "user_recommendations"
	SimilaritiesTable    = "property_similarities"
	PopularTable         = "popular_properties"
)

var (
	recommendationColumns = []string{"user_id", "property_id", "score", "rank", "generated_at"}
	similarityColumns     = []string{"property_a", "property_b", "sim", "generated_at"}
	popularColumns        = []string{"property_id", "score", "rank", "generated_at"}
)

const (
	userRecommendationsQuery = `
		SELECT user_id::text, property_id::text, score, rank, generated_at
		FROM user_recommendations
		WHERE user_id = $1
		ORDER BY rank ASC`

	similarPropertiesQuery = `
		SELECT property_a::text, property_b::text, sim, generated_at
		FROM property_similarities
		WHERE property_a = $1
		ORDER BY sim DESC, property_b
		LIMIT $2`

	popularPropertiesQuery = `
		SELECT property_id::text, score, rank, generated_at
		FROM popular_properties
		ORDER BY rank ASC
		LIMIT $1`
)

// SnapshotStore owns the computed snapshot tables. Every Replace call swaps a
// whole table inside one transaction: readers see either the previous rows or
// the new ones, never a mix and never an empty gap.
type SnapshotStore struct {
	db     DBTX
	logger *logrus.Logger
}

func NewSnapshotStore(db DBTX, logger *logrus.Logger) *SnapshotStore {
	return &SnapshotStore{
		db:     db,
		logger: logger,
	}
}

func (s *SnapshotStore) ReplaceRecommendations(ctx context.Context, recs []models.UserRecommendation) error {
	rows := make([][]interface{}, 0, len(recs))
	for _, r := range recs {
		userID, err := parseID(r.UserID)
		if err != nil {
			return err
		}
		propertyID, err := parseID(r.PropertyID)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{userID, propertyID, r.Score, r.Rank, r.GeneratedAt})
	}
	return s.replace(ctx, RecommendationsTable, recommendationColumns, rows)
}

func (s *SnapshotStore) ReplaceSimilarities(ctx context.Context, sims []models.PropertySimilarity) error {
	rows := make([][]interface{}, 0, len(sims))
	for _, r := range sims {
		a, err := parseID(r.PropertyA)
		if err != nil {
			return err
		}
		b, err := parseID(r.PropertyB)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{a, b, r.Sim, r.GeneratedAt})
	}
	return s.replace(ctx, SimilaritiesTable, similarityColumns, rows)
}

func (s *SnapshotStore) ReplacePopular(ctx context.Context, popular []models.PopularProperty) error {
	rows := make([][]interface{}, 0, len(popular))
	for _, r := range popular {
		propertyID, err := parseID(r.PropertyID)
		if err != nil {
			return err
		}
		rows = append(rows, []interface{}{propertyID, r.Score, r.Rank, r.GeneratedAt})
	}
	return s.replace(ctx, PopularTable, popularColumns, rows)
}

// replace deletes every row of table and bulk loads rows with COPY, all in a
// single transaction. Any failure rolls back and leaves the table untouched.
func (s *SnapshotStore) replace(ctx context.Context, table string, columns []string, rows [][]interface{}) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin %s replacement: %w", table, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.WithError(rbErr).WithField("table", table).Error("Failed to roll back snapshot replacement")
		}
	}()

	if _, err = tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	if len(rows) > 0 {
		var copied int64
		copied, err = tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy rows into %s: %w", table, err)
		}
		if copied != int64(len(rows)) {
			err = fmt.Errorf("copied %d of %d rows into %s", copied, len(rows), table)
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s replacement: %w", table, err)
	}

	s.logger.WithFields(logrus.Fields{
		"table": table,
		"rows":  len(rows),
	}).Info("Snapshot replaced")

	return nil
}

func (s *SnapshotStore) GetUserRecommendations(ctx context.Context, userID string) ([]models.UserRecommendation, error) {
	id, err := parseID(userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, userRecommendationsQuery, id)
	if err != nil {
		return nil, fmt.Errorf("user recommendations query failed: %w", err)
	}
	defer rows.Close()

	recs := []models.UserRecommendation{}
	for rows.Next() {
		var r models.UserRecommendation
		if err := rows.Scan(&r.UserID, &r.PropertyID, &r.Score, &r.Rank, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user recommendation: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("user recommendations iteration failed: %w", err)
	}
	return recs, nil
}

func (s *SnapshotStore) GetSimilarProperties(ctx context.Context, propertyID string, limit int) ([]models.PropertySimilarity, error) {
	id, err := parseID(propertyID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, similarPropertiesQuery, id, limit)
	if err != nil {
		return nil, fmt.Errorf("similar properties query failed: %w", err)
	}
	defer rows.Close()

	sims := []models.PropertySimilarity{}
	for rows.Next() {
		var r models.PropertySimilarity
		if err := rows.Scan(&r.PropertyA, &r.PropertyB, &r.Sim, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan property similarity: %w", err)
		}
		sims = append(sims, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similar properties iteration failed: %w", err)
	}
	return sims, nil
}

func (s *SnapshotStore) GetPopularProperties(ctx context.Context, limit int) ([]models.PopularProperty, error) {
	rows, err := s.db.Query(ctx, popularPropertiesQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("popular properties query failed: %w", err)
	}
	defer rows.Close()

	popular := []models.PopularProperty{}
	for rows.Next() {
		var r models.PopularProperty
		if err := rows.Scan(&r.PropertyID, &r.Score, &r.Rank, &r.GeneratedAt); err != nil {
			return nil, fmt.Errorf("failed to scan popular property: %w", err)
		}
		popular = append(popular, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("popular properties iteration failed: %w", err)
	}
	return popular, nil
}

// ErrInvalidID is returned for identifiers that are not UUIDs.
var ErrInvalidID = errors.New("invalid identifier")

func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %q: %v", ErrInvalidID, id, err)
	}
	return parsed, nil
}
