// Package store is the Postgres side of the pipeline: it reads the raw
// booking, favorite and review facts and replaces or reads the computed
// snapshot tables.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/temcen/stayrec/internal/recommender"
)

// DBTX is the part of pgxpool.Pool the stores rely on. pgxmock pools
// implement it as well.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

const (
	bookingFactsQuery = `
		SELECT COALESCE(renter_id::text, ''), COALESCE(property_id::text, '')
		FROM booking
		WHERE property_id IS NOT NULL
		ORDER BY renter_id NULLS LAST, property_id`

	favoriteFactsQuery = `
		SELECT COALESCE(user_id::text, ''), COALESCE(property_id::text, '')
		FROM userfavorite
		ORDER BY user_id NULLS LAST, property_id NULLS LAST`

	reviewFactsQuery = `
		SELECT rd.user_id::text, r.property_id::text, CAST(rd.overall_rating AS DOUBLE PRECISION)
		FROM review_details rd
		JOIN review r ON r.review_id = rd.review_id
		WHERE rd.user_id IS NOT NULL AND r.property_id IS NOT NULL
		ORDER BY rd.user_id, r.property_id, rd.review_id`
)

// FactStore reads the raw behavioral facts. It never writes.
type FactStore struct {
	db     DBTX
	logger *logrus.Logger
}

func NewFactStore(db DBTX, logger *logrus.Logger) *FactStore {
	return &FactStore{
		db:     db,
		logger: logger,
	}
}

// FetchFacts reads the three fact streams. Any read failure is returned as is;
// callers abort the run before touching a snapshot.
func (s *FactStore) FetchFacts(ctx context.Context) (recommender.Facts, error) {
	var facts recommender.Facts

	bookings, err := s.fetchBookings(ctx)
	if err != nil {
		return facts, err
	}
	favorites, err := s.fetchFavorites(ctx)
	if err != nil {
		return facts, err
	}
	reviews, err := s.fetchReviews(ctx)
	if err != nil {
		return facts, err
	}

	facts.Bookings = bookings
	facts.Favorites = favorites
	facts.Reviews = reviews

	s.logger.WithFields(logrus.Fields{
		"bookings":  len(bookings),
		"favorites": len(favorites),
		"reviews":   len(reviews),
	}).Debug("Fetched interaction facts")

	return facts, nil
}

func (s *FactStore) fetchBookings(ctx context.Context) ([]recommender.BookingFact, error) {
	rows, err := s.db.Query(ctx, bookingFactsQuery)
	if err != nil {
		return nil, fmt.Errorf("booking facts query failed: %w", err)
	}
	defer rows.Close()

	bookings := []recommender.BookingFact{}
	for rows.Next() {
		var b recommender.BookingFact
		if err := rows.Scan(&b.RenterID, &b.PropertyID); err != nil {
			return nil, fmt.Errorf("failed to scan booking fact: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking facts iteration failed: %w", err)
	}
	return bookings, nil
}

func (s *FactStore) fetchFavorites(ctx context.Context) ([]recommender.FavoriteFact, error) {
	rows, err := s.db.Query(ctx, favoriteFactsQuery)
	if err != nil {
		return nil, fmt.Errorf("favorite facts query failed: %w", err)
	}
	defer rows.Close()

	favorites := []recommender.FavoriteFact{}
	for rows.Next() {
		var f recommender.FavoriteFact
		if err := rows.Scan(&f.UserID, &f.PropertyID); err != nil {
			return nil, fmt.Errorf("failed to scan favorite fact: %w", err)
		}
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("favorite facts iteration failed: %w", err)
	}
	return favorites, nil
}

func (s *FactStore) fetchReviews(ctx context.Context) ([]recommender.ReviewFact, error) {
	rows, err := s.db.Query(ctx, reviewFactsQuery)
	if err != nil {
		return nil, fmt.Errorf("review facts query failed: %w", err)
	}
	defer rows.Close()

	reviews := []recommender.ReviewFact{}
	for rows.Next() {
		var r recommender.ReviewFact
		if err := rows.Scan(&r.UserID, &r.PropertyID, &r.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan review fact: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("review facts iteration failed: %w", err)
	}
	return reviews, nil
}
