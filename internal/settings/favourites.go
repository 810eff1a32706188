package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyStopCode = errors.New("stop code must not be empty")

type Favourite struct {
	StopCode string `json:"stop_code"`
	StopName string `json:"stop_name"`
}

// AddOrUpdateFavourite stores stopCode under stopName, replacing any earlier name.
func (s *Store) AddOrUpdateFavourite(ctx context.Context, stopCode, stopName string) error {
	if strings.TrimSpace(stopCode) == "" {
		return ErrEmptyStopCode
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO favourite_stops (_id, stopName) VALUES (?, ?)
			ON CONFLICT(_id) DO UPDATE SET stopName = excluded.stopName`, stopCode, stopName)
		if err != nil {
			return fmt.Errorf("saving favourite %s: %w", stopCode, err)
		}
		return nil
	})
}

// RemoveFavourite reports whether a favourite was removed.
func (s *Store) RemoveFavourite(ctx context.Context, stopCode string) (bool, error) {
	var removed bool
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM favourite_stops WHERE _id = ?`, stopCode)
		if err != nil {
			return fmt.Errorf("removing favourite %s: %w", stopCode, err)
		}
		n, _ := res.RowsAffected()
		removed = n > 0
		return nil
	})
	return removed, err
}

func (s *Store) IsFavourite(ctx context.Context, stopCode string) (bool, error) {
	var n int
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favourite_stops WHERE _id = ?`, stopCode).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking favourite %s: %w", stopCode, err)
	}
	return n > 0, nil
}

// FavouriteName returns the saved name, or "" when stopCode is not a favourite.
func (s *Store) FavouriteName(ctx context.Context, stopCode string) (string, error) {
	var name string
	err := s.db.DB().QueryRowContext(ctx,
		`SELECT stopName FROM favourite_stops WHERE _id = ?`, stopCode).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading favourite %s: %w", stopCode, err)
	}
	return name, nil
}

// Favourites lists all favourites ordered by name.
func (s *Store) Favourites(ctx context.Context) ([]Favourite, error) {
	rows, err := s.db.DB().QueryContext(ctx,
		`SELECT _id, stopName FROM favourite_stops ORDER BY stopName COLLATE NOCASE, _id`)
	if err != nil {
		return nil, fmt.Errorf("querying favourites: %w", err)
	}
	defer rows.Close()

	favourites := []Favourite{}
	for rows.Next() {
		var f Favourite
		if err := rows.Scan(&f.StopCode, &f.StopName); err != nil {
			return nil, fmt.Errorf("scanning favourite: %w", err)
		}
		favourites = append(favourites, f)
	}
	return favourites, rows.Err()
}
