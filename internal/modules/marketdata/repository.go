package marketdata

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles price cache database operations
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new price repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// UpsertPrices inserts or replaces daily closes for a symbol
func (r *Repository) UpsertPrices(symbol string, records []PriceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO prices (symbol, date, close, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (symbol, date) DO UPDATE SET close = excluded.close, updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range records {
		if _, err := stmt.Exec(symbol, rec.Date, rec.Close, now); err != nil {
			return fmt.Errorf("failed to upsert price %s %s: %w", symbol, rec.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices: %w", err)
	}

	r.log.Debug().
		Str("symbol", symbol).
		Int("count", len(records)).
		Msg("Prices upserted")

	return nil
}

// GetPrices returns cached closes for a symbol ordered by date
// ascending. Empty from/to bounds are open-ended.
func (r *Repository) GetPrices(symbol, from, to string) ([]PriceRecord, error) {
	query := "SELECT symbol, date, close FROM prices WHERE symbol = ?"
	args := []interface{}{symbol}

	if from != "" {
		query += " AND date >= ?"
		args = append(args, from)
	}
	if to != "" {
		query += " AND date <= ?"
		args = append(args, to)
	}
	query += " ORDER BY date ASC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var records []PriceRecord
	for rows.Next() {
		var rec PriceRecord
		if err := rows.Scan(&rec.Symbol, &rec.Date, &rec.Close); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}

	return records, nil
}

// Symbols returns every symbol present in the cache
func (r *Repository) Symbols() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT symbol FROM prices ORDER BY symbol ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating symbols: %w", err)
	}

	return symbols, nil
}

// LatestDate returns the most recent cached date for a symbol, or empty
// when the symbol is not cached.
func (r *Repository) LatestDate(symbol string) (string, error) {
	// MAX over zero rows yields NULL
	var date sql.NullString
	err := r.db.QueryRow("SELECT MAX(date) FROM prices WHERE symbol = ?", symbol).Scan(&date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query latest date: %w", err)
	}
	if !date.Valid {
		return "", nil
	}
	return date.String, nil
}

// LatestClose returns the most recent cached close for a symbol
func (r *Repository) LatestClose(symbol string) (float64, error) {
	var close float64
	err := r.db.QueryRow(`
		SELECT close FROM prices
		WHERE symbol = ?
		ORDER BY date DESC
		LIMIT 1
	`, symbol).Scan(&close)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("no cached price for %s", symbol)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query latest close: %w", err)
	}
	return close, nil
}
