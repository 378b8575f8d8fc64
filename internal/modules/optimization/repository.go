package optimization

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/frontier/internal/domain"
)

// ErrRunNotFound is returned when a run id does not exist
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one persisted run row. Params is the request serialized
// as JSON; Payload is the full result serialized as msgpack.
type RunRecord struct {
	ID        string
	Kind      domain.RunKind
	Symbols   []string
	Params    json.RawMessage
	Payload   []byte
	CreatedAt time.Time
}

// RunRepository persists optimization runs
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

// Save stores a run and returns its generated id. params is stored as
// JSON for listing; payload as msgpack since results carry large float
// arrays.
func (r *RunRepository) Save(kind domain.RunKind, symbols []string, params, payload interface{}) (string, error) {
	id := uuid.New().String()

	symbolsJSON, err := json.Marshal(symbols)
	if err != nil {
		return "", fmt.Errorf("failed to marshal symbols: %w", err)
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("failed to marshal params: %w", err)
	}
	payloadBytes, err := msgpack.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	createdAt := time.Now().UTC()
	_, err = r.db.Exec(`
		INSERT INTO runs (id, kind, symbols, params, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, string(kind), string(symbolsJSON), string(paramsJSON), payloadBytes, createdAt.Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	r.log.Debug().
		Str("run_id", id).
		Str("kind", string(kind)).
		Int("payload_bytes", len(payloadBytes)).
		Msg("Run saved")

	return id, nil
}

// Get loads a single run including its payload
func (r *RunRepository) Get(id string) (*RunRecord, error) {
	row := r.db.QueryRow(`
		SELECT id, kind, symbols, params, payload, created_at
		FROM runs
		WHERE id = ?
	`, id)

	rec, err := scanRun(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return rec, nil
}

// List returns run summaries newest first, without payloads
func (r *RunRepository) List(limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(`
		SELECT id, kind, symbols, created_at
		FROM runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var (
			run         domain.Run
			kind        string
			symbolsJSON string
			createdAt   string
		)
		if err := rows.Scan(&run.ID, &kind, &symbolsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		run.Kind = domain.RunKind(kind)
		if err := json.Unmarshal([]byte(symbolsJSON), &run.Symbols); err != nil {
			return nil, fmt.Errorf("failed to unmarshal symbols: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			run.CreatedAt = t
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// Delete removes a run
func (r *RunRepository) Delete(id string) error {
	res, err := r.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrRunNotFound
	}
	return nil
}

// DeleteOlderThan prunes runs created before the cutoff and returns the
// number removed
func (r *RunRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM runs WHERE created_at < ?", cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// DecodePayload unmarshals a run's msgpack payload into out
func (rec *RunRecord) DecodePayload(out interface{}) error {
	if err := msgpack.Unmarshal(rec.Payload, out); err != nil {
		return fmt.Errorf("failed to decode run payload: %w", err)
	}
	return nil
}

func scanRun(scan func(...interface{}) error) (*RunRecord, error) {
	var (
		rec         RunRecord
		kind        string
		symbolsJSON string
		paramsJSON  string
		createdAt   string
	)
	if err := scan(&rec.ID, &kind, &symbolsJSON, &paramsJSON, &rec.Payload, &createdAt); err != nil {
		return nil, err
	}
	rec.Kind = domain.RunKind(kind)
	if err := json.Unmarshal([]byte(symbolsJSON), &rec.Symbols); err != nil {
		return nil, fmt.Errorf("failed to unmarshal symbols: %w", err)
	}
	rec.Params = json.RawMessage(paramsJSON)
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		rec.CreatedAt = t
	}
	return &rec, nil
}
