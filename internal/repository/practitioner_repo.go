package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sangha-backend/internal/models"
)

// ErrNotFound is returned when a practitioner or one of its circles does not exist.
var ErrNotFound = errors.New("not found")

type PractitionerRepo struct {
	pool *pgxpool.Pool
}

func NewPractitionerRepo(pool *pgxpool.Pool) *PractitionerRepo {
	return &PractitionerRepo{pool: pool}
}

const practitionerColumns = `id, created_at, full_name, email, description,
	sessions, circles, registered_circles, spirit_bank_log`

func (r *PractitionerRepo) Insert(ctx context.Context, p *models.Practitioner) error {
	sessions, circles, registered, log, err := marshalArrays(p)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO practitioners (id, created_at, full_name, email, description,
			sessions, circles, registered_circles, spirit_bank_log)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Created, p.FullName, p.Email, p.Description,
		sessions, circles, registered, log,
	)
	return err
}

func (r *PractitionerRepo) GetByID(ctx context.Context, id string) (*models.Practitioner, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+practitionerColumns+" FROM practitioners WHERE id = $1", id)
	p, err := scanPractitioner(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("practitioner %s: %w", id, ErrNotFound)
	}
	return p, err
}

// GetByEmail returns the earliest practitioner registered with email.
func (r *PractitionerRepo) GetByEmail(ctx context.Context, email string) (*models.Practitioner, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+practitionerColumns+" FROM practitioners WHERE email = $1 ORDER BY created_at LIMIT 1", email)
	p, err := scanPractitioner(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("practitioner with email %s: %w", email, ErrNotFound)
	}
	return p, err
}

func (r *PractitionerRepo) GetAll(ctx context.Context) ([]models.Practitioner, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+practitionerColumns+" FROM practitioners ORDER BY created_at")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	practitioners := make([]models.Practitioner, 0)
	for rows.Next() {
		p, scanErr := scanPractitioner(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		practitioners = append(practitioners, *p)
	}
	return practitioners, rows.Err()
}

func (r *PractitionerRepo) UpdateInvolved(ctx context.Context, id, fullName, email, description string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE practitioners SET full_name = $1, email = $2, description = $3 WHERE id = $4",
		fullName, email, description, id,
	)
	return affected(tag.RowsAffected(), err, id)
}

func (r *PractitionerRepo) AppendSession(ctx context.Context, id string, s models.Session) error {
	return r.appendToArray(ctx, id, "sessions", s)
}

func (r *PractitionerRepo) AppendCircle(ctx context.Context, id string, c models.Circle) error {
	return r.appendToArray(ctx, id, "circles", c)
}

func (r *PractitionerRepo) AddRegisteredCircle(ctx context.Context, id, circleID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE practitioners
		SET registered_circles = registered_circles || jsonb_build_array($2::text)
		WHERE id = $1
		  AND NOT registered_circles ? $2`,
		id, circleID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Already registered is fine; only a missing practitioner is an error.
		_, getErr := r.GetByID(ctx, id)
		return getErr
	}
	return nil
}

// CloseLatestSession sets end_time on the last session if it is still open.
func (r *PractitionerRepo) CloseLatestSession(ctx context.Context, id string, end time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE practitioners
		SET sessions = jsonb_set(
			sessions,
			ARRAY[(jsonb_array_length(sessions) - 1)::text, 'end_time'],
			to_jsonb($2::text))
		WHERE id = $1
		  AND jsonb_array_length(sessions) > 0
		  AND COALESCE(sessions -> -1 ->> 'end_time', '') = ''`,
		id, end.UTC().Format(time.RFC3339Nano),
	)
	return affected(tag.RowsAffected(), err, id)
}

func (r *PractitionerRepo) CloseCircle(ctx context.Context, id, circleID string, end time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE practitioners
		SET circles = (
			SELECT jsonb_agg(
				CASE WHEN c ->> 'id' = $2 THEN jsonb_set(c, '{end_time}', to_jsonb($3::text)) ELSE c END
				ORDER BY ord)
			FROM jsonb_array_elements(circles) WITH ORDINALITY AS t(c, ord))
		WHERE id = $1
		  AND circles @> jsonb_build_array(jsonb_build_object('id', $2::text))`,
		id, circleID, end.UTC().Format(time.RFC3339Nano),
	)
	return affected(tag.RowsAffected(), err, id)
}

func (r *PractitionerRepo) AddCircleFeedback(ctx context.Context, id, circleID string, points int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE practitioners
		SET circles = (
			SELECT jsonb_agg(
				CASE WHEN c ->> 'id' = $2
					THEN jsonb_set(c, '{feedback}', COALESCE(NULLIF(c -> 'feedback', 'null'::jsonb), '[]'::jsonb) || to_jsonb($3::bigint))
					ELSE c END
				ORDER BY ord)
			FROM jsonb_array_elements(circles) WITH ORDINALITY AS t(c, ord))
		WHERE id = $1
		  AND circles @> jsonb_build_array(jsonb_build_object('id', $2::text))`,
		id, circleID, points,
	)
	return affected(tag.RowsAffected(), err, id)
}

// AppendSpiritBankEntry appends to the ledger and returns the new balance.
func (r *PractitionerRepo) AppendSpiritBankEntry(ctx context.Context, id string, entry models.SpiritBankLogEntry) (int64, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return 0, err
	}

	var balance int64
	err = r.pool.QueryRow(ctx, `
		UPDATE practitioners
		SET spirit_bank_log = spirit_bank_log || jsonb_build_array($2::jsonb)
		WHERE id = $1
		RETURNING (
			SELECT COALESCE(SUM((e ->> 'points')::bigint), 0)
			FROM jsonb_array_elements(spirit_bank_log) AS e)`,
		id, raw,
	).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("practitioner %s: %w", id, ErrNotFound)
	}
	return balance, err
}

func (r *PractitionerRepo) appendToArray(ctx context.Context, id, column string, item interface{}) error {
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf("UPDATE practitioners SET %[1]s = %[1]s || jsonb_build_array($2::jsonb) WHERE id = $1", column),
		id, raw,
	)
	return affected(tag.RowsAffected(), err, id)
}

func affected(rows int64, err error, id string) error {
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("practitioner %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanPractitioner(row pgx.Row) (*models.Practitioner, error) {
	p := &models.Practitioner{}
	var sessions, circles, registered, log []byte
	if err := row.Scan(
		&p.ID, &p.Created, &p.FullName, &p.Email, &p.Description,
		&sessions, &circles, &registered, &log,
	); err != nil {
		return nil, err
	}

	for _, field := range []struct {
		raw  []byte
		dest interface{}
	}{
		{sessions, &p.Sessions},
		{circles, &p.Circles},
		{registered, &p.RegisteredCircles},
		{log, &p.SpiritBankLog},
	} {
		if err := json.Unmarshal(field.raw, field.dest); err != nil {
			return nil, fmt.Errorf("failed to decode practitioner %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func marshalArrays(p *models.Practitioner) (sessions, circles, registered, log []byte, err error) {
	if sessions, err = json.Marshal(nonNil(p.Sessions)); err != nil {
		return
	}
	if circles, err = json.Marshal(nonNil(p.Circles)); err != nil {
		return
	}
	if registered, err = json.Marshal(nonNil(p.RegisteredCircles)); err != nil {
		return
	}
	log, err = json.Marshal(nonNil(p.SpiritBankLog))
	return
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
