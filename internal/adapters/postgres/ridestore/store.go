package ridestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/wesrides/rides-api/internal/adapters/postgres"
	"github.com/wesrides/rides-api/internal/domain"
	"github.com/wesrides/rides-api/internal/ports/out/ridestore"
)

// Store is a Postgres implementation of ridestore.Store.
//
// Transact serializes work per ride with a SELECT ... FOR UPDATE on the ride
// row, so two concurrent transitions on the same ride cannot interleave.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const rideColumns = `
	id,
	owner_id,
	location,
	start_date,
	end_date,
	has_car,
	wants_car,
	wants_uber,
	additional_comments,
	status,
	created_at,
	updated_at
`

const interestColumns = `
	id,
	ride_id,
	user_id,
	status,
	created_at,
	updated_at
`

func (s *Store) CreateRide(ctx context.Context, r ridestore.Ride) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(r.ID))
	if err != nil {
		return fmt.Errorf("invalid ride id: %w", err)
	}
	ownerUUID, err := uuid.Parse(string(r.OwnerID))
	if err != nil {
		return fmt.Errorf("invalid owner id: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO rides (
			id,
			owner_id,
			location,
			start_date,
			end_date,
			has_car,
			wants_car,
			wants_uber,
			additional_comments,
			status,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		rideUUID,
		ownerUUID,
		r.Location,
		r.StartDate.UTC(),
		r.EndDate.UTC(),
		r.HasCar,
		r.WantsCar,
		r.WantsUber,
		r.AdditionalComments,
		string(r.Status),
		r.CreatedAt.UTC(),
		r.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			switch pe.ConstraintName {
			case "rides_owner_location_start_open_unique":
				return ridestore.ErrDuplicateRide
			case "rides_pkey":
				return ridestore.ErrAlreadyExists
			default:
				return err
			}
		}
		return err
	}
	return nil
}

func (s *Store) GetRide(ctx context.Context, id domain.RideID) (ridestore.Ride, error) {
	if s.pool == nil {
		return ridestore.Ride{}, errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(id))
	if err != nil {
		return ridestore.Ride{}, ridestore.ErrNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, rideUUID)
	return scanRide(row)
}

func (s *Store) ListRidesByOwner(ctx context.Context, owner domain.UserID) ([]ridestore.Ride, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	ownerUUID, err := uuid.Parse(string(owner))
	if err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE owner_id = $1
		ORDER BY start_date DESC, id
	`, ownerUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRides(rows)
}

func (s *Store) SearchOpenRides(ctx context.Context, q ridestore.SearchQuery) ([]ridestore.Ride, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}

	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conds = append(conds, `status IN ('pending', 'awaiting_confirmation')`)

	var filters []string
	if q.HasCar {
		filters = append(filters, "has_car")
	}
	if q.WantsCar {
		filters = append(filters, "wants_car")
	}
	if q.WantsUber {
		filters = append(filters, "wants_uber")
	}
	if len(filters) > 0 {
		conds = append(conds, "("+strings.Join(filters, " OR ")+")")
	}

	if q.ExcludeOwner != "" {
		if ownerUUID, err := uuid.Parse(string(q.ExcludeOwner)); err == nil {
			conds = append(conds, "owner_id <> "+arg(ownerUUID))
		}
	}

	orderBy := `start_date, id`
	if q.Keyword != "" {
		pattern := "%" + escapeLike(q.Keyword) + "%"
		conds = append(conds, fmt.Sprintf(
			"(location ILIKE %s OR additional_comments ILIKE %s)", arg(pattern), arg(pattern)))
		// Exact location matches first.
		orderBy = fmt.Sprintf("(LOWER(location) = LOWER(%s)) DESC, start_date, id", arg(q.Keyword))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE `+strings.Join(conds, " AND ")+`
		ORDER BY `+orderBy,
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRides(rows)
}

func (s *Store) GetInterest(ctx context.Context, id domain.RideInterestID) (ridestore.Interest, error) {
	if s.pool == nil {
		return ridestore.Interest{}, errors.New("nil postgres pool")
	}
	interestUUID, err := uuid.Parse(string(id))
	if err != nil {
		return ridestore.Interest{}, ridestore.ErrInterestNotFound
	}
	row := s.pool.QueryRow(ctx, `SELECT `+interestColumns+` FROM ride_interests WHERE id = $1`, interestUUID)
	return scanInterest(row)
}

func (s *Store) ListInterestsByRide(ctx context.Context, rideID domain.RideID) ([]ridestore.Interest, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(rideID))
	if err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+interestColumns+`
		FROM ride_interests
		WHERE ride_id = $1
		ORDER BY created_at, id
	`, rideUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInterests(rows)
}

func (s *Store) ListInterestsByUser(ctx context.Context, userID domain.UserID) ([]ridestore.Interest, error) {
	if s.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	userUUID, err := uuid.Parse(string(userID))
	if err != nil {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+interestColumns+`
		FROM ride_interests
		WHERE user_id = $1
		ORDER BY created_at, id
	`, userUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInterests(rows)
}

func (s *Store) Transact(ctx context.Context, rideID domain.RideID, fn func(ctx context.Context, tx ridestore.Tx) error) error {
	if s.pool == nil {
		return errors.New("nil postgres pool")
	}
	rideUUID, err := uuid.Parse(string(rideID))
	if err != nil {
		return ridestore.ErrNotFound
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		// Lock the aggregate root. Everything in fn happens under this lock.
		var locked uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM rides WHERE id = $1 FOR UPDATE`, rideUUID).Scan(&locked)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ridestore.ErrNotFound
			}
			return err
		}
		return fn(ctx, &pgTx{tx: tx, rideUUID: rideUUID})
	})
}

// pgTx implements ridestore.Tx on top of an open pgx transaction holding the
// row lock for one ride.
type pgTx struct {
	tx       pgx.Tx
	rideUUID uuid.UUID
}

func (t *pgTx) Ride(ctx context.Context) (ridestore.Ride, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, t.rideUUID)
	return scanRide(row)
}

func (t *pgTx) SaveRide(ctx context.Context, r ridestore.Ride) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE rides SET
			location = $2,
			start_date = $3,
			end_date = $4,
			has_car = $5,
			wants_car = $6,
			wants_uber = $7,
			additional_comments = $8,
			status = $9,
			updated_at = $10
		WHERE id = $1
	`,
		t.rideUUID,
		r.Location,
		r.StartDate.UTC(),
		r.EndDate.UTC(),
		r.HasCar,
		r.WantsCar,
		r.WantsUber,
		r.AdditionalComments,
		string(r.Status),
		r.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "rides_owner_location_start_open_unique" {
			return ridestore.ErrDuplicateRide
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ridestore.ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteRide(ctx context.Context) error {
	// Interests go with the ride via ON DELETE CASCADE.
	tag, err := t.tx.Exec(ctx, `DELETE FROM rides WHERE id = $1`, t.rideUUID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ridestore.ErrNotFound
	}
	return nil
}

func (t *pgTx) Interests(ctx context.Context) ([]ridestore.Interest, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+interestColumns+`
		FROM ride_interests
		WHERE ride_id = $1
		ORDER BY created_at, id
	`, t.rideUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInterests(rows)
}

func (t *pgTx) CreateInterest(ctx context.Context, it ridestore.Interest) error {
	interestUUID, err := uuid.Parse(string(it.ID))
	if err != nil {
		return fmt.Errorf("invalid ride interest id: %w", err)
	}
	userUUID, err := uuid.Parse(string(it.UserID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO ride_interests (id, ride_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		interestUUID,
		t.rideUUID,
		userUUID,
		string(it.Status),
		it.CreatedAt.UTC(),
		it.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "ride_interests_pkey" {
			return ridestore.ErrInterestAlreadyExists
		}
		return err
	}
	return nil
}

func (t *pgTx) SaveInterest(ctx context.Context, it ridestore.Interest) error {
	interestUUID, err := uuid.Parse(string(it.ID))
	if err != nil {
		return fmt.Errorf("invalid ride interest id: %w", err)
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE ride_interests SET
			status = $2,
			updated_at = $3
		WHERE id = $1 AND ride_id = $4
	`,
		interestUUID,
		string(it.Status),
		it.UpdatedAt.UTC(),
		t.rideUUID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ridestore.ErrInterestNotFound
	}
	return nil
}

func (t *pgTx) DeleteInterest(ctx context.Context, id domain.RideInterestID) error {
	interestUUID, err := uuid.Parse(string(id))
	if err != nil {
		return ridestore.ErrInterestNotFound
	}
	tag, err := t.tx.Exec(ctx, `DELETE FROM ride_interests WHERE id = $1 AND ride_id = $2`, interestUUID, t.rideUUID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ridestore.ErrInterestNotFound
	}
	return nil
}

func (t *pgTx) HasDuplicate(ctx context.Context, location string, startDate time.Time) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM rides
			WHERE owner_id = (SELECT owner_id FROM rides WHERE id = $1)
			  AND id <> $1
			  AND LOWER(location) = LOWER($2)
			  AND start_date = $3
			  AND status IN ('pending', 'awaiting_confirmation')
		)
	`, t.rideUUID, location, startDate.UTC()).Scan(&exists)
	return exists, err
}

func scanRide(row pgx.Row) (ridestore.Ride, error) {
	var (
		id, owner uuid.UUID
		status    string
		r         ridestore.Ride
	)
	err := row.Scan(
		&id,
		&owner,
		&r.Location,
		&r.StartDate,
		&r.EndDate,
		&r.HasCar,
		&r.WantsCar,
		&r.WantsUber,
		&r.AdditionalComments,
		&status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ridestore.Ride{}, ridestore.ErrNotFound
		}
		return ridestore.Ride{}, err
	}
	r.ID = domain.RideID(id.String())
	r.OwnerID = domain.UserID(owner.String())
	r.Status = ridestore.Status(status)
	r.StartDate = r.StartDate.UTC()
	r.EndDate = r.EndDate.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func collectRides(rows pgx.Rows) ([]ridestore.Ride, error) {
	var out []ridestore.Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanInterest(row pgx.Row) (ridestore.Interest, error) {
	var (
		id, ride, user uuid.UUID
		status         string
		it             ridestore.Interest
	)
	err := row.Scan(
		&id,
		&ride,
		&user,
		&status,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ridestore.Interest{}, ridestore.ErrInterestNotFound
		}
		return ridestore.Interest{}, err
	}
	it.ID = domain.RideInterestID(id.String())
	it.RideID = domain.RideID(ride.String())
	it.UserID = domain.UserID(user.String())
	it.Status = ridestore.InterestStatus(status)
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	return it, nil
}

func collectInterests(rows pgx.Rows) ([]ridestore.Interest, error) {
	var out []ridestore.Interest
	for rows.Next() {
		it, err := scanInterest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
