package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/videostore/internal/store"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("repository: not found")

// ErrInvalidID reports an identifier that is not a UUID.
var ErrInvalidID = errors.New("repository: invalid identifier")

// UniqueViolationError reports a unique index that rejected a write. Field is
// the attribute guarded by the index.
type UniqueViolationError struct {
	Constraint string
	Field      string
	Err        error
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("repository: unique violation on %s", e.Field)
}

func (e *UniqueViolationError) Unwrap() error { return e.Err }

var constraintFields = map[string]string{
	"movies_title_key":    "title",
	"movies_poster_key":   "poster",
	"directors_photo_key": "photo",
	"users_user_name_key": "userName",
	"users_email_key":     "email",
	"products_name_key":   "name",
	"products_img_key":    "img",
}

// DBTX is satisfied by both the pool and a transaction, so every repository
// can run inside or outside WithTx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository aggregates all collection repositories bound to one connection
// scope (the pool, or a single transaction).
type Repository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx

	Movies    *MoviesRepository
	Directors *DirectorsRepository
	Users     *UsersRepository
	Products  *ProductsRepository
}

// New constructs a Repository backed by the provided store.
func New(st *store.Store) *Repository {
	return NewWithPool(st.Pool())
}

// NewWithPool allows constructing repositories directly from a pgx pool.
func NewWithPool(pool *pgxpool.Pool) *Repository {
	r := bind(pool)
	r.pool = pool
	return r
}

func bind(db DBTX) *Repository {
	return &Repository{
		Movies:    &MoviesRepository{db: db},
		Directors: &DirectorsRepository{db: db},
		Users:     &UsersRepository{db: db},
		Products:  &ProductsRepository{db: db},
	}
}

// WithTx runs fn against repositories bound to one transaction. The
// transaction commits when fn returns nil and rolls back otherwise; it is
// always released before WithTx returns. Calling WithTx on a repository that
// is already transactional reuses the open transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}
	if r.pool == nil {
		return fmt.Errorf("repository: no connection pool")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(ctx)
	}()

	scoped := bind(tx)
	scoped.tx = tx
	if err := fn(scoped); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// translate maps driver errors onto repository errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			field := constraintFields[pgErr.ConstraintName]
			if field == "" {
				field = pgErr.ConstraintName
			}
			return &UniqueViolationError{Constraint: pgErr.ConstraintName, Field: field, Err: err}
		case "22P02":
			// malformed uuid literal
			return ErrNotFound
		}
	}
	return err
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	items := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func likePattern(fragment string) string {
	return "%" + fragment + "%"
}

func uuidArray(ids []string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
		out = append(out, parsed)
	}
	return out, nil
}
