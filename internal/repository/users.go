package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/videostore/internal/domain"
)

// UsersRepository persists users and their borrow sets.
type UsersRepository struct {
	db DBTX
}

const userColumns = `
    id,
    user_name,
    email,
    password,
    role,
    movie_ids,
    created_at,
    updated_at
`

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	UserName     string
	Email        string
	PasswordHash string
	Role         string
}

// Create inserts a user with an empty borrow set.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	query := fmt.Sprintf(`
        INSERT INTO users (user_name, email, password, role)
        VALUES ($1,$2,$3,$4)
        RETURNING %s
    `, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, params.UserName, params.Email, params.PasswordHash, params.Role))
	return user, translate(err)
}

// GetByID fetches a user by identifier.
func (r *UsersRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	return user, translate(err)
}

// GetByUserName fetches a user by its normalized user name.
func (r *UsersRepository) GetByUserName(ctx context.Context, userName string) (domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE user_name = $1`, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, userName))
	return user, translate(err)
}

// List returns every user.
func (r *UsersRepository) List(ctx context.Context) ([]domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users ORDER BY user_name`, userColumns)
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, translate(err)
	}
	return collect(rows, scanUser)
}

// Update overwrites the mutable columns of a user, borrow set included.
func (r *UsersRepository) Update(ctx context.Context, user domain.User) (domain.User, error) {
	ids, err := uuidArray(user.MovieIDs)
	if err != nil {
		return domain.User{}, err
	}
	query := fmt.Sprintf(`
        UPDATE users
        SET user_name = $2,
            email = $3,
            password = $4,
            role = $5,
            movie_ids = $6,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, userColumns)
	updated, err := scanUser(r.db.QueryRow(ctx, query, user.ID, user.UserName, user.Email, user.PasswordHash, user.Role, ids))
	return updated, translate(err)
}

// Delete removes a user and returns the deleted row.
func (r *UsersRepository) Delete(ctx context.Context, id string) (domain.User, error) {
	query := fmt.Sprintf(`DELETE FROM users WHERE id = $1 RETURNING %s`, userColumns)
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	return user, translate(err)
}

// ClearBorrows empties every borrow set.
func (r *UsersRepository) ClearBorrows(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET movie_ids = '{}', updated_at = now() WHERE cardinality(movie_ids) > 0`)
	return translate(err)
}

// CountBorrowers reports how many users hold movieID in their borrow set,
// ignoring excludeUserID when it is non-empty.
func (r *UsersRepository) CountBorrowers(ctx context.Context, movieID, excludeUserID string) (int, error) {
	query := `SELECT count(*) FROM users WHERE $1::uuid = ANY(movie_ids)`
	args := []any{movieID}
	if excludeUserID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeUserID)
	}
	var n int
	err := r.db.QueryRow(ctx, query, args...).Scan(&n)
	return n, translate(err)
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.UserName,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.MovieIDs,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	if user.MovieIDs == nil {
		user.MovieIDs = []string{}
	}
	return user, nil
}
