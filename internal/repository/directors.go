package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

// DirectorsRepository persists directors and their movie reference sets.
type DirectorsRepository struct {
	db DBTX
}

const directorColumns = `
    id,
    surnames,
    name,
    photo,
    movie_ids,
    created_at,
    updated_at
`

// DirectorCreateParams bundles the fields required to create a director.
type DirectorCreateParams struct {
	Surnames string
	Name     string
	Photo    *string
	MovieIDs []string
}

// DirectorListFilters narrows a listing. Name matches folded substrings of
// either the surnames or the name.
type DirectorListFilters struct {
	Name *string
}

// Create inserts one director.
func (r *DirectorsRepository) Create(ctx context.Context, params DirectorCreateParams) (domain.Director, error) {
	ids, err := uuidArray(params.MovieIDs)
	if err != nil {
		return domain.Director{}, err
	}
	query := fmt.Sprintf(`
        INSERT INTO directors (surnames, surnames_key, name, name_key, photo, movie_ids)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING %s
    `, directorColumns)

	row := r.db.QueryRow(ctx, query,
		params.Surnames, textnorm.Fold(params.Surnames),
		params.Name, textnorm.Fold(params.Name),
		params.Photo, ids)
	director, err := scanDirector(row)
	return director, translate(err)
}

// CreateMany inserts a batch of directors in order. Run it inside WithTx to
// make the batch atomic.
func (r *DirectorsRepository) CreateMany(ctx context.Context, batch []DirectorCreateParams) ([]domain.Director, error) {
	out := make([]domain.Director, 0, len(batch))
	for _, params := range batch {
		director, err := r.Create(ctx, params)
		if err != nil {
			return nil, err
		}
		out = append(out, director)
	}
	return out, nil
}

// GetByID fetches a director by its identifier.
func (r *DirectorsRepository) GetByID(ctx context.Context, id string) (domain.Director, error) {
	query := fmt.Sprintf(`SELECT %s FROM directors WHERE id = $1`, directorColumns)
	director, err := scanDirector(r.db.QueryRow(ctx, query, id))
	return director, translate(err)
}

// Update overwrites the mutable columns of a director.
func (r *DirectorsRepository) Update(ctx context.Context, director domain.Director) (domain.Director, error) {
	ids, err := uuidArray(director.MovieIDs)
	if err != nil {
		return domain.Director{}, err
	}
	query := fmt.Sprintf(`
        UPDATE directors
        SET surnames = $2,
            surnames_key = $3,
            name = $4,
            name_key = $5,
            photo = $6,
            movie_ids = $7,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, directorColumns)

	row := r.db.QueryRow(ctx, query, director.ID,
		director.Surnames, textnorm.Fold(director.Surnames),
		director.Name, textnorm.Fold(director.Name),
		director.Photo, ids)
	updated, err := scanDirector(row)
	return updated, translate(err)
}

// Delete removes a director and returns the deleted row.
func (r *DirectorsRepository) Delete(ctx context.Context, id string) (domain.Director, error) {
	query := fmt.Sprintf(`DELETE FROM directors WHERE id = $1 RETURNING %s`, directorColumns)
	director, err := scanDirector(r.db.QueryRow(ctx, query, id))
	return director, translate(err)
}

// DeleteAll empties the collection.
func (r *DirectorsRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM directors`)
	return translate(err)
}

// List returns directors matching filters.
func (r *DirectorsRepository) List(ctx context.Context, filters DirectorListFilters) ([]domain.Director, error) {
	query := fmt.Sprintf(`SELECT %s FROM directors`, directorColumns)
	args := make([]any, 0, 1)
	if filters.Name != nil && strings.TrimSpace(*filters.Name) != "" {
		query += ` WHERE surnames_key LIKE $1 OR name_key LIKE $1`
		args = append(args, likePattern(textnorm.EscapeLike(textnorm.Fold(*filters.Name))))
	}
	query += ` ORDER BY surnames_key, name_key, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	return collect(rows, scanDirector)
}

// FindByMovies returns every director whose reference set shares at least one
// identifier with movieIDs. excludeID, when non-empty, leaves that director out.
func (r *DirectorsRepository) FindByMovies(ctx context.Context, movieIDs []string, excludeID string) ([]domain.Director, error) {
	ids, err := uuidArray(movieIDs)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM directors WHERE movie_ids && $1`, directorColumns)
	args := []any{ids}
	if excludeID != "" {
		query += ` AND id <> $2`
		args = append(args, excludeID)
	}
	query += ` ORDER BY id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	return collect(rows, scanDirector)
}

// RemoveMovie drops movieID from every reference set containing it and
// returns the number of directors updated.
func (r *DirectorsRepository) RemoveMovie(ctx context.Context, movieID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE directors
        SET movie_ids = array_remove(movie_ids, $1::uuid),
            updated_at = now()
        WHERE $1::uuid = ANY(movie_ids)
    `, movieID)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

func scanDirector(row pgx.Row) (domain.Director, error) {
	var director domain.Director
	err := row.Scan(
		&director.ID,
		&director.Surnames,
		&director.Name,
		&director.Photo,
		&director.MovieIDs,
		&director.CreatedAt,
		&director.UpdatedAt,
	)
	if err != nil {
		return domain.Director{}, err
	}
	if director.MovieIDs == nil {
		director.MovieIDs = []string{}
	}
	return director, nil
}
