package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

// MoviesRepository provides persistence helpers for movie entities.
type MoviesRepository struct {
	db DBTX
}

const movieColumns = `
    id,
    title,
    poster,
    genre,
    age_rating,
    release_year,
    min_duration,
    num_copies,
    synopsis,
    created_at,
    updated_at
`

// MovieCreateParams bundles the fields required to create a movie. Values are
// stored as given; callers normalize them first.
type MovieCreateParams struct {
	Title       string
	Poster      *string
	Genre       string
	AgeRating   int
	ReleaseYear string
	MinDuration *string
	NumCopies   int
	Synopsis    *string
}

// MovieListFilters narrows a listing. Title and Genre match folded substrings,
// MinAgeRating keeps movies rated at or above it, and a non-nil IDs restricts
// the result to those identifiers (an empty slice matches nothing).
type MovieListFilters struct {
	Title        *string
	Genre        *string
	MinAgeRating *int
	IDs          []string
}

// Create inserts a new movie row and returns the stored entity.
func (r *MoviesRepository) Create(ctx context.Context, params MovieCreateParams) (domain.Movie, error) {
	query := fmt.Sprintf(`
        INSERT INTO movies (title, title_key, poster, genre, genre_key, age_rating, release_year, min_duration, num_copies, synopsis)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING %s
    `, movieColumns)

	row := r.db.QueryRow(ctx, query,
		params.Title, textnorm.Fold(params.Title), params.Poster,
		params.Genre, textnorm.Fold(params.Genre), params.AgeRating,
		params.ReleaseYear, params.MinDuration, params.NumCopies, params.Synopsis)
	movie, err := scanMovie(row)
	return movie, translate(err)
}

// GetByID fetches a movie by its identifier.
func (r *MoviesRepository) GetByID(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = $1`, movieColumns)
	movie, err := scanMovie(r.db.QueryRow(ctx, query, id))
	return movie, translate(err)
}

// LockByIDs loads the given movies and holds row locks on them until the
// surrounding transaction ends. Rows are locked in id order so concurrent
// callers cannot deadlock. Missing ids are simply absent from the result.
func (r *MoviesRepository) LockByIDs(ctx context.Context, ids []string) ([]domain.Movie, error) {
	arr, err := uuidArray(ids)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE id = ANY($1) ORDER BY id FOR UPDATE`, movieColumns)
	rows, err := r.db.Query(ctx, query, arr)
	if err != nil {
		return nil, translate(err)
	}
	return collect(rows, scanMovie)
}

// FindByTitles returns the movies whose stored title equals one of titles.
func (r *MoviesRepository) FindByTitles(ctx context.Context, titles []string) ([]domain.Movie, error) {
	query := fmt.Sprintf(`SELECT %s FROM movies WHERE title = ANY($1)`, movieColumns)
	rows, err := r.db.Query(ctx, query, titles)
	if err != nil {
		return nil, translate(err)
	}
	return collect(rows, scanMovie)
}

// Update overwrites every mutable column of the stored movie.
func (r *MoviesRepository) Update(ctx context.Context, movie domain.Movie) (domain.Movie, error) {
	query := fmt.Sprintf(`
        UPDATE movies
        SET title = $2,
            title_key = $3,
            poster = $4,
            genre = $5,
            genre_key = $6,
            age_rating = $7,
            release_year = $8,
            min_duration = $9,
            num_copies = $10,
            synopsis = $11,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, movieColumns)

	row := r.db.QueryRow(ctx, query, movie.ID,
		movie.Title, textnorm.Fold(movie.Title), movie.Poster,
		movie.Genre, textnorm.Fold(movie.Genre), movie.AgeRating,
		movie.ReleaseYear, movie.MinDuration, movie.NumCopies, movie.Synopsis)
	updated, err := scanMovie(row)
	return updated, translate(err)
}

// Delete removes a movie and returns the deleted row.
func (r *MoviesRepository) Delete(ctx context.Context, id string) (domain.Movie, error) {
	query := fmt.Sprintf(`DELETE FROM movies WHERE id = $1 RETURNING %s`, movieColumns)
	movie, err := scanMovie(r.db.QueryRow(ctx, query, id))
	return movie, translate(err)
}

// DeleteAll empties the collection.
func (r *MoviesRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM movies`)
	return translate(err)
}

// List returns movies that match the provided filters ordered by title key.
func (r *MoviesRepository) List(ctx context.Context, filters MovieListFilters) ([]domain.Movie, error) {
	where := make([]string, 0)
	args := make([]any, 0)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Title != nil && strings.TrimSpace(*filters.Title) != "" {
		where = append(where, fmt.Sprintf("title_key LIKE %s", arg(likePattern(textnorm.EscapeLike(textnorm.Fold(*filters.Title))))))
	}
	if filters.Genre != nil && strings.TrimSpace(*filters.Genre) != "" {
		where = append(where, fmt.Sprintf("genre_key LIKE %s", arg(likePattern(textnorm.EscapeLike(textnorm.Fold(*filters.Genre))))))
	}
	if filters.MinAgeRating != nil {
		where = append(where, fmt.Sprintf("age_rating >= %s", arg(*filters.MinAgeRating)))
	}
	if filters.IDs != nil {
		arr, err := uuidArray(filters.IDs)
		if err != nil {
			return nil, err
		}
		where = append(where, fmt.Sprintf("id = ANY(%s)", arg(arr)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(movieColumns)
	sb.WriteString(" FROM movies")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY title_key, id")

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, translate(err)
	}
	return collect(rows, scanMovie)
}

func scanMovie(row pgx.Row) (domain.Movie, error) {
	var movie domain.Movie
	err := row.Scan(
		&movie.ID,
		&movie.Title,
		&movie.Poster,
		&movie.Genre,
		&movie.AgeRating,
		&movie.ReleaseYear,
		&movie.MinDuration,
		&movie.NumCopies,
		&movie.Synopsis,
		&movie.CreatedAt,
		&movie.UpdatedAt,
	)
	if err != nil {
		return domain.Movie{}, err
	}
	return movie, nil
}
