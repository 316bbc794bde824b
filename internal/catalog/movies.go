package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Clark-Hu/videostore/internal/blob"
	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/repository"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

// MovieInput carries the fields of a movie write. Nil fields are left
// untouched on update.
type MovieInput struct {
	Title       *string
	Poster      *string
	Genre       *string
	AgeRating   *int
	ReleaseYear *string
	MinDuration *string
	NumCopies   *int
	Synopsis    *string
}

func (in MovieInput) empty() bool {
	return in.Title == nil && in.Poster == nil && in.Genre == nil && in.AgeRating == nil &&
		in.ReleaseYear == nil && in.MinDuration == nil && in.NumCopies == nil && in.Synopsis == nil
}

// MovieView is a movie together with the name of the director owning it, or
// "" when no director references it.
type MovieView struct {
	domain.Movie
	Director string
}

// MovieQuery selects movies. All set criteria must match.
type MovieQuery struct {
	Title        string
	Genre        string
	MinAgeRating *int
	Director     string
}

// DeleteResult reports a completed movie deletion.
type DeleteResult struct {
	Movie           domain.Movie
	DirectorUpdated bool
	Message         string
}

type movieFields struct {
	Title       string `json:"title" validate:"required"`
	Poster      string `json:"poster" conform:"trim"`
	Genre       string `json:"genre" validate:"required,genre"`
	AgeRating   *int   `json:"ageRating" validate:"required,oneof=0 7 12 16 18"`
	ReleaseYear string `json:"releaseYear" conform:"trim" validate:"required,year,minyear"`
	MinDuration string `json:"minDuration" conform:"trim" validate:"omitempty,digits"`
	NumCopies   *int   `json:"numCopies" validate:"required,min=0,max=5"`
	Synopsis    string `json:"synopsis" conform:"trim"`
}

func movieNotFoundMsg(id string) string {
	return fmt.Sprintf(`No se ha encontrado ningún película en la colección "%s" con el identificador "%s"`, MovieCollection, id)
}

// validMovie normalizes and validates f and returns the movie it describes.
func (s *Service) validMovie(f movieFields) (domain.Movie, error) {
	f.Title = textnorm.String(f.Title)
	f.Genre = textnorm.String(f.Genre)
	if err := s.validateStruct(&f); err != nil {
		return domain.Movie{}, err
	}
	genre, _ := CanonicalGenre(f.Genre)
	return domain.Movie{
		Title:       f.Title,
		Poster:      optional(&f.Poster),
		Genre:       genre,
		AgeRating:   *f.AgeRating,
		ReleaseYear: f.ReleaseYear,
		MinDuration: optional(&f.MinDuration),
		NumCopies:   *f.NumCopies,
		Synopsis:    optional(&f.Synopsis),
	}, nil
}

// GetMovie returns one movie with its director.
func (s *Service) GetMovie(ctx context.Context, id string) (MovieView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al consultar en la colección "%s" la película con el identificador "%s"`, MovieCollection, id)
	if err := checkID(id); err != nil {
		return MovieView{}, withContext(prefix, err)
	}
	movie, err := s.repo.Movies.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return MovieView{}, newError(KindNotFound, "%s", movieNotFoundMsg(id))
	}
	if err != nil {
		return MovieView{}, withContext(prefix, storeError(err))
	}
	views, err := s.withDirectors(ctx, []domain.Movie{movie})
	if err != nil {
		return MovieView{}, withContext(prefix, err)
	}
	return views[0], nil
}

// ListMovies returns the movies matching q sorted by title. An empty result
// is NotFound.
func (s *Service) ListMovies(ctx context.Context, q MovieQuery) ([]MovieView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al consultar las películas en la colección "%s"`, MovieCollection)
	filters := repository.MovieListFilters{MinAgeRating: q.MinAgeRating}
	if t := textnorm.String(q.Title); t != "" {
		filters.Title = &t
	}
	if g := textnorm.String(q.Genre); g != "" {
		filters.Genre = &g
	}
	if name := textnorm.String(q.Director); name != "" {
		directors, err := s.repo.Directors.List(ctx, repository.DirectorListFilters{Name: &name})
		if err != nil {
			return nil, withContext(prefix, storeError(err))
		}
		filters.IDs = make([]string, 0)
		for _, d := range directors {
			filters.IDs = append(filters.IDs, d.MovieIDs...)
		}
	}

	movies, err := s.repo.Movies.List(ctx, filters)
	if err != nil {
		return nil, withContext(prefix, storeError(err))
	}
	if len(movies) == 0 {
		return nil, newError(KindNotFound, "%s", notFoundListMsg("películas", MovieCollection, q.describe()))
	}
	sortMovies(movies)
	views, err := s.withDirectors(ctx, movies)
	if err != nil {
		return nil, withContext(prefix, err)
	}
	return views, nil
}

func (q MovieQuery) describe() string {
	parts := make([]string, 0, 4)
	if q.Title != "" {
		parts = append(parts, fmt.Sprintf("cuyo título contenga %q", q.Title))
	}
	if q.Genre != "" {
		parts = append(parts, fmt.Sprintf("cuyo género contenga %q", q.Genre))
	}
	if q.MinAgeRating != nil {
		parts = append(parts, fmt.Sprintf(`que cumplan con la clasificación por edad "%d"`, *q.MinAgeRating))
	}
	if q.Director != "" {
		parts = append(parts, fmt.Sprintf("cuyo director contenga en los apellidos o en el nombre %q", q.Director))
	}
	return strings.Join(parts, " y ")
}

func notFoundListMsg(what, collection, criteria string) string {
	msg := fmt.Sprintf(`No se han encontrado %s en la colección "%s"`, what, collection)
	if criteria != "" {
		msg += " " + criteria
	}
	return msg
}

// withDirectors attaches the owning director name to every movie.
func (s *Service) withDirectors(ctx context.Context, movies []domain.Movie) ([]MovieView, error) {
	ids := make([]string, 0, len(movies))
	for _, m := range movies {
		ids = append(ids, m.ID)
	}
	owners, err := s.repo.Directors.FindByMovies(ctx, ids, "")
	if err != nil {
		return nil, storeError(err)
	}
	names := make(map[string]string, len(ids))
	for _, d := range owners {
		for _, id := range d.MovieIDs {
			if _, taken := names[id]; !taken {
				names[id] = d.FullName()
			}
		}
	}
	views := make([]MovieView, 0, len(movies))
	for _, m := range movies {
		views = append(views, MovieView{Movie: m, Director: names[m.ID]})
	}
	return views, nil
}

// CreateMovie validates in and stores a new movie. A poster file takes
// precedence over in.Poster; it is discarded again when the create fails.
func (s *Service) CreateMovie(ctx context.Context, in MovieInput, poster *Upload) (MovieView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al crear la película en la colección "%s"`, MovieCollection)

	uploaded, err := s.upload(ctx, blob.FolderMovies, "poster", poster)
	if err != nil {
		return MovieView{}, withContext(prefix, err)
	}

	view, err := s.createMovie(ctx, in, uploaded)
	if err != nil {
		s.discard(uploaded, prefix)
		return MovieView{}, withContext(prefix, err)
	}
	return view, nil
}

func (s *Service) createMovie(ctx context.Context, in MovieInput, uploaded string) (MovieView, error) {
	f := movieFields{
		Title:       deref(in.Title),
		Poster:      deref(in.Poster),
		Genre:       deref(in.Genre),
		AgeRating:   in.AgeRating,
		ReleaseYear: deref(in.ReleaseYear),
		MinDuration: deref(in.MinDuration),
		NumCopies:   in.NumCopies,
		Synopsis:    deref(in.Synopsis),
	}
	if uploaded != "" {
		f.Poster = uploaded
	}
	movie, err := s.validMovie(f)
	if err != nil {
		return MovieView{}, err
	}

	created, err := s.repo.Movies.Create(ctx, repository.MovieCreateParams{
		Title:       movie.Title,
		Poster:      movie.Poster,
		Genre:       movie.Genre,
		AgeRating:   movie.AgeRating,
		ReleaseYear: movie.ReleaseYear,
		MinDuration: movie.MinDuration,
		NumCopies:   movie.NumCopies,
		Synopsis:    movie.Synopsis,
	})
	if err != nil {
		return MovieView{}, storeError(err)
	}
	// a new movie has no director yet
	return MovieView{Movie: created}, nil
}

// UpdateMovie patches the movie identified by id. numCopies may not drop
// below the number of users currently borrowing the movie. Supplying a new
// poster discards the previous one before the save.
func (s *Service) UpdateMovie(ctx context.Context, id string, in MovieInput, poster *Upload) (MovieView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al actualizar en la colección "%s" la película con el identificador "%s"`, MovieCollection, id)

	if err := checkID(id); err != nil {
		return MovieView{}, withContext(prefix, err)
	}
	current, err := s.repo.Movies.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return MovieView{}, withContext(prefix, newError(KindNotFound, "%s", movieNotFoundMsg(id)))
	}
	if err != nil {
		return MovieView{}, withContext(prefix, storeError(err))
	}
	if in.empty() && poster == nil {
		return MovieView{}, withContext(prefix, newError(KindInvalidValue,
			`No se ha introducido ningún dato para actualizar la película con el identificador "%s"`, id))
	}

	uploaded, err := s.upload(ctx, blob.FolderMovies, "poster", poster)
	if err != nil {
		return MovieView{}, withContext(prefix, err)
	}

	view, err := s.updateMovie(ctx, current, in, uploaded)
	if err != nil {
		s.discard(uploaded, prefix)
		return MovieView{}, withContext(prefix, err)
	}
	return view, nil
}

func (s *Service) updateMovie(ctx context.Context, current domain.Movie, in MovieInput, uploaded string) (MovieView, error) {
	f := movieFields{
		Title:       current.Title,
		Poster:      deref(current.Poster),
		Genre:       current.Genre,
		AgeRating:   &current.AgeRating,
		ReleaseYear: current.ReleaseYear,
		MinDuration: deref(current.MinDuration),
		NumCopies:   &current.NumCopies,
		Synopsis:    deref(current.Synopsis),
	}
	if in.Title != nil {
		f.Title = *in.Title
	}
	if in.Poster != nil {
		f.Poster = *in.Poster
	}
	if uploaded != "" {
		f.Poster = uploaded
	}
	if in.Genre != nil {
		f.Genre = *in.Genre
	}
	if in.AgeRating != nil {
		f.AgeRating = in.AgeRating
	}
	if in.ReleaseYear != nil {
		f.ReleaseYear = *in.ReleaseYear
	}
	if in.MinDuration != nil {
		f.MinDuration = *in.MinDuration
	}
	if in.NumCopies != nil {
		f.NumCopies = in.NumCopies
	}
	if in.Synopsis != nil {
		f.Synopsis = *in.Synopsis
	}

	if old := deref(current.Poster); old != "" && (uploaded != "" || in.Poster != nil) && old != f.Poster {
		s.discard(old, fmt.Sprintf(`Actualización en la colección "%s" del cartel "%s" de la película con el identificador "%s"`,
			MovieCollection, blob.PublicID(f.Poster), current.ID))
	}

	movie, err := s.validMovie(f)
	if err != nil {
		return MovieView{}, err
	}
	movie.ID = current.ID

	var updated domain.Movie
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		// point-in-time count; a borrow committed after this read is not seen
		borrowers, err := tx.Users.CountBorrowers(ctx, movie.ID, "")
		if err != nil {
			return storeError(err)
		}
		if movie.NumCopies < borrowers {
			return InvalidValue(map[string]string{"numCopies": copiesBelowBorrowsMsg()})
		}
		updated, err = tx.Movies.Update(ctx, movie)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, "%s", movieNotFoundMsg(movie.ID))
		}
		return storeError(err)
	})
	if err != nil {
		return MovieView{}, err
	}

	views, err := s.withDirectors(ctx, []domain.Movie{updated})
	if err != nil {
		return MovieView{}, err
	}
	return views[0], nil
}

// DeleteMovie removes a movie that nobody is borrowing and drops it from its
// director's reference set, both in one transaction. The poster is discarded
// after the commit.
func (s *Service) DeleteMovie(ctx context.Context, id string) (DeleteResult, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al eliminar en la colección "%s" la película con el identificador "%s"`, MovieCollection, id)

	if err := checkID(id); err != nil {
		return DeleteResult{}, withContext(prefix, err)
	}

	var result DeleteResult
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		locked, err := tx.Movies.LockByIDs(ctx, []string{id})
		if err != nil {
			return storeError(err)
		}
		if len(locked) == 0 {
			return newError(KindNotFound, "%s", movieNotFoundMsg(id))
		}

		borrowers, err := tx.Users.CountBorrowers(ctx, id, "")
		if err != nil {
			return storeError(err)
		}
		if borrowers > 0 {
			return newError(KindReferentialConflict,
				`La película no se puede eliminar porque está siendo actualmente prestada a los usuarios en la colección "%s"`, UserCollection)
		}

		deleted, err := tx.Movies.Delete(ctx, id)
		if err != nil {
			return storeError(err)
		}
		updated, err := tx.Directors.RemoveMovie(ctx, id)
		if err != nil {
			return newError(KindUpstreamFailure,
				`Se ha producido un error al eliminar la película con el identificador "%s" de la lista de películas de su director: %v`, id, err)
		}
		result.Movie = deleted
		result.DirectorUpdated = updated > 0
		return nil
	})
	if err != nil {
		return DeleteResult{}, withContext(prefix, err)
	}

	msg := fmt.Sprintf(`Se ha eliminado en la colección "%s" la película con el identificador "%s"`, MovieCollection, id)
	s.discard(deref(result.Movie.Poster), msg)
	if result.DirectorUpdated {
		msg += fmt.Sprintf("\nSe ha eliminado la película con el identificador \"%s\" de la lista de películas de su director", id)
	}
	result.Message = msg
	return result, nil
}
