package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/Clark-Hu/videostore/internal/blob"
	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/repository"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

// DirectorInput carries the fields of a director write. Movies holds movie
// identifiers; entries may be comma separated. Nil fields are left untouched
// on update.
type DirectorInput struct {
	Surnames *string
	Name     *string
	Photo    *string
	Movies   *[]string
}

func (in DirectorInput) empty() bool {
	return in.Surnames == nil && in.Name == nil && in.Photo == nil && in.Movies == nil
}

// DirectorImport is one director of a bulk load. Movies are referenced by
// title and resolved against the stored movies.
type DirectorImport struct {
	Surnames string   `json:"surnames"`
	Name     string   `json:"name"`
	Photo    *string  `json:"photo,omitempty"`
	Movies   []string `json:"movies"`
}

// DirectorView is a director with its movies sorted by title.
type DirectorView struct {
	domain.Director
	Movies []domain.Movie
}

type directorFields struct {
	Surnames string `json:"surnames" validate:"required"`
	Name     string `json:"name" validate:"required"`
	Photo    string `json:"photo" conform:"trim"`
}

func directorNotFoundMsg(id string) string {
	return fmt.Sprintf(`No se ha encontrado ningún director en la colección "%s" con el identificador "%s"`, DirectorCollection, id)
}

func (s *Service) validDirector(f directorFields) (directorFields, error) {
	f.Surnames = textnorm.String(f.Surnames)
	f.Name = textnorm.String(f.Name)
	if err := s.validateStruct(&f); err != nil {
		return directorFields{}, err
	}
	return f, nil
}

// GetDirector returns one director with its movies.
func (s *Service) GetDirector(ctx context.Context, id string) (DirectorView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al consultar en la colección "%s" el director con el identificador "%s"`, DirectorCollection, id)
	if err := checkID(id); err != nil {
		return DirectorView{}, withContext(prefix, err)
	}
	director, err := s.repo.Directors.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return DirectorView{}, newError(KindNotFound, "%s", directorNotFoundMsg(id))
	}
	if err != nil {
		return DirectorView{}, withContext(prefix, storeError(err))
	}
	views, err := s.withMovies(ctx, []domain.Director{director})
	if err != nil {
		return DirectorView{}, withContext(prefix, err)
	}
	return views[0], nil
}

// ListDirectors returns directors whose surnames or name contain name (all
// when empty), sorted by "surnames, name".
func (s *Service) ListDirectors(ctx context.Context, name string) ([]DirectorView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al consultar los directores en la colección "%s"`, DirectorCollection)
	filters := repository.DirectorListFilters{}
	criteria := ""
	if n := textnorm.String(name); n != "" {
		filters.Name = &n
		criteria = fmt.Sprintf("cuyos apellidos o nombre contengan %q", n)
	}
	directors, err := s.repo.Directors.List(ctx, filters)
	if err != nil {
		return nil, withContext(prefix, storeError(err))
	}
	if len(directors) == 0 {
		return nil, newError(KindNotFound, "%s", notFoundListMsg("directores", DirectorCollection, criteria))
	}
	sortStrings(directors, domain.Director.FullName)
	views, err := s.withMovies(ctx, directors)
	if err != nil {
		return nil, withContext(prefix, err)
	}
	return views, nil
}

func (s *Service) withMovies(ctx context.Context, directors []domain.Director) ([]DirectorView, error) {
	ids := make([]string, 0)
	for _, d := range directors {
		ids = append(ids, d.MovieIDs...)
	}
	movies, err := s.repo.Movies.List(ctx, repository.MovieListFilters{IDs: ids})
	if err != nil {
		return nil, storeError(err)
	}
	byID := make(map[string]domain.Movie, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
	}
	views := make([]DirectorView, 0, len(directors))
	for _, d := range directors {
		owned := make([]domain.Movie, 0, len(d.MovieIDs))
		for _, id := range d.MovieIDs {
			if m, ok := byID[id]; ok {
				owned = append(owned, m)
			}
		}
		sortMovies(owned)
		views = append(views, DirectorView{Director: d, Movies: owned})
	}
	return views, nil
}

// checkOwnership verifies, inside tx, that every id names a stored movie and
// that no director other than excludeID already references one of them. The
// movie rows stay locked until tx ends, so a concurrent delete or claim of
// the same movies waits for it.
func checkOwnership(ctx context.Context, tx *repository.Repository, ids []string, excludeID string) error {
	if len(ids) == 0 {
		return nil
	}
	locked, err := tx.Movies.LockByIDs(ctx, ids)
	if err != nil {
		return storeError(err)
	}
	if len(locked) != len(ids) {
		return newError(KindDanglingReference, "%s", movieDoesNotExistMsg())
	}
	owners, err := tx.Directors.FindByMovies(ctx, ids, excludeID)
	if err != nil {
		return storeError(err)
	}
	if len(owners) > 0 {
		return newError(KindOwnershipConflict, "%s", movieWithDirectorMsg())
	}
	return nil
}

func movieRefs(raw []string) ([]string, error) {
	ids := textnorm.Dedupe(textnorm.List(raw...))
	if err := checkIDs(ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// CreateDirector stores a new director. Referenced movies must exist and must
// not belong to another director.
func (s *Service) CreateDirector(ctx context.Context, in DirectorInput, photo *Upload) (DirectorView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al crear el director en la colección "%s"`, DirectorCollection)

	uploaded, err := s.upload(ctx, blob.FolderDirectors, "photo", photo)
	if err != nil {
		return DirectorView{}, withContext(prefix, err)
	}
	view, err := s.createDirector(ctx, in, uploaded)
	if err != nil {
		s.discard(uploaded, prefix)
		return DirectorView{}, withContext(prefix, err)
	}
	return view, nil
}

func (s *Service) createDirector(ctx context.Context, in DirectorInput, uploaded string) (DirectorView, error) {
	f := directorFields{Surnames: deref(in.Surnames), Name: deref(in.Name), Photo: deref(in.Photo)}
	if uploaded != "" {
		f.Photo = uploaded
	}
	f, err := s.validDirector(f)
	if err != nil {
		return DirectorView{}, err
	}
	var ids []string
	if in.Movies != nil {
		if ids, err = movieRefs(*in.Movies); err != nil {
			return DirectorView{}, err
		}
	}

	var created domain.Director
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := checkOwnership(ctx, tx, ids, ""); err != nil {
			return err
		}
		created, err = tx.Directors.Create(ctx, repository.DirectorCreateParams{
			Surnames: f.Surnames,
			Name:     f.Name,
			Photo:    optional(&f.Photo),
			MovieIDs: ids,
		})
		return storeError(err)
	})
	if err != nil {
		return DirectorView{}, err
	}
	views, err := s.withMovies(ctx, []domain.Director{created})
	if err != nil {
		return DirectorView{}, err
	}
	return views[0], nil
}

// UpdateDirector patches a director. A new movie list replaces the previous
// one and is checked like on create.
func (s *Service) UpdateDirector(ctx context.Context, id string, in DirectorInput, photo *Upload) (DirectorView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al actualizar en la colección "%s" el director con el identificador "%s"`, DirectorCollection, id)

	if err := checkID(id); err != nil {
		return DirectorView{}, withContext(prefix, err)
	}
	current, err := s.repo.Directors.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return DirectorView{}, withContext(prefix, newError(KindNotFound, "%s", directorNotFoundMsg(id)))
	}
	if err != nil {
		return DirectorView{}, withContext(prefix, storeError(err))
	}
	if in.empty() && photo == nil {
		return DirectorView{}, withContext(prefix, newError(KindInvalidValue,
			`No se ha introducido ningún dato para actualizar el director con el identificador "%s"`, id))
	}

	uploaded, err := s.upload(ctx, blob.FolderDirectors, "photo", photo)
	if err != nil {
		return DirectorView{}, withContext(prefix, err)
	}
	view, err := s.updateDirector(ctx, current, in, uploaded)
	if err != nil {
		s.discard(uploaded, prefix)
		return DirectorView{}, withContext(prefix, err)
	}
	return view, nil
}

func (s *Service) updateDirector(ctx context.Context, current domain.Director, in DirectorInput, uploaded string) (DirectorView, error) {
	f := directorFields{Surnames: current.Surnames, Name: current.Name, Photo: deref(current.Photo)}
	if in.Surnames != nil {
		f.Surnames = *in.Surnames
	}
	if in.Name != nil {
		f.Name = *in.Name
	}
	if in.Photo != nil {
		f.Photo = *in.Photo
	}
	if uploaded != "" {
		f.Photo = uploaded
	}

	if old := deref(current.Photo); old != "" && (uploaded != "" || in.Photo != nil) && old != f.Photo {
		s.discard(old, fmt.Sprintf(`Actualización en la colección "%s" de la foto "%s" del director con el identificador "%s"`,
			DirectorCollection, blob.PublicID(f.Photo), current.ID))
	}

	f, err := s.validDirector(f)
	if err != nil {
		return DirectorView{}, err
	}
	ids := current.MovieIDs
	if in.Movies != nil {
		if ids, err = movieRefs(*in.Movies); err != nil {
			return DirectorView{}, err
		}
	}

	var updated domain.Director
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if in.Movies != nil {
			if err := checkOwnership(ctx, tx, ids, current.ID); err != nil {
				return err
			}
		}
		next := current
		next.Surnames, next.Name, next.Photo, next.MovieIDs = f.Surnames, f.Name, optional(&f.Photo), ids
		updated, err = tx.Directors.Update(ctx, next)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, "%s", directorNotFoundMsg(current.ID))
		}
		return storeError(err)
	})
	if err != nil {
		return DirectorView{}, err
	}
	views, err := s.withMovies(ctx, []domain.Director{updated})
	if err != nil {
		return DirectorView{}, err
	}
	return views[0], nil
}

// DeleteDirector removes a director. Its movies stay in the catalog without a
// director; the photo is discarded after the delete.
func (s *Service) DeleteDirector(ctx context.Context, id string) (string, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al eliminar en la colección "%s" el director con el identificador "%s"`, DirectorCollection, id)
	if err := checkID(id); err != nil {
		return "", withContext(prefix, err)
	}
	deleted, err := s.repo.Directors.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return "", withContext(prefix, newError(KindNotFound, "%s", directorNotFoundMsg(id)))
	}
	if err != nil {
		return "", withContext(prefix, storeError(err))
	}
	msg := fmt.Sprintf(`Se ha eliminado en la colección "%s" el director con el identificador "%s"`, DirectorCollection, id)
	s.discard(deref(deleted.Photo), msg)
	return msg, nil
}

// ImportDirectors bulk loads directors whose movies are given by title. Every
// title must match a stored movie exactly (DanglingReference otherwise), and
// no movie may be claimed twice, either within the batch or by a stored
// director (OwnershipConflict). The batch is inserted in one transaction, so
// on any failure nothing is written.
func (s *Service) ImportDirectors(ctx context.Context, batch []DirectorImport) ([]domain.Director, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al cargar los directores en la colección "%s"`, DirectorCollection)

	params := make([]repository.DirectorCreateParams, 0, len(batch))
	var created []domain.Director
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		titles := make([]string, 0)
		for _, d := range batch {
			for _, t := range textnorm.List(d.Movies...) {
				titles = append(titles, textnorm.String(t))
			}
		}
		titles = textnorm.Dedupe(titles)

		found, err := tx.Movies.FindByTitles(ctx, titles)
		if err != nil {
			return storeError(err)
		}
		idByTitle := make(map[string]string, len(found))
		for _, m := range found {
			idByTitle[m.Title] = m.ID
		}
		missing := make([]string, 0)
		for _, t := range titles {
			if _, ok := idByTitle[t]; !ok {
				missing = append(missing, t)
			}
		}
		if len(missing) > 0 {
			e := newError(KindDanglingReference, "%s", movieDoesNotExistMsg())
			e.Details = map[string]string{"movies": fmt.Sprintf("%q", missing)}
			return e
		}

		union := make([]string, 0)
		for i, d := range batch {
			f, err := s.validDirector(directorFields{Surnames: d.Surnames, Name: d.Name, Photo: deref(d.Photo)})
			if err != nil {
				return withContext(fmt.Sprintf("director %d", i+1), err)
			}
			ids := make([]string, 0, len(d.Movies))
			for _, t := range textnorm.List(d.Movies...) {
				ids = append(ids, idByTitle[textnorm.String(t)])
			}
			ids = textnorm.Dedupe(ids)
			union = append(union, ids...)
			params = append(params, repository.DirectorCreateParams{
				Surnames: f.Surnames,
				Name:     f.Name,
				Photo:    optional(&f.Photo),
				MovieIDs: ids,
			})
		}
		if len(textnorm.Dedupe(union)) != len(union) {
			return newError(KindOwnershipConflict, "%s", movieWithDirectorMsg())
		}
		if err := checkOwnership(ctx, tx, union, ""); err != nil {
			return err
		}

		created, err = tx.Directors.CreateMany(ctx, params)
		return storeError(err)
	})
	if err != nil {
		return nil, withContext(prefix, err)
	}
	s.logger.Printf("catalog: imported %d directors", len(created))
	return created, nil
}
