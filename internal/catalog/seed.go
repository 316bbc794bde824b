package catalog

import (
	"context"
	"fmt"

	"github.com/Clark-Hu/videostore/internal/repository"
)

// ResetCatalog removes every director and movie and empties all borrow sets
// in one transaction, then discards the images the removed records used.
func (s *Service) ResetCatalog(ctx context.Context) error {
	images := make([]string, 0)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		directors, err := tx.Directors.List(ctx, repository.DirectorListFilters{})
		if err != nil {
			return err
		}
		movies, err := tx.Movies.List(ctx, repository.MovieListFilters{})
		if err != nil {
			return err
		}
		for _, d := range directors {
			images = append(images, deref(d.Photo))
		}
		for _, m := range movies {
			images = append(images, deref(m.Poster))
		}

		if err := tx.Users.ClearBorrows(ctx); err != nil {
			return err
		}
		if err := tx.Directors.DeleteAll(ctx); err != nil {
			return err
		}
		return tx.Movies.DeleteAll(ctx)
	})
	if err != nil {
		return withContext(fmt.Sprintf(`Se ha producido un error al eliminar los datos antiguos en las colecciones "%s" y "%s"`, MovieCollection, DirectorCollection), storeError(err))
	}
	for _, url := range images {
		s.discard(url, "regeneración de los datos de películas y directores")
	}
	s.logger.Printf("catalog: reset %d catalog images", len(images))
	return nil
}

// ProductImages returns the image URLs of every stored product.
func (s *Service) ProductImages(ctx context.Context) ([]string, error) {
	products, err := s.repo.Products.List(ctx, repository.ProductListFilters{})
	if err != nil {
		return nil, storeError(err)
	}
	out := make([]string, 0, len(products))
	for _, p := range products {
		if url := deref(p.Img); url != "" {
			out = append(out, url)
		}
	}
	return out, nil
}
