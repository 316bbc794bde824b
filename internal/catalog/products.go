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

// ProductInput carries the fields of a product write. Nil fields are left
// untouched on update.
type ProductInput struct {
	Name   *string
	Img    *string
	Price  *domain.Price
	Seller *string
	Rating *float64
}

func (in ProductInput) empty() bool {
	return in.Name == nil && in.Img == nil && in.Price == nil && in.Seller == nil && in.Rating == nil
}

// ProductQuery selects products. All set criteria must match.
type ProductQuery struct {
	Name      string
	Seller    string
	MaxPrice  *domain.Price
	MinRating *float64
}

type productFields struct {
	Name   string        `json:"name" validate:"required"`
	Img    string        `json:"img" conform:"trim"`
	Price  *domain.Price `json:"price" validate:"required"`
	Seller string        `json:"seller" validate:"required"`
	Rating *float64      `json:"rating" validate:"omitempty,min=0,max=5"`
}

func productNotFoundMsg(id string) string {
	return fmt.Sprintf(`No se ha encontrado ningún producto en la colección "%s" con el identificador "%s"`, ProductCollection, id)
}

func (s *Service) validProduct(f productFields) (domain.Product, error) {
	f.Name = textnorm.String(f.Name)
	f.Seller = textnorm.String(f.Seller)
	if err := s.validateStruct(&f); err != nil {
		return domain.Product{}, err
	}
	if *f.Price < 0 {
		return domain.Product{}, InvalidValue(map[string]string{"price": InvalidNumberMsg})
	}
	return domain.Product{
		Name:   f.Name,
		Img:    optional(&f.Img),
		Price:  *f.Price,
		Seller: f.Seller,
		Rating: f.Rating,
	}, nil
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al consultar en la colección "%s" el producto con el identificador "%s"`, ProductCollection, id)
	if err := checkID(id); err != nil {
		return domain.Product{}, withContext(prefix, err)
	}
	product, err := s.repo.Products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Product{}, newError(KindNotFound, "%s", productNotFoundMsg(id))
	}
	if err != nil {
		return domain.Product{}, withContext(prefix, storeError(err))
	}
	return product, nil
}

// ListProducts returns the products matching q sorted by name.
func (s *Service) ListProducts(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al consultar los productos en la colección "%s"`, ProductCollection)
	filters := repository.ProductListFilters{MaxPrice: q.MaxPrice, MinRating: q.MinRating}
	criteria := make([]string, 0, 4)
	if n := textnorm.String(q.Name); n != "" {
		filters.Name = &n
		criteria = append(criteria, fmt.Sprintf("cuyo nombre contenga %q", n))
	}
	if sl := textnorm.String(q.Seller); sl != "" {
		filters.Seller = &sl
		criteria = append(criteria, fmt.Sprintf("cuyo vendedor contenga %q", sl))
	}
	if q.MaxPrice != nil {
		criteria = append(criteria, fmt.Sprintf("con un precio máximo de %s", q.MaxPrice))
	}
	if q.MinRating != nil {
		criteria = append(criteria, fmt.Sprintf("con una valoración mínima de %g", *q.MinRating))
	}

	products, err := s.repo.Products.List(ctx, filters)
	if err != nil {
		return nil, withContext(prefix, storeError(err))
	}
	if len(products) == 0 {
		return nil, newError(KindNotFound, "%s", notFoundListMsg("productos", ProductCollection, strings.Join(criteria, " y ")))
	}
	sortStrings(products, func(p domain.Product) string { return p.Name })
	return products, nil
}

// CreateProduct stores a new product; an uploaded image is discarded again
// when the create fails.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput, img *Upload) (domain.Product, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al crear el producto en la colección "%s"`, ProductCollection)

	uploaded, err := s.upload(ctx, blob.FolderProducts, "img", img)
	if err != nil {
		return domain.Product{}, withContext(prefix, err)
	}

	f := productFields{Name: deref(in.Name), Img: deref(in.Img), Price: in.Price, Seller: deref(in.Seller), Rating: in.Rating}
	if uploaded != "" {
		f.Img = uploaded
	}
	product, err := s.validProduct(f)
	if err == nil {
		product, err = s.repo.Products.Create(ctx, repository.ProductCreateParams{
			Name:   product.Name,
			Img:    product.Img,
			Price:  product.Price,
			Seller: product.Seller,
			Rating: product.Rating,
		})
		err = storeError(err)
	}
	if err != nil {
		s.discard(uploaded, prefix)
		return domain.Product{}, withContext(prefix, err)
	}
	return product, nil
}

// UpdateProduct patches a product. Supplying a new image discards the
// previous one before the save.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput, img *Upload) (domain.Product, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al actualizar en la colección "%s" el producto con el identificador "%s"`, ProductCollection, id)

	if err := checkID(id); err != nil {
		return domain.Product{}, withContext(prefix, err)
	}
	current, err := s.repo.Products.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.Product{}, withContext(prefix, newError(KindNotFound, "%s", productNotFoundMsg(id)))
	}
	if err != nil {
		return domain.Product{}, withContext(prefix, storeError(err))
	}
	if in.empty() && img == nil {
		return domain.Product{}, withContext(prefix, newError(KindInvalidValue,
			`No se ha introducido ningún dato para actualizar el producto con el identificador "%s"`, id))
	}

	uploaded, err := s.upload(ctx, blob.FolderProducts, "img", img)
	if err != nil {
		return domain.Product{}, withContext(prefix, err)
	}

	price := current.Price
	f := productFields{Name: current.Name, Img: deref(current.Img), Price: &price, Seller: current.Seller, Rating: current.Rating}
	if in.Name != nil {
		f.Name = *in.Name
	}
	if in.Img != nil {
		f.Img = *in.Img
	}
	if uploaded != "" {
		f.Img = uploaded
	}
	if in.Price != nil {
		f.Price = in.Price
	}
	if in.Seller != nil {
		f.Seller = *in.Seller
	}
	if in.Rating != nil {
		f.Rating = in.Rating
	}

	if old := deref(current.Img); old != "" && (uploaded != "" || in.Img != nil) && old != f.Img {
		s.discard(old, fmt.Sprintf(`Actualización en la colección "%s" de la imagen "%s" del producto con el identificador "%s"`,
			ProductCollection, blob.PublicID(f.Img), id))
	}

	product, err := s.validProduct(f)
	if err == nil {
		product.ID = id
		product, err = s.repo.Products.Update(ctx, product)
		if errors.Is(err, repository.ErrNotFound) {
			err = newError(KindNotFound, "%s", productNotFoundMsg(id))
		}
		err = storeError(err)
	}
	if err != nil {
		s.discard(uploaded, prefix)
		return domain.Product{}, withContext(prefix, err)
	}
	return product, nil
}

// DeleteProduct removes a product inside a transaction and discards its image
// after the commit.
func (s *Service) DeleteProduct(ctx context.Context, id string) (string, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al eliminar en la colección "%s" el producto con el identificador "%s"`, ProductCollection, id)
	if err := checkID(id); err != nil {
		return "", withContext(prefix, err)
	}

	var deleted domain.Product
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		deleted, err = tx.Products.Delete(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, "%s", productNotFoundMsg(id))
		}
		return storeError(err)
	})
	if err != nil {
		return "", withContext(prefix, err)
	}

	msg := fmt.Sprintf(`Se ha eliminado en la colección "%s" el producto con el identificador "%s"`, ProductCollection, id)
	s.discard(deref(deleted.Img), msg)
	return msg, nil
}

// ReplaceProducts empties the product collection and loads batch in one
// transaction. Used by the seeder.
func (s *Service) ReplaceProducts(ctx context.Context, batch []ProductInput) ([]domain.Product, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al cargar los productos en la colección "%s"`, ProductCollection)
	params := make([]repository.ProductCreateParams, 0, len(batch))
	for i, in := range batch {
		p, err := s.validProduct(productFields{Name: deref(in.Name), Img: deref(in.Img), Price: in.Price, Seller: deref(in.Seller), Rating: in.Rating})
		if err != nil {
			return nil, withContext(prefix, withContext(fmt.Sprintf("producto %d", i+1), err))
		}
		params = append(params, repository.ProductCreateParams{Name: p.Name, Img: p.Img, Price: p.Price, Seller: p.Seller, Rating: p.Rating})
	}

	var created []domain.Product
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		if err := tx.Products.DeleteAll(ctx); err != nil {
			return storeError(err)
		}
		var err error
		created, err = tx.Products.CreateMany(ctx, params)
		return storeError(err)
	})
	if err != nil {
		return nil, withContext(prefix, err)
	}
	return created, nil
}
