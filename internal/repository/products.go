package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

// ProductsRepository persists marketplace products.
type ProductsRepository struct {
	db DBTX
}

const productColumns = `
    id,
    name,
    img,
    price_cents,
    seller,
    rating,
    created_at,
    updated_at
`

// ProductCreateParams bundles the fields required to create a product.
type ProductCreateParams struct {
	Name   string
	Img    *string
	Price  domain.Price
	Seller string
	Rating *float64
}

// ProductListFilters narrows a listing. Name and Seller match folded
// substrings; MaxPrice and MinRating are inclusive bounds.
type ProductListFilters struct {
	Name      *string
	Seller    *string
	MaxPrice  *domain.Price
	MinRating *float64
}

// Create inserts a product.
func (r *ProductsRepository) Create(ctx context.Context, params ProductCreateParams) (domain.Product, error) {
	query := fmt.Sprintf(`
        INSERT INTO products (name, name_key, img, price_cents, seller, seller_key, rating)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING %s
    `, productColumns)
	row := r.db.QueryRow(ctx, query,
		params.Name, textnorm.Fold(params.Name), params.Img, int64(params.Price),
		params.Seller, textnorm.Fold(params.Seller), params.Rating)
	product, err := scanProduct(row)
	return product, translate(err)
}

// CreateMany inserts a batch of products in order.
func (r *ProductsRepository) CreateMany(ctx context.Context, batch []ProductCreateParams) ([]domain.Product, error) {
	out := make([]domain.Product, 0, len(batch))
	for _, params := range batch {
		product, err := r.Create(ctx, params)
		if err != nil {
			return nil, err
		}
		out = append(out, product)
	}
	return out, nil
}

// GetByID fetches a product by identifier.
func (r *ProductsRepository) GetByID(ctx context.Context, id string) (domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	return product, translate(err)
}

// Update overwrites the mutable columns of a product.
func (r *ProductsRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	query := fmt.Sprintf(`
        UPDATE products
        SET name = $2,
            name_key = $3,
            img = $4,
            price_cents = $5,
            seller = $6,
            seller_key = $7,
            rating = $8,
            updated_at = now()
        WHERE id = $1
        RETURNING %s
    `, productColumns)
	row := r.db.QueryRow(ctx, query, product.ID,
		product.Name, textnorm.Fold(product.Name), product.Img, int64(product.Price),
		product.Seller, textnorm.Fold(product.Seller), product.Rating)
	updated, err := scanProduct(row)
	return updated, translate(err)
}

// Delete removes a product and returns the deleted row.
func (r *ProductsRepository) Delete(ctx context.Context, id string) (domain.Product, error) {
	query := fmt.Sprintf(`DELETE FROM products WHERE id = $1 RETURNING %s`, productColumns)
	product, err := scanProduct(r.db.QueryRow(ctx, query, id))
	return product, translate(err)
}

// DeleteAll empties the collection.
func (r *ProductsRepository) DeleteAll(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM products`)
	return translate(err)
}

// List returns products matching filters.
func (r *ProductsRepository) List(ctx context.Context, filters ProductListFilters) ([]domain.Product, error) {
	where := make([]string, 0)
	args := make([]any, 0)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Name != nil && strings.TrimSpace(*filters.Name) != "" {
		where = append(where, fmt.Sprintf("name_key LIKE %s", arg(likePattern(textnorm.EscapeLike(textnorm.Fold(*filters.Name))))))
	}
	if filters.Seller != nil && strings.TrimSpace(*filters.Seller) != "" {
		where = append(where, fmt.Sprintf("seller_key LIKE %s", arg(likePattern(textnorm.EscapeLike(textnorm.Fold(*filters.Seller))))))
	}
	if filters.MaxPrice != nil {
		where = append(where, fmt.Sprintf("price_cents <= %s", arg(int64(*filters.MaxPrice))))
	}
	if filters.MinRating != nil {
		where = append(where, fmt.Sprintf("rating >= %s", arg(*filters.MinRating)))
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name_key, id"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err)
	}
	return collect(rows, scanProduct)
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var (
		product domain.Product
		cents   int64
	)
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Img,
		&cents,
		&product.Seller,
		&product.Rating,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return domain.Product{}, err
	}
	product.Price = domain.Price(cents)
	return product, nil
}
