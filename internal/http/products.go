package httpserver

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

type productRequest struct {
	Name   *string       `json:"name"`
	Img    *string       `json:"img"`
	Price  *domain.Price `json:"price"`
	Seller *string       `json:"seller"`
	Rating *float64      `json:"rating"`
}

func (p *productRequest) fromForm(values map[string][]string) error {
	var err error
	p.Name = formString(values, "name")
	p.Img = formString(values, "img")
	if p.Price, err = formPrice(values, "price"); err != nil {
		return err
	}
	p.Seller = formString(values, "seller")
	if p.Rating, err = formFloat(values, "rating"); err != nil {
		return err
	}
	return nil
}

func (p productRequest) input() catalog.ProductInput {
	return catalog.ProductInput{Name: p.Name, Img: p.Img, Price: p.Price, Seller: p.Seller, Rating: p.Rating}
}

type productResponse struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Img       *string      `json:"img,omitempty"`
	Price     domain.Price `json:"price"`
	Seller    string       `json:"seller"`
	Rating    *float64     `json:"rating"`
	CreatedAt string       `json:"createdAt"`
	UpdatedAt string       `json:"updatedAt"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:        p.ID,
		Name:      p.Name,
		Img:       p.Img,
		Price:     p.Price,
		Seller:    p.Seller,
		Rating:    p.Rating,
		CreatedAt: textnorm.Timestamp(p.CreatedAt),
		UpdatedAt: textnorm.Timestamp(p.UpdatedAt),
	}
}

// buildProductQuery reads name, seller, price (maximum) and rating (minimum).
func buildProductQuery(query url.Values) (catalog.ProductQuery, error) {
	q := catalog.ProductQuery{
		Name:   strings.TrimSpace(query.Get("name")),
		Seller: strings.TrimSpace(query.Get("seller")),
	}
	if val := strings.TrimSpace(query.Get("price")); val != "" {
		price, err := domain.ParsePrice(val)
		if err != nil {
			return q, &fieldError{Field: "price", Message: catalog.InvalidNumberMsg}
		}
		q.MaxPrice = &price
	}
	if val := strings.TrimSpace(query.Get("rating")); val != "" {
		rating, err := strconv.ParseFloat(strings.ReplaceAll(val, ",", "."), 64)
		if err != nil || math.IsNaN(rating) || rating < 0 || rating > domain.MaxProductRating {
			return q, &fieldError{Field: "rating", Message: catalog.InvalidRatingMsg}
		}
		q.MinRating = &rating
	}
	return q, nil
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q, err := buildProductQuery(r.URL.Query())
	if err != nil {
		s.respondDecodeError(w, err)
		return
	}
	products, err := s.catalog.ListProducts(r.Context(), q)
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	items := make([]productResponse, 0, len(products))
	for _, p := range products {
		items = append(items, toProductResponse(p))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.catalog.GetProduct(r.Context(), idParam(r))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toProductResponse(product))
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	img, err := s.decodeWrite(r, &req, "img")
	if err != nil {
		s.respondDecodeError(w, err)
		return
	}
	defer img.Close()

	product, err := s.catalog.CreateProduct(r.Context(), req.input(), img.file())
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/products/%s", product.ID))
	s.respondJSON(w, http.StatusCreated, toProductResponse(product))
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	img, err := s.decodeWrite(r, &req, "img")
	if err != nil {
		s.respondDecodeError(w, err)
		return
	}
	defer img.Close()

	product, err := s.catalog.UpdateProduct(r.Context(), idParam(r), req.input(), img.file())
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toProductResponse(product))
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	msg, err := s.catalog.DeleteProduct(r.Context(), idParam(r))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: msg})
}
