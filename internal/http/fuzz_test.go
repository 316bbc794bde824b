package httpserver

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/Clark-Hu/videostore/internal/domain"
)

func FuzzBuildMovieQuery(f *testing.F) {
	f.Add("Dune", "drama", "lynch", "12")
	f.Add("", "", "", "abc")
	f.Add("  ", "ciencia ficción", "", "-3")

	f.Fuzz(func(t *testing.T, title, genre, director, ageRating string) {
		q, err := buildMovieQuery(url.Values{
			"title":     {title},
			"genre":     {genre},
			"director":  {director},
			"ageRating": {ageRating},
		})
		if err != nil {
			var fe *fieldError
			if !errors.As(err, &fe) {
				t.Fatalf("unexpected error type %T", err)
			}
			return
		}
		if q.MinAgeRating == nil && strings.TrimSpace(ageRating) != "" {
			t.Fatalf("ageRating %q accepted without value", ageRating)
		}
	})
}

func FuzzBuildProductQuery(f *testing.F) {
	f.Add("mando", "12.50", "4")
	f.Add("", "x", "9")

	f.Fuzz(func(t *testing.T, name, price, rating string) {
		q, err := buildProductQuery(url.Values{"name": {name}, "price": {price}, "rating": {rating}})
		if err != nil {
			return
		}
		if q.MaxPrice != nil && *q.MaxPrice < domain.Price(0) {
			t.Fatalf("negative max price %v", *q.MaxPrice)
		}
		if q.MinRating != nil && (*q.MinRating < 0 || *q.MinRating > domain.MaxProductRating) {
			t.Fatalf("rating %v out of range", *q.MinRating)
		}
	})
}
