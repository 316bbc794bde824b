package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/domain"
)

func TestBuildMovieQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     url.Values
		wantErr   bool
		title     string
		genre     string
		director  string
		ageRating *int
	}{
		{name: "empty", query: url.Values{}},
		{
			name:     "trimmed criteria",
			query:    url.Values{"title": {"  Dune "}, "genre": {"drama"}, "director": {" lynch"}},
			title:    "Dune",
			genre:    "drama",
			director: "lynch",
		},
		{name: "age rating", query: url.Values{"ageRating": {"12"}}, ageRating: intRef(12)},
		{name: "invalid age rating", query: url.Values{"ageRating": {"doce"}}, wantErr: true},
		{name: "blank age rating ignored", query: url.Values{"ageRating": {"  "}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := buildMovieQuery(tt.query)
			if tt.wantErr {
				var fe *fieldError
				if !errors.As(err, &fe) || fe.Field != "ageRating" {
					t.Fatalf("err = %v, want ageRating field error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.Title != tt.title || q.Genre != tt.genre || q.Director != tt.director {
				t.Fatalf("query = %+v", q)
			}
			if (q.MinAgeRating == nil) != (tt.ageRating == nil) {
				t.Fatalf("MinAgeRating = %v, want %v", q.MinAgeRating, tt.ageRating)
			}
			if q.MinAgeRating != nil && *q.MinAgeRating != *tt.ageRating {
				t.Fatalf("MinAgeRating = %d, want %d", *q.MinAgeRating, *tt.ageRating)
			}
		})
	}
}

func TestBuildProductQuery(t *testing.T) {
	q, err := buildProductQuery(url.Values{"name": {" mando "}, "price": {"49.95"}, "rating": {"3.5"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Name != "mando" || q.MaxPrice == nil || *q.MaxPrice != domain.Price(4995) {
		t.Fatalf("query = %+v", q)
	}
	if q.MinRating == nil || *q.MinRating != 3.5 {
		t.Fatalf("MinRating = %v", q.MinRating)
	}

	for _, bad := range []url.Values{
		{"price": {"gratis"}},
		{"rating": {"-1"}},
		{"rating": {"6"}},
		{"rating": {"mucho"}},
	} {
		if _, err := buildProductQuery(bad); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"Bearer abc.def", "abc.def", true},
		{"Bearer   padded  ", "padded", true},
	}
	for _, tt := range tests {
		token, ok := bearerToken(tt.header)
		if token != tt.token || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v", tt.header, token, ok)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[catalog.Kind]int{
		catalog.KindUpstreamFailure:     http.StatusInternalServerError,
		catalog.KindInvalidIdentifier:   http.StatusBadRequest,
		catalog.KindNotFound:            http.StatusNotFound,
		catalog.KindInvalidValue:        http.StatusBadRequest,
		catalog.KindReferentialConflict: http.StatusConflict,
		catalog.KindOwnershipConflict:   http.StatusConflict,
		catalog.KindDanglingReference:   http.StatusBadRequest,
		catalog.KindUnauthenticated:     http.StatusUnauthorized,
		catalog.KindForbidden:           http.StatusForbidden,
		catalog.Kind(99):                http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusFor(kind); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestFormHelpers(t *testing.T) {
	values := map[string][]string{
		"title":     {"  Arrival  "},
		"ageRating": {"7"},
		"numCopies": {"dos"},
		"movies":    {"a, b", "c"},
	}
	var req movieRequest
	err := req.fromForm(values)
	var fe *fieldError
	if !errors.As(err, &fe) || fe.Field != "numCopies" {
		t.Fatalf("err = %v, want numCopies field error", err)
	}

	var dir directorRequest
	if err := dir.fromForm(values); err != nil {
		t.Fatalf("directorRequest.fromForm: %v", err)
	}
	if dir.Movies == nil || len(*dir.Movies) != 2 {
		t.Fatalf("movies = %v", dir.Movies)
	}
}

func intRef(v int) *int { return &v }
