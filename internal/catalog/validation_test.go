package catalog

import (
	"errors"
	"testing"
)

func TestValidMovie(t *testing.T) {
	s := New(nil, nil, nil, nil)

	cases := []struct {
		name   string
		fields movieFields
		bad    string
	}{
		{name: "missing title", fields: movieFields{Genre: "Drama", AgeRating: intPtr(0), ReleaseYear: "1999", NumCopies: intPtr(1)}, bad: "title"},
		{name: "unknown genre", fields: movieFields{Title: "X", Genre: "Ópera", AgeRating: intPtr(0), ReleaseYear: "1999", NumCopies: intPtr(1)}, bad: "genre"},
		{name: "age rating", fields: movieFields{Title: "X", Genre: "Drama", AgeRating: intPtr(13), ReleaseYear: "1999", NumCopies: intPtr(1)}, bad: "ageRating"},
		{name: "year format", fields: movieFields{Title: "X", Genre: "Drama", AgeRating: intPtr(0), ReleaseYear: "99", NumCopies: intPtr(1)}, bad: "releaseYear"},
		{name: "duration", fields: movieFields{Title: "X", Genre: "Drama", AgeRating: intPtr(0), ReleaseYear: "1999", MinDuration: "90 min", NumCopies: intPtr(1)}, bad: "minDuration"},
		{name: "negative copies", fields: movieFields{Title: "X", Genre: "Drama", AgeRating: intPtr(0), ReleaseYear: "1999", NumCopies: intPtr(-1)}, bad: "numCopies"},
		{name: "missing copies", fields: movieFields{Title: "X", Genre: "Drama", AgeRating: intPtr(0), ReleaseYear: "1999"}, bad: "numCopies"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := s.validMovie(tc.fields)
			var ce *Error
			if !errors.As(err, &ce) || ce.Kind != KindInvalidValue {
				t.Fatalf("expected InvalidValue, got %v", err)
			}
			if _, ok := ce.Details[tc.bad]; !ok {
				t.Fatalf("details %+v miss %q", ce.Details, tc.bad)
			}
		})
	}

	movie, err := s.validMovie(movieFields{
		Title: " El  sur ", Poster: "  ", Genre: "drama", AgeRating: intPtr(0),
		ReleaseYear: " 1983 ", MinDuration: "95", NumCopies: intPtr(0),
	})
	if err != nil {
		t.Fatalf("validMovie: %v", err)
	}
	if movie.Title != "El sur" || movie.Genre != "Drama" || movie.ReleaseYear != "1983" || movie.Poster != nil {
		t.Fatalf("unexpected normalization %+v", movie)
	}
}

func TestCanonicalGenre(t *testing.T) {
	for in, want := range map[string]string{
		"ACCION":          "Acción",
		"ciencia ficción": "Ciencia ficción",
		"western":         "Western",
	} {
		got, ok := CanonicalGenre(in)
		if !ok || got != want {
			t.Fatalf("CanonicalGenre(%q) = %q, %v", in, got, ok)
		}
	}
	if _, ok := CanonicalGenre("zarzuela"); ok {
		t.Fatalf("unexpected genre match")
	}
}

func TestCheckIDs(t *testing.T) {
	if err := checkIDs([]string{"7b0e4c52-6d7e-4a1e-9d0b-3c0d5f0a9e11"}); err != nil {
		t.Fatalf("valid id rejected: %v", err)
	}
	if err := checkIDs([]string{"7b0e4c52-6d7e-4a1e-9d0b-3c0d5f0a9e11", "nope"}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Fatalf("expected InvalidIdentifier, got %v", err)
	}
	for _, id := range []string{
		"urn:uuid:7b0e4c52-6d7e-4a1e-9d0b-3c0d5f0a9e11",
		"{7b0e4c52-6d7e-4a1e-9d0b-3c0d5f0a9e11}",
		"7b0e4c526d7e4a1e9d0b3c0d5f0a9e11",
		"7B0E4C52-6D7E-4A1E-9D0B-3C0D5F0A9E11",
	} {
		if err := checkID(id); !errors.Is(err, ErrInvalidIdentifier) {
			t.Fatalf("checkID(%q) = %v, want InvalidIdentifier", id, err)
		}
	}
}

func TestPasswordRule(t *testing.T) {
	s := New(nil, nil, nil, nil)
	for _, pw := range []string{"short1", "con espacios1", "símbolos#123"} {
		if _, err := s.hashPassword(pw); !errors.Is(err, ErrInvalidValue) {
			t.Fatalf("password %q should be rejected, got %v", pw, err)
		}
	}
	if _, err := s.hashPassword("abc12345"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}
}
