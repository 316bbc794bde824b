package domain

import "time"

// Genres lists the accepted movie genres in their canonical spelling.
var Genres = []string{
	"Acción",
	"Aventura",
	"Bélica",
	"Catástrofe",
	"Ciencia ficción",
	"Comedia",
	"Documental",
	"Drama",
	"Fantasía",
	"Histórica",
	"Musical",
	"Policiaca",
	"Suspense",
	"Terror",
	"Western",
}

// AgeRatings lists the accepted minimum ages.
var AgeRatings = []int{0, 7, 12, 16, 18}

const (
	// MinReleaseYear is the earliest accepted release year.
	MinReleaseYear = 1900
	// MaxNumCopies caps the copies held for any movie.
	MaxNumCopies = 5
)

// Movie represents the canonical movie entity in the store. It keeps no
// reference to its director or borrowers; both are found by reverse lookup.
type Movie struct {
	ID          string
	Title       string
	Poster      *string
	Genre       string
	AgeRating   int
	ReleaseYear string
	MinDuration *string
	NumCopies   int
	Synopsis    *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
