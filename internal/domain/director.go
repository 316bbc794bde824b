package domain

import "time"

// Director owns the forward references to its movies.
type Director struct {
	ID        string
	Surnames  string
	Name      string
	Photo     *string
	MovieIDs  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName renders "surnames, name".
func (d Director) FullName() string {
	return d.Surnames + ", " + d.Name
}

// HasMovie reports whether id is in the director's reference set.
func (d Director) HasMovie(id string) bool {
	for _, m := range d.MovieIDs {
		if m == id {
			return true
		}
	}
	return false
}
