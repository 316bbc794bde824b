package httpserver

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

type movieRequest struct {
	Title       *string `json:"title"`
	Poster      *string `json:"poster"`
	Genre       *string `json:"genre"`
	AgeRating   *int    `json:"ageRating"`
	ReleaseYear *string `json:"releaseYear"`
	MinDuration *string `json:"minDuration"`
	NumCopies   *int    `json:"numCopies"`
	Synopsis    *string `json:"synopsis"`
}

func (m *movieRequest) fromForm(values map[string][]string) error {
	var err error
	m.Title = formString(values, "title")
	m.Poster = formString(values, "poster")
	m.Genre = formString(values, "genre")
	if m.AgeRating, err = formInt(values, "ageRating"); err != nil {
		return err
	}
	m.ReleaseYear = formString(values, "releaseYear")
	m.MinDuration = formString(values, "minDuration")
	if m.NumCopies, err = formInt(values, "numCopies"); err != nil {
		return err
	}
	m.Synopsis = formString(values, "synopsis")
	return nil
}

func (m movieRequest) input() catalog.MovieInput {
	return catalog.MovieInput{
		Title:       m.Title,
		Poster:      m.Poster,
		Genre:       m.Genre,
		AgeRating:   m.AgeRating,
		ReleaseYear: m.ReleaseYear,
		MinDuration: m.MinDuration,
		NumCopies:   m.NumCopies,
		Synopsis:    m.Synopsis,
	}
}

type movieResponse struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Poster      *string `json:"poster,omitempty"`
	Genre       string  `json:"genre"`
	AgeRating   int     `json:"ageRating"`
	ReleaseYear string  `json:"releaseYear"`
	MinDuration *string `json:"minDuration,omitempty"`
	NumCopies   int     `json:"numCopies"`
	Synopsis    *string `json:"synopsis,omitempty"`
	Director    string  `json:"director"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

type deleteMovieResponse struct {
	Message         string `json:"message"`
	DirectorUpdated bool   `json:"directorUpdated"`
}

func toMovieResponse(view catalog.MovieView) movieResponse {
	resp := movieSummary(view.Movie)
	resp.Director = view.Director
	return resp
}

func movieSummary(movie domain.Movie) movieResponse {
	return movieResponse{
		ID:          movie.ID,
		Title:       movie.Title,
		Poster:      movie.Poster,
		Genre:       movie.Genre,
		AgeRating:   movie.AgeRating,
		ReleaseYear: movie.ReleaseYear,
		MinDuration: movie.MinDuration,
		NumCopies:   movie.NumCopies,
		Synopsis:    movie.Synopsis,
		CreatedAt:   textnorm.Timestamp(movie.CreatedAt),
		UpdatedAt:   textnorm.Timestamp(movie.UpdatedAt),
	}
}

func movieSummaries(movies []domain.Movie) []movieResponse {
	out := make([]movieResponse, 0, len(movies))
	for _, m := range movies {
		out = append(out, movieSummary(m))
	}
	return out
}

func buildMovieQuery(query url.Values) (catalog.MovieQuery, error) {
	q := catalog.MovieQuery{
		Title:    strings.TrimSpace(query.Get("title")),
		Genre:    strings.TrimSpace(query.Get("genre")),
		Director: strings.TrimSpace(query.Get("director")),
	}
	if val := strings.TrimSpace(query.Get("ageRating")); val != "" {
		rating, err := strconv.Atoi(val)
		if err != nil {
			return q, &fieldError{Field: "ageRating", Message: catalog.InvalidNumberMsg}
		}
		q.MinAgeRating = &rating
	}
	return q, nil
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	q, err := buildMovieQuery(r.URL.Query())
	if err != nil {
		s.respondDecodeError(w, err)
		return
	}
	views, err := s.catalog.ListMovies(r.Context(), q)
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	items := make([]movieResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toMovieResponse(v))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	view, err := s.catalog.GetMovie(r.Context(), idParam(r))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(view))
}

func (s *Server) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	var req movieRequest
	poster, err := s.decodeWrite(r, &req, "poster")
	if err != nil {
		s.respondDecodeError(w, err)
		return
	}
	defer poster.Close()

	view, err := s.catalog.CreateMovie(r.Context(), req.input(), poster.file())
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/movies/%s", view.ID))
	s.respondJSON(w, http.StatusCreated, toMovieResponse(view))
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	var req movieRequest
	poster, err := s.decodeWrite(r, &req, "poster")
	if err != nil {
		s.respondDecodeError(w, err)
		return
	}
	defer poster.Close()

	view, err := s.catalog.UpdateMovie(r.Context(), idParam(r), req.input(), poster.file())
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toMovieResponse(view))
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	res, err := s.catalog.DeleteMovie(r.Context(), idParam(r))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, deleteMovieResponse{Message: res.Message, DirectorUpdated: res.DirectorUpdated})
}
