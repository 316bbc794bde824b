package httpserver

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

type directorRequest struct {
	Surnames *string   `json:"surnames"`
	Name     *string   `json:"name"`
	Photo    *string   `json:"photo"`
	Movies   *[]string `json:"movies"`
}

func (d *directorRequest) fromForm(values map[string][]string) error {
	d.Surnames = formString(values, "surnames")
	d.Name = formString(values, "name")
	d.Photo = formString(values, "photo")
	d.Movies = formStrings(values, "movies")
	return nil
}

func (d directorRequest) input() catalog.DirectorInput {
	return catalog.DirectorInput{Surnames: d.Surnames, Name: d.Name, Photo: d.Photo, Movies: d.Movies}
}

type directorResponse struct {
	ID        string          `json:"id"`
	Surnames  string          `json:"surnames"`
	Name      string          `json:"name"`
	Photo     *string         `json:"photo,omitempty"`
	Movies    []movieResponse `json:"movies"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

type importResponse struct {
	Message   string   `json:"message"`
	Directors []string `json:"directors"`
}

func toDirectorResponse(view catalog.DirectorView) directorResponse {
	return directorResponse{
		ID:        view.ID,
		Surnames:  view.Surnames,
		Name:      view.Name,
		Photo:     view.Photo,
		Movies:    movieSummaries(view.Movies),
		CreatedAt: textnorm.Timestamp(view.CreatedAt),
		UpdatedAt: textnorm.Timestamp(view.UpdatedAt),
	}
}

func (s *Server) handleListDirectors(w http.ResponseWriter, r *http.Request) {
	views, err := s.catalog.ListDirectors(r.Context(), strings.TrimSpace(r.URL.Query().Get("name")))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	items := make([]directorResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toDirectorResponse(v))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetDirector(w http.ResponseWriter, r *http.Request) {
	view, err := s.catalog.GetDirector(r.Context(), idParam(r))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toDirectorResponse(view))
}

func (s *Server) handleCreateDirector(w http.ResponseWriter, r *http.Request) {
	var req directorRequest
	photo, err := s.decodeWrite(r, &req, "photo")
	if err != nil {
		s.respondDecodeError(w, err)
		return
	}
	defer photo.Close()

	view, err := s.catalog.CreateDirector(r.Context(), req.input(), photo.file())
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/directors/%s", view.ID))
	s.respondJSON(w, http.StatusCreated, toDirectorResponse(view))
}

func (s *Server) handleImportDirectors(w http.ResponseWriter, r *http.Request) {
	var batch []catalog.DirectorImport
	if err := decodeJSONBody(r, &batch); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	created, err := s.catalog.ImportDirectors(r.Context(), batch)
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	names := make([]string, 0, len(created))
	for _, d := range created {
		names = append(names, d.FullName())
	}
	s.respondJSON(w, http.StatusCreated, importResponse{
		Message:   fmt.Sprintf(`Se han cargado %d directores en la colección "%s"`, len(created), catalog.DirectorCollection),
		Directors: names,
	})
}

func (s *Server) handleUpdateDirector(w http.ResponseWriter, r *http.Request) {
	var req directorRequest
	photo, err := s.decodeWrite(r, &req, "photo")
	if err != nil {
		s.respondDecodeError(w, err)
		return
	}
	defer photo.Close()

	view, err := s.catalog.UpdateDirector(r.Context(), idParam(r), req.input(), photo.file())
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toDirectorResponse(view))
}

func (s *Server) handleDeleteDirector(w http.ResponseWriter, r *http.Request) {
	msg, err := s.catalog.DeleteDirector(r.Context(), idParam(r))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: msg})
}
