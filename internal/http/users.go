package httpserver

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

type registerRequest struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	UserName string `json:"userName"`
	Password string `json:"password"`
}

type userUpdateRequest struct {
	UserName *string   `json:"userName"`
	Email    *string   `json:"email"`
	Password *string   `json:"password"`
	Role     *string   `json:"role"`
	Movies   *[]string `json:"movies"`
}

type userResponse struct {
	ID        string          `json:"id"`
	UserName  string          `json:"userName"`
	Email     string          `json:"email"`
	Role      string          `json:"role"`
	Movies    []movieResponse `json:"movies"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

type sessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      userResponse `json:"user"`
}

func toUserResponse(user domain.User, movies []domain.Movie) userResponse {
	return userResponse{
		ID:        user.ID,
		UserName:  user.UserName,
		Email:     user.Email,
		Role:      user.Role,
		Movies:    movieSummaries(movies),
		CreatedAt: textnorm.Timestamp(user.CreatedAt),
		UpdatedAt: textnorm.Timestamp(user.UpdatedAt),
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	user, err := s.catalog.Register(r.Context(), catalog.RegisterInput{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/users/%s", user.ID))
	s.respondJSON(w, http.StatusCreated, toUserResponse(user, nil))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	session, err := s.catalog.Login(r.Context(), req.UserName, req.Password)
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sessionResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      toUserResponse(session.User, nil),
	})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	views, err := s.catalog.ListUsers(r.Context(), actorFrom(r.Context()))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	items := make([]userResponse, 0, len(views))
	for _, v := range views {
		items = append(items, toUserResponse(v.User, v.Movies))
	}
	s.respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	view, err := s.catalog.GetUser(r.Context(), actorFrom(r.Context()), idParam(r))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(view.User, view.Movies))
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req userUpdateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	view, err := s.catalog.UpdateUser(r.Context(), actorFrom(r.Context()), idParam(r), catalog.UserInput{
		UserName: req.UserName,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Movies:   req.Movies,
	})
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toUserResponse(view.User, view.Movies))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	msg, err := s.catalog.DeleteUser(r.Context(), actorFrom(r.Context()), idParam(r))
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, messageResponse{Message: msg})
}
