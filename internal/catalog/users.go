package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Clark-Hu/videostore/internal/auth"
	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/repository"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

// RegisterInput carries a new account.
type RegisterInput struct {
	UserName string
	Email    string
	Password string
}

// UserInput patches an account. Movies replaces the borrow set; entries may be
// comma separated.
type UserInput struct {
	UserName *string
	Email    *string
	Password *string
	Role     *string
	Movies   *[]string
}

func (in UserInput) empty() bool {
	return in.UserName == nil && in.Email == nil && in.Password == nil && in.Role == nil && in.Movies == nil
}

// UserView is a user with its borrowed movies sorted by title.
type UserView struct {
	domain.User
	Movies []domain.Movie
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

type userFields struct {
	UserName string `json:"userName" validate:"required"`
	Email    string `json:"email" conform:"trim,lower" validate:"required,mail"`
	Role     string `json:"role" validate:"required,oneof=admin user"`
}

type passwordField struct {
	Password string `json:"password" validate:"required,password"`
}

func userNotFoundMsg(id string) string {
	return fmt.Sprintf(`No se ha encontrado ningún usuario en la colección "%s" con el identificador "%s"`, UserCollection, id)
}

func loginRequiredMsg(role string) string {
	if role == "" {
		return `Se debe iniciar sesión para poder acceder al "endpoint"`
	}
	return fmt.Sprintf(`Se debe iniciar sesión como "%s" para poder acceder al "endpoint"`, role)
}

// canAccess reports whether actor may act on the user identified by id.
func canAccess(actor Actor, id string) error {
	if actor.UserID == "" {
		return newError(KindUnauthenticated, "%s", loginRequiredMsg(""))
	}
	if actor.IsAdmin() || actor.UserID == id {
		return nil
	}
	return newError(KindForbidden, "%s", loginRequiredMsg(domain.RoleAdmin))
}

func (s *Service) hashPassword(plain string) (string, error) {
	if err := s.validateStruct(&passwordField{Password: plain}); err != nil {
		return "", err
	}
	hash, err := auth.HashPassword(plain, s.bcryptCost)
	if err != nil {
		return "", upstream(err)
	}
	return hash, nil
}

// Register creates a user account with the user role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	return s.createUser(ctx, in, domain.RoleUser)
}

// EnsureAdmin creates the admin account when it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, in RegisterInput) (domain.User, error) {
	existing, err := s.repo.Users.GetByUserName(ctx, textnorm.UserName(in.UserName))
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, upstream(err)
	}
	return s.createUser(ctx, in, domain.RoleAdmin)
}

func (s *Service) createUser(ctx context.Context, in RegisterInput, role string) (domain.User, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al registrar el usuario en la colección "%s"`, UserCollection)

	f := userFields{UserName: textnorm.UserName(in.UserName), Email: in.Email, Role: role}
	if err := s.validateStruct(&f); err != nil {
		return domain.User{}, withContext(prefix, err)
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return domain.User{}, withContext(prefix, err)
	}
	user, err := s.repo.Users.Create(ctx, repository.UserCreateParams{
		UserName:     f.UserName,
		Email:        f.Email,
		PasswordHash: hash,
		Role:         f.Role,
	})
	if err != nil {
		return domain.User{}, withContext(prefix, storeError(err))
	}
	return user, nil
}

// Login checks credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, userName, password string) (Session, error) {
	if s.issuer == nil {
		return Session{}, newError(KindUpstreamFailure, "login disabled: no token issuer configured")
	}
	invalid := newError(KindUnauthenticated, "Nombre de usuario o contraseña incorrectos")

	user, err := s.repo.Users.GetByUserName(ctx, textnorm.UserName(userName))
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, invalid
	}
	if err != nil {
		return Session{}, upstream(err)
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return Session{}, invalid
	}
	token, exp, err := s.issuer.Issue(user.ID, user.Role)
	if err != nil {
		return Session{}, upstream(err)
	}
	return Session{Token: token, ExpiresAt: exp, User: user}, nil
}

// GetUser returns one user with the movies it borrows.
func (s *Service) GetUser(ctx context.Context, actor Actor, id string) (UserView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al consultar en la colección "%s" el usuario con el identificador "%s"`, UserCollection, id)
	if err := checkID(id); err != nil {
		return UserView{}, withContext(prefix, err)
	}
	if err := canAccess(actor, id); err != nil {
		return UserView{}, err
	}
	user, err := s.repo.Users.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return UserView{}, newError(KindNotFound, "%s", userNotFoundMsg(id))
	}
	if err != nil {
		return UserView{}, withContext(prefix, storeError(err))
	}
	views, err := s.withBorrowed(ctx, []domain.User{user})
	if err != nil {
		return UserView{}, withContext(prefix, err)
	}
	return views[0], nil
}

// ListUsers returns every user sorted by user name. Admin only.
func (s *Service) ListUsers(ctx context.Context, actor Actor) ([]UserView, error) {
	if !actor.IsAdmin() {
		return nil, newError(KindForbidden, "%s", loginRequiredMsg(domain.RoleAdmin))
	}
	prefix := fmt.Sprintf(`Se ha producido un error al consultar los usuarios en la colección "%s"`, UserCollection)
	users, err := s.repo.Users.List(ctx)
	if err != nil {
		return nil, withContext(prefix, storeError(err))
	}
	if len(users) == 0 {
		return nil, newError(KindNotFound, "%s", notFoundListMsg("usuarios", UserCollection, ""))
	}
	sortStrings(users, func(u domain.User) string { return u.UserName })
	views, err := s.withBorrowed(ctx, users)
	if err != nil {
		return nil, withContext(prefix, err)
	}
	return views, nil
}

func (s *Service) withBorrowed(ctx context.Context, users []domain.User) ([]UserView, error) {
	ids := make([]string, 0)
	for _, u := range users {
		ids = append(ids, u.MovieIDs...)
	}
	movies, err := s.repo.Movies.List(ctx, repository.MovieListFilters{IDs: ids})
	if err != nil {
		return nil, storeError(err)
	}
	byID := make(map[string]domain.Movie, len(movies))
	for _, m := range movies {
		byID[m.ID] = m
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		borrowed := make([]domain.Movie, 0, len(u.MovieIDs))
		for _, id := range u.MovieIDs {
			if m, ok := byID[id]; ok {
				borrowed = append(borrowed, m)
			}
		}
		sortMovies(borrowed)
		views = append(views, UserView{User: u, Movies: borrowed})
	}
	return views, nil
}

// UpdateUser patches a user. Only admins may change roles. A new borrow set
// is checked with the borrowed movies locked: every movie must exist, and a
// newly borrowed movie needs a copy that no other user holds.
func (s *Service) UpdateUser(ctx context.Context, actor Actor, id string, in UserInput) (UserView, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al actualizar en la colección "%s" el usuario con el identificador "%s"`, UserCollection, id)

	if err := checkID(id); err != nil {
		return UserView{}, withContext(prefix, err)
	}
	if err := canAccess(actor, id); err != nil {
		return UserView{}, err
	}
	if in.Role != nil && !actor.IsAdmin() {
		return UserView{}, newError(KindForbidden, "%s", loginRequiredMsg(domain.RoleAdmin))
	}
	if in.empty() {
		return UserView{}, withContext(prefix, newError(KindInvalidValue,
			`No se ha introducido ningún dato para actualizar el usuario con el identificador "%s"`, id))
	}

	var updated domain.User
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		current, err := tx.Users.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return newError(KindNotFound, "%s", userNotFoundMsg(id))
		}
		if err != nil {
			return storeError(err)
		}

		f := userFields{UserName: current.UserName, Email: current.Email, Role: current.Role}
		if in.UserName != nil {
			f.UserName = textnorm.UserName(*in.UserName)
		}
		if in.Email != nil {
			f.Email = *in.Email
		}
		if in.Role != nil {
			f.Role = *in.Role
		}
		if err := s.validateStruct(&f); err != nil {
			return err
		}

		next := current
		next.UserName, next.Email, next.Role = f.UserName, f.Email, f.Role
		if in.Password != nil {
			if next.PasswordHash, err = s.hashPassword(*in.Password); err != nil {
				return err
			}
		}
		if in.Movies != nil {
			ids, err := movieRefs(*in.Movies)
			if err != nil {
				return err
			}
			if err := checkBorrows(ctx, tx, current, ids); err != nil {
				return err
			}
			next.MovieIDs = ids
		}

		updated, err = tx.Users.Update(ctx, next)
		return storeError(err)
	})
	if err != nil {
		return UserView{}, withContext(prefix, err)
	}
	views, err := s.withBorrowed(ctx, []domain.User{updated})
	if err != nil {
		return UserView{}, withContext(prefix, err)
	}
	return views[0], nil
}

// checkBorrows validates the borrow set ids of user inside tx.
func checkBorrows(ctx context.Context, tx *repository.Repository, user domain.User, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	movies, err := tx.Movies.LockByIDs(ctx, ids)
	if err != nil {
		return storeError(err)
	}
	if len(movies) != len(ids) {
		return newError(KindDanglingReference, "%s", movieDoesNotExistMsg())
	}
	for _, m := range movies {
		if containsString(user.MovieIDs, m.ID) {
			continue
		}
		others, err := tx.Users.CountBorrowers(ctx, m.ID, user.ID)
		if err != nil {
			return storeError(err)
		}
		if others >= m.NumCopies {
			return InvalidValue(map[string]string{"movies": allCopiesBorrowedMsg()})
		}
	}
	return nil
}

// DeleteUser removes an account and releases its borrowed copies.
func (s *Service) DeleteUser(ctx context.Context, actor Actor, id string) (string, error) {
	prefix := fmt.Sprintf(`Se ha producido un error al eliminar en la colección "%s" el usuario con el identificador "%s"`, UserCollection, id)
	if err := checkID(id); err != nil {
		return "", withContext(prefix, err)
	}
	if err := canAccess(actor, id); err != nil {
		return "", err
	}
	if _, err := s.repo.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", withContext(prefix, newError(KindNotFound, "%s", userNotFoundMsg(id)))
		}
		return "", withContext(prefix, storeError(err))
	}
	return fmt.Sprintf(`Se ha eliminado en la colección "%s" el usuario con el identificador "%s"`, UserCollection, id), nil
}

// Authenticate resolves the actor behind a bearer token.
func (s *Service) Authenticate(token string) (Actor, error) {
	if s.issuer == nil || token == "" {
		return Actor{}, newError(KindUnauthenticated, "%s", loginRequiredMsg(""))
	}
	claims, err := s.issuer.Parse(token)
	if err != nil {
		return Actor{}, &Error{Kind: KindUnauthenticated, Message: loginRequiredMsg(""), Err: err}
	}
	return Actor{UserID: claims.Subject, Role: claims.Role}, nil
}

func containsString(items []string, v string) bool {
	for _, it := range items {
		if it == v {
			return true
		}
	}
	return false
}
