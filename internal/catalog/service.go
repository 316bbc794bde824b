// Package catalog enforces the consistency rules between movies, directors
// and users, and runs every multi-step write of the video store.
package catalog

import (
	"context"
	"errors"
	"io"
	"log"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/Clark-Hu/videostore/internal/auth"
	"github.com/Clark-Hu/videostore/internal/blob"
	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/repository"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

// Service is the catalog engine. It is safe for concurrent use.
type Service struct {
	repo       *repository.Repository
	blobs      blob.Store
	cleaner    blob.Cleaner
	issuer     *auth.Issuer
	bcryptCost int
	logger     *log.Logger
	validate   *validator.Validate
}

// Option customizes a Service.
type Option func(*Service)

// WithIssuer enables Login by signing tokens with issuer.
func WithIssuer(issuer *auth.Issuer) Option {
	return func(s *Service) { s.issuer = issuer }
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// New builds the engine from its collaborators, all constructed by the caller.
func New(repo *repository.Repository, blobs blob.Store, cleaner blob.Cleaner, logger *log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		repo:     repo,
		blobs:    blobs,
		cleaner:  cleaner,
		logger:   logger,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Actor identifies the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// Upload is an image sent along with a write.
type Upload struct {
	Filename string
	Content  io.Reader
}

// upload stores file under folder. field names the input the file was sent as.
func (s *Service) upload(ctx context.Context, folder, field string, file *Upload) (string, error) {
	if file == nil {
		return "", nil
	}
	if err := blob.CheckFormat(file.Filename); err != nil {
		return "", InvalidValue(map[string]string{field: UnsupportedFileMsg})
	}
	url, err := s.blobs.Upload(ctx, folder, file.Filename, file.Content)
	if err != nil {
		return "", &Error{
			Kind:    KindUpstreamFailure,
			Message: `Se ha producido un error al subir el archivo a "Cloudinary": ` + err.Error(),
			Err:     err,
		}
	}
	return url, nil
}

func (s *Service) discard(url, reason string) {
	if url == "" || s.cleaner == nil {
		return
	}
	s.cleaner.Discard(url, reason)
}

// storeError translates repository failures into catalog errors.
func storeError(err error) error {
	var (
		ce *Error
		uv *repository.UniqueViolationError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return err
	case errors.As(err, &uv):
		return InvalidValue(map[string]string{uv.Field: UniqueMsg})
	case errors.Is(err, repository.ErrInvalidID):
		return newError(KindInvalidIdentifier, "%s", InvalidIDMsg)
	}
	return upstream(err)
}

func sortMovies(movies []domain.Movie) {
	sorter := textnorm.NewSorter()
	sort.SliceStable(movies, func(i, j int) bool { return sorter.Less(movies[i].Title, movies[j].Title) })
}

func sortStrings[T any](items []T, key func(T) string) {
	sorter := textnorm.NewSorter()
	sort.SliceStable(items, func(i, j int) bool { return sorter.Less(key(items[i]), key(items[j])) })
}
