package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/domain"
)

type actorKey struct{}

func actorFrom(ctx context.Context) catalog.Actor {
	actor, _ := ctx.Value(actorKey{}).(catalog.Actor)
	return actor
}

func withActor(ctx context.Context, actor catalog.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// authenticate resolves the bearer token, when one is sent, into the request
// actor. Requests without a token continue anonymously; a bad token is
// rejected.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		actor, err := s.catalog.Authenticate(token)
		if err != nil {
			s.respondCatalogError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := actorFrom(r.Context())
		switch {
		case actor.UserID == "":
			s.respondError(w, http.StatusUnauthorized, catalog.KindUnauthenticated.String(),
				fmt.Sprintf(`Se debe iniciar sesión como "%s" para poder acceder al "endpoint"`, domain.RoleAdmin))
		case !actor.IsAdmin():
			s.respondError(w, http.StatusForbidden, catalog.KindForbidden.String(),
				fmt.Sprintf(`Se debe iniciar sesión como "%s" para poder acceder al "endpoint"`, domain.RoleAdmin))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// limitBody rejects requests whose declared size exceeds the upload limit and
// caps the body of the rest.
func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := s.maxBody()
		if r.ContentLength > limit {
			s.respondTooLarge(w)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, limit)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBody() int64 {
	mb := s.cfg.UploadMaxMB
	if mb <= 0 {
		mb = 5
	}
	return int64(mb) << 20
}

func (s *Server) respondTooLarge(w http.ResponseWriter) {
	mb := s.maxBody() >> 20
	s.respondError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
		fmt.Sprintf(`Se ha producido un error al subir el archivo a "Cloudinary": El tamaño no debe ser superior a %d MB`, mb))
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	return token, token != ""
}
