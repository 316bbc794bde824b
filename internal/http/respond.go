package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Clark-Hu/videostore/internal/catalog"
)

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

var kindStatus = map[catalog.Kind]int{
	catalog.KindUpstreamFailure:     http.StatusInternalServerError,
	catalog.KindInvalidIdentifier:   http.StatusBadRequest,
	catalog.KindNotFound:            http.StatusNotFound,
	catalog.KindInvalidValue:        http.StatusBadRequest,
	catalog.KindReferentialConflict: http.StatusConflict,
	catalog.KindOwnershipConflict:   http.StatusConflict,
	catalog.KindDanglingReference:   http.StatusBadRequest,
	catalog.KindUnauthenticated:     http.StatusUnauthorized,
	catalog.KindForbidden:           http.StatusForbidden,
}

func statusFor(kind catalog.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			s.logger.Printf("failed to encode response: %v", err)
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// respondCatalogError writes the envelope for an engine failure.
func (s *Server) respondCatalogError(w http.ResponseWriter, err error) {
	kind := catalog.KindOf(err)
	resp := errorResponse{Code: kind.String(), Message: err.Error()}
	var ce *catalog.Error
	if errors.As(err, &ce) {
		resp.Details = ce.Details
	}
	if kind == catalog.KindUpstreamFailure {
		s.logger.Printf("catalog failure: %v", err)
	}
	s.respondJSON(w, statusFor(kind), resp)
}

func (s *Server) respondDecodeError(w http.ResponseWriter, err error) {
	var syntaxError *json.SyntaxError
	var typeError *json.UnmarshalTypeError
	var maxBytesError *http.MaxBytesError
	code := catalog.KindInvalidValue.String()
	switch {
	case errors.As(err, &maxBytesError), errors.Is(err, errBodyTooLarge):
		s.respondTooLarge(w)
	case errors.As(err, &syntaxError):
		s.respondError(w, http.StatusBadRequest, code, "Malformed JSON payload")
	case errors.As(err, &typeError):
		s.respondJSON(w, http.StatusBadRequest, errorResponse{
			Code:    code,
			Message: fmt.Sprintf("Invalid value for field %s", typeError.Field),
			Details: map[string]string{typeError.Field: catalog.InvalidNumberMsg},
		})
	case errors.Is(err, io.EOF):
		s.respondError(w, http.StatusBadRequest, code, "Request body cannot be empty")
	default:
		var fe *fieldError
		if errors.As(err, &fe) {
			s.respondJSON(w, http.StatusBadRequest, errorResponse{
				Code:    code,
				Message: fe.Field + ": " + fe.Message,
				Details: map[string]string{fe.Field: fe.Message},
			})
			return
		}
		s.respondError(w, http.StatusBadRequest, code, "Unable to parse request body")
	}
}

// fieldError reports a form or query value that could not be parsed.
type fieldError struct {
	Field   string
	Message string
}

func (e *fieldError) Error() string { return e.Field + ": " + e.Message }

var errBodyTooLarge = errors.New("request body too large")

func decodeJSONBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// decodeWrite fills dst from a JSON body or a multipart form and returns the
// image sent in fileField, if any. The caller closes the returned upload.
func (s *Server) decodeWrite(r *http.Request, dst formDecoder, fileField string) (*upload, error) {
	if !isMultipart(r) {
		return nil, decodeJSONBody(r, dst)
	}
	if err := r.ParseMultipartForm(s.maxBody()); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			return nil, errBodyTooLarge
		}
		return nil, err
	}
	if err := dst.fromForm(r.MultipartForm.Value); err != nil {
		return nil, err
	}
	file, header, err := r.FormFile(fileField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &upload{Upload: catalog.Upload{Filename: header.Filename, Content: file}, closer: file}, nil
}

type upload struct {
	catalog.Upload
	closer io.Closer
}

func (u *upload) file() *catalog.Upload {
	if u == nil {
		return nil
	}
	return &u.Upload
}

func (u *upload) Close() {
	if u != nil && u.closer != nil {
		_ = u.closer.Close()
	}
}

func idParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "id"))
}
