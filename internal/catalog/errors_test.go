package catalog

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Clark-Hu/videostore/internal/repository"
)

func TestErrorKinds(t *testing.T) {
	err := newError(KindOwnershipConflict, "owned by %s", "someone")
	if !errors.Is(err, ErrOwnershipConflict) {
		t.Fatalf("expected kind match")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected match across kinds")
	}
	if KindOf(err) != KindOwnershipConflict {
		t.Fatalf("KindOf = %v", KindOf(err))
	}
	if KindOf(fmt.Errorf("plain")) != KindUpstreamFailure {
		t.Fatalf("plain errors should be upstream failures")
	}
	if KindDanglingReference.String() != "DANGLING_REFERENCE" || KindUnauthenticated.String() != "UNAUTHORIZED" {
		t.Fatalf("unexpected codes")
	}
}

func TestWithContextKeepsKind(t *testing.T) {
	cause := InvalidValue(map[string]string{"title": MandatoryMsg, "genre": AllowedValuesMsg})
	err := withContext("al crear", cause)

	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected *Error")
	}
	if ce.Kind != KindInvalidValue || len(ce.Details) != 2 {
		t.Fatalf("context lost the kind or details: %+v", ce)
	}
	if !strings.HasPrefix(ce.Message, "al crear: genre: ") {
		t.Fatalf("message = %q", ce.Message)
	}
	if cause.Message == ce.Message {
		t.Fatalf("withContext must not mutate its argument")
	}

	wrapped := withContext("al leer", errors.New("conexión rechazada"))
	if KindOf(wrapped) != KindUpstreamFailure || !strings.Contains(wrapped.Error(), "conexión rechazada") {
		t.Fatalf("wrapped = %v", wrapped)
	}
	if withContext("x", nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}

func TestStoreError(t *testing.T) {
	err := storeError(&repository.UniqueViolationError{Constraint: "movies_title_key", Field: "title"})
	var ce *Error
	if !errors.As(err, &ce) || ce.Kind != KindInvalidValue || ce.Details["title"] != UniqueMsg {
		t.Fatalf("unique violation = %v", err)
	}
	if !errors.Is(storeError(fmt.Errorf("wrap: %w", repository.ErrInvalidID)), ErrInvalidIdentifier) {
		t.Fatalf("invalid id should map to InvalidIdentifier")
	}
	if !errors.Is(storeError(errors.New("boom")), ErrUpstreamFailure) {
		t.Fatalf("unknown errors should map to UpstreamFailure")
	}
	if storeError(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
}
