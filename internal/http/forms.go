package httpserver

import (
	"strconv"
	"strings"

	"github.com/Clark-Hu/videostore/internal/catalog"
	"github.com/Clark-Hu/videostore/internal/domain"
)

// formDecoder is a write request that can also be read from multipart form
// values.
type formDecoder interface {
	fromForm(values map[string][]string) error
}

func formString(values map[string][]string, key string) *string {
	vals, ok := values[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	v := vals[0]
	return &v
}

func formStrings(values map[string][]string, key string) *[]string {
	vals, ok := values[key]
	if !ok {
		return nil
	}
	out := make([]string, len(vals))
	copy(out, vals)
	return &out
}

func formInt(values map[string][]string, key string) (*int, error) {
	raw := formString(values, key)
	if raw == nil {
		return nil, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(*raw))
	if err != nil {
		return nil, &fieldError{Field: key, Message: catalog.InvalidNumberMsg}
	}
	return &n, nil
}

func formFloat(values map[string][]string, key string) (*float64, error) {
	raw := formString(values, key)
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(*raw), ",", "."), 64)
	if err != nil {
		return nil, &fieldError{Field: key, Message: catalog.InvalidNumberMsg}
	}
	return &f, nil
}

func formPrice(values map[string][]string, key string) (*domain.Price, error) {
	raw := formString(values, key)
	if raw == nil {
		return nil, nil
	}
	p, err := domain.ParsePrice(*raw)
	if err != nil {
		return nil, &fieldError{Field: key, Message: catalog.InvalidNumberMsg}
	}
	return &p, nil
}
