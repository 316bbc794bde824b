package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/leebenson/conform"

	"github.com/Clark-Hu/videostore/internal/domain"
	"github.com/Clark-Hu/videostore/internal/textnorm"
)

// Collection names used in user facing messages.
const (
	MovieCollection    = "movie"
	DirectorCollection = "director"
	UserCollection     = "user"
	ProductCollection  = "product"
)

// PasswordMinLength is the shortest accepted password.
const PasswordMinLength = 8

const (
	MandatoryMsg       = "El campo es obligatorio y no puede estar vacío"
	UniqueMsg          = "El campo no puede estar repetido"
	AllowedValuesMsg   = "Valores válidos"
	InvalidNumberMsg   = "Número no válido"
	YearFormatMsg      = "Formato correcto: yyyy"
	InvalidEmailMsg    = "Correo electrónico no válido"
	InvalidIDMsg       = "Identificador no válido"
	UnsupportedFileMsg = "Formato de archivo no válido. Formatos válidos: jpg, jpeg, png, gif, webp"
)

var (
	InvalidYearMsg      = fmt.Sprintf("El año debe ser a partir de %d", domain.MinReleaseYear)
	InvalidNumCopiesMsg = fmt.Sprintf("El número de copias no debe ser superior a %d", domain.MaxNumCopies)
	InvalidPasswordMsg  = fmt.Sprintf("La contraseña tiene que estar formada por letras y números y tener una longitud mínima de %d", PasswordMinLength)
	InvalidRatingMsg    = fmt.Sprintf("La valoración debe estar entre 0 y %d", domain.MaxProductRating)
)

func movieDoesNotExistMsg() string {
	return fmt.Sprintf(`Alguna de las películas no existe en la colección "%s"`, MovieCollection)
}

func movieWithDirectorMsg() string {
	return fmt.Sprintf("Alguna de las películas ya tiene relacionado un director en la colección \"%s\"\nUna película sólo puede pertenecer a un director", DirectorCollection)
}

func copiesBelowBorrowsMsg() string {
	return fmt.Sprintf(`El número de copias de la película en la colección "%s" no puede ser inferior al número de copias actualmente prestadas a los usuarios en la colección "%s"`, MovieCollection, UserCollection)
}

func allCopiesBorrowedMsg() string {
	return fmt.Sprintf(`Alguna de las películas no se puede prestar porque no tiene copias o todas sus copias se encuentran actualmente prestadas a los usuarios en la colección "%s"`, UserCollection)
}

var (
	yearPattern     = regexp.MustCompile(`^\d{4}$`)
	digitsPattern   = regexp.MustCompile(`^\d+$`)
	passwordPattern = regexp.MustCompile(fmt.Sprintf(`^[a-zñA-ZÑ\d]{%d,}$`, PasswordMinLength))
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	mustRegister(v, "year", func(fl validator.FieldLevel) bool {
		return yearPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "minyear", func(fl validator.FieldLevel) bool {
		year, err := strconv.Atoi(fl.Field().String())
		return err == nil && year >= domain.MinReleaseYear
	})
	mustRegister(v, "digits", func(fl validator.FieldLevel) bool {
		return digitsPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "genre", func(fl validator.FieldLevel) bool {
		_, ok := CanonicalGenre(fl.Field().String())
		return ok
	})
	mustRegister(v, "password", func(fl validator.FieldLevel) bool {
		return passwordPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "mail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// CanonicalGenre returns the stored spelling of genre, matched ignoring case
// and accents.
func CanonicalGenre(genre string) (string, bool) {
	key := textnorm.Fold(genre)
	for _, g := range domain.Genres {
		if textnorm.Fold(g) == key {
			return g, true
		}
	}
	return "", false
}

// validateStruct trims the conform-tagged strings of v and runs the
// validator, translating violations into an InvalidValue error.
func (s *Service) validateStruct(v any) error {
	if err := conform.Strings(v); err != nil {
		return upstream(err)
	}
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return upstream(err)
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := details[fe.Field()]; seen {
			continue
		}
		details[fe.Field()] = violationMessage(fe)
	}
	return InvalidValue(details)
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return MandatoryMsg
	case "year":
		return YearFormatMsg
	case "minyear":
		return InvalidYearMsg
	case "digits", "number":
		return InvalidNumberMsg
	case "genre":
		return AllowedValuesMsg + ": " + strings.Join(domain.Genres, ", ")
	case "oneof":
		return AllowedValuesMsg + ": " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "password":
		return InvalidPasswordMsg
	case "mail", "email":
		return InvalidEmailMsg
	case "uuid", "uuid4":
		return InvalidIDMsg
	case "max":
		switch fe.Field() {
		case "numCopies":
			return InvalidNumCopiesMsg
		case "rating":
			return InvalidRatingMsg
		}
		return fmt.Sprintf("%s: %s", InvalidNumberMsg, fe.Param())
	case "min":
		if fe.Field() == "rating" {
			return InvalidRatingMsg
		}
		return InvalidNumberMsg
	}
	return fmt.Sprintf("%s (%s)", AllowedValuesMsg, fe.Tag())
}

// checkID accepts only canonical lowercase UUIDs.
func checkID(id string) error {
	parsed, err := uuid.Parse(id)
	if err != nil || parsed.String() != id {
		return newError(KindInvalidIdentifier, "%s", InvalidIDMsg)
	}
	return nil
}

// checkIDs validates every id of a reference set.
func checkIDs(ids []string) error {
	for _, id := range ids {
		if err := checkID(id); err != nil {
			return newError(KindInvalidIdentifier, "%s: %q", InvalidIDMsg, id)
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
