// Package validate wraps go-playground/validator with English messages.
//
// Field names in messages come from the form, json or mapstructure tag, so a
// config error reads "backend.url is a required field" and a form error
// names the input the user typed into.
//
// A top-level field may carry a msg tag. When that field fails any rule the
// msg text is reported instead of the generated one:
//
//	CreditCost uint64 `form:"creditCost" validate:"min=1,max=10" msg:"Credit cost must be between 1 and 10"`
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/sakif/skillswap/internal/apperror"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// Validator is safe for concurrent use; build one and share it.
type Validator struct {
	core  *validator.Validate
	trans ut.Translator
}

// New creates a Validator with English translations registered.
func New() *Validator {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		panic(fmt.Sprintf("validate: registering translations: %v", err))
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, key := range []string{"form", "json", "mapstructure"} {
			name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return fld.Name
	})
	return &Validator{core: v, trans: trans}
}

// Fields validates s and returns every failed rule, in field order.
func (v *Validator) Fields(s any) []FieldError {
	return v.collect(s, v.core.Struct(s))
}

func (v *Validator) collect(s any, err error) []FieldError {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Message: err.Error()}}
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field:   trimTop(fe.Namespace()),
			Message: v.message(s, fe),
		})
	}
	return out
}

// Struct validates s and returns the first failure as an apperror
// validation error, or nil.
func (v *Validator) Struct(s any) error {
	return first(v.Fields(s))
}

// StructExcept is Struct with the named top-level fields skipped.
// Field names are Go field names.
func (v *Validator) StructExcept(s any, fields ...string) error {
	return first(v.collect(s, v.core.StructExcept(s, fields...)))
}

func first(fields []FieldError) error {
	if len(fields) == 0 {
		return nil
	}
	return apperror.ValidationFailed(fields[0].Field, fields[0].Message)
}

func (v *Validator) message(s any, fe validator.FieldError) string {
	// Only top-level fields ("Type.Field") are looked up for a msg tag.
	if strings.Count(fe.StructNamespace(), ".") == 1 {
		t := reflect.TypeOf(s)
		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if f, ok := t.FieldByName(fe.StructField()); ok {
			if msg := f.Tag.Get("msg"); msg != "" {
				return msg
			}
		}
	}
	return fe.Translate(v.trans)
}

// trimTop drops the struct type name: "Config.backend.url" → "backend.url".
func trimTop(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}
