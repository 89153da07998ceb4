// Package forms describes the fields of the auth forms and validates what the
// browser submitted. Fields are keyed by their label, which is also the input
// name on the page.
package forms

import (
	"net/http"
	"regexp"
	"sync"

	"github.com/go-playground/validator/v10"
)

// FieldType is the HTML input type of a field.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeEmail    FieldType = "email"
	TypePassword FieldType = "password"
)

// MinPasswordLength is the shortest password accepted by the forms.
const MinPasswordLength = 6

// Field describes one form input.
type Field struct {
	Label       string
	Type        FieldType
	Required    bool
	Placeholder string
}

// Name is the form key of the field.
func (f Field) Name() string {
	return f.Label
}

// Values holds submitted values keyed by field label.
type Values map[string]string

// Errors holds one message per field label.
type Errors map[string]string

// Get returns the message for label, or "".
func (e Errors) Get(label string) string {
	return e[label]
}

// Has reports whether label has a message.
func (e Errors) Has(label string) bool {
	_, ok := e[label]
	return ok
}

const emailTag = "loose_email"

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		_ = v.RegisterValidation(emailTag, func(fl validator.FieldLevel) bool {
			return emailPattern.MatchString(fl.Field().String())
		})
		validate = v
	})
	return validate
}

// ValuesFromRequest reads the fields' values from a submitted form.
func ValuesFromRequest(r *http.Request, fields []Field) (Values, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	values := make(Values, len(fields))
	for _, f := range fields {
		values[f.Name()] = r.PostFormValue(f.Name())
	}
	return values, nil
}

// Validate checks values against fields. Rules run in order for each field and
// a later failing rule replaces an earlier message for the same label.
func Validate(fields []Field, values Values) Errors {
	v := getValidator()
	errs := Errors{}
	for _, f := range fields {
		value := values[f.Name()]

		if f.Required && v.Var(value, "required") != nil {
			errs[f.Label] = f.Label + " is required"
		}
		if value == "" {
			continue
		}
		switch f.Type {
		case TypeEmail:
			if v.Var(value, emailTag) != nil {
				errs[f.Label] = "Invalid email address"
			}
		case TypePassword:
			if v.Var(value, "min=6") != nil {
				errs[f.Label] = "Password must be at least 6 characters long"
			}
		}
	}
	return errs
}
