// Package validate holds the client-side checks run before a submission
// is sent. A failed check never reaches the network. Rules live in the
// validate struct tags of the domain types.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/mmcdole/folio/internal/domain"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// labels name fields at the start of a message
var labels = map[string]string{
	"emailOrUsername": "Email or username",
}

// overrides replace the generated message for a field and tag
var overrides = map[string]string{
	"technologies.anynotblank": "At least one technology is required",
}

var v = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	mustRegister(v, "slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "anynotblank", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		for i := range field.Len() {
			if strings.TrimSpace(field.Index(i).String()) != "" {
				return true
			}
		}
		return false
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validate: register %q: %v", tag, err))
	}
}

// check runs the tag rules on s and converts failures to domain errors
func check(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(domain.ValidationErrors, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = domain.ValidationError{Field: fe.Field(), Message: message(fe)}
	}
	return out
}

func message(fe validator.FieldError) string {
	if msg, ok := overrides[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}

	label := labels[fe.Field()]
	if label == "" {
		label = capitalize(fe.Field())
	}

	switch fe.Tag() {
	case "required", "notblank":
		return label + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "http_url":
		return "Must be a valid http(s) URL"
	case "slug":
		return "Slug may only contain lowercase letters, digits and dashes"
	default:
		return label + " is invalid"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// Skill checks a skill before create or update
func Skill(s domain.Skill) error {
	return check(s)
}

// Project checks a project before create or update
func Project(p domain.Project) error {
	return check(p)
}

// Post checks a blog post before create or update
func Post(p domain.Post) error {
	return check(p)
}

// Activity checks a feed entry before it is logged
func Activity(a domain.Activity) error {
	return check(a)
}

type credentials struct {
	EmailOrUsername string `json:"emailOrUsername" validate:"notblank"`
	Password        string `json:"password" validate:"required"`
}

// Login checks credentials before they are sent
func Login(emailOrUsername, password string) error {
	return check(credentials{EmailOrUsername: emailOrUsername, Password: password})
}

// Slugify derives a URL slug from a title: "Hello, World!" -> "hello-world"
func Slugify(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}
