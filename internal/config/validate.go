package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"

	"github.com/rshade/finboard/internal/engine/bulk"
)

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

var rgbHex = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`) //nolint:gochecknoglobals // Compiled once.

//nolint:gochecknoglobals // validator caches struct metadata; build it once.
var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(yamlFieldName)
		registerFn("semver_constraint", semverConstraintValidator)(v)
		registerFn("grade", gradeValidator)(v)
		registerFn("tier", tierValidator)(v)
		registerFn("rgbhex", rgbHexValidator)(v)
		validate = v
	})
	return validate
}

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) func(v *validator.Validate) {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

// Validate checks every section. All violations are reported in one error.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// describe renders a field error as "section.field: reason".
func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + ": is required"
	case "url":
		return field + ": must be an absolute URL"
	case "min", "gte":
		return fmt.Sprintf("%s: must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s: must be at most %s", field, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s: must not exceed %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s: must be one of [%s]", field, fe.Param())
	case "startswith":
		return fmt.Sprintf("%s: must start with %q", field, fe.Param())
	case "semver_constraint":
		return field + ": is not a valid version constraint"
	case "grade":
		return fmt.Sprintf("%s: unknown grade %v (use S, A, B or C)", field, fe.Value())
	case "tier":
		return fmt.Sprintf("%s: unknown tier %v (use tier1, tier2, tier3 or none)", field, fe.Value())
	case "rgbhex":
		return fmt.Sprintf("%s: %q is not a #RRGGBB color", field, fe.Value())
	default:
		return fmt.Sprintf("%s: failed %s validation", field, fe.Tag())
	}
}

func yamlFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0] //nolint:mnd // name,options
	if name == "-" || name == "" {
		return f.Name
	}
	return name
}

func semverConstraintValidator(fl validator.FieldLevel) bool {
	_, err := semver.NewConstraint(fl.Field().String())
	return err == nil
}

func gradeValidator(fl validator.FieldLevel) bool {
	return bulk.ParseGrade(fl.Field().String()) != bulk.GradeNone
}

func tierValidator(fl validator.FieldLevel) bool {
	_, ok := bulk.ParseTier(fl.Field().String())
	return ok
}

func rgbHexValidator(fl validator.FieldLevel) bool {
	return rgbHex.MatchString(fl.Field().String())
}
