package definition

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/graph"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// identifierPattern keeps names unambiguous inside {{name.output}} placeholders
// and safe as file names.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared validator with stepgraph's rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = validate.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
			return identifierPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// IsIdentifier reports whether s is a valid workflow or step name.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Check applies field-level rules to def without building its graph.
func Check(def *types.WorkflowDefinition) error {
	v := Validator()
	var verrs serrors.ValidationErrors

	if err := v.Var(def.Name, "required,identifier"); err != nil {
		addFieldErrors(&verrs, "", "name", err)
	}
	for i := range def.Steps {
		s := &def.Steps[i]
		if err := v.Struct(s); err != nil {
			label := s.Name
			if label == "" {
				label = fmt.Sprintf("steps[%d]", i)
			}
			addFieldErrors(&verrs, label, "", err)
		}
	}
	return verrs.Err()
}

// Validate checks field rules and the dependency graph, returning the layers.
func Validate(def *types.WorkflowDefinition, opts graph.Options) ([][]string, error) {
	if err := Check(def); err != nil {
		return nil, err
	}
	return graph.Validate(def, opts)
}

// addFieldErrors converts validator errors. field names the value when err
// comes from Var, which carries no field name of its own.
func addFieldErrors(verrs *serrors.ValidationErrors, step, field string, err error) {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		verrs.Add(serrors.InvalidField(step, "definition", err.Error()))
		return
	}
	for _, fe := range fieldErrs {
		name := fe.Field()
		if name == "" {
			name = field
		}
		verrs.Add(serrors.InvalidField(step, name, describe(fe)))
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "identifier":
		return fmt.Sprintf("%q must start with a letter or digit and contain only letters, digits, '-' and '_'", fe.Value())
	case "min":
		return "must be at least " + fe.Param()
	default:
		return fmt.Sprintf("failed %q rule", fe.Tag())
	}
}
