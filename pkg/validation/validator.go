// Package validation holds the opt-in strict checks for write batches and the
// configuration validator.
//
// Batch validation is never applied by writebatch.Builder itself; the client
// runs it only when strict validation is configured.
package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/dd0wney/cluso-graphwriter/pkg/writebatch"
)

// ErrInvalidBatch is wrapped by every batch validation failure.
var ErrInvalidBatch = errors.New("invalid batch")

var (
	validate *validator.Validate

	labelPattern   = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	propKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

func init() {
	validate = validator.New()
	validate.RegisterValidation("graphlabel", func(fl validator.FieldLevel) bool {
		return labelPattern.MatchString(fl.Field().String())
	})
	validate.RegisterValidation("propkey", func(fl validator.FieldLevel) bool {
		return propKeyPattern.MatchString(fl.Field().String())
	})
}

// Limits bounds the size of a strictly validated batch.
type Limits struct {
	MaxBatchSize   int
	MaxLabelLength int
	MaxIDLength    int
	MaxProperties  int
	MaxValueLength int
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{
		MaxBatchSize:   10000,
		MaxLabelLength: 128,
		MaxIDLength:    256,
		MaxProperties:  100,
		MaxValueLength: 64 * 1024,
	}
}

type batchCheck struct {
	ClientID string `validate:"required"`
}

type vertexKeyCheck struct {
	Label string `validate:"required,graphlabel"`
	ID    string `validate:"required"`
}

type edgeKeyCheck struct {
	Label string `validate:"required,graphlabel"`
}

type propertiesCheck struct {
	Properties map[string]string `validate:"dive,keys,propkey,endkeys"`
}

// ValidateBatch checks req against limits. The first problem found is
// returned, prefixed with the offending write request index.
func ValidateBatch(req writebatch.BatchRequest, limits Limits) error {
	if err := validate.Struct(batchCheck{ClientID: req.ClientID}); err != nil {
		return invalid("batch", formatValidationError(err))
	}
	if limits.MaxBatchSize > 0 && req.Len() > limits.MaxBatchSize {
		return invalid("batch", fmt.Errorf("size %d exceeds maximum %d", req.Len(), limits.MaxBatchSize))
	}

	for i, wr := range req.WriteRequests {
		where := fmt.Sprintf("write request %d", i)
		if wr.WriteType != writebatch.WriteTypeInsert {
			return invalid(where, fmt.Errorf("unsupported write type %s", wr.WriteType))
		}
		if err := validateRecord(wr.DataRecord, limits); err != nil {
			return invalid(where, err)
		}
	}
	return nil
}

func validateRecord(r writebatch.DataRecord, limits Limits) error {
	switch key := r.Key.(type) {
	case writebatch.VertexKey:
		if err := validateVertexKey(key, limits); err != nil {
			return err
		}
	case writebatch.EdgeKey:
		if err := validate.Struct(edgeKeyCheck{Label: key.Label}); err != nil {
			return formatValidationError(err)
		}
		if err := checkLength("Label", key.Label, limits.MaxLabelLength); err != nil {
			return err
		}
		if err := validateVertexKey(key.Src, limits); err != nil {
			return fmt.Errorf("src: %w", err)
		}
		if err := validateVertexKey(key.Dst, limits); err != nil {
			return fmt.Errorf("dst: %w", err)
		}
	default:
		return errors.New("record has no key")
	}

	if limits.MaxProperties > 0 && len(r.Properties) > limits.MaxProperties {
		return fmt.Errorf("Properties: maximum %d properties allowed, got %d", limits.MaxProperties, len(r.Properties))
	}
	if err := validate.Struct(propertiesCheck{Properties: r.Properties}); err != nil {
		return formatValidationError(err)
	}
	for k, v := range r.Properties {
		if err := checkLength("Properties["+k+"]", v, limits.MaxValueLength); err != nil {
			return err
		}
	}
	return nil
}

func validateVertexKey(k writebatch.VertexKey, limits Limits) error {
	if err := validate.Struct(vertexKeyCheck{Label: k.Label, ID: k.ID}); err != nil {
		return formatValidationError(err)
	}
	if err := checkLength("Label", k.Label, limits.MaxLabelLength); err != nil {
		return err
	}
	return checkLength("ID", k.ID, limits.MaxIDLength)
}

func checkLength(field, value string, max int) error {
	if max > 0 && len(value) > max {
		return fmt.Errorf("%s: exceeds maximum length of %d characters", field, max)
	}
	return nil
}

func invalid(where string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidBatch, where, err)
}

// formatValidationError reports the first validator failure in a short form
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return err
	}

	e := validationErrs[0]
	field := e.Field()
	switch e.Tag() {
	case "required":
		return fmt.Errorf("%s: field is required", field)
	case "graphlabel":
		return fmt.Errorf("%s: %q contains invalid characters (only alphanumeric and underscore allowed)", field, e.Value())
	case "propkey":
		return fmt.Errorf("property key %q is invalid (must start with letter or underscore, followed by alphanumeric or underscore)", e.Value())
	default:
		return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
	}
}
