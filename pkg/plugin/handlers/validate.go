package handlers

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
)

var units = map[string]string{
	"width":       " mm",
	"height":      " mm",
	"radius":      " mm",
	"distance":    " mm",
	"start_angle": " rad",
	"end_angle":   " rad",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// bind fills target from params and validates it. A non-empty message means
// the request was rejected and should be answered with it.
func (t *Table) bind(params map[string]any, target any) string {
	if err := protocol.ParseParams(params, target); err != nil {
		return fmt.Sprintf("Invalid parameters: %v", err)
	}
	if err := t.validate.Struct(target); err != nil {
		return validationMessage(err)
	}
	return ""
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Sprintf("Validation error: %v", err)
	}

	fe := verrs[0]
	field := fe.Field()
	switch {
	case field == "sketch_name" && fe.Tag() == "required":
		return "Sketch name not specified"
	case field == "sides" && fe.Tag() == "gte":
		return "Polygon must have at least 3 sides"
	case field == "plane" && fe.Tag() == "oneof":
		return fmt.Sprintf("Unsupported plane: %v", fe.Value())
	case fe.Tag() == "gte":
		return fmt.Sprintf("Parameter %s must be >= %s%s", field, fe.Param(), units[field])
	case fe.Tag() == "lte":
		return fmt.Sprintf("Parameter %s must be <= %s%s", field, fe.Param(), units[field])
	case fe.Tag() == "oneof":
		return fmt.Sprintf("Parameter %s must be one of: %s", field, fe.Param())
	case fe.Tag() == "required":
		return fmt.Sprintf("Parameter %s is required", field)
	default:
		return fmt.Sprintf("Parameter %s failed %s validation", field, fe.Tag())
	}
}
