package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/R3E-Network/quietmap/internal/app/services/places"
	svcerrors "github.com/R3E-Network/quietmap/internal/errors"
)

// createPlaceInput is the wire form of a createPlace call. Pointer fields
// distinguish an omitted key from a zero value.
type createPlaceInput struct {
	Name        *string  `json:"name" validate:"required,min=1"`
	Description *string  `json:"description"`
	Latitude    *float64 `json:"latitude" validate:"required"`
	Longitude   *float64 `json:"longitude" validate:"required"`

	IsStudying        *bool `json:"isStudying"`
	IsDimlyLit        *bool `json:"isDimlyLit"`
	HasOutlets        *bool `json:"hasOutlets"`
	HasWifi           *bool `json:"hasWifi"`
	IsPremium         *bool `json:"isPremium"`
	HasErgonomicChair *bool `json:"hasErgonomicChair"`
}

func (in createPlaceInput) params() places.CreatePlaceParams {
	return places.CreatePlaceParams{
		Name:              *in.Name,
		Description:       in.Description,
		Latitude:          *in.Latitude,
		Longitude:         *in.Longitude,
		IsStudying:        in.IsStudying,
		IsDimlyLit:        in.IsDimlyLit,
		HasOutlets:        in.HasOutlets,
		HasWifi:           in.HasWifi,
		IsPremium:         in.IsPremium,
		HasErgonomicChair: in.HasErgonomicChair,
	}
}

type addMeasurementInput struct {
	PlaceID *string  `json:"placeId" validate:"required,placeid"`
	Value   *float64 `json:"value" validate:"required"`
}

func (in addMeasurementInput) params() places.AddMeasurementParams {
	return places.AddMeasurementParams{PlaceID: *in.PlaceID, Value: *in.Value}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	// Canonical 8-4-4-4-12 form, any case.
	_ = v.RegisterValidation("placeid", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if len(s) != 36 {
			return false
		}
		_, err := uuid.Parse(s)
		return err == nil
	})
	return v
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// decodeInput parses raw into a T and validates it. Keys must match the json
// tags exactly; any other key is ignored. Every problem found is returned as
// one ValidationError listing the offending fields in declaration order.
func decodeInput[T any](raw json.RawMessage) (T, error) {
	var in T

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return in, svcerrors.Validation(svcerrors.Issue{Path: "", Message: "Required"})
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return in, svcerrors.Validation(svcerrors.Issue{Path: "", Message: "Expected object, received null"})
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return in, svcerrors.Validation(svcerrors.Issue{Path: "", Message: "Invalid JSON"})
		}
		return in, svcerrors.Validation(svcerrors.Issue{
			Path:    "",
			Message: fmt.Sprintf("Expected object, received %s", receivedName(typeErr.Value)),
		})
	}

	byField := assignFields(&in, fields)

	if err := validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return in, svcerrors.Internal(err)
		}
		for _, fe := range fieldErrs {
			if _, mistyped := byField[fe.Field()]; mistyped {
				continue
			}
			byField[fe.Field()] = svcerrors.Issue{Path: fe.Field(), Message: issueMessage(fe)}
		}
	}

	if len(byField) == 0 {
		return in, nil
	}
	t := reflect.TypeOf(in)
	issues := make([]svcerrors.Issue, 0, len(byField))
	for i := 0; i < t.NumField(); i++ {
		if issue, ok := byField[jsonName(t.Field(i))]; ok {
			issues = append(issues, issue)
		}
	}
	return in, svcerrors.Validation(issues...)
}

// assignFields decodes each exactly named key of fields into the matching
// field of dst, a pointer to struct. A value of the wrong type leaves the
// field unset and is reported under the field's name.
func assignFields(dst any, fields map[string]json.RawMessage) map[string]svcerrors.Issue {
	issues := map[string]svcerrors.Issue{}
	v := reflect.ValueOf(dst).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := jsonName(t.Field(i))
		value, ok := fields[name]
		if name == "" || !ok {
			continue
		}
		field := v.Field(i)
		if err := json.Unmarshal(value, field.Addr().Interface()); err != nil {
			field.Set(reflect.Zero(field.Type()))
			message := "Invalid input"
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				message = fmt.Sprintf("Expected %s, received %s", jsonTypeName(field.Type()), receivedName(typeErr.Value))
			}
			issues[name] = svcerrors.Issue{Path: name, Message: message}
		}
	}
	return issues
}

func issueMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Required"
	case "min":
		return fmt.Sprintf("String must contain at least %s character(s)", fe.Param())
	case "placeid":
		return "Invalid uuid"
	default:
		return fmt.Sprintf("Failed %s validation", fe.Tag())
	}
}

// receivedName normalises the JSON kind reported by encoding/json, which may
// carry the literal after the kind ("number 1e999").
func receivedName(value string) string {
	kind, _, _ := strings.Cut(value, " ")
	if kind == "bool" {
		return "boolean"
	}
	return kind
}

func jsonTypeName(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64, reflect.Int32:
		return "number"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return t.Kind().String()
	}
}
