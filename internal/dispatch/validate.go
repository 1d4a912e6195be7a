package dispatch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vovakirdan/arview-server/internal/proto"
)

// Validator decodes command payloads and checks their constraints.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a validator that reports fields by their JSON names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// present: an opaque JSON value that is neither missing nor null.
	_ = v.RegisterValidation("present", func(fl validator.FieldLevel) bool {
		raw, ok := fl.Field().Interface().(json.RawMessage)
		if !ok {
			return false
		}
		trimmed := bytes.TrimSpace(raw)
		return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
	}, true)
	return &Validator{v: v}
}

// Decode unmarshals raw into dst and validates it. A missing payload is
// treated as an empty object so that required fields are reported.
func (v *Validator) Decode(raw json.RawMessage, dst any) *proto.Error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &proto.Error{
				Code:   proto.CodeValidation,
				Msg:    "invalid payload",
				Issues: []proto.Issue{typeIssue(typeErr)},
			}
		}
		return proto.NewError(proto.CodeBadRequest, "malformed payload")
	}

	if err := v.v.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return proto.NewError(proto.CodeInternal, "validation failed")
		}
		issues := make([]proto.Issue, 0, len(verrs))
		for _, fe := range verrs {
			issues = append(issues, fieldIssue(fe))
		}
		return &proto.Error{Code: proto.CodeValidation, Msg: "invalid payload", Issues: issues}
	}
	return nil
}

func typeIssue(e *json.UnmarshalTypeError) proto.Issue {
	path := []string{}
	if e.Field != "" {
		path = strings.Split(e.Field, ".")
	}
	return proto.Issue{
		Path:    path,
		Code:    proto.IssueInvalidType,
		Message: fmt.Sprintf("Expected %s, received %s", jsonKind(e.Type), e.Value),
	}
}

func fieldIssue(fe validator.FieldError) proto.Issue {
	issue := proto.Issue{Path: []string{fe.Field()}}
	switch fe.Tag() {
	case "required", "present":
		issue.Code = proto.IssueInvalidType
		issue.Message = "Required"
	case "gte", "min":
		issue.Code = proto.IssueTooSmall
		issue.Message = "Number must be greater than or equal to " + fe.Param()
	case "lte", "max":
		issue.Code = proto.IssueTooBig
		issue.Message = "Number must be less than or equal to " + fe.Param()
	default:
		issue.Code = proto.IssueCustom
		issue.Message = fmt.Sprintf("failed %q check", fe.Tag())
	}
	return issue
}

func jsonKind(t reflect.Type) string {
	if t == nil {
		return "value"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64, reflect.Int32:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.String:
		return "string"
	case reflect.Struct, reflect.Map:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	}
	return t.Kind().String()
}
