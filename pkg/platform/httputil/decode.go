package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	dErrors "warden/pkg/domain-errors"
	"warden/pkg/requestcontext"
)

// MaxBodyBytes caps every decoded request body.
const MaxBodyBytes = 64 << 10

// Preparable bodies parse derived values once tag validation has passed.
type Preparable interface {
	Prepare() error
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// snowflake accepts a positive decimal platform id.
	_ = v.RegisterValidation("snowflake", func(fl validator.FieldLevel) bool {
		n, err := strconv.ParseUint(fl.Field().String(), 10, 64)
		return err == nil && n > 0
	})
	return v
}

// DecodeAndPrepare decodes a JSON body into T, validates its tags and runs
// Prepare when T implements Preparable. On failure the error response has
// already been written and ok is false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()
	var req T

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid json payload"))
		return nil, false
	}

	if err := validate.StructCtx(ctx, &req); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, validationMessage(err)))
		return nil, false
	}

	if p, ok := any(&req).(Preparable); ok {
		if err := p.Prepare(); err != nil {
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}

func validationMessage(err error) string {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) || len(fields) == 0 {
		return "invalid request"
	}
	fe := fields[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "snowflake":
		return fe.Field() + " must be a numeric id"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
