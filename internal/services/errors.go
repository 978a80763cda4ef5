package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/chachabrian/mooveit-booking/internal/apperrors"
	"github.com/chachabrian/mooveit-booking/internal/repository"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// validateStruct runs the validate tags and reports the first failure.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		switch fe.Tag() {
		case "required":
			return apperrors.Validation(fe.Field(), "is required")
		case "min", "gte":
			return apperrors.Validation(fe.Field(), "must be at least "+fe.Param())
		case "max", "lte":
			return apperrors.Validation(fe.Field(), "must be at most "+fe.Param())
		case "oneof":
			return apperrors.Validation(fe.Field(), "must be one of: "+fe.Param())
		}
		return apperrors.Validation(fe.Field(), fmt.Sprintf("failed %s validation", fe.Tag()))
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err)
}

// storeError passes business errors through and classifies everything else as
// a store failure, retryable when the caller may repeat the operation.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrSerialization), errors.Is(err, context.DeadlineExceeded):
		return apperrors.Store(err, true)
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.Wrap(apperrors.ErrNotFound, err)
	}
	return apperrors.Store(err, false)
}

// notFound maps a repository miss onto a named NotFound error.
func notFound(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource)
	}
	return err
}
