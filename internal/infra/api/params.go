package api

import (
	"fmt"
	"net/http"

	"bytebill/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

func pathString(r *http.Request, name string) (string, error) {
	var v string
	err := runtime.BindStyledParameterWithLocation("simple", false, name, runtime.ParamLocationPath, chi.URLParam(r, name), &v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return v, nil
}

func queryString(r *http.Request, name string) (string, error) {
	var v *string
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

// queryInt binds an optional non-negative integer, capped at ceiling when ceiling > 0.
func queryInt(r *http.Request, name string, def, ceiling int) (int, error) {
	var v *int
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if v == nil {
		return def, nil
	}
	if *v < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidArgument, name)
	}
	if ceiling > 0 && *v > ceiling {
		return ceiling, nil
	}
	return *v, nil
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	var v *bool
	if err := runtime.BindQueryParameter("form", true, false, name, r.URL.Query(), &v); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if v == nil {
		return def, nil
	}
	return *v, nil
}
