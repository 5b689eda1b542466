// Package openapi provides the embedded OpenAPI specification for the REST
// transport layer, served by pkg/swagger's UI handler.
package openapi

import (
	_ "embed"
	"errors"
)

//go:embed slograph.json
var specBytes []byte

// ErrEmptySpec indicates the embedded specification is empty.
var ErrEmptySpec = errors.New("openapi: embedded specification is empty")

// GetSpec returns the raw OpenAPI specification as bytes.
func GetSpec() ([]byte, error) {
	if len(specBytes) == 0 {
		return nil, ErrEmptySpec
	}
	return specBytes, nil
}

// MustGetSpec returns the specification or panics on error.
func MustGetSpec() []byte {
	spec, err := GetSpec()
	if err != nil {
		panic(err)
	}
	return spec
}
