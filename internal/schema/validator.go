package schema

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kazz187/delegate/pkg/cerr"
)

const maxReportedErrors = 3

// Validator checks request payloads against JSON schemas. Compiled schemas
// are cached by their source text.
type Validator struct {
	cache sync.Map // map[string]*gojsonschema.Schema
}

func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks doc, marshalled as JSON, against schemaJSON. A mismatch is
// an InvalidArgument error carrying one violation per schema error.
func (v *Validator) Validate(schemaJSON string, doc any) error {
	s, err := v.compile(schemaJSON)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("invalid schema definition: %w", err))
	}

	result, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return cerr.NewError(cerr.InvalidArgument, "request is not valid JSON", err)
	}
	if result.Valid() {
		return nil
	}

	errs := result.Errors()
	msgs := make([]string, 0, len(errs))
	for _, desc := range errs {
		msgs = append(msgs, desc.String())
	}
	e := cerr.NewError(cerr.InvalidArgument, "invalid request: "+summarize(msgs), nil)
	for _, desc := range errs {
		_ = e.AddDetailMessageWithCode(desc.String(), desc.Type())
	}
	return e
}

func (v *Validator) compile(schemaJSON string) (*gojsonschema.Schema, error) {
	if val, ok := v.cache.Load(schemaJSON); ok {
		return val.(*gojsonschema.Schema), nil
	}
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, err
	}
	v.cache.Store(schemaJSON, s)
	return s, nil
}

func summarize(msgs []string) string {
	if len(msgs) <= maxReportedErrors {
		return strings.Join(msgs, "; ")
	}
	return fmt.Sprintf("%s ... and %d more", strings.Join(msgs[:maxReportedErrors], "; "), len(msgs)-maxReportedErrors)
}
