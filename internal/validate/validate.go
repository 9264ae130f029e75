// Package validate checks request bodies against embedded JSON Schemas.
//
// WHERE VALIDATION LIVES:
// The schemas here check shape: required keys, types, lengths, enums and the
// slug pattern. Business rules that need state (is the slug taken? does the
// parent comment belong to this post?) stay in the service layer. Handlers
// call Decode first, then hand the typed struct to a service.
package validate

import (
	"embed"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kaptinlin/jsonschema"

	"github.com/sakif/portfolio/internal/apperror"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema names one embedded schema file (without the .json suffix).
type Schema string

const (
	PostCreate    Schema = "post_create"
	PostUpdate    Schema = "post_update"
	ProjectCreate Schema = "project_create"
	ProjectUpdate Schema = "project_update"
	Subscribe     Schema = "subscribe"
	Unsubscribe   Schema = "unsubscribe"
	Contact       Schema = "contact"
	Comment       Schema = "comment"
	Profile       Schema = "profile"
	ContactRead   Schema = "contact_read"
)

var allSchemas = []Schema{
	PostCreate, PostUpdate, ProjectCreate, ProjectUpdate,
	Subscribe, Unsubscribe, Contact, Comment, Profile, ContactRead,
}

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[Schema]*jsonschema.Schema
}

// New compiles every embedded schema. A broken schema is a programming
// error, so the server refuses to start rather than failing per request.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	v := &Validator{schemas: make(map[Schema]*jsonschema.Schema, len(allSchemas))}

	for _, name := range allSchemas {
		data, err := schemaFS.ReadFile("schemas/" + string(name) + ".json")
		if err != nil {
			return nil, fmt.Errorf("validate: reading schema %s: %w", name, err)
		}
		schema, err := compiler.Compile(data)
		if err != nil {
			return nil, fmt.Errorf("validate: compiling schema %s: %w", name, err)
		}
		v.schemas[name] = schema
	}
	return v, nil
}

// Decode validates body against the named schema and, if it passes,
// unmarshals it into dst. Failures are *apperror.AppError validation errors
// with one Detail per failed keyword.
func (v *Validator) Decode(name Schema, body []byte, dst any) error {
	schema, ok := v.schemas[name]
	if !ok {
		return fmt.Errorf("validate: unknown schema %q", name)
	}

	var instance any
	if err := json.Unmarshal(body, &instance); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON in request body")
	}

	result := schema.Validate(instance)
	if !result.IsValid() {
		return apperror.InvalidRequest("Invalid request data", details(result.Errors))
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON in request body")
	}
	return nil
}

// details flattens the evaluation errors into a stable, sorted list.
func details[E error](errs map[string]E) []apperror.Detail {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]apperror.Detail, 0, len(keys))
	for _, k := range keys {
		out = append(out, apperror.Detail{Field: k, Message: errs[k].Error()})
	}
	return out
}
