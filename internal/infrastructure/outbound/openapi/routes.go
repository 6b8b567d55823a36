// Package openapi loads the contract document and derives the route table
// the mock serves from.
package openapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	"github.com/sophialabs/contractmock/internal/infrastructure/ports"
	"github.com/sophialabs/contractmock/internal/infrastructure/services"
)

// maxSchemaDepth bounds example synthesis over recursive schemas.
const maxSchemaDepth = 8

// Table matches incoming requests against the operations of a validated
// OpenAPI document. Immutable after Load.
type Table struct {
	doc    *openapi3.T
	router routers.Router
	routes map[string]*services.Route
}

// Load reads, validates, and indexes the OpenAPI document at path.
func Load(path string, logger ports.Logger) (*Table, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document %s: %w", path, err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to build route table: %w", err)
	}

	t := &Table{
		doc:    doc,
		router: router,
		routes: make(map[string]*services.Route),
	}
	for pathTmpl, item := range doc.Paths.Map() {
		for method, op := range item.Operations() {
			t.routes[method+" "+pathTmpl] = &services.Route{
				Method:    method,
				Path:      pathTmpl,
				RawPath:   pathTmpl,
				Responses: buildResponses(op),
			}
		}
	}

	logger.Info("openapi document loaded",
		"file", path, "title", doc.Info.Title, "routes", len(t.routes))
	return t, nil
}

// Match resolves the request to a documented operation. ok is false for
// undocumented paths or methods.
func (t *Table) Match(r *http.Request) (*services.Route, bool) {
	route, _, err := t.router.FindRoute(r)
	if err != nil {
		return nil, false
	}
	rt, ok := t.routes[route.Method+" "+route.Path]
	return rt, ok
}

// Len returns the number of documented operations.
func (t *Table) Len() int {
	return len(t.routes)
}

func buildResponses(op *openapi3.Operation) map[int]services.DefaultResponse {
	out := make(map[int]services.DefaultResponse)
	if op.Responses == nil {
		return out
	}
	for code, ref := range op.Responses.Map() {
		status, err := strconv.Atoi(code)
		if err != nil {
			// "default" and range keys like "5XX" carry no concrete status.
			continue
		}
		if ref.Value == nil {
			continue
		}
		out[status] = services.DefaultResponse{Body: exampleBody(ref.Value)}
	}
	return out
}

// exampleBody picks the documented JSON example for a response: the media
// type example first, then the alphabetically-first named example, then a
// value synthesized from the schema.
func exampleBody(resp *openapi3.Response) any {
	mt := resp.Content.Get("application/json")
	if mt == nil {
		return nil
	}
	if mt.Example != nil {
		return mt.Example
	}
	if len(mt.Examples) > 0 {
		names := make([]string, 0, len(mt.Examples))
		for name := range mt.Examples {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if ex := mt.Examples[name]; ex != nil && ex.Value != nil && ex.Value.Value != nil {
				return ex.Value.Value
			}
		}
	}
	if mt.Schema != nil {
		return schemaValue(mt.Schema.Value, 0)
	}
	return nil
}

func schemaValue(s *openapi3.Schema, depth int) any {
	if s == nil || depth > maxSchemaDepth {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}
	if s.Default != nil {
		return s.Default
	}
	for _, ref := range s.AllOf {
		if v := schemaValue(ref.Value, depth+1); v != nil {
			return v
		}
	}
	for _, refs := range [][]*openapi3.SchemaRef{s.OneOf, s.AnyOf} {
		for _, ref := range refs {
			if v := schemaValue(ref.Value, depth+1); v != nil {
				return v
			}
		}
	}

	switch {
	case s.Type.Is("object"):
		obj := make(map[string]any, len(s.Properties))
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			obj[name] = schemaValue(s.Properties[name].Value, depth+1)
		}
		return obj
	case s.Type.Is("array"):
		if s.Items == nil {
			return []any{}
		}
		return []any{schemaValue(s.Items.Value, depth+1)}
	case s.Type.Is("string"):
		if len(s.Enum) > 0 {
			return s.Enum[0]
		}
		switch s.Format {
		case "date-time":
			return "1970-01-01T00:00:00Z"
		case "date":
			return "1970-01-01"
		case "uuid":
			return "00000000-0000-0000-0000-000000000000"
		}
		return "string"
	case s.Type.Is("integer"):
		return 0
	case s.Type.Is("number"):
		return 0.0
	case s.Type.Is("boolean"):
		return false
	}
	return nil
}
