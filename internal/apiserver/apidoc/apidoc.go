// Package apidoc builds the OpenAPI document served at /api/docs/openapi.json
// from the same route table the router registers.
package apidoc

import (
	"fmt"
	"net/http"
	"reflect"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"
)

// Access is the authentication a route requires
type Access int

const (
	Public Access = iota
	OptionalAuth
	Authenticated
)

const bearerScheme = "bearerAuth"

var pathParam = regexp.MustCompile(`:(\w+)`)

// Route documents one endpoint
type Route struct {
	Method  string
	Path    string // gin syntax, e.g. /api/data/regions/:id
	Tag     string
	Summary string
	Access  Access
	Roles   []string
	Body    any // zero value of the JSON request type
	Query   any // zero value of the form-tagged query type
	Status  int // success status, 200 when zero
}

// Build assembles an OpenAPI 3 document for routes
func Build(title, version string, routes []Route) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:   title,
			Version: version,
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{},
			SecuritySchemes: openapi3.SecuritySchemes{
				bearerScheme: &openapi3.SecuritySchemeRef{Value: openapi3.NewJWTSecurityScheme()},
			},
		},
	}

	for _, r := range routes {
		op, err := operation(doc, r)
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", r.Method, r.Path, err)
		}
		doc.AddOperation(pathParam.ReplaceAllString(r.Path, "{$1}"), r.Method, op)
	}
	return doc, nil
}

func operation(doc *openapi3.T, r Route) (*openapi3.Operation, error) {
	op := openapi3.NewOperation()
	op.Summary = r.Summary
	op.OperationID = operationID(r)
	if r.Tag != "" {
		op.Tags = []string{r.Tag}
	}

	for _, m := range pathParam.FindAllStringSubmatch(r.Path, -1) {
		op.AddParameter(openapi3.NewPathParameter(m[1]).WithSchema(openapi3.NewStringSchema()))
	}
	if r.Query != nil {
		for _, p := range queryParameters(reflect.TypeOf(r.Query)) {
			op.AddParameter(p)
		}
	}

	if r.Body != nil {
		ref, err := openapi3gen.NewSchemaRefForValue(r.Body, doc.Components.Schemas)
		if err != nil {
			return nil, err
		}
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref),
		}
	}

	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	responses := []openapi3.NewResponsesOption{
		openapi3.WithStatus(status, &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(http.StatusText(status))}),
		openapi3.WithStatus(http.StatusBadRequest, errorResponse("Validation failed")),
	}
	switch r.Access {
	case Authenticated:
		op.Security = openapi3.NewSecurityRequirements().With(openapi3.NewSecurityRequirement().Authenticate(bearerScheme))
		responses = append(responses, openapi3.WithStatus(http.StatusUnauthorized, errorResponse("Missing, invalid or expired token")))
		if len(r.Roles) > 0 {
			op.Description = "Requires role: " + strings.Join(r.Roles, ", ")
			responses = append(responses, openapi3.WithStatus(http.StatusForbidden, errorResponse("Role not permitted")))
		}
	case OptionalAuth:
		op.Security = openapi3.NewSecurityRequirements().
			With(openapi3.NewSecurityRequirement()).
			With(openapi3.NewSecurityRequirement().Authenticate(bearerScheme))
	}
	op.Responses = openapi3.NewResponses(responses...)
	return op, nil
}

func errorResponse(desc string) *openapi3.ResponseRef {
	return &openapi3.ResponseRef{Value: openapi3.NewResponse().WithDescription(desc)}
}

// queryParameters reads form tags, descending into embedded structs
func queryParameters(t reflect.Type) []*openapi3.Parameter {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var params []*openapi3.Parameter
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			params = append(params, queryParameters(f.Type)...)
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			continue
		}
		params = append(params, openapi3.NewQueryParameter(name).WithSchema(scalarSchema(f.Type)))
	}
	return params
}

func scalarSchema(t reflect.Type) *openapi3.Schema {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return openapi3.NewBoolSchema()
	case reflect.Int, reflect.Int32, reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return openapi3.NewIntegerSchema()
	case reflect.Float32, reflect.Float64:
		return openapi3.NewFloat64Schema()
	default:
		return openapi3.NewStringSchema()
	}
}

func operationID(r Route) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(r.Method))
	for _, part := range strings.Split(r.Path, "/") {
		part = strings.TrimPrefix(part, ":")
		if part == "" || part == "api" {
			continue
		}
		for _, word := range strings.Split(part, "-") {
			if word == "" {
				continue
			}
			b.WriteString(strings.ToUpper(word[:1]) + word[1:])
		}
	}
	return b.String()
}
