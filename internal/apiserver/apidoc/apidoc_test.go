package apidoc

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleQuery struct {
	State string `form:"state"`
	Year  int    `form:"year"`
	Page
}

type Page struct {
	Limit int `form:"limit"`
}

type sampleBody struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

func TestBuild(t *testing.T) {
	doc, err := Build("agridash", "v1.0.0", []Route{
		{Method: http.MethodGet, Path: "/api/data/regions/:id", Tag: "data", Summary: "Get region"},
		{Method: http.MethodGet, Path: "/api/data/land-holdings", Tag: "data", Query: sampleQuery{}},
		{Method: http.MethodPost, Path: "/api/users/reports", Tag: "users", Access: Authenticated, Body: sampleBody{}, Status: http.StatusCreated},
		{Method: http.MethodGet, Path: "/api/users/", Tag: "users", Access: Authenticated, Roles: []string{"admin"}},
		{Method: http.MethodPost, Path: "/api/ai/chat", Tag: "ai", Access: OptionalAuth, Body: sampleBody{}},
	})
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))

	region := doc.Paths.Find("/api/data/regions/{id}")
	require.NotNil(t, region)
	require.NotNil(t, region.Get)
	assert.Equal(t, "getDataRegionsId", region.Get.OperationID)
	require.Len(t, region.Get.Parameters, 1)
	assert.Equal(t, "path", region.Get.Parameters[0].Value.In)

	holdings := doc.Paths.Find("/api/data/land-holdings").Get
	var names []string
	for _, p := range holdings.Parameters {
		names = append(names, p.Value.Name)
	}
	assert.Equal(t, []string{"state", "year", "limit"}, names)

	create := doc.Paths.Find("/api/users/reports").Post
	require.NotNil(t, create.RequestBody)
	assert.NotNil(t, create.Responses.Status(http.StatusCreated))
	assert.NotNil(t, create.Responses.Status(http.StatusUnauthorized))
	require.NotNil(t, create.Security)

	admin := doc.Paths.Find("/api/users/").Get
	assert.NotNil(t, admin.Responses.Status(http.StatusForbidden))

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"bearerAuth"`)
}
