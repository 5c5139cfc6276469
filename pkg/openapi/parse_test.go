package openapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndsev/zswag-sub000/pkg/paramvalue"
)

const minimalDoc = `
paths:
  /pets/{id}:
    get:
      operationId: getPet
      parameters:
        - name: id
          in: path
          x-zserio-request-part: request.id
          schema:
            type: string
`

func TestParseYAML_OperationAndParameter(t *testing.T) {
	spec, err := ParseYAML([]byte(minimalDoc))
	require.NoError(t, err)

	method, ok := spec.Methods["getPet"]
	require.True(t, ok)
	assert.Equal(t, "GET", method.HTTPMethod)
	assert.Equal(t, "/pets/{id}", method.Path)

	param, ok := method.Parameters["id"]
	require.True(t, ok)
	assert.Equal(t, LocationPath, param.Location)
	assert.Equal(t, "request.id", param.Field)
	assert.Equal(t, paramvalue.StyleSimple, param.Style)
}

func TestParseYAML_MissingOperationId(t *testing.T) {
	doc := `
paths:
  /pets:
    get:
      parameters: []
`
	_, err := ParseYAML([]byte(doc))
	require.Error(t, err)
}

func TestParseYAML_MissingPaths(t *testing.T) {
	_, err := ParseYAML([]byte(`openapi: "3.0.0"`))
	require.Error(t, err)
}

func TestParseYAML_ParameterWithoutRequestPartSkipped(t *testing.T) {
	doc := `
paths:
  /pets:
    get:
      operationId: listPets
      parameters:
        - name: limit
          in: query
          schema:
            type: string
`
	spec, err := ParseYAML([]byte(doc))
	require.NoError(t, err)

	method := spec.Methods["listPets"]
	_, ok := method.Parameters["limit"]
	assert.False(t, ok)
}

func TestParseYAML_HeaderLocationSupported(t *testing.T) {
	doc := `
paths:
  /pets:
    get:
      operationId: listPets
      parameters:
        - name: X-Trace-Id
          in: header
          x-zserio-request-part: request.traceId
          schema:
            type: string
`
	spec, err := ParseYAML([]byte(doc))
	require.NoError(t, err)

	method := spec.Methods["listPets"]
	param, ok := method.Parameters["X-Trace-Id"]
	require.True(t, ok)
	assert.Equal(t, LocationHeader, param.Location)
	assert.Equal(t, paramvalue.StyleForm, param.Style)
	assert.True(t, param.Explode)
}

func TestParseYAML_RequestBody(t *testing.T) {
	doc := `
paths:
  /pets:
    post:
      operationId: createPet
      requestBody:
        content:
          application/x-zserio-object:
            schema:
              type: string
`
	spec, err := ParseYAML([]byte(doc))
	require.NoError(t, err)
	assert.True(t, spec.Methods["createPet"].HasBody)
}

func TestParseYAML_UnsupportedBodyContentType(t *testing.T) {
	doc := `
paths:
  /pets:
    post:
      operationId: createPet
      requestBody:
        content:
          application/json:
            schema:
              type: string
`
	_, err := ParseYAML([]byte(doc))
	require.Error(t, err)
}

func TestParseYAML_MultipleServers(t *testing.T) {
	doc := `
servers:
  - url: https://primary.example.com
  - url: https://secondary.example.com
paths:
  /pets:
    get:
      operationId: listPets
`
	spec, err := ParseYAML([]byte(doc))
	require.NoError(t, err)
	require.Len(t, spec.Servers, 2)
	assert.Equal(t, "primary.example.com", spec.Servers[0].Host)
	assert.Equal(t, "secondary.example.com", spec.Servers[1].Host)
}

func TestParseYAML_SecuritySchemesAndRequirement(t *testing.T) {
	doc := `
components:
  securitySchemes:
    bearerAuth:
      type: http
      scheme: bearer
security:
  - bearerAuth: []
paths:
  /pets:
    get:
      operationId: listPets
`
	spec, err := ParseYAML([]byte(doc))
	require.NoError(t, err)

	scheme, ok := spec.SecuritySchemes["bearerAuth"]
	require.True(t, ok)
	assert.Equal(t, SchemeHTTPBearer, scheme.Type)

	require.Len(t, spec.DefaultSecurity, 1)
	require.Len(t, spec.DefaultSecurity[0], 1)
	assert.Equal(t, "bearerAuth", spec.DefaultSecurity[0][0].Scheme.ID)
}

func TestParseYAML_SecurityRequirementUnknownScheme(t *testing.T) {
	doc := `
security:
  - missingScheme: []
paths:
  /pets:
    get:
      operationId: listPets
`
	_, err := ParseYAML([]byte(doc))
	require.Error(t, err)
}

func TestParseYAML_OAuth2Scheme(t *testing.T) {
	doc := `
components:
  securitySchemes:
    oauth2:
      type: oauth2
      flows:
        clientCredentials:
          tokenUrl: https://auth.example.com/token
          refreshUrl: https://auth.example.com/refresh
          scopes:
            read: read access
            write: write access
paths:
  /pets:
    get:
      operationId: listPets
`
	spec, err := ParseYAML([]byte(doc))
	require.NoError(t, err)

	scheme := spec.SecuritySchemes["oauth2"]
	assert.Equal(t, SchemeOAuth2ClientCredentials, scheme.Type)
	assert.Equal(t, "https://auth.example.com/token", scheme.TokenURL)
	assert.Equal(t, "https://auth.example.com/refresh", scheme.RefreshURL)
	assert.Equal(t, []string{"read", "write"}, scheme.Scopes)
}

func TestParseYAML_PerOperationSecurityOverride(t *testing.T) {
	doc := `
components:
  securitySchemes:
    apiKeyAuth:
      type: apiKey
      in: header
      name: X-Api-Key
paths:
  /pets:
    get:
      operationId: listPets
      security:
        - apiKeyAuth: []
`
	spec, err := ParseYAML([]byte(doc))
	require.NoError(t, err)

	method := spec.Methods["listPets"]
	require.NotNil(t, method.Security)
	require.Len(t, *method.Security, 1)
	assert.Equal(t, SchemeAPIKeyHeader, (*method.Security)[0][0].Scheme.Type)
}
