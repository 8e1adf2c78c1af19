package httpapi

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPathTail(t *testing.T) {
	require.Equal(t, "2401-GN-00001", pathTail("/mes/api/v1/units/2401-GN-00001", unitsPrefix))
	require.Equal(t, "", pathTail("/mes/api/v1/units/", unitsPrefix))
	require.Equal(t, "", pathTail("/mes/api/v1/units/2401-GN-00001/flash", unitsPrefix))
}

func TestPathSegment(t *testing.T) {
	require.Equal(t, "2401-GN-00001", pathSegment("/mes/api/v1/units/2401-GN-00001/flash", unitsPrefix, "/flash"))
	require.Equal(t, "2401-GN-00001", pathSegment("/mes/api/v1/units/2401-GN-00001/pack/scan-kit", unitsPrefix, "/pack/scan-kit"))
	require.Equal(t, "", pathSegment("/mes/api/v1/units/2401-GN-00001/flash", unitsPrefix, "/done"))
	require.Equal(t, "", pathSegment("/mes/api/v1/units//flash", unitsPrefix, "/flash"))
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	require.Equal(t, "", bearerToken(r))

	r.Header.Set("Authorization", "Bearer abc123")
	require.Equal(t, "abc123", bearerToken(r))

	r.Header.Set("Authorization", "Basic abc123")
	require.Equal(t, "", bearerToken(r))
}
