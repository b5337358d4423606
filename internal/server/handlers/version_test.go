package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionHandlerIncludesBuildMetadata(t *testing.T) {
	SetVersionInfo("1.2.3", "abcd123", "2025-11-07T12:00:00Z")
	t.Cleanup(func() { SetVersionInfo("", "", "") })

	rec := httptest.NewRecorder()
	VersionHandler(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VersionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "ohcupload", resp.App.Name)
	require.Equal(t, "1.2.3", resp.App.Version)
	require.Equal(t, "abcd123", resp.App.Commit)
	require.Equal(t, "ohcupload/1.2.3", resp.App.UserAgent)
	require.NotEmpty(t, resp.App.Platform)
	require.NotEmpty(t, resp.Dependencies.Gofulmen)
	require.NotEmpty(t, resp.Dependencies.Crucible)
}

func TestSetVersionInfoKeepsDefaults(t *testing.T) {
	SetVersionInfo("", "", "")
	require.Equal(t, "dev", AppVersion)
	require.Equal(t, "ohcupload/dev", UserAgent())
	require.Equal(t, "unknown", CurrentVersion().App.Commit)
}
