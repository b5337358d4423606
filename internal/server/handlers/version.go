package handlers

import (
	"net/http"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
)

const AppName = "ohcupload"

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

var build = BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}

// AppVersion is the running version; kept for health reports.
var AppVersion = build.Version

// SetVersionInfo records link-time build metadata. Empty values keep the
// development defaults.
func SetVersionInfo(version, commit, buildDate string) {
	next := BuildInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}
	if version != "" {
		next.Version = version
	}
	if commit != "" {
		next.Commit = commit
	}
	if buildDate != "" {
		next.BuildDate = buildDate
	}
	build = next
	AppVersion = next.Version
}

// UserAgent identifies uploads to the remote API.
func UserAgent() string {
	return AppName + "/" + build.Version
}

// VersionResponse is served on /version and printed by `ohcupload version`.
type VersionResponse struct {
	App          AppInfo `json:"app"`
	Dependencies DepInfo `json:"dependencies"`
}

type AppInfo struct {
	Name string `json:"name"`
	BuildInfo
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	UserAgent string `json:"user_agent"`
}

type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

func CurrentVersion() VersionResponse {
	deps := crucible.GetVersion()
	return VersionResponse{
		App: AppInfo{
			Name:      AppName,
			BuildInfo: build,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			UserAgent: UserAgent(),
		},
		Dependencies: DepInfo{Gofulmen: deps.Gofulmen, Crucible: deps.Crucible},
	}
}

func VersionHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CurrentVersion())
}
