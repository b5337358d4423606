package integration

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// buildBinary compiles ohcupload and copies it outside the repository so the
// test proves the binary needs no repo-relative assets.
func buildBinary(t *testing.T) (binary string, outside string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("standalone binary copy/exec test is unix-focused")
	}
	goModPathBytes, err := exec.Command("go", "env", "GOMOD").Output()
	if err != nil {
		t.Fatalf("go env GOMOD: %v", err)
	}
	goModPath := strings.TrimSpace(string(goModPathBytes))
	if goModPath == "" {
		t.Fatalf("go env GOMOD returned empty")
	}
	repoRoot := filepath.Dir(goModPath)

	buildDir := t.TempDir()
	binaryPath := filepath.Join(buildDir, "ohcupload")

	build := exec.Command("go", "build", "-o", binaryPath, "./cmd/ohcupload")
	build.Dir = repoRoot
	build.Env = os.Environ()
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build: %v\n%s", err, string(out))
	}

	outside = t.TempDir()
	binary = filepath.Join(outside, "ohcupload")

	// Use a direct file copy to avoid relying on platform-specific tools.
	data, err := os.ReadFile(binaryPath)
	if err != nil {
		t.Fatalf("read built binary: %v", err)
	}
	if err := os.WriteFile(binary, data, 0o755); err != nil {
		t.Fatalf("write copied binary: %v", err)
	}
	return binary, outside
}

// isolatedEnv points XDG paths into dir and drops OHCUPLOAD_* variables.
func isolatedEnv(dir string) []string {
	env := []string{}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "OHCUPLOAD_") || strings.HasPrefix(kv, "XDG_") || strings.HasPrefix(kv, "HOME=") {
			continue
		}
		env = append(env, kv)
	}
	return append(env,
		"HOME="+dir,
		"XDG_CONFIG_HOME="+filepath.Join(dir, "config"),
		"XDG_DATA_HOME="+filepath.Join(dir, "data"),
	)
}

func TestStandaloneBinaryVersionAndHelpWorkOutsideRepo(t *testing.T) {
	binary, outside := buildBinary(t)

	version := exec.Command(binary, "version")
	version.Dir = outside
	version.Env = isolatedEnv(outside)
	out, err := version.CombinedOutput()
	if err != nil {
		t.Fatalf("version failed: %v\n%s", err, string(out))
	}
	if !strings.HasPrefix(string(out), "ohcupload ") {
		t.Fatalf("unexpected version output: %s", string(out))
	}

	help := exec.Command(binary, "--help")
	help.Dir = outside
	help.Env = isolatedEnv(outside)
	if out, err := help.CombinedOutput(); err != nil {
		t.Fatalf("--help failed: %v\n%s", err, string(out))
	}
}

func TestStandaloneBinaryConfigValidateExitCodes(t *testing.T) {
	binary, outside := buildBinary(t)

	validate := exec.Command(binary, "config", "validate")
	validate.Dir = outside
	validate.Env = isolatedEnv(outside)
	out, err := validate.CombinedOutput()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected non-zero exit without credentials, got %v\n%s", err, string(out))
	}
	if !strings.Contains(string(out), "credentials.api_key") {
		t.Fatalf("expected field errors in output: %s", string(out))
	}

	validate = exec.Command(binary, "config", "validate")
	validate.Dir = outside
	validate.Env = append(isolatedEnv(outside),
		"OHCUPLOAD_API_KEY=sk_integration",
		"OHCUPLOAD_EMAIL=me@example.com",
	)
	if out, err := validate.CombinedOutput(); err != nil {
		t.Fatalf("config validate with credentials failed: %v\n%s", err, string(out))
	}
}
