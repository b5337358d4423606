// Package scanner discovers handshake artifacts that still need submitting
// and manages their marker files.
package scanner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/core"
)

const (
	// ArtifactSuffix identifies hashcat mode 22000 files.
	ArtifactSuffix = ".22000"
	// CaptureSuffix is the raw capture suffix the host whitelists on.
	CaptureSuffix = ".pcap"
	// MarkerSuffix is appended to an artifact name once it was accepted.
	MarkerSuffix = ".uploaded"
	// HashPrefix starts every valid 22000 line.
	HashPrefix = "WPA*"
)

var (
	ErrEmptyArtifact = errors.New("artifact is empty")
	ErrInvalidFormat = errors.New("artifact does not start with " + HashPrefix)
	ErrUnreadable    = errors.New("artifact is unreadable")
)

// Whitelist decides whether a capture should never be uploaded.
type Whitelist interface {
	IsExcluded(captureName string) bool
}

// WhitelistFunc adapts a plain function to Whitelist.
type WhitelistFunc func(captureName string) bool

// IsExcluded implements Whitelist.
func (f WhitelistFunc) IsExcluded(captureName string) bool {
	if f == nil {
		return false
	}
	return f(captureName)
}

// Scan is the result of one discovery pass.
type Scan struct {
	Artifacts   []core.Artifact
	Marked      int
	Whitelisted int
	// Err is set when the directory could not be listed. It is informational.
	Err error
}

// Scanner lists candidate artifacts in a handshake directory.
type Scanner struct {
	Logger *logging.Logger
}

// Discover returns the artifacts in dir that have no marker and are not
// whitelisted, in directory enumeration order. It never fails: an unreadable
// directory yields an empty scan with Err set.
func (s *Scanner) Discover(dir string, whitelist Whitelist) Scan {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.warn("OHC: cannot list handshake directory", zap.String("dir", dir), zap.Error(err))
		return Scan{Err: fmt.Errorf("list %s: %w", dir, err)}
	}

	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		present[entry.Name()] = struct{}{}
	}

	scan := Scan{Artifacts: []core.Artifact{}}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ArtifactSuffix) {
			continue
		}
		if _, ok := present[name+MarkerSuffix]; ok {
			scan.Marked++
			continue
		}

		artifact := NewArtifact(dir, name)
		if whitelist != nil && whitelist.IsExcluded(artifact.CaptureName) {
			scan.Whitelisted++
			continue
		}
		scan.Artifacts = append(scan.Artifacts, artifact)
	}

	return scan
}

// NewArtifact builds the artifact record for a file in dir.
func NewArtifact(dir, name string) core.Artifact {
	path := filepath.Join(dir, name)
	return core.Artifact{
		Name:        name,
		Path:        path,
		MarkerPath:  path + MarkerSuffix,
		CaptureName: CaptureName(name),
	}
}

// CaptureName maps an artifact file name to the capture name the host uses
// as its whitelist key.
func CaptureName(artifactName string) string {
	return strings.TrimSuffix(artifactName, ArtifactSuffix) + CaptureSuffix
}

// ReadArtifact returns the first line of the artifact after validating it.
func ReadArtifact(path string) (string, error) {
	line, err := ReadFirstLine(path)
	if err != nil {
		return "", err
	}
	return ValidateLine(line)
}

// ReadFirstLine returns the trimmed first line of a file. Only the first line
// of an artifact is ever submitted.
func ReadFirstLine(path string) (string, error) {
	// #nosec G304 -- path comes from a directory listing of the handshake dir
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer file.Close() // nolint:errcheck // best-effort cleanup on read-only file

	line, err := bufio.NewReader(file).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return strings.TrimSpace(line), nil
}

// ValidateLine trims and checks a single 22000 line.
func ValidateLine(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrEmptyArtifact
	}
	if !strings.HasPrefix(line, HashPrefix) {
		return "", ErrInvalidFormat
	}
	return line, nil
}

// IsMarked reports whether the artifact already has a marker file.
func IsMarked(artifact core.Artifact) bool {
	_, err := os.Stat(artifact.MarkerPath)
	return err == nil
}

// MarkSubmitted creates the empty marker file for an accepted artifact.
func MarkSubmitted(artifact core.Artifact) error {
	// #nosec G304 -- marker path is derived from a discovered artifact
	file, err := os.OpenFile(artifact.MarkerPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create marker: %w", err)
	}
	return file.Close()
}

func (s *Scanner) warn(msg string, fields ...zap.Field) {
	if s != nil && s.Logger != nil {
		s.Logger.Warn(msg, fields...)
	}
}
