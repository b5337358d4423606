package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func names(scan Scan) []string {
	out := make([]string, 0, len(scan.Artifacts))
	for _, a := range scan.Artifacts {
		out = append(out, a.Name)
	}
	return out
}

func TestDiscoverSkipsMarkedAndForeignFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "home_aabbcc.22000", "WPA*02*abc\n")
	writeFile(t, dir, "cafe_112233.22000", "WPA*01*def\n")
	writeFile(t, dir, "cafe_112233.22000.uploaded", "")
	writeFile(t, dir, "cafe_112233.pcap", "binary")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.22000"), 0o755))

	scan := (&Scanner{}).Discover(dir, nil)
	require.NoError(t, scan.Err)
	require.Equal(t, []string{"home_aabbcc.22000"}, names(scan))
	require.Equal(t, 1, scan.Marked)

	artifact := scan.Artifacts[0]
	require.Equal(t, filepath.Join(dir, "home_aabbcc.22000"), artifact.Path)
	require.Equal(t, filepath.Join(dir, "home_aabbcc.22000.uploaded"), artifact.MarkerPath)
	require.Equal(t, "home_aabbcc.pcap", artifact.CaptureName)
}

func TestDiscoverAppliesWhitelistToCaptureName(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "MyHome_aabbccddeeff.22000", "WPA*02*abc\n")
	writeFile(t, dir, "Neighbor_112233445566.22000", "WPA*02*def\n")

	var seen []string
	whitelist := WhitelistFunc(func(captureName string) bool {
		seen = append(seen, captureName)
		return captureName == "MyHome_aabbccddeeff.pcap"
	})

	scan := (&Scanner{}).Discover(dir, whitelist)
	require.Equal(t, []string{"Neighbor_112233445566.22000"}, names(scan))
	require.Equal(t, 1, scan.Whitelisted)
	require.ElementsMatch(t, []string{"MyHome_aabbccddeeff.pcap", "Neighbor_112233445566.pcap"}, seen)
}

func TestCaptureNameReplacesOnlyTrailingSuffix(t *testing.T) {
	require.Equal(t, "home_net.pcap", CaptureName("home_net.22000"))
	require.Equal(t, "home.22000net.pcap", CaptureName("home.22000net.22000"))
	require.Equal(t, "a.22000.22000.pcap", CaptureName("a.22000.22000.22000"))
}

func TestDiscoverMissingDirectory(t *testing.T) {
	scan := (&Scanner{}).Discover(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, scan.Err)
	require.Empty(t, scan.Artifacts)
}

func TestReadArtifact(t *testing.T) {
	dir := t.TempDir()

	t.Run("FirstLineOnly", func(t *testing.T) {
		path := writeFile(t, dir, "ok.22000", "  WPA*02*abc*def  \nWPA*02*second\n")
		line, err := ReadArtifact(path)
		require.NoError(t, err)
		require.Equal(t, "WPA*02*abc*def", line)
	})

	t.Run("NoTrailingNewline", func(t *testing.T) {
		path := writeFile(t, dir, "nonl.22000", "WPA*01*xyz")
		line, err := ReadArtifact(path)
		require.NoError(t, err)
		require.Equal(t, "WPA*01*xyz", line)
	})

	t.Run("Empty", func(t *testing.T) {
		path := writeFile(t, dir, "empty.22000", "\n")
		_, err := ReadArtifact(path)
		require.ErrorIs(t, err, ErrEmptyArtifact)
	})

	t.Run("WrongPrefix", func(t *testing.T) {
		path := writeFile(t, dir, "bad.22000", "HCPX*garbage\n")
		_, err := ReadArtifact(path)
		require.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := ReadArtifact(filepath.Join(dir, "nope.22000"))
		require.ErrorIs(t, err, ErrUnreadable)
	})
}

func TestMarkSubmitted(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.22000", "WPA*02*abc\n")
	artifact := NewArtifact(dir, "a.22000")

	require.False(t, IsMarked(artifact))
	require.NoError(t, MarkSubmitted(artifact))
	require.True(t, IsMarked(artifact))

	info, err := os.Stat(artifact.MarkerPath)
	require.NoError(t, err)
	require.Zero(t, info.Size())

	scan := (&Scanner{}).Discover(dir, nil)
	require.Empty(t, scan.Artifacts)
}

func TestPatternWhitelist(t *testing.T) {
	w := NewPatternWhitelist([]string{"MyHome", "AA:BB:CC:DD:EE:FF", "  "})
	require.Equal(t, 2, w.Len())

	require.True(t, w.IsExcluded("myhome_001122334455.pcap"))
	require.True(t, w.IsExcluded("Other_aabbccddeeff.pcap"))
	require.False(t, w.IsExcluded("Cafe_001122334455.pcap"))

	var empty *PatternWhitelist
	require.False(t, empty.IsExcluded("anything.pcap"))
}
