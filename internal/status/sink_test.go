package status

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterSinkFlattensLines(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	sink.Report("Found 2\nReady to upload!", IconReady)
	sink.Report("plain", IconNone)

	require.Equal(t, "(◠‿◠) Found 2 Ready to upload!\nplain\n", buf.String())
}

func TestMultiAndRecorder(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	sink := Multi(first, nil, second)

	sink.Report("1/3", IconProgress)

	require.Equal(t, []string{"1/3"}, first.Texts())
	last, ok := second.Last()
	require.True(t, ok)
	require.Equal(t, IconProgress, last.Icon)
}

func TestSafeRecoversFromPanics(t *testing.T) {
	sink := Safe(SinkFunc(func(string, Icon) { panic("display gone") }))
	require.NotPanics(t, func() { sink.Report("Uploading...", IconUploading) })

	require.NotPanics(t, func() { Safe(nil).Report("x", IconNone) })
}
