package core

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("socket closed")

	tests := []struct {
		name string
		err  error
		kind error
		msg  string
	}{
		{name: "validation", err: NewValidationError("No prompt provided"), kind: ErrValidation, msg: "No prompt provided"},
		{name: "provider", err: ProviderErrorf(cause, "turn failed"), kind: ErrProvider, msg: "provider error: turn failed: socket closed"},
		{name: "synthesis", err: SynthesisErrorf(nil, "no samples"), kind: ErrSynthesis, msg: "synthesis error: no samples"},
		{name: "encoding", err: EncodingErrorf(nil, "rate %d", 0), kind: ErrEncoding, msg: "encoding error: rate 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			staged := &StageError{Stage: tt.name, Err: tt.err}
			assert.ErrorIs(t, staged, tt.kind)
			assert.Equal(t, tt.msg, staged.Error())
		})
	}

	assert.ErrorIs(t, ProviderErrorf(cause, "x"), cause)
	assert.NotErrorIs(t, ProviderErrorf(cause, "x"), ErrSynthesis)
}

func TestParseAudioEncoding(t *testing.T) {
	for in, want := range map[string]AudioEncodingFormat{
		"":        PCM,
		"PCM16":   PCM,
		"mulaw":   ULAW,
		"alaw":    ALAW,
		"float32": FLOAT32,
	} {
		got, err := ParseAudioEncoding(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAudioEncoding("mp3")
	assert.Error(t, err)
}

func TestWaveformDuration(t *testing.T) {
	w := Waveform{Samples: make([]float32, 11025), SampleRate: 22050}
	assert.Equal(t, 500*time.Millisecond, w.Duration())
	assert.Zero(t, Waveform{Samples: make([]float32, 10)}.Duration())
}

func TestLoggerKeyValueAttrs(t *testing.T) {
	var (
		gotLevel string
		gotMsg   string
		gotAttrs map[string]interface{}
	)
	logger := NewLogger(func(level, msg string, attrs map[string]interface{}) {
		gotLevel, gotMsg, gotAttrs = level, msg, attrs
	}).With(map[string]interface{}{"component": "test"})

	logger.Info("turn completed", "turn", 2)
	assert.Equal(t, "INFO", gotLevel)
	assert.Equal(t, "turn completed", gotMsg)
	assert.Equal(t, map[string]interface{}{"component": "test", "turn": 2}, gotAttrs)

	logger.Warnf("retry %d of %d", 1, 3)
	assert.Equal(t, "WARN", gotLevel)
	assert.Equal(t, "retry 1 of 3", gotMsg)
}

func TestProductionLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewProductionLogger(&buf).With(map[string]interface{}{"session_id": "s1"})
	logger.Error("synthesis failed", "error", errors.New("boom"))

	line := buf.String()
	assert.Contains(t, line, `"level":"error"`)
	assert.Contains(t, line, `"session_id":"s1"`)
	assert.Contains(t, line, `"error":"boom"`)
	assert.Contains(t, line, `"message":"synthesis failed"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}

func TestSessionLoggerTeesToTranscript(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewSessionLogWriter(dir, "chat 1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "chat%201.jsonl"), writer.Path())

	var console []string
	base := NewLogger(func(_, msg string, _ map[string]interface{}) { console = append(console, msg) })
	logger := NewSessionLogger(base, writer).With(map[string]interface{}{"session_id": "chat 1"})
	logger.Warn("provider slow", "error", errors.New("timeout"))
	writer.Close()
	writer.Close()

	assert.Equal(t, []string{"provider slow"}, console)

	data, err := os.ReadFile(writer.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"session_id":"chat 1"`)
	assert.Contains(t, lines[1], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"error":"timeout"`)
}

func TestFatalExitsAtAnyLevel(t *testing.T) {
	if level := os.Getenv("CHATSPEAK_FATAL_LEVEL"); level != "" {
		zerolog.SetGlobalLevel(ParseLevel(level))
		NewProductionLogger(io.Discard).Fatal("boom")
		os.Exit(0)
	}

	for _, level := range []string{"info", "panic", "disabled"} {
		t.Run(level, func(t *testing.T) {
			cmd := exec.Command(os.Args[0], "-test.run=^TestFatalExitsAtAnyLevel$")
			cmd.Env = append(os.Environ(), "CHATSPEAK_FATAL_LEVEL="+level)
			err := cmd.Run()

			var exitErr *exec.ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 1, exitErr.ExitCode())
		})
	}
}

func TestPanicLevelPanicsWhenFiltered(t *testing.T) {
	previous := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.Disabled)
	t.Cleanup(func() { zerolog.SetGlobalLevel(previous) })

	logger := NewProductionLogger(io.Discard)
	assert.PanicsWithValue(t, "boom", func() {
		logger.log("PANIC", "boom")
	})
}
