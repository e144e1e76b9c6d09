package sidecar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"chatspeak/core"
	ttshandler "chatspeak/handlers/tts"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResult_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantRate int
		wantLen  int
	}{
		{name: "bare array", body: `[0.1, -0.2, 0.3]`, wantRate: 24000, wantLen: 3},
		{name: "pair with integer rate", body: `[[0.1, -0.2], 16000]`, wantRate: 16000, wantLen: 2},
		{name: "pair with string rate", body: `[[0.1, -0.2], "invalid"]`, wantRate: 24000, wantLen: 2},
		{name: "pair with float rate", body: `[[0.1, -0.2], 16000.0]`, wantRate: 24000, wantLen: 2},
		{name: "two sample bare array", body: `[0.1, 0.2]`, wantRate: 24000, wantLen: 2},
		{name: "object wav", body: `{"wav": [0.5], "sample_rate": 44100}`, wantRate: 44100, wantLen: 1},
		{name: "object samples rate", body: `{"samples": [0.5, 0.25], "rate": 8000}`, wantRate: 8000, wantLen: 2},
		{name: "object without rate", body: `{"wav": [0.5]}`, wantRate: 24000, wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseResult([]byte(tt.body))
			require.NoError(t, err)

			w, err := ttshandler.Normalize(result, 24000)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRate, w.SampleRate)
			assert.Len(t, w.Samples, tt.wantLen)
		})
	}
}

func TestParseResult_KeepsJSONNumbers(t *testing.T) {
	result, err := ParseResult([]byte(`[[0.5], 22050]`))
	require.NoError(t, err)
	pair, ok := result.(core.SamplesWithRate)
	require.True(t, ok)
	assert.Equal(t, json.Number("22050"), pair.Rate)
}

func TestParseResult_Unusable(t *testing.T) {
	result, err := ParseResult([]byte(`null`))
	require.NoError(t, err)
	_, err = ttshandler.Normalize(result, 22050)
	assert.ErrorIs(t, err, core.ErrSynthesis)

	_, err = ParseResult([]byte(`"audio"`))
	assert.Error(t, err)

	_, err = ParseResult([]byte(`{not json`))
	assert.Error(t, err)
}

func TestSynthesize_PostsTextAndProbesRate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output_sample_rate": 22050}`))
	})
	mux.HandleFunc("/synthesize", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		var req synthesizeRequest
		require.NoError(t, sonic.Unmarshal(body, &req))
		assert.Equal(t, "Hello", req.Text)
		assert.Equal(t, "tts_models/en/ljspeech/vits", req.Model)
		assert.Equal(t, "cuda", req.Device)
		_, _ = w.Write([]byte(`[0.1, 0.2]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	svc, err := NewSidecarTTS(Config{
		URL:     srv.URL + "/synthesize",
		InfoURL: srv.URL + "/info",
		Model:   "tts_models/en/ljspeech/vits",
		Device:  "cuda",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, svc.OutputSampleRate())

	require.NoError(t, svc.Probe(context.Background()))
	assert.Equal(t, 22050, svc.OutputSampleRate())

	result, err := svc.Synthesize(context.Background(), "Hello")
	require.NoError(t, err)
	_, ok := result.(core.SamplesOnly)
	assert.True(t, ok)
}

func TestSynthesize_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, err := NewSidecarTTS(Config{URL: srv.URL}, nil)
	require.NoError(t, err)
	_, err = svc.Synthesize(context.Background(), "Hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
