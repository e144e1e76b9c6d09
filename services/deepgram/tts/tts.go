package deepgram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"chatspeak/core"
	"chatspeak/utils/audio"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// maxCharsBeforeFlush is the character limit before a flush is required.
// Deepgram returns DATA-0001 (1008) if too many characters are buffered between flushes.
const maxCharsBeforeFlush = 2000

// DepgramTTSConfig holds configuration for the Deepgram TTS service
type DepgramTTSConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	Model      string `json:"model"`
	SampleRate int    `json:"sample_rate"`
}

// DefaultConfig returns a DepgramTTSConfig with sensible defaults
func DefaultConfig() DepgramTTSConfig {
	return DepgramTTSConfig{
		BaseURL:    "wss://api.deepgram.com/v1/speak",
		Model:      "aura-2-arcas-en",
		SampleRate: 24000,
	}
}

// DepgramTTS synthesizes one utterance per websocket connection against
// Deepgram's streaming speak API.
type DepgramTTS struct {
	config DepgramTTSConfig
	logger *core.Logger
	dialer *websocket.Dialer
}

// Message types for Deepgram TTS WebSocket protocol
type (
	speakV1Text struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}

	speakV1Control struct {
		Type string `json:"type"`
	}

	speakV1Message struct {
		Type        string  `json:"type"`
		ModelName   string  `json:"model_name,omitempty"`
		SequenceID  float64 `json:"sequence_id,omitempty"`
		Description string  `json:"description,omitempty"`
		Code        string  `json:"code,omitempty"`
	}
)

// NewDepgramTTS creates a new Deepgram TTS service with the provided config.
// Use DefaultConfig() to get a config with sensible defaults and override only what you need.
func NewDepgramTTS(config DepgramTTSConfig, logger *core.Logger) (*DepgramTTS, error) {
	if config.APIKey == "" {
		return nil, errors.New("Deepgram API key is required")
	}
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Model == "" {
		config.Model = defaults.Model
	}
	if config.SampleRate <= 0 {
		config.SampleRate = defaults.SampleRate
	}
	if logger == nil {
		logger = core.GetLogger()
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	return &DepgramTTS{
		config: config,
		logger: logger.With(map[string]interface{}{"component": "deepgram_tts"}),
		dialer: &dialer,
	}, nil
}

// OutputSampleRate reports the linear16 rate requested from Deepgram.
func (d *DepgramTTS) OutputSampleRate() int {
	return d.config.SampleRate
}

// Synthesize sends text as one or more Speak messages, each followed by a
// Flush, and collects binary audio until every flush is acknowledged.
func (d *DepgramTTS) Synthesize(ctx context.Context, text string) (core.SynthesisResult, error) {
	conn, err := d.establishConnection(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	chunks := splitText(text, maxCharsBeforeFlush)
	for _, chunk := range chunks {
		if err := sendJSON(conn, speakV1Text{Type: "Speak", Text: chunk}); err != nil {
			return nil, fmt.Errorf("failed to send text: %w", err)
		}
		if err := sendJSON(conn, speakV1Control{Type: "Flush"}); err != nil {
			return nil, fmt.Errorf("failed to send flush: %w", err)
		}
	}

	var pcm []byte
	pending := len(chunks)
	for pending > 0 {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("Deepgram read failed: %w", err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			pcm = append(pcm, message...)
		case websocket.TextMessage:
			done, err := d.handleTextMessage(message)
			if err != nil {
				return nil, err
			}
			if done {
				pending--
			}
		}
	}

	_ = sendJSON(conn, speakV1Control{Type: "Close"})

	if len(pcm)%2 == 1 {
		pcm = pcm[:len(pcm)-1]
	}
	samples, err := audio.PCMBytesToInt16(pcm)
	if err != nil {
		return nil, err
	}
	return core.SamplesOnly{Samples: samples}, nil
}

// handleTextMessage processes JSON messages from Deepgram and reports whether
// a flush was acknowledged.
func (d *DepgramTTS) handleTextMessage(message []byte) (bool, error) {
	var msg speakV1Message
	if err := sonic.Unmarshal(message, &msg); err != nil {
		return false, fmt.Errorf("failed to parse message: %w", err)
	}

	switch msg.Type {
	case "Metadata":
		d.logger.Debug("TTS metadata received", "model", msg.ModelName)
	case "Flushed":
		return true, nil
	case "Warning":
		d.logger.Warn("Deepgram TTS warning", "description", msg.Description, "code", msg.Code)
	case "Error":
		return false, fmt.Errorf("Deepgram error: %s (code: %s)", msg.Description, msg.Code)
	}
	return false, nil
}

// establishConnection dials Deepgram with retry logic
func (d *DepgramTTS) establishConnection(ctx context.Context) (*websocket.Conn, error) {
	const maxRetries = 3
	const baseDelay = 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)
			d.logger.Infof("Deepgram TTS: retrying connection (attempt %d/%d) in %v after error: %v",
				attempt+1, maxRetries, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		conn, err := d.dialConnection(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		return conn, nil
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxRetries, lastErr)
}

func (d *DepgramTTS) dialConnection(ctx context.Context) (*websocket.Conn, error) {
	q := url.Values{}
	q.Set("model", d.config.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(d.config.SampleRate))

	// Deepgram requires the "Token " prefix.
	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.config.APIKey)

	conn, _, err := d.dialer.DialContext(ctx, d.config.BaseURL+"?"+q.Encode(), headers)
	if err != nil {
		return nil, err
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn, nil
}

func sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// splitText cuts text into pieces of at most limit runes.
func splitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var out []string
	for len(runes) > 0 {
		n := min(limit, len(runes))
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}
