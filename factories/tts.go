package factories

import (
	"context"
	"errors"
	"fmt"

	"chatspeak/core"
	ttshandler "chatspeak/handlers/tts"
	coqui "chatspeak/services/coqui/tts"
	deepgramtts "chatspeak/services/deepgram/tts"
	elevenlabs "chatspeak/services/elevenlabs/tts"
	openaitts "chatspeak/services/openai/tts"
	sidecar "chatspeak/services/sidecar/tts"
)

// TTSFactoryConfig holds provider-specific configs for speech service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	CoquiConfig      *coqui.Config                   `json:"coqui,omitempty"`
	SidecarConfig    *sidecar.Config                 `json:"sidecar,omitempty"`
	OpenAIConfig     *openaitts.Config               `json:"openai,omitempty"`
	DeepgramConfig   *deepgramtts.DepgramTTSConfig   `json:"deepgram,omitempty"`
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty"`
}

// BuildSpeechService constructs a SpeechService from the given factory config.
// Exactly one provider config must be non-nil. Providers that can report
// their output rate are probed here, once.
func BuildSpeechService(ctx context.Context, config TTSFactoryConfig, logger *core.Logger) (ttshandler.SpeechService, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	if n := config.count(); n > 1 {
		return nil, fmt.Errorf("TTSFactoryConfig: %d provider configs specified, want exactly one", n)
	}
	if config.CoquiConfig != nil {
		return coqui.NewCoquiTTS(*config.CoquiConfig, logger), nil
	}
	if config.SidecarConfig != nil {
		svc, err := sidecar.NewSidecarTTS(*config.SidecarConfig, logger)
		if err != nil {
			return nil, err
		}
		if err := svc.Probe(ctx); err != nil {
			logger.Warn("could not probe sidecar output rate", "error", err)
		}
		return svc, nil
	}
	if config.OpenAIConfig != nil {
		return openaitts.NewOpenAISpeechService(*config.OpenAIConfig, logger)
	}
	if config.DeepgramConfig != nil {
		return deepgramtts.NewDepgramTTS(*config.DeepgramConfig, logger)
	}
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger)
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}

func (c TTSFactoryConfig) count() int {
	n := 0
	for _, set := range []bool{
		c.CoquiConfig != nil,
		c.SidecarConfig != nil,
		c.OpenAIConfig != nil,
		c.DeepgramConfig != nil,
		c.ElevenLabsConfig != nil,
	} {
		if set {
			n++
		}
	}
	return n
}
