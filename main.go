package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"chatspeak/config"
	"chatspeak/core"
	"chatspeak/factories"
	"chatspeak/handlers/chat"
	"chatspeak/handlers/llm"
	"chatspeak/handlers/session"
	"chatspeak/handlers/tts"
	httptransport "chatspeak/transports/http"

	"github.com/rs/zerolog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		core.GetLogger().Fatal("failed to load configuration", "error", err)
	}

	logger := newLogger(cfg)
	core.SetLogger(*logger)

	settings, err := factories.LoadSettings(cfg)
	if err != nil {
		logger.Fatal("failed to load provider settings", "error", err)
	}

	chatProvider, err := factories.BuildChatProvider(settings.LLM, logger)
	if err != nil {
		logger.Fatal("failed to create chat provider", "error", err)
	}
	logger.Info("chat provider ready", "provider", settings.LLM.Provider)

	speech, err := factories.BuildSpeechService(ctx, settings.TTS, logger)
	if err != nil {
		logger.Fatal("failed to create speech service", "error", err)
	}
	logger.Info("speech service ready", "provider", cfg.TTSProvider, "device", cfg.TTSDevice)

	registry := session.NewRegistry(chatProvider, session.SessionConfig{TranscriptDir: cfg.TranscriptDir}, logger)
	defer registry.Close()

	turns := llm.NewTurnExecutor(llm.TurnConfig{Timeout: cfg.ProviderTimeout}, logger)

	ttsConfig := tts.DefaultConfig()
	ttsConfig.Timeout = cfg.SynthesisTimeout
	synth := tts.NewSynthesizer(speech, ttsConfig, logger)

	orchestrator := chat.NewOrchestrator(registry, turns, synth, chat.ChatConfig{Encoding: cfg.Encoding()}, logger)

	serverConfig := httptransport.DefaultConfig()
	serverConfig.Addr = cfg.Addr()
	serverConfig.StaticDir = cfg.StaticDir
	serverConfig.MaxBodyBytes = cfg.MaxBodyBytes
	serverConfig.GinMode = cfg.GinMode
	server := httptransport.NewServer(serverConfig, orchestrator, registry, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server stopped", "error", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

func newLogger(cfg config.Config) *core.Logger {
	zerolog.SetGlobalLevel(core.ParseLevel(cfg.LogLevel))
	if strings.EqualFold(cfg.LogFormat, "json") {
		return core.NewProductionLogger(os.Stdout)
	}
	return core.NewDevelopmentLogger()
}
