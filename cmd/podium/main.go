package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/podiumhq/podium/internal/config"
	"github.com/podiumhq/podium/internal/debate"
	"github.com/podiumhq/podium/internal/events"
	"github.com/podiumhq/podium/internal/gateway"
	"github.com/podiumhq/podium/internal/handlers"
	"github.com/podiumhq/podium/internal/llm"
	"github.com/podiumhq/podium/internal/persona"
	"github.com/podiumhq/podium/internal/research"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := newLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bus := events.NewBus(cfg.Gateway.BufferSize)
	defer bus.Close()

	hub := gateway.NewHub(gateway.DefaultHubConfig(), logger)
	defer hub.Close()

	gw := gateway.New(hub, bus, gateway.Config{MaxAttempts: cfg.Gateway.MaxAttempts},
		logger, gateway.NewMetrics(prometheus.DefaultRegisterer))
	go gw.Run(ctx)

	voices := voiceTables(cfg.Debate)

	client := llm.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model, logger)
	researcher := llm.NewResearchAgent(client, client, logger)
	tts := &busSpeaker{bus: bus}

	factory := func(sc debate.SessionConfig) *debate.Session {
		if len(sc.Engine.Genders) == 0 {
			sc.Engine.Genders = cfg.Debate.Genders
		}
		sc.Engine.MaxAutoTurns = cfg.Debate.MaxAutoTurns
		sc.Voices = voices
		sc.Research = research.Config{
			Attempts:       cfg.Research.Attempts,
			AttemptTimeout: cfg.Research.AttemptTimeout,
		}
		return debate.NewSession(sc, client, tts, researcher, bus, logger)
	}

	registry := debate.NewRegistry()
	startPresetSessions(registry, factory, logger)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "clients": hub.ClientCount()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", hub.Handler())
	handlers.NewSessionHandler(registry, factory, logger).Register(router.Group("/v1"))

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", srv.Addr).Info("Podium listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithField("error", err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err).Warn("Shutdown incomplete")
	}
	for _, snap := range registry.List() {
		if sess, ok := registry.Remove(snap.ID); ok {
			sess.Close()
		}
	}
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// voiceTables builds the gender voice tables from config overrides; nil means
// the built-in defaults apply.
func voiceTables(cfg config.DebateConfig) map[string][]string {
	if len(cfg.FemaleVoices) == 0 && len(cfg.MaleVoices) == 0 {
		return nil
	}
	tables := map[string][]string{
		persona.GenderFemale: persona.Voices[persona.GenderFemale],
		persona.GenderMale:   persona.Voices[persona.GenderMale],
	}
	if len(cfg.FemaleVoices) > 0 {
		tables[persona.GenderFemale] = cfg.FemaleVoices
	}
	if len(cfg.MaleVoices) > 0 {
		tables[persona.GenderMale] = cfg.MaleVoices
	}
	return tables
}

// requestLogger logs each request with method, path, status and latency.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("Request handled")
	}
}

// startPresetSessions auto-starts any debates declared in the preset file
// named by DEBATE_PRESETS.
func startPresetSessions(registry *debate.Registry, factory handlers.SessionFactory, logger *logrus.Logger) {
	path := os.Getenv("DEBATE_PRESETS")
	if path == "" {
		return
	}

	presets, err := config.NewPresetLoader(path).Load()
	if err != nil {
		logger.WithFields(logrus.Fields{"path": path, "error": err}).Warn("Preset load failed")
		return
	}

	for _, preset := range presets {
		sc := debate.SessionConfig{Topic: preset.Topic}
		if len(preset.Genders) > 0 {
			sc.Engine.Genders = preset.Genders
		}
		for i, p := range preset.Personas {
			sc.Personas = append(sc.Personas, persona.Persona{
				ID:          i,
				Name:        p.Name,
				Prompt:      p.Prompt,
				Gender:      p.Gender,
				Description: p.Description,
			})
		}

		sess := factory(sc)
		registry.Add(sess)
		sess.Start()
		logger.WithFields(logrus.Fields{
			"preset":  preset.Name,
			"session": sess.ID,
		}).Info("Preset session started")
	}
}

// busSpeaker routes scripted lines through the event bus so the UI's audio
// layer can play them.
type busSpeaker struct {
	bus *events.Bus
}

func (s *busSpeaker) Speak(_ context.Context, voice, text string) error {
	s.bus.Emit(events.EventSay, map[string]interface{}{"voice": voice, "text": text})
	return nil
}
