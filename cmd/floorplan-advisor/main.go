package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/floorplan-advisor/internal/advisor"
	"github.com/ironsheep/floorplan-advisor/internal/config"
	"github.com/ironsheep/floorplan-advisor/internal/floorplan"
	"github.com/ironsheep/floorplan-advisor/internal/logging"
	"github.com/ironsheep/floorplan-advisor/internal/narration"
	"github.com/ironsheep/floorplan-advisor/internal/ocr"
	"github.com/ironsheep/floorplan-advisor/internal/server"
	"github.com/ironsheep/floorplan-advisor/internal/session"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "floorplan-advisor",
		Short: "AI floorplan analyzer - HTTP API and CLI",
		Long: `floorplan-advisor measures uploaded floorplans (walls, rooms, text labels),
asks a language model for architectural recommendations, and narrates the
reply as audio.

Run without a subcommand to start the HTTP server.

Environment variables:
  PORT, FLOORPLAN_PORT         Listen port (default 8000)
  FLOORPLAN_FRONTEND_ORIGIN    Allowed CORS origin (default http://localhost:3000)
  FLOORPLAN_PROVIDER           openai, gemini or ollama
  GROQ_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY, OLLAMA_HOST
  FLOORPLAN_TTS_API_KEY        Speech synthesis key (falls back to OPENAI_API_KEY)
  FLOORPLAN_AUDIO_DIR          Directory for narrated replies
  TESSDATA_PREFIX              Tesseract language data
  FLOORPLAN_LOG_LEVEL          debug, info, warn, error`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml or .toml)")

	root.AddCommand(newServeCmd(), newAnalyzeCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "floorplan-advisor %s\n", Version)
			fmt.Fprintf(out, "  Build time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git commit: %s\n", GitCommit)
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting floorplan advisor",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.String("provider", cfg.Advisor.Provider))

	engine := ocr.NewEngine(cfg.OCR.Language, cfg.OCR.TessdataPrefix)
	if info := engine.Probe(ctx); !info.Available {
		logger.Warn("OCR engine unavailable; uploads will fail until Tesseract is installed",
			zap.String("error", info.Error))
	}
	extractor := floorplan.NewExtractor(cfg.Extraction, engine, logger.Named("extract"))

	adv, err := advisor.New(ctx, cfg.Advisor, logger.Named("advisor"))
	if err != nil {
		return fmt.Errorf("failed to create advisor: %w", err)
	}

	audio, err := narration.NewStore(cfg.Narration.Dir, cfg.Narration.MaxArtifacts, cfg.Narration.MaxAge, logger.Named("audio"))
	if err != nil {
		return err
	}
	audio.StartJanitor(cfg.Narration.JanitorInterval)
	defer audio.Close()

	synth, err := narration.NewOpenAISynthesizer(cfg.Narration, nil)
	if err != nil {
		return err
	}
	narrator := narration.NewNarrator(synth, audio, cfg.Narration.Timeout, logger.Named("narration"))

	srv := server.New(server.Deps{
		Extractor: extractor,
		Advisor:   adv,
		Narrator:  narrator,
		Audio:     audio,
		Store:     session.NewStore(),
		OCR:       engine,
		Logger:    logger.Named("http"),
	}, server.Options{
		FrontendOrigin: cfg.Server.FrontendOrigin,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})

	for _, e := range server.Endpoints() {
		logger.Debug("route", zap.String("method", e.Method), zap.String("pattern", e.Pattern))
	}

	return srv.Run(ctx, cfg.Server.Addr())
}
