package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ironsheep/floorplan-advisor/internal/advisor"
	"github.com/ironsheep/floorplan-advisor/internal/config"
	"github.com/ironsheep/floorplan-advisor/internal/floorplan"
	"github.com/ironsheep/floorplan-advisor/internal/imaging"
	"github.com/ironsheep/floorplan-advisor/internal/logging"
	"github.com/ironsheep/floorplan-advisor/internal/ocr"
)

type analyzeOptions struct {
	advise     bool
	noOCR      bool
	jsonOutput bool
	edgesOut   string
	overlayOut string
}

// analyzeReport is the --json output of analyze.
type analyzeReport struct {
	File           string `json:"file"`
	Format         string `json:"format"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Features       string `json:"detected_features"`
	WallCount      int    `json:"wall_count"`
	RoomCount      int    `json:"room_count"`
	ExtractedText  string `json:"extracted_text"`
	Recommendation string `json:"recommendation,omitempty"`
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
)

func newAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Measure a floorplan image offline",
		Long: `Runs the extraction pipeline on a local image and prints the wall count,
room count and recognized text. With --advise the recommendation is fetched
from the configured provider and rendered as markdown.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.advise, "advise", false, "ask the advisor for recommendations")
	cmd.Flags().BoolVar(&opts.noOCR, "no-ocr", false, "skip text recognition")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&opts.edgesOut, "edges", "", "write the edge map PNG to this path")
	cmd.Flags().StringVar(&opts.overlayOut, "overlay", "", "write the wall and room overlay PNG to this path")
	return cmd
}

func runAnalyze(ctx context.Context, out io.Writer, path string, opts *analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	src, err := imaging.Open(path)
	if err != nil {
		return err
	}

	var recognizer ocr.Recognizer
	if !opts.noOCR {
		recognizer = ocr.NewEngine(cfg.OCR.Language, cfg.OCR.TessdataPrefix)
	}
	// The overlay file is drawn below from the source raster.
	params := cfg.Extraction
	params.Overlay = false

	features, err := floorplan.NewExtractor(params, recognizer, logger).ExtractFeatures(ctx, src.Image)
	if err != nil {
		return err
	}

	if err := writeOutputs(features, src, opts); err != nil {
		return err
	}

	report := analyzeReport{
		File:          path,
		Format:        src.Format,
		Width:         src.Width,
		Height:        src.Height,
		Features:      features.Summary(),
		WallCount:     features.WallCount,
		RoomCount:     features.RoomCount,
		ExtractedText: features.Text,
	}

	if opts.advise {
		if cfg.Advisor.Provider != advisor.ProviderOllama && cfg.Advisor.APIKey == "" {
			return fmt.Errorf("missing API key for advisor provider %q", cfg.Advisor.Provider)
		}
		adv, err := advisor.New(ctx, cfg.Advisor, logger.Named("advisor"))
		if err != nil {
			return err
		}
		reply, err := adv.Advise(ctx, advisor.AnalysisPrompt(report.Features, report.ExtractedText))
		if err != nil {
			return err
		}
		report.Recommendation = reply
		logger.Debug("received recommendation", zap.Int("len", len(reply)))
	}

	if opts.jsonOutput {
		data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	return printReport(out, report)
}

func writeOutputs(features *floorplan.Features, src *imaging.Source, opts *analyzeOptions) error {
	if opts.edgesOut != "" {
		data, err := imaging.EncodePNG(features.EdgeMap)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.edgesOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write edge map: %w", err)
		}
	}
	if opts.overlayOut != "" {
		overlay := imaging.Overlay(src.Image, features.Walls, features.Rooms, imaging.OverlayOptions{Thickness: 2, LabelRooms: true})
		data, err := imaging.EncodePNG(overlay)
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.overlayOut, data, 0o644); err != nil {
			return fmt.Errorf("failed to write overlay: %w", err)
		}
	}
	return nil
}

func printReport(out io.Writer, r analyzeReport) error {
	var b strings.Builder
	b.WriteString(headingStyle.Render("Floorplan analysis"))
	b.WriteString("\n")
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-10s", label)))
		b.WriteString(" ")
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("File", r.File)
	row("Size", fmt.Sprintf("%dx%d %s", r.Width, r.Height, r.Format))
	row("Walls", fmt.Sprintf("%d", r.WallCount))
	row("Rooms", fmt.Sprintf("%d", r.RoomCount))
	row("Text", r.ExtractedText)

	if r.Recommendation != "" {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			return fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		rendered, err := renderer.Render(r.Recommendation)
		if err != nil {
			return fmt.Errorf("failed to render recommendation: %w", err)
		}
		b.WriteString("\n")
		b.WriteString(headingStyle.Render("Recommendation"))
		b.WriteString("\n")
		b.WriteString(rendered)
	}

	_, err := io.WriteString(out, b.String())
	return err
}
