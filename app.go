// Command pptconv converts PowerPoint presentations (.pptx and legacy
// .ppt) into structured docx or Markdown documents, with optional OCR
// for embedded images and optional AI reorganization of slide content.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"pptconv/internal/config"
	"pptconv/internal/enrich"
	"pptconv/internal/errlog"
	"pptconv/internal/ocr"
	"pptconv/internal/pipeline"
)

func newRootCmd() *cobra.Command {
	var (
		outDir      string
		format      string
		aiService   string
		model       string
		apiKey      string
		baseURL     string
		enableOCR   bool
		tessPath    string
		ocrLang     string
		verbose     bool
		configPath  string
		maxTokens   int
		temperature float64
		jobs        int
	)

	cmd := &cobra.Command{
		Use:   "pptconv <input>...",
		Short: "Convert PowerPoint presentations to docx or Markdown",
		Long: `pptconv extracts slide content from .pptx and legacy .ppt files and
assembles it into a structured document. Embedded images can be run
through Tesseract OCR, and slide content can be reorganized by an AI
service (Ollama or any OpenAI-compatible endpoint).`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			// Flags beat every other configuration source, but only
			// when they were actually set on the command line.
			flags := cmd.Flags()
			if flags.Changed("format") {
				cfg.OutputFormat = format
			}
			if flags.Changed("ai") {
				cfg.AIService = config.NormalizeService(aiService)
				cfg.BaseURL = ""
				cfg.Model = ""
			}
			if flags.Changed("model") {
				cfg.Model = model
			}
			if flags.Changed("api-key") {
				cfg.APIKey = apiKey
			}
			if flags.Changed("base-url") {
				cfg.BaseURL = strings.TrimRight(baseURL, "/")
			}
			if flags.Changed("ocr") {
				cfg.EnableOCR = enableOCR
			}
			if flags.Changed("tesseract") {
				cfg.TesseractPath = tessPath
			}
			if flags.Changed("ocr-lang") {
				cfg.OCRLanguage = ocrLang
			}
			if flags.Changed("verbose") {
				cfg.Verbose = verbose
			}
			if flags.Changed("max-tokens") {
				cfg.MaxTokens = maxTokens
			}
			if flags.Changed("temperature") {
				cfg.Temperature = temperature
			}
			if flags.Changed("jobs") {
				cfg.Jobs = jobs
			}
			cfg.ApplyServiceDefaults()

			if err := cfg.Validate(); err != nil {
				return err
			}
			return runConversions(cmd, args, outDir, cfg)
		},
	}

	cmd.Flags().StringVarP(&outDir, "output", "o", "", "output directory (default: next to each input file)")
	cmd.Flags().StringVar(&format, "format", "docx", "output format: docx|markdown")
	cmd.Flags().StringVar(&aiService, "ai", "", "AI service: ollama|openai|none (default: none)")
	cmd.Flags().StringVar(&model, "model", "", "model name (default depends on the AI service)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key for the AI service")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "base URL for the AI service")
	cmd.Flags().BoolVar(&enableOCR, "ocr", false, "recognize text in slide images with Tesseract")
	cmd.Flags().StringVar(&tessPath, "tesseract", "", "path to the tesseract binary")
	cmd.Flags().StringVar(&ocrLang, "ocr-lang", "eng", "OCR language")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose progress output")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a JSON config file")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 2000, "max tokens per AI response")
	cmd.Flags().Float64Var(&temperature, "temperature", 0.3, "AI sampling temperature")
	cmd.Flags().IntVar(&jobs, "jobs", 1, "number of input files converted in parallel")

	return cmd
}

// runConversions converts each input with a fixed-size worker pool and
// reports a per-file summary. A failed file does not stop the others.
func runConversions(cmd *cobra.Command, inputs []string, outDir string, cfg *config.Settings) error {
	if cfg.Verbose {
		log.Printf("[Main] format=%s ai=%s model=%s key=%s ocr=%t",
			cfg.OutputFormat, cfg.AIService, cfg.Model, cfg.MaskedAPIKey(), cfg.EnableOCR)
	}

	backend, err := enrich.NewBackend(cfg.AIService, cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Temperature, cfg.MaxTokens)
	if err != nil {
		return err
	}

	var engine ocr.Engine
	if cfg.EnableOCR {
		tess := ocr.NewTesseract(cfg.TesseractPath)
		if !tess.Available() {
			log.Printf("[Main] OCR requested but Tesseract is not usable, continuing without it")
		} else {
			engine = tess
		}
	}

	opts := pipeline.Options{
		Format:      cfg.OutputFormat,
		OCREngine:   engine,
		OCRLanguage: cfg.OCRLanguage,
		Enricher:    enrich.New(backend, cfg.Verbose),
		AIService:   cfg.AIService,
		Model:       cfg.Model,
		Verbose:     cfg.Verbose,
	}

	workers := cfg.Jobs
	if workers > len(inputs) {
		workers = len(inputs)
	}

	type outcome struct {
		input string
		stats pipeline.Stats
		err   error
	}
	results := make([]outcome, len(inputs))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, input := range inputs {
		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			output := outDir
			if !isExplicitOutputFile(outDir, len(inputs)) {
				output = outputPath(input, outDir, cfg.OutputFormat)
			}
			stats, err := pipeline.Convert(cmd.Context(), input, output, opts)
			results[i] = outcome{input: input, stats: stats, err: err}
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d slides)\n", input, output, stats.Slides)
			}
		}(i, input)
	}
	wg.Wait()

	var failed int
	for _, res := range results {
		if res.err != nil {
			failed++
			fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %v\n", res.input, res.err)
			errlog.Logf("conversion failed: %s: %v", res.input, res.err)
			continue
		}
		if cfg.AIService != "" && res.stats.FallbackSlides > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "note: %s: %d of %d slides used fallback formatting\n",
				res.input, res.stats.FallbackSlides, res.stats.Slides)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(inputs))
	}
	return nil
}

// isExplicitOutputFile reports whether -o names the output file itself
// rather than a directory. Only a single input can use an explicit file.
func isExplicitOutputFile(out string, inputs int) bool {
	if out == "" || inputs != 1 {
		return false
	}
	switch filepath.Ext(out) {
	case ".docx", ".md":
		return true
	}
	return false
}

// outputPath derives the output file path from the input name, the
// optional output directory, and the format's extension.
func outputPath(input, outDir, format string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	ext := ".docx"
	if format == "markdown" {
		ext = ".md"
	}
	dir := outDir
	if dir == "" {
		dir = filepath.Dir(input)
	} else {
		os.MkdirAll(dir, 0755)
	}
	return filepath.Join(dir, stem+ext)
}
