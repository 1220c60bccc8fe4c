package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finsightlab/mlbridge/bridge"
	"github.com/finsightlab/mlbridge/internal/config"
	"github.com/finsightlab/mlbridge/internal/metrics"
	"github.com/finsightlab/mlbridge/internal/mockmodel"
	"github.com/finsightlab/mlbridge/models"
)

func main() {
	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	setupSignalHandling(cancel)

	// 1. Parse command line flags
	inputPath := flag.String("input", "-", "path to a JSON analysis document, - for stdin")
	streamMode := flag.Bool("stream", false, "feed the document through the streaming adapter")
	chunkSize := flag.Int("chunk-size", 1000, "records per stream chunk, used with -stream")
	flag.Parse()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// 3. Configure logging
	setupLogging(cfg.LogLevel)
	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Msg("Starting transaction analysis bridge")

	// 4. Print configuration
	printConfig(cfg)

	// 5. Expose metrics if an address is configured
	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr)
	}

	// 6. Build the analyzer and the pipeline around it
	pipeline := bridge.NewPipeline(buildAnalyzer(cfg), bridge.Options{
		Timeout:     time.Duration(cfg.TimeoutMs) * time.Millisecond,
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelayMs) * time.Millisecond,
		BatchSize:   cfg.BatchSize,
		BatchDelay:  time.Duration(cfg.BatchDelayMs) * time.Millisecond,
	})

	// 7. Load the input document
	input, err := loadInput(*inputPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load input document")
	}
	log.Info().Int("records", len(input.Transactions)).Msg("Input document loaded")

	// 8. Run the analysis
	started := time.Now()
	var result *models.AnalysisResult
	if *streamMode {
		result, err = analyzeAsStream(ctx, pipeline, input, *chunkSize)
	} else {
		result, err = pipeline.AnalyzeBatch(ctx, input, nil)
	}
	if err != nil {
		log.Fatal().Err(err).Str("run_id", runID).Msg("Analysis failed")
	}

	log.Info().
		Str("run_id", runID).
		Dur("elapsed", time.Since(started)).
		Str("trend", string(result.Summary.Trend)).
		Float64("risk_score", result.Summary.RiskScore).
		Int("anomalies", result.Summary.AnomalyCount).
		Msg("Analysis complete")

	// 9. Emit the result on stdout
	if err := writeResult(os.Stdout, result); err != nil {
		log.Fatal().Err(err).Msg("Failed to write result")
	}
}

// setupSignalHandling configures signal handling for graceful shutdown
func setupSignalHandling(cancel context.CancelFunc) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("Shutdown signal received, exiting...")
		cancel()
		os.Exit(0)
	}()
}

// setupLogging configures the logger
func setupLogging(logLevel string) {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = log.Output(output)

	// Set log level from config
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Logger.Level(level)
}

// printConfig outputs the current configuration
func printConfig(cfg *config.Config) {
	log.Info().
		Str("ModelCommand", cfg.ModelCommand).
		Str("ModelArgs", cfg.ModelArgs).
		Str("Analyzer", cfg.Analyzer).
		Int("TimeoutMs", cfg.TimeoutMs).
		Int("MaxAttempts", cfg.MaxAttempts).
		Int("BaseDelayMs", cfg.BaseDelayMs).
		Int("BatchSize", cfg.BatchSize).
		Int("BatchDelayMs", cfg.BatchDelayMs).
		Str("MetricsAddr", cfg.MetricsAddr).
		Msg("Configuration loaded")
}

// serveMetrics exposes the bridge collectors over HTTP
func serveMetrics(addr string) {
	metrics.Register(prometheus.DefaultRegisterer)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving Prometheus metrics")
		if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
			log.Error().Err(err).Msg("Metrics endpoint failed")
		}
	}()
}

// buildAnalyzer picks the configured analyzer implementation
func buildAnalyzer(cfg *config.Config) models.Analyzer {
	if cfg.Analyzer == "builtin" {
		log.Info().Msg("Using the builtin in-process analyzer")
		return mockmodel.New()
	}
	log.Info().Str("command", cfg.ModelCommand).Msg("Using the subprocess analyzer")
	return bridge.NewInvoker(cfg.ModelCommand, cfg.ModelArgv()...)
}

// loadInput reads the analysis document from a file or stdin
func loadInput(path string) (*models.AnalysisInput, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" || path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}

	var input models.AnalysisInput
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("parse input document: %w", err)
	}
	return &input, nil
}

// analyzeAsStream replays the document through the streaming adapter,
// mimicking a chunked upload
func analyzeAsStream(ctx context.Context, pipeline *bridge.Pipeline, input *models.AnalysisInput, chunkSize int) (*models.AnalysisResult, error) {
	chunks := make(chan bridge.Chunk)
	go func() {
		defer close(chunks)
		for _, records := range bridge.Split(input.Transactions, chunkSize) {
			select {
			case chunks <- bridge.Chunk{Records: records}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return pipeline.AnalyzeStream(ctx, chunks, nil)
}

// writeResult renders the analysis result as indented JSON
func writeResult(w io.Writer, result *models.AnalysisResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
