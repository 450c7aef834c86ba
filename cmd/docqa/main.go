package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/docqa/pkg/chunker"
	cfgPkg "github.com/xhad/docqa/pkg/config"
	"github.com/xhad/docqa/pkg/engine"
	"github.com/xhad/docqa/pkg/extract"
	"github.com/xhad/docqa/pkg/index"
	"github.com/xhad/docqa/pkg/llm"
	"github.com/xhad/docqa/pkg/retriever"
	"github.com/xhad/docqa/pkg/synth"
	"github.com/xhad/docqa/server"
)

func main() {
	godotenv.Load()

	var (
		configPath string
		docPath    string
		serve      bool
		addr       string
	)
	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&docPath, "ingest", "", "Document to ingest (pdf, html, md, txt)")
	flag.BoolVar(&serve, "serve", false, "Run the HTTP server instead of the interactive loop")
	flag.StringVar(&addr, "addr", "", "Server listen address (overrides config)")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			logger.Error().Str("field", e.Field).Msg(e.Message)
		}
		logger.Fatal().Msg("invalid configuration")
	}
	if addr != "" {
		config.Server.Addr = addr
	}

	eng, err := buildEngine(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build pipeline")
	}

	if docPath != "" {
		if err := ingestFile(eng, docPath); err != nil {
			logger.Fatal().Err(err).Str("path", docPath).Msg("ingestion failed")
		}
	}

	if serve {
		srv := server.New(server.Config{Addr: config.Server.Addr, TopK: config.Index.TopK}, eng, logger)
		if err := srv.ListenAndServe(); err != nil {
			logger.Fatal().Err(err).Msg("server stopped")
		}
		return
	}

	askLoop(eng, config.Index.TopK)
}

// buildEngine assembles the pipeline once at startup. With no embedding
// model configured, the lexical retriever stands in behind the same
// contract.
func buildEngine(config *cfgPkg.Config, logger zerolog.Logger) (*engine.Engine, error) {
	idx := index.NewWithConfig(index.IndexConfig{
		SnapshotPath: config.Index.SnapshotPath,
		Logger:       logger,
	})

	ch := chunker.NewWithConfig(chunker.ChunkerConfig{
		ChunkSize:    config.Chunker.ChunkSize,
		ChunkOverlap: config.Chunker.ChunkOverlap,
	})

	generator, err := llm.NewGeneratorWithConfig(llm.GeneratorConfig{
		Model:       config.LLM.ChatModel,
		BaseURL:     config.LLM.BaseURL,
		Temperature: config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
		MaxRetries:  config.LLM.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	synthesizer := synth.NewWithConfig(synth.SynthesizerConfig{Generator: generator})

	if config.LexicalMode() {
		logger.Info().Msg("no embedding model configured, using lexical retrieval")
		r := retriever.NewLexicalRetriever(idx)
		return engine.New(engine.EngineConfig{DefaultTopK: config.Index.TopK, Logger: logger}, ch, nil, idx, r, synthesizer), nil
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:      config.LLM.EmbeddingModel,
		BaseURL:    config.LLM.BaseURL,
		MaxRetries: config.LLM.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	var bar *progressbar.ProgressBar
	batcher := llm.NewBatchEmbedder(embedder, llm.BatchEmbedderConfig{
		BatchSize:  config.Ingest.BatchSize,
		BatchDelay: time.Duration(config.Ingest.BatchDelayMS) * time.Millisecond,
		Logger:     logger,
		OnProgress: func(done, total int) {
			if bar == nil || bar.GetMax() != total {
				bar = getProgressBar(total, "Embedding chunks...")
			}
			bar.Set(done)
		},
	})

	r := retriever.NewEmbeddingRetriever(embedder, idx)
	return engine.New(engine.EngineConfig{DefaultTopK: config.Index.TopK, Logger: logger}, ch, batcher, idx, r, synthesizer), nil
}

func ingestFile(eng *engine.Engine, path string) error {
	color.Blue("\nIngesting %s\n", path)

	extracted, err := extract.FromFile(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if extracted.Paged() {
		result, err := eng.IngestPages(ctx, extracted.Pages)
		if err != nil {
			return err
		}
		color.Green("\n✓ Ingested %d pages into %d chunks\n", result.NumPages, result.NumChunks)
		return nil
	}

	result, err := eng.IngestText(ctx, extracted.Text)
	if err != nil {
		return err
	}
	color.Green("\n✓ Ingested document into %d chunks\n", result.NumChunks)
	return nil
}

func askLoop(eng *engine.Engine, topK int) {
	color.Cyan("\nAsk questions about your document (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.ToLower(question) == "exit" {
			break
		}

		answer, err := eng.Query(context.Background(), question, topK)
		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}

		assistantPrompt("\nAssistant: %s\n", answer.Text)
		if len(answer.Citations) > 0 {
			fmt.Println()
			for _, c := range answer.Citations {
				fmt.Printf("  [%d] %s (page %s): %s\n", c.Index, c.ChunkID, c.PageNumber, c.Preview)
			}
		}
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
