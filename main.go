package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gamma-omg/rag-chat/chunker"
	"github.com/gamma-omg/rag-chat/docstore"
	"github.com/gamma-omg/rag-chat/embedder"
	"github.com/gamma-omg/rag-chat/generator"
	"github.com/gamma-omg/rag-chat/normalizer"
	"github.com/gamma-omg/rag-chat/readers"
	"github.com/gamma-omg/rag-chat/retriever"
	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

type index interface {
	vectorIndex
	retriever.Searcher
	Close() error
}

// app holds every service, built once at startup and closed on shutdown.
type app struct {
	cfg       *Config
	log       *slog.Logger
	logFile   *os.File
	index     index
	ingestor  *Ingestor
	retriever *retriever.Retriever
	asker     *Asker
}

func createEmbeddingProvider(cfg *Config) (*embedder.FunctionProvider, error) {
	if cfg.OpenAI != nil {
		return embedder.NewOpenAIProvider(cfg.OpenAI.ApiKey, cfg.OpenAI.EmbeddingModel)
	}

	if cfg.Gemini != nil {
		return embedder.NewGeminiProvider(cfg.Gemini.ApiKey, cfg.Gemini.EmbeddingModel)
	}

	return nil, errors.New("invalid embeddings provider configuration")
}

func createModel(ctx context.Context, cfg *Config) (generator.Model, error) {
	if cfg.OpenAI != nil {
		return generator.NewOpenAIModel(generator.OpenAIConfig{
			APIKey:  cfg.OpenAI.ApiKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	}

	if cfg.Gemini != nil {
		return generator.NewGeminiModel(ctx, generator.GeminiConfig{
			APIKey: cfg.Gemini.ApiKey,
			Model:  cfg.Gemini.Model,
		})
	}

	return nil, errors.New("invalid generation provider configuration")
}

func initIndex(ctx context.Context, cfg *Config, provider *embedder.FunctionProvider, reset bool) (index, error) {
	switch cfg.Index.Type {
	case "chroma":
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		store, err := docstore.NewChromaStore(ctx, docstore.ChromaStoreConfig{
			BaseURL:       cfg.Index.ChromaAddr,
			Collection:    cfg.Index.Collection,
			EmbeddingFunc: provider.EmbeddingFunction(),
			Reset:         reset,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Chroma doc store: %w", err)
		}

		return store, nil

	default:
		if reset {
			err := os.Remove(cfg.Index.Path)
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to reset index %s: %w", cfg.Index.Path, err)
			}
		}

		store, err := docstore.NewSQLiteStore(cfg.Index.Path, cfg.Index.Dimensions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite doc store: %w", err)
		}

		return store, nil
	}
}

func newApp(ctx context.Context, cfgPath string, reset bool) (*app, error) {
	cfg, err := readConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(io.MultiWriter(logFile, os.Stderr), nil))

	provider, err := createEmbeddingProvider(cfg)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}

	model, err := createModel(ctx, cfg)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("failed to create generative model: %w", err)
	}

	tok, err := chunker.NewTiktoken(cfg.Encoding)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	idx, err := initIndex(ctx, cfg, provider, reset)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	emb := embedder.NewClient(provider,
		embedder.WithLogger(logger),
		embedder.WithBatchSize(cfg.EmbedBatchSize),
		embedder.WithRetryPolicy(embedder.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			Delay:       time.Duration(cfg.Retry.DelayMs) * time.Millisecond,
			Multiplier:  cfg.Retry.Multiplier,
		}))

	ret := retriever.New(emb, idx)
	gen := generator.New(model,
		generator.WithLogger(logger),
		generator.WithTemperature(*cfg.Generation.Temperature),
		generator.WithMaxTokens(cfg.Generation.MaxTokens))

	return &app{
		cfg:     cfg,
		log:     logger,
		logFile: logFile,
		index:   idx,
		ingestor: &Ingestor{
			log:        logger,
			path:       cfg.Source,
			source:     cfg.SourceName,
			batchSize:  cfg.IndexBatchSize,
			readers:    []fileReader{&readers.UniversalFileReader{}},
			normalizer: normalizer.New(),
			chunker:    chunker.New(tok, cfg.ChunkSize),
			embedder:   emb,
			index:      idx,
			progress:   &ProgressFile{path: cfg.ProgressFile},
		},
		retriever: ret,
		asker: &Asker{
			log:       logger,
			retriever: ret,
			generator: gen,
			results:   cfg.Results,
		},
	}, nil
}

func (a *app) Close() {
	err := a.index.Close()
	if err != nil {
		a.log.Error("failed to close index", slog.String("error", err.Error()))
	}

	a.logFile.Close()
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "rag-chat",
		Short:         "Chat with a document through retrieval-augmented generation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "cfg/config.yaml", "Configuration file")

	var reset bool
	ingest := &cobra.Command{
		Use:   "ingest",
		Short: "Chunk, embed and index the source document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cfgPath, reset)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.ingestor.Run(cmd.Context())
		},
	}
	ingest.Flags().BoolVar(&reset, "reset", false, "Reinitialize the index from scratch")

	var watch bool
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Ingest the source document if needed and serve queries over HTTP and MCP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), cfgPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.serve(cmd.Context(), watch)
		},
	}
	serve.Flags().BoolVar(&watch, "watch", false, "Re-ingest the source document when it changes")

	ask := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question from the indexed document",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfgPath, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.asker.Ask(cmd.Context(), strings.Join(args, " "))
			if res.Status != StatusSuccess {
				return fmt.Errorf("%s: %s", res.Kind, res.Error)
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Response)
			return nil
		},
	}

	root.AddCommand(ingest, serve, ask)
	return root
}

func (a *app) serve(ctx context.Context, watch bool) error {
	err := a.ingestor.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	if watch {
		w := &Watcher{
			log:              a.log,
			path:             a.cfg.Source,
			mergeEventsDelay: time.Duration(a.cfg.MergeEventsMs) * time.Millisecond,
			ingestor:         a.ingestor,
		}

		err = w.Watch(ctx)
		if err != nil {
			return err
		}
	}

	if a.cfg.MCPAddr != "" {
		srv := NewRagServer(a.asker, a.retriever, a.cfg.Results)
		sse := server.NewSSEServer(srv, server.WithBaseURL(fmt.Sprintf("http://%s", a.cfg.MCPAddr)))
		go func() {
			err := sse.Start(a.cfg.MCPAddr)
			if err != nil {
				a.log.Error("mcp server stopped", slog.String("error", err.Error()))
			}
		}()
		defer func() { _ = sse.Shutdown(context.Background()) }()
	}

	a.log.Info("serving queries", slog.String("addr", a.cfg.ServerAddr))
	h := NewHTTPHandler(HTTPServerConfig{
		Addr:        a.cfg.ServerAddr,
		CORSOrigins: a.cfg.CORSOrigins,
		StaticDir:   a.cfg.StaticDir,
	}, a.asker, a.log)

	return ServeHTTP(ctx, a.cfg.ServerAddr, h)
}

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		log.Fatal(err)
	}
}
