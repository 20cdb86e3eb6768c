package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"document-qa/internal/answer"
	"document-qa/internal/chunker"
	"document-qa/internal/config"
	"document-qa/internal/embedding"
	"document-qa/internal/eval"
	"document-qa/internal/extract"
	"document-qa/internal/helper"
	"document-qa/internal/index"
	"document-qa/internal/ingest"
	"document-qa/internal/llmservice"
	"document-qa/internal/rag"
	"document-qa/internal/reranker"
	"document-qa/internal/retrieval"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	_ = godotenv.Load()

	configPath := flag.String("config", defaultConfigPath, "Path to the config file")
	corpusDir := flag.String("dir", "", "Directory of documents to ingest")
	query := flag.String("query", "", "Question to answer")
	goldenPath := flag.String("eval", "", "Golden set file for retrieval evaluation")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx := context.Background()

	switch {
	case *corpusDir != "":
		ingestCorpus(ctx, cfg, *corpusDir)
	case *goldenPath != "":
		evaluateRetrieval(ctx, cfg, *goldenPath)
	case *query != "":
		answerQuery(ctx, cfg, *query)
	default:
		interactive(ctx, cfg)
	}
}

func buildIndex(ctx context.Context, cfg *config.Config, modelVersion string) (index.Index, error) {
	switch cfg.Store.Backend {
	case "memory":
		return index.NewMemory(modelVersion), nil
	case "chromem":
		if err := helper.CreateFolder(cfg.Store.Path); err != nil {
			return nil, err
		}
		return index.NewChromem(cfg.Store.Path, cfg.Store.Collection, modelVersion)
	case "postgres":
		return index.NewPostgres(ctx, &cfg.Store, modelVersion)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func ingestCorpus(ctx context.Context, cfg *config.Config, dir string) {
	embedder, err := embedding.FromConfig(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	idx, err := buildIndex(ctx, cfg, embedder.ModelVersion())
	if errors.Is(err, index.ErrModelMismatch) {
		log.Fatal().Err(err).Msg("Embedding model changed; clear the index and re-ingest")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector index")
	}

	// Full re-ingestion: readers must never see a half-built index.
	if err := idx.Clear(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error clearing index")
	}

	ch, err := chunker.New(cfg.RAG.ChunkTokens, cfg.RAG.OverlapTokens, cfg.RAG.MinChunkTokens)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid chunking configuration")
	}

	pipeline := ingest.NewPipeline(ch, embedder, idx,
		ingest.WithExtractFunc(extract.File),
		ingest.WithFailureLog("failed_files.txt"))

	report, err := pipeline.IngestDir(ctx, dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Error ingesting corpus")
	}
	helper.PrettyPrint(report)
}

func newService(ctx context.Context, cfg *config.Config) (*rag.Service, error) {
	embedder, err := embedding.FromConfig(&cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}

	idx, err := buildIndex(ctx, cfg, embedder.ModelVersion())
	if err != nil {
		return nil, fmt.Errorf("opening vector index: %w", err)
	}

	rr := reranker.NewHTTPReranker(&cfg.Reranker)
	pipeline := retrieval.NewPipeline(embedder, idx, rr, retrieval.Options{
		TopKSearch:     cfg.RAG.TopKSearch,
		TopKRerank:     cfg.RAG.TopKRerank,
		MinRerankScore: cfg.RAG.MinRerankScore,
	})

	generator, err := llmservice.NewClient(&cfg.InferLLM)
	if err != nil {
		return nil, fmt.Errorf("initializing generator: %w", err)
	}

	return rag.NewService(pipeline, answer.NewAssembler(generator)), nil
}

func answerQuery(ctx context.Context, cfg *config.Config, query string) {
	svc, err := newService(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building query service")
	}
	runQuery(ctx, svc, query)
}

func interactive(ctx context.Context, cfg *config.Config) {
	svc, err := newService(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error building query service")
	}

	fmt.Println("Ready! Enter your questions (or 'quit' to exit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("Query: ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" || line == "q" {
			fmt.Println("Goodbye!")
			return
		}
		runQuery(ctx, svc, line)
	}
}

func runQuery(ctx context.Context, svc *rag.Service, query string) {
	resp, err := svc.Query(ctx, query)
	switch {
	case errors.Is(err, answer.ErrGenerationFailed):
		log.Fatal().Err(err).Msg("Generation failed; retry later")
	case err != nil:
		log.Fatal().Err(err).Msg("Error querying")
	}

	fmt.Printf("\nQuery:\n%s\n\n", resp.Query)
	fmt.Printf("Answer:\n%s\n\n", resp.Answer)
	if len(resp.Citations) > 0 {
		fmt.Println("Sources:")
		for _, c := range resp.Citations {
			fmt.Printf("  - %s (page %d)\n", c.Filename, c.PageNumber)
		}
		fmt.Println()
	}
}

func evaluateRetrieval(ctx context.Context, cfg *config.Config, goldenPath string) {
	embedder, err := embedding.FromConfig(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	idx, err := buildIndex(ctx, cfg, embedder.ModelVersion())
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector index")
	}
	pipeline := retrieval.NewPipeline(embedder, idx, reranker.NewHTTPReranker(&cfg.Reranker),
		retrieval.Options{
			TopKSearch:     cfg.RAG.TopKSearch,
			TopKRerank:     cfg.RAG.TopKRerank,
			MinRerankScore: cfg.RAG.MinRerankScore,
		})

	cases, err := eval.LoadGoldenSet(goldenPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading golden set")
	}

	metrics, err := eval.Run(ctx, pipeline, cases)
	if err != nil {
		log.Fatal().Err(err).Msg("Error running evaluation")
	}
	fmt.Printf("Recall@%d: %.3f  MRR: %.3f  (%d/%d hits)\n",
		cfg.RAG.TopKRerank, metrics.RecallK, metrics.MRR, metrics.Hits, metrics.Cases)
}
