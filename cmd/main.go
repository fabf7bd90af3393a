package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/db"
	"docrag/internal/embedding"
	"docrag/internal/helper"
	"docrag/internal/llmservice"
	"docrag/internal/models"
	"docrag/internal/parser"
	"docrag/internal/rag"
	"docrag/internal/retriever"
	"docrag/internal/store"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	filePath := flag.String("file", "", "Path to the document file to ingest")
	query := flag.String("query", "", "Question to be answered")
	topK := flag.Int("k", 0, "Override top_k for this query (0 uses the configured default)")
	useDB := flag.Bool("db", false, "Query the Postgres backend instead of the file store")
	clear := flag.Bool("clear", false, "Delete the collection before ingesting")
	dryRun := flag.Bool("dry-run", false, "Parse and chunk only, do not embed or store")
	configPath := flag.String("config", configFilePath, "Path to the config file")
	flag.Parse()

	if *filePath != "" && *query != "" {
		log.Fatal().Msg("Please provide either a document file using the -file flag or a question using the -query flag, but not both")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	log.Debug().Interface("config", cfg.RAG).Msg("Loaded config")

	ctx := context.Background()
	switch {
	case *filePath != "":
		ingestFile(ctx, cfg, *filePath, *clear, *dryRun)
	case *query != "" && *useDB:
		askPostgres(ctx, cfg, *query, *topK)
	case *query != "":
		askQuestion(ctx, cfg, *query, *topK)
	default:
		log.Fatal().Msg("Please provide either a document file using the -file flag or a question using the -query flag")
	}
}

// ingestFile runs the write path: parse -> chunk -> embed -> append.
func ingestFile(ctx context.Context, cfg *config.Config, filePath string, clear, dryRun bool) {
	doc, err := parser.Parse(filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error parsing document")
	}
	log.Info().Str("file", doc.Origin.Filename).Int("elements", len(doc.Elements)).Msg("Parsed document")

	tok, err := chunker.NewTiktokenTokenizer(cfg.RAG.Encoding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing tokenizer")
	}
	ch, err := chunker.New(tok, cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing chunker")
	}
	chunks, err := ch.Chunk(doc)
	if err != nil {
		log.Fatal().Err(err).Msg("Error chunking document")
	}
	log.Info().Int("chunks", len(chunks)).Msg("Chunked document")

	if dryRun {
		helper.PrettyPrint(chunks)
		return
	}

	if err := helper.CreateFolder(cfg.Store.Path); err != nil {
		log.Fatal().Err(err).Msg("Error creating store folder")
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	if clear {
		if err := st.Delete(cfg.Store.Collection); err != nil && !errors.Is(err, store.ErrNotFound) {
			log.Fatal().Err(err).Msg("Error clearing collection")
		}
	}
	col, err := st.Create(cfg.Store.Collection, cfg.EmbedLLM.Model, cfg.EmbedLLM.Dimension)
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating collection")
	}

	embedFn, err := embedding.NewFunc(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	log.Info().Msgf("Adding %d chunks to collection %s", len(chunks), col.Name())
	added, err := col.Append(ctx, chunks, embedFn)
	if err != nil {
		log.Fatal().Err(err).Msg("Error appending to collection")
	}
	log.Info().Int("added", added).Int("total", col.Count()).Msg("Stored chunks")

	if cfg.Database.Enabled {
		mirrorToPostgres(ctx, cfg, chunks, embedFn, clear)
	}
}

// mirrorToPostgres also writes the batch to the Postgres backend when
// it is enabled in config.
func mirrorToPostgres(ctx context.Context, cfg *config.Config, chunks []models.Chunk, embedFn embedding.Func, clear bool) {
	sqldb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	dbInstance := db.NewDB(sqldb, cfg.Database.Debug)
	defer dbInstance.Close()

	if clear {
		if err := db.DropRecords(ctx, dbInstance); err != nil {
			log.Fatal().Err(err).Msg("Error clearing database records")
		}
	}
	if err := db.InitDB(ctx, dbInstance, cfg.EmbedLLM.Dimension); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}

	embeddings := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		vec, err := embedFn(ctx, chunk.Text)
		if err != nil {
			log.Fatal().Err(err).Msg("Error generating embedding")
		}
		embeddings[i] = vec
	}
	if err := db.StoreRecords(ctx, dbInstance, chunks, embeddings); err != nil {
		log.Fatal().Err(err).Msg("Error storing records")
	}
	log.Info().Int("records", len(chunks)).Msg("Mirrored chunks to Postgres")
}

// askQuestion runs the read path: load collection -> retrieve -> generate.
func askQuestion(ctx context.Context, cfg *config.Config, query string, k int) {
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	col, err := st.Load(cfg.Store.Collection)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading collection")
	}

	embedFn, err := embedding.NewFunc(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	ret, err := retriever.New(col, embedFn, cfg.EmbedLLM.Model, cfg.RAG.TopK)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing retriever")
	}
	gen, err := llmservice.NewOpenAIGenerator(&cfg.InferenceLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing generator")
	}

	pipeline := rag.New(ret, gen)
	answer, err := pipeline.Answer(ctx, query, k)
	if err != nil {
		if answer != nil && answer.Failed {
			log.Error().Err(err).Bool("retryable", llmservice.IsRetryable(err)).Msg("Generation failed")
		} else {
			log.Fatal().Err(err).Msg("Error querying")
		}
	}
	printAnswer(answer)
}

// askPostgres runs the read path against the Postgres backend,
// retrieving with the pgvector operators instead of the file store.
func askPostgres(ctx context.Context, cfg *config.Config, query string, k int) {
	if !cfg.Database.Enabled {
		log.Fatal().Msg("Postgres backend is not enabled in config")
	}
	sqldb, err := db.ConnectDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	dbInstance := db.NewDB(sqldb, cfg.Database.Debug)
	defer dbInstance.Close()

	embedFn, err := embedding.NewFunc(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	vec, err := embedFn(ctx, query)
	if err != nil {
		log.Fatal().Err(err).Msg("Error embedding query")
	}
	if k <= 0 {
		k = cfg.RAG.TopK
	}
	rows, err := db.SearchRecords(ctx, dbInstance, vec, k)
	if err != nil {
		log.Fatal().Err(err).Msg("Error searching database")
	}
	retrieved := make([]models.ScoredChunk, len(rows))
	for i, row := range rows {
		retrieved[i] = row.ToScoredChunk()
	}

	gen, err := llmservice.NewOpenAIGenerator(&cfg.InferenceLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing generator")
	}
	answer, err := rag.New(nil, gen).AnswerWith(ctx, query, retrieved)
	if err != nil {
		log.Error().Err(err).Bool("retryable", llmservice.IsRetryable(err)).Msg("Generation failed")
	}
	printAnswer(answer)
}

func printAnswer(answer *models.Answer) {
	log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Question)

	log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	for _, src := range answer.Sources {
		heading := strings.Join(src.Chunk.HeadingPath, " > ")
		if heading == "" {
			heading = "(no heading)"
		}
		fmt.Printf("[%d] %5.1f%%  %s (%s)\n", src.SourceNumber, src.RelevanceScore*100, heading, src.Chunk.Origin.Filename)
	}
	fmt.Println()

	log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
	fmt.Printf("%s\n\n", answer.Text)

	log.Info().
		Int("retrieved", answer.Metrics.RetrievedCount).
		Float64("avg_similarity", answer.Metrics.AverageSimilarity).
		Int("answer_chars", answer.Metrics.AnswerLength).
		Msg("Answer metrics")
}
