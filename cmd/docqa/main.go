// Command docqa chunks a document locally and optionally searches or asks
// questions about it without running the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/doctree"
	"github.com/dgallion1/docqa/internal/embedder"
	"github.com/dgallion1/docqa/internal/export"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/llm"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/search"
	"github.com/dgallion1/docqa/internal/session"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	label   = color.New(color.FgYellow)
	faint   = color.New(color.Faint)
	failure = color.New(color.FgRed, color.Bold)
)

func main() {
	// Load .env file if it exists (for Ollama settings)
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		failure.Fprintf(os.Stderr, "error: ")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	strategy  string
	size      int
	overlap   int
	out       string
	mode      string
	k         int
	find      string
	ask       bool
	embedding string
	pdftotext bool
	verbose   bool
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("docqa", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.strategy, "strategy", "words", "chunking strategy: words, headings or chars")
	fs.IntVar(&opts.size, "size", 800, "chunk size (words, or characters for chars)")
	fs.IntVar(&opts.overlap, "overlap", 0, "character overlap between chars windows")
	fs.StringVar(&opts.out, "out", "", "write chunks as JSON: a directory, or - for stdout")
	fs.StringVar(&opts.mode, "mode", "lexical", "search mode: lexical or embedding")
	fs.IntVar(&opts.k, "k", 4, "number of results to return")
	fs.StringVar(&opts.find, "find", "", "list chunks containing this text")
	fs.BoolVar(&opts.ask, "ask", false, "send the query to the chat model as a question")
	fs.StringVar(&opts.embedding, "embedder", "ollama", "embedding provider for -mode embedding: ollama or local")
	fs.BoolVar(&opts.pdftotext, "pdftotext", true, "fall back to pdftotext for PDFs without a text layer")
	fs.BoolVar(&opts.verbose, "verbose", false, "log progress to stderr")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: docqa [options] <file> [query]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return flag.ErrHelp
	}
	if opts.k <= 0 {
		return fmt.Errorf("-k must be positive, got %d", opts.k)
	}
	path := fs.Arg(0)
	query := strings.Join(fs.Args()[1:], " ")

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	strategy, err := chunker.ParseStrategy(opts.strategy)
	if err != nil {
		return err
	}
	cfg := chunker.Config{Strategy: strategy, ChunkSize: opts.size, Overlap: opts.overlap}
	if err := cfg.Validate(); err != nil {
		return err
	}

	doc, err := parser.ExtractFile(path, parser.Options{FallbackPdftotext: opts.pdftotext})
	if err != nil {
		return err
	}
	chunks, err := chunker.Process(doc, cfg)
	if err != nil {
		return err
	}
	log.Debug("chunked document", "path", path, "kind", doc.Kind, "chunks", len(chunks))

	if opts.out == "-" {
		return export.Write(stdout, chunks)
	}

	heading.Fprintf(stdout, "%s", doc.Title)
	faint.Fprintf(stdout, "  %s, %d chunks (%s, size %d)\n", doc.Kind, len(chunks), strategy, opts.size)

	if opts.out != "" {
		dest := export.PathFor(opts.out, path)
		if err := export.Save(dest, chunks); err != nil {
			return err
		}
		faint.Fprintf(stdout, "saved %s\n", dest)
	}

	if opts.find != "" {
		matches := search.FindMatches(session.Texts(chunks), opts.find)
		fmt.Fprintf(stdout, "\n%d chunks contain %q\n", len(matches), opts.find)
		for _, m := range matches {
			printChunk(stdout, m.Position, chunks[m.Position], "")
		}
	}

	if query == "" {
		return nil
	}
	if opts.ask {
		return ask(ctx, stdout, log, opts, chunks, path, query)
	}

	switch opts.mode {
	case session.ModeLexical:
		ranked := search.Rank(session.Texts(chunks), query)
		fmt.Fprintf(stdout, "\nTop %d of %d chunks for %q\n", min(opts.k, len(ranked)), len(ranked), query)
		for _, r := range ranked[:min(opts.k, len(ranked))] {
			printChunk(stdout, r.Position, chunks[r.Position], fmt.Sprintf("score %.2f", r.Score))
		}
	case session.ModeEmbedding:
		emb, err := newEmbedder(opts.embedding, log)
		if err != nil {
			return err
		}
		h := index.NewHandle(emb)
		if err := h.Rebuild(ctx, session.Texts(chunks)); err != nil {
			return fmt.Errorf("build index: %w", err)
		}
		results, err := h.SearchResults(ctx, query, opts.k)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nNearest %d chunks for %q\n", len(results), query)
		for _, r := range results {
			printChunk(stdout, r.Position, chunks[r.Position], fmt.Sprintf("distance %.3f", r.Distance))
		}
	default:
		return fmt.Errorf("unknown search mode %q", opts.mode)
	}
	return nil
}

// ask answers query through a throwaway session so the CLI retrieves
// context exactly like the server does.
func ask(ctx context.Context, stdout io.Writer, log *slog.Logger, opts options, chunks []doctree.Chunk, path, query string) error {
	appCfg, err := config.Load()
	if err != nil {
		return err
	}

	var emb embedder.Embedder
	if opts.mode == session.ModeEmbedding {
		if emb, err = newEmbedder(opts.embedding, log); err != nil {
			return err
		}
	}
	sess := session.NewStore(time.Hour, emb, log).Create()
	if err := sess.Publish(ctx, session.FileInfo{Name: path, Kind: parser.DetectKind(path)}, chunks); err != nil {
		return err
	}

	chat := llm.NewClient(appCfg.OllamaBaseURL, appCfg.OllamaAPIKey, appCfg.OllamaModel, llm.Options{
		Temperature: float32(appCfg.LLMTemperature),
		TopP:        float32(appCfg.LLMTopP),
		MaxTokens:   appCfg.LLMMaxTokens,
	}, nil, log)
	ans, err := sess.Ask(ctx, chat, query, session.AskOptions{EmbeddingK: opts.k, TokenBudget: appCfg.ContextTokenBudget})
	if err != nil {
		return err
	}

	label.Fprintf(stdout, "\n%s (%s, %d chunks of context)\n", chat.Model(), ans.Mode, len(ans.Contexts))
	fmt.Fprintln(stdout, ans.Answer)
	return nil
}

func newEmbedder(provider string, log *slog.Logger) (embedder.Embedder, error) {
	appCfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	emb, err := embedder.New(embedderConfig(provider, appCfg), log)
	if err != nil {
		return nil, err
	}
	if emb == nil {
		return nil, fmt.Errorf("embedding provider %q cannot search", provider)
	}
	return emb, nil
}

func embedderConfig(provider string, appCfg config.Config) embedder.Config {
	return embedder.Config{
		Provider: provider,
		OpenAIOptions: embedder.OpenAIOptions{
			BaseURL:     appCfg.OllamaBaseURL,
			APIKey:      appCfg.OllamaAPIKey,
			Model:       appCfg.EmbeddingModel,
			Dimension:   appCfg.EmbeddingDim,
			BatchSize:   appCfg.EmbedBatchSize,
			Concurrency: appCfg.EmbedConcurrency,
			CacheSize:   appCfg.EmbedCacheSize,
		},
	}
}

func printChunk(w io.Writer, pos int, c doctree.Chunk, detail string) {
	label.Fprintf(w, "\n[%d] %s", pos, c.Section)
	if detail != "" {
		faint.Fprintf(w, "  %s", detail)
	}
	fmt.Fprintln(w)
	text := c.Text
	if r := []rune(text); len(r) > 300 {
		text = string(r[:300]) + "..."
	}
	fmt.Fprintln(w, text)
}
