// Package main is the kikitori CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kikitori/internal/cli"
	"github.com/hyperjump/kikitori/internal/config"
	"github.com/hyperjump/kikitori/internal/indexer"
	"github.com/hyperjump/kikitori/internal/models"
	"github.com/hyperjump/kikitori/internal/server"
	"github.com/hyperjump/kikitori/internal/storage"
	"github.com/hyperjump/kikitori/internal/watcher"
	"github.com/hyperjump/kikitori/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kikitori/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory wins if present; when neither exists the built-in
// defaults are used relative to the current directory.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, validated(cfg)
			}
			if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
				cfg := config.Default(cwd)
				return cfg, "", validated(cfg)
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, validated(cfg)
}

func validated(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func main() {
	// .env is optional; it usually carries GROQ_API_TOKEN.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "init":
		runInit()
	case "ingest":
		runIngest()
	case "query", "search":
		runQuery()
	case "ask":
		runAsk()
	case "server":
		runServer()
	case "sources":
		runSources()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kikitori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config, builds the logger and initializes components. It exits
// the process on failure.
func setup(configPath string, debugFlag, force bool) (*Components, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded",
		zap.String("config_path", resolved),
		zap.Bool("debug", debugMode))

	components, err := initializeComponents(context.Background(), cfg, logger, debugMode, force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	return components, logger
}

func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s failed: %v\n", action, err)
	os.Exit(1)
}

func parseFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "where to write the config file")
	overwrite := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if _, err := os.Stat(*path); err == nil && !*overwrite {
		fmt.Fprintf(os.Stderr, "%s already exists (use -force to overwrite)\n", *path)
		os.Exit(1)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if err := config.Save(*path, cfg); err != nil {
		fail("Init", err)
	}
	fmt.Printf("Wrote default config to %s\n", *path)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	force := fs.Bool("force", false, "ignore the embedded-chunk cache and re-embed everything")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)
	target := strings.TrimSpace(fs.Arg(0))

	if *serverURL != "" {
		client := newAPIClient(*serverURL, 10*time.Minute)
		var report indexer.Report
		body := map[string]string{"path": target}
		if err := client.do(context.Background(), http.MethodPost, "/api/v1/ingest", body, &report); err != nil {
			fail("Ingestion", err)
		}
		if err := cli.WriteReport(os.Stdout, &report, format); err != nil {
			fail("Output", err)
		}
		return
	}

	forceRebuild := *force || config.ForceRebuild()
	components, logger := setup(*configPath, *debug, forceRebuild)
	defer logger.Sync()
	defer components.Close()

	if target == "" {
		target = components.Config.Transcripts.Directory
	}
	report, err := components.Indexer.IngestPath(context.Background(), target)
	if err != nil {
		fail("Ingestion", err)
	}
	if err := cli.WriteReport(os.Stdout, report, format); err != nil {
		fail("Output", err)
	}
}

// printQueryUsage prints query subcommand usage.
func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kikitori query [flags] <text>\n\n")
	fmt.Fprintf(fs.Output(), "Text is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  kikitori query what is a neural network
  kikitori query "what is a neural network" -top-k 5
  kikitori query -output json gradient descent
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// positional text to the front so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
	}
	return defaultPath
}

// retrievalDefaultsFromConfig returns the configured default top_k and snippet
// width, falling back to built-in defaults when the config cannot be loaded.
func retrievalDefaultsFromConfig(path string) (topK, snippetChars int) {
	topK, snippetChars = 3, cli.DefaultSnippetChars
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return topK, snippetChars
	}
	return cfg.Retrieval.DefaultTopK, cfg.Retrieval.SnippetChars
}

type queryFlags struct {
	configPath string
	serverURL  string
	topK       int
	snippets   int
	format     cli.OutputFormat
	debug      bool
	text       string
}

func parseQueryFlags(name string, args []string) queryFlags {
	args = searchArgsReorder(args)
	defaultTopK, defaultSnippets := retrievalDefaultsFromConfig(configPathFromArgs(args, defaultConfigPath))

	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	topK := fs.Int("top-k", defaultTopK, "number of chunks to retrieve")
	snippets := fs.Int("snippet-chars", defaultSnippets, "characters of chunk text to show per result (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(args)

	text := buildSearchQuery(fs.Args())
	if text == "" {
		fs.Usage()
		os.Exit(1)
	}
	return queryFlags{
		configPath: *configPath,
		serverURL:  *serverURL,
		topK:       *topK,
		snippets:   *snippets,
		format:     parseFormat(*outputFormat),
		debug:      *debug,
		text:       text,
	}
}

func runQuery() {
	qf := parseQueryFlags("query", os.Args[2:])
	q := &models.Query{Text: qf.text, TopK: qf.topK}

	var result models.RetrievalResult
	if qf.serverURL != "" {
		client := newAPIClient(qf.serverURL, time.Minute)
		if err := client.do(context.Background(), http.MethodPost, "/api/v1/query", q, &result); err != nil {
			fail("Query", err)
		}
	} else {
		components, logger := setup(qf.configPath, qf.debug, false)
		defer logger.Sync()
		defer components.Close()
		res, err := components.Retriever.Query(context.Background(), q.Text, q.TopK)
		if err != nil {
			fail("Query", err)
		}
		result = *res
	}
	if err := cli.WriteRetrievalResult(os.Stdout, &result, qf.format, qf.snippets); err != nil {
		fail("Output", err)
	}
}

func runAsk() {
	qf := parseQueryFlags("ask", os.Args[2:])
	q := &models.Query{Text: qf.text, TopK: qf.topK}

	var answer models.Answer
	if qf.serverURL != "" {
		client := newAPIClient(qf.serverURL, 2*time.Minute)
		if err := client.do(context.Background(), http.MethodPost, "/api/v1/ask", q, &answer); err != nil {
			fail("Ask", err)
		}
	} else {
		components, logger := setup(qf.configPath, qf.debug, false)
		defer logger.Sync()
		defer components.Close()
		if components.Assistant == nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v (set %s or configure generator.provider)\n",
				models.ErrGeneratorUnavailable, components.Config.Generator.APIKeyEnv)
			os.Exit(1)
		}
		res, err := components.Assistant.Ask(context.Background(), q.Text, q.TopK)
		if err != nil {
			fail("Ask", err)
		}
		answer = *res
	}
	if err := cli.WriteAnswer(os.Stdout, &answer, qf.format); err != nil {
		fail("Output", err)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, ingestion, etc.)")
	watch := fs.Bool("watch", false, "watch the transcripts directory and ingest changes")
	_ = fs.Parse(os.Args[2:])

	components, logger := setup(*configPath, *debug, false)
	defer logger.Sync()
	defer components.Close()
	cfg := components.Config

	logger.Info("collection loaded",
		zap.String("collection", components.Collection.Name()),
		zap.Int("chunks", components.Collection.Count()),
		zap.Bool("generator", components.Assistant != nil))

	deps := server.Deps{
		Retriever: components.Retriever,
		Ingester:  components.Indexer,
		Catalog:   components.Collection,
	}
	if components.Assistant != nil {
		deps.Asker = components.Assistant
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if *watch || cfg.Transcripts.Watch {
		idx := components.Indexer
		watchSvc = watcher.NewWatcher(
			cfg.Transcripts.Directory,
			cfg.Transcripts.Extensions,
			func(ctx context.Context, path string) error {
				_, err := idx.IngestFile(ctx, path)
				return err
			},
			func(ctx context.Context, path string) error {
				_, err := idx.RemoveSource(ctx, filepath.Base(path))
				return err
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go func() {
			if err := watchSvc.Sync(watchCtx); err != nil {
				logger.Warn("initial sync failed", zap.Error(err))
				return
			}
			if _, err := idx.PruneMissing(watchCtx, cfg.Transcripts.Directory); err != nil {
				logger.Warn("pruning missing sources failed", zap.Error(err))
			}
		}()
		deps.Watch = watchSvc
	}

	srv := server.NewServer(deps, cfg, version, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if watchSvc != nil {
		watchSvc.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runSources() {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var sources []models.SourceSummary
	if *serverURL != "" {
		var resp struct {
			Sources []models.SourceSummary `json:"sources"`
		}
		client := newAPIClient(*serverURL, time.Minute)
		if err := client.do(context.Background(), http.MethodGet, "/api/v1/sources", nil, &resp); err != nil {
			fail("List sources", err)
		}
		sources = resp.Sources
	} else {
		components, logger := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		var err error
		if sources, err = components.Collection.Sources(context.Background()); err != nil {
			fail("List sources", err)
		}
	}
	if err := cli.WriteSources(os.Stdout, sources, format); err != nil {
		fail("Output", err)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kikitori delete [flags] <source>")
		os.Exit(1)
	}
	source := fs.Arg(0)

	var removed int
	if *serverURL != "" {
		var resp struct {
			Removed int `json:"removed"`
		}
		client := newAPIClient(*serverURL, time.Minute)
		if err := client.do(context.Background(), http.MethodDelete, "/api/v1/sources/"+url.PathEscape(source), nil, &resp); err != nil {
			fail("Delete", err)
		}
		removed = resp.Removed
	} else {
		components, logger := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		n, err := components.Indexer.RemoveSource(context.Background(), source)
		if err != nil {
			fail("Delete", err)
		}
		if n == 0 {
			fmt.Fprintf(os.Stderr, "Delete failed: source %q not found\n", source)
			os.Exit(1)
		}
		removed = n
	}
	fmt.Printf("Removed %d chunk(s) from %s\n", removed, source)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = use direct storage)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)

	var status map[string]interface{}
	if *serverURL != "" {
		client := newAPIClient(*serverURL, time.Minute)
		if err := client.do(context.Background(), http.MethodGet, "/api/v1/status", nil, &status); err != nil {
			fail("Status", err)
		}
	} else {
		components, logger := setup(*configPath, false, false)
		defer logger.Sync()
		defer components.Close()
		var err error
		if status, err = localStatus(context.Background(), components); err != nil {
			fail("Status", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fail("Output", err)
	}
}

func localStatus(ctx context.Context, c *Components) (map[string]interface{}, error) {
	sources, err := c.Collection.Sources(ctx)
	if err != nil {
		return nil, err
	}
	info := c.Collection.Info()
	status := map[string]interface{}{
		"version":    version,
		"collection": info.Name,
		"metric":     info.Metric,
		"embedding":  info.EmbeddingModel,
		"dimensions": info.Dimensions,
		"chunks":     c.Collection.Count(),
		"sources":    len(sources),
		"generator":  c.Assistant != nil,
	}
	paths := storage.DatabaseFiles(c.Config.Storage.DatabasePath)
	if !c.Config.Storage.CacheDisabled {
		paths = append(paths, c.Config.Storage.CachePath)
	}
	if _, total, err := storage.DiskUsage(paths...); err == nil {
		status["disk_usage"] = cli.FormatBytes(total)
	}
	return status, nil
}

func printUsage() {
	fmt.Println(`kikitori - retrieval over lecture transcripts

Usage:
  kikitori <command> [flags]

Commands:
  init      Write a default config.yaml
  ingest    Parse, chunk, embed and store transcripts (default: configured directory)
  query     Retrieve the chunks nearest to a question (alias: search)
  ask       Retrieve chunks and generate an answer with the configured LLM
  server    Start the HTTP API (use -watch to follow the transcripts directory)
  sources   List indexed transcript sources
  delete    Remove a source from the collection
  status    Show collection statistics
  version   Show version
  help      Show this help

Use "kikitori <command> -h" for command flags.`)
}
