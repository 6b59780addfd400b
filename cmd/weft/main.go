package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/weftfeed/weft/internal/api"
	"github.com/weftfeed/weft/internal/config"
	"github.com/weftfeed/weft/internal/debuglog"
	"github.com/weftfeed/weft/internal/search"
	"github.com/weftfeed/weft/internal/storage"
	"github.com/weftfeed/weft/internal/timeline"
	"github.com/weftfeed/weft/internal/validation"
)

// Version is the version of the application, set at build time
var Version = "dev"

const usage = `usage: weft [flags] <command>

commands:
  show    <public|home|user NAME>   print the locally stored timeline
  refresh <public|home|user NAME>   fetch notices newer than the stored head
  more    <public|home|user NAME>   page backward through older notices
  search  <query...>                full-text search over stored notices
`

func main() {
	var (
		dbPath         = flag.String("db", "", "Path to database file (overrides config)")
		configPath     = flag.String("config", "", "Path to configuration file")
		serverURL      = flag.String("server", "", "Server base URL (overrides config)")
		generateConfig = flag.Bool("generate-config", false, "Generate default config file")
		allowLocal     = flag.Bool("allow-local", false, "Allow localhost server URLs")
		version        = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *version {
		fmt.Printf("weft %s\n", Version)
		fmt.Println("federated timeline sync")
		fmt.Println("github.com/weftfeed/weft")
		return
	}

	if *generateConfig {
		home, _ := os.UserHomeDir()
		configFile := filepath.Join(home, ".config", "weft", "config.toml")

		if err := config.GenerateDefaultConfig(configFile); err != nil {
			log.Fatalf("Failed to generate config: %v", err)
		}
		fmt.Printf("Generated default configuration at: %s\n", configFile)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	if *serverURL != "" {
		cfg.Server.BaseURL = *serverURL
	}

	if err := debuglog.Setup(cfg.Log.Level, cfg.Log.Path); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer debuglog.Close()

	validator := validation.NewServerURLValidator()
	if *allowLocal {
		validator = validation.NewPermissiveServerURLValidator()
	}
	cfg.Server.BaseURL, err = validator.ValidateAndNormalize(cfg.Server.BaseURL)
	if err != nil {
		log.Fatalf("Invalid server URL: %v", err)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}
	store, err := storage.NewStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	var index *search.Engine
	var indexer timeline.NoticeIndexer
	if cfg.Database.SearchIndex != "" {
		index, err = search.NewEngine(cfg.Database.SearchIndex)
		if err != nil {
			log.Fatalf("Failed to open search index: %v", err)
		}
		defer index.Close()
		indexer = index
	}

	logger := debuglog.Sugar()
	client := api.NewClient(cfg)
	resolver := timeline.NewUserResolver(store, logger)
	ingestor := timeline.NewIngestor(store, resolver, indexer, logger)
	manager := timeline.NewManager(store, client, ingestor, client.Server(), cfg, logger)

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx := context.Background()
	switch args[0] {
	case "show":
		runShow(manager, args[1:])
	case "refresh":
		runRefresh(ctx, store, manager, args[1:])
	case "more":
		runMore(ctx, manager, args[1:])
	case "search":
		runSearch(index, args[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func resolveTimeline(manager *timeline.Manager, args []string) *storage.Timeline {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var (
		tl  *storage.Timeline
		err error
	)
	switch args[0] {
	case "public":
		tl, err = manager.PublicTimeline()
	case "home":
		tl, err = manager.HomeTimeline()
	case "user":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		tl, err = manager.UserTimeline(args[1])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("Failed to resolve timeline: %v", err)
	}
	return tl
}

func runShow(manager *timeline.Manager, args []string) {
	tl := resolveTimeline(manager, args)
	res, err := manager.NoticesFor(tl)
	if err != nil {
		log.Fatalf("Failed to read timeline: %v", err)
	}
	printNotices(res.Notices)
	if res.LoadMorePossible {
		fmt.Println("(more available: run `weft more` or `weft refresh`)")
	}
}

func runRefresh(ctx context.Context, store *storage.Store, manager *timeline.Manager, args []string) {
	tl := resolveTimeline(manager, args)

	var last *storage.ChainEntry
	if entries, err := store.ChainEntries(tl); err == nil && len(entries) > 0 {
		last = entries[0]
	}

	res, err := manager.Refresh(ctx, tl, last)
	if err != nil {
		log.Fatalf("Refresh failed: %v", err)
	}
	printNotices(res.Notices)
	fmt.Printf("%d new notice(s)\n", len(res.Notices))
}

func runMore(ctx context.Context, manager *timeline.Manager, args []string) {
	tl := resolveTimeline(manager, args)

	// Page backward from the oldest link the local walk reached. The walk
	// can end on a hidden notice, so the boundary comes from the walk, not
	// from the displayed list.
	local, err := manager.NoticesFor(tl)
	if err != nil {
		log.Fatalf("Failed to read timeline: %v", err)
	}

	res, err := manager.LoadMore(ctx, tl, local.OldestWalked)
	if err != nil {
		log.Fatalf("Load more failed: %v", err)
	}
	printNotices(res.Notices)
	if !res.LoadMorePossible {
		fmt.Println("(start of history)")
	}
}

func runSearch(index *search.Engine, args []string) {
	if index == nil {
		log.Fatal("Search index is disabled in configuration")
	}
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	results, err := index.Search(strings.Join(args, " "), 25)
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	for _, r := range results {
		fmt.Printf("%s #%d (%.2f)\n  %s\n", r.Server, r.StatusID, r.Score, truncate(r.Content, 120))
	}
	fmt.Printf("%d result(s)\n", len(results))
}

func printNotices(notices []*timeline.TimelineNotice) {
	for _, n := range notices {
		fmt.Printf("#%d %s %s\n  %s\n", n.Notice.StatusID, n.Notice.Published.Format("2006-01-02 15:04"),
			n.Notice.AuthorURI, truncate(n.Notice.Content, 120))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
