package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"promowatch/internal/collector"
	"promowatch/internal/config"
	"promowatch/internal/ozon"
	"promowatch/internal/sellers"
)

func main() {
	var (
		query    = flag.String("query", "", "Search query")
		maxPages = flag.Int("max-pages", 0, "Page cap (0 = until results end)")
		seller   = flag.String("seller", "", "Seller filter (comma-separated names)")
		headless = flag.Bool("headless", true, "Run the browser headless")
		fresh    = flag.Bool("fresh", false, "Use a throwaway browser profile")
		verbose  = flag.Bool("v", false, "Report progress on stderr")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Collects product URLs from search results, one per line on stdout.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -query \"tecno spark\"\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -query \"tecno spark\" -seller ozon -max-pages 3\n", os.Args[0])
	}

	flag.Parse()
	_ = godotenv.Load()

	if *query == "" {
		fmt.Fprintf(os.Stderr, "Error: query is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.Load()
	sess, err := ozon.NewSession(ozon.SessionConfig{
		Headless:     *headless,
		UserDataDir:  cfg.UserDataDir,
		FreshProfile: *fresh,
		PageTimeout:  cfg.PageTimeout,
		GetRetries:   cfg.GetRetries,
		LabelWait:    cfg.LabelWait,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to start browser: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := collector.Options{
		Query:        *query,
		MaxPages:     *maxPages,
		Scrolls:      cfg.SearchScrolls,
		LoadWait:     cfg.SearchLoadWait,
		ScrollWait:   cfg.SearchScrollWait,
		StableHits:   cfg.StableHits,
		StablePause:  cfg.StablePause,
		SearchURL:    ozon.BuildSearchURL,
		NormalizeURL: ozon.NormalizeProductURL,
	}
	if *seller != "" {
		table, err := sellers.Load(cfg.SellerAliasesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: seller aliases not loaded: %v\n", err)
			table = sellers.Table{}
		}
		opts.KeepSeller = func(name string) bool {
			return table.Matches(*seller, name)
		}
	}

	var sink collector.Sink
	if *verbose {
		sink = func(ev collector.Event) {
			switch ev.Kind {
			case collector.EventPhase:
				fmt.Fprintf(os.Stderr, "phase: %s\n", ev.Phase)
			case collector.EventLinks:
				fmt.Fprintf(os.Stderr, "collected: %d\n", len(ev.URLs))
			case collector.EventSellerProgress:
				fmt.Fprintf(os.Stderr, "seller: %d/%d kept %d\n", ev.Checked, ev.Total, ev.Kept)
			case collector.EventETA:
				fmt.Fprintf(os.Stderr, "eta: %.0fs\n", ev.ETASec)
			}
		}
	}

	urls := collector.Collect(ctx, sess, opts, sink)
	if len(urls) > 0 {
		fmt.Println(strings.Join(urls, "\n"))
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "total: %d\n", len(urls))
	}
}
