// Command xhdev is a dev CLI for xharvest maintenance and debugging tasks.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pkg/browser"
	"github.com/rs/zerolog"

	"github.com/ibeckermayer/xharvest/internal/auth"
	browseropts "github.com/ibeckermayer/xharvest/internal/browser"
	"github.com/ibeckermayer/xharvest/internal/config"
	"github.com/ibeckermayer/xharvest/internal/logging"
	"github.com/ibeckermayer/xharvest/internal/scraper"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	log, err := logging.New(config.LoggingConfig{Level: "debug"}, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "bot-test":
		runBotTest(log)
	case "inspect":
		if len(os.Args) < 3 {
			fmt.Println("Usage: xhdev inspect <url>")
			os.Exit(1)
		}
		if err := runInspect(log, os.Args[2]); err != nil {
			log.Fatal().Err(err).Msg("Inspect failed")
		}
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: xhdev open <config|cache>")
			os.Exit(1)
		}
		runOpen(log, os.Args[2])
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: xhdev <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  bot-test       Open bot.sannysoft.com to audit browser fingerprint")
	fmt.Println("  inspect <url>  Print the records and geometry of the first screen of a list")
	fmt.Println("  open config    Open config file in default editor")
	fmt.Println("  open cache     Open cache directory in file explorer")
}

func runBotTest(log zerolog.Logger) {
	log.Info().Msg("Opening bot.sannysoft.com with stealth browser options")

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), browseropts.Options(false)...)
	defer cancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	go func() {
		err := chromedp.Run(ctx,
			browseropts.Stealth(),
			chromedp.Navigate("https://bot.sannysoft.com"),
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to navigate")
		}
	}()

	fmt.Println("Press Enter to end program...")
	fmt.Scanln()
}

// runInspect opens a list visibly and dumps what one extraction sees, for checking
// selectors after X changes its markup
func runInspect(log zerolog.Logger, url string) error {
	cookiePath, err := auth.DefaultCookieStorePath()
	if err != nil {
		return err
	}
	cookies, err := auth.NewCookieStore(cookiePath).XCookies()
	if err != nil {
		return err
	}

	sess, err := scraper.New(false, time.Minute, log).Open(context.Background(), url, cookies)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx := sess.Context()
	recs, err := sess.Extractor().ExtractVisible(ctx)
	if err != nil {
		return err
	}
	drv := scraper.NewDriver(config.ViewportIncrement, 0, scraper.DefaultBottomTolerance)
	height, err := drv.Height(ctx)
	if err != nil {
		return err
	}
	bottom, err := drv.AtBottom(ctx)
	if err != nil {
		return err
	}

	log.Info().
		Str("list", string(sess.ListType)).
		Int("records", len(recs)).
		Int("height", height).
		Bool("at_bottom", bottom).
		Msg("First screen")

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(recs)
}

func runOpen(log zerolog.Logger, target string) {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "cache":
		path, err = config.CacheDir()
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get path")
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatal().Err(err).Msg("Failed to open")
	}
}
