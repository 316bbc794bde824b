package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Clark-Hu/videostore/internal/scraper"
)

func main() {
	var (
		listing = flag.String("url", scraper.DefaultListingURL, "product listing to scrape")
		out     = flag.String("out", "data/products.json", "output file")
		timeout = flag.Duration("timeout", 5*time.Second, "per request timeout")
		delay   = flag.Duration("delay", 500*time.Millisecond, "pause between product pages")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stdout, "[scraper] ", log.LstdFlags)

	client, err := scraper.New(*listing, *timeout, logger, scraper.WithDelay(*delay))
	if err != nil {
		log.Fatalf("init scraper: %v", err)
	}

	products, err := client.Scrape(ctx)
	if err != nil {
		log.Fatalf("scrape %s: %v", *listing, err)
	}
	if err := scraper.WriteJSON(*out, products); err != nil {
		log.Fatalf("write %s: %v", *out, err)
	}
	logger.Printf("wrote %d products to %s", len(products), *out)
}
