package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"callscan/internal/broker/schwab"
	"callscan/internal/config"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Schwab.ClientID == "" {
		log.Fatal("No Schwab credentials in config")
	}

	symbol := "AMZN"
	if len(os.Args) > 1 {
		symbol = os.Args[1]
	}

	client := schwab.NewClient(schwab.Credentials{
		ClientID:     cfg.Schwab.ClientID,
		ClientSecret: cfg.Schwab.ClientSecret,
	}, cfg.Schwab.RateLimit)

	ctx := context.Background()

	fmt.Println("=== Schwab Market Data API Test ===")

	// 1. Auth test
	fmt.Println("\n[1] Authentication")
	msg, err := client.Authenticate(ctx)
	if err != nil {
		log.Fatalf("    ERROR: %v", err)
	}
	fmt.Printf("    OK: %s\n", msg)

	// 2. Quote test
	fmt.Printf("\n[2] GetQuote for %s\n", symbol)
	start := time.Now()
	quote, err := client.GetQuote(ctx, symbol)
	elapsed := time.Since(start)
	if err != nil {
		fmt.Printf("    ERROR: %v\n", err)
	} else {
		fmt.Printf("    OK in %s: last=%.2f close=%.2f spot=%.2f\n",
			elapsed, quote.Last, quote.Close, quote.SpotPrice())
		if quote.NextEarnings != "" {
			fmt.Printf("    Next earnings: %s\n", quote.NextEarnings)
		}
	}

	// 3. History test
	fmt.Printf("\n[3] GetPriceHistory for %s\n", symbol)
	start = time.Now()
	bars, err := client.GetPriceHistory(ctx, symbol)
	elapsed = time.Since(start)
	if err != nil {
		fmt.Printf("    ERROR: %v\n", err)
	} else {
		fmt.Printf("    OK: %d bars in %s\n", len(bars), elapsed)
		if len(bars) > 0 {
			last := bars[len(bars)-1]
			fmt.Printf("    Last: %s O=%.2f H=%.2f L=%.2f C=%.2f V=%d\n",
				last.Time.Format("2006-01-02"), last.Open, last.High, last.Low, last.Close, last.Volume)
		}
	}

	// 4. Chain test
	fmt.Printf("\n[4] GetOptionChain for %s\n", symbol)
	start = time.Now()
	oc, err := client.GetOptionChain(ctx, symbol)
	elapsed = time.Since(start)
	if err != nil {
		fmt.Printf("    ERROR: %v\n", err)
	} else {
		contracts := 0
		for _, strikes := range oc.CallExpDateMap {
			for _, recs := range strikes {
				contracts += len(recs)
			}
		}
		fmt.Printf("    OK: %d expirations, %d call contracts in %s\n",
			len(oc.CallExpDateMap), contracts, elapsed)
	}

	fmt.Println("\n=== Test Complete ===")
}
