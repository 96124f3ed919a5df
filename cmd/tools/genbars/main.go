package main

import (
	"encoding/csv"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"main/internal/mdg"
)

func main() {
	if err := run(); err != nil {
		log.Printf("genbars: %v", err)
		os.Exit(1)
	}
}

func run() error {
	out := flag.String("out", "bars.csv", "Output CSV path")
	symbols := flag.String("symbols", "TEST", "Comma-separated symbols")
	count := flag.Int("count", 1000, "Bars per symbol")
	seed := flag.Int64("seed", 42, "Random seed")
	basePrice := flag.Float64("base-price", 100, "Starting price")
	volatility := flag.Float64("volatility", 0.01, "Per-bar volatility")
	flag.Parse()

	gen := mdg.New(mdg.Config{
		Symbols:    strings.Split(*symbols, ","),
		Seed:       *seed,
		BasePrice:  *basePrice,
		Volatility: *volatility,
	})

	file, err := os.Create(*out)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"timestamp", "symbol", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	total := *count * len(strings.Split(*symbols, ","))
	for i := 0; i < total; i++ {
		bar := gen.Next()
		row := []string{
			bar.Timestamp.UTC().Format(time.RFC3339),
			bar.Symbol,
			format(bar.Open),
			format(bar.High),
			format(bar.Low),
			format(bar.Close),
			format(bar.Volume),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	log.Printf("wrote %d bars to %s", total, *out)
	return nil
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
