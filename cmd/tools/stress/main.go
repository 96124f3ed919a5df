package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"main/internal/clock"
	"main/internal/pool"
	"main/internal/ring"
	"main/internal/schema"
	"main/internal/wait"
)

func main() {
	if err := run(); err != nil {
		log.Printf("stress: %v", err)
		os.Exit(1)
	}
}

func run() error {
	capacity := flag.Int("capacity", 1024, "Ring capacity (power of two)")
	events := flag.Int("events", 1_000_000, "Events to publish")
	strategyName := flag.String("wait", "yield", "Wait strategy: busy|yield|sleep|block")
	multiProducer := flag.Bool("mp", false, "Multi-producer mode")
	flag.Parse()

	if *events <= 0 {
		return fmt.Errorf("events must be > 0")
	}

	clk := clock.New()
	eventPool := pool.New(clk, pool.Config{InitialCells: *capacity * 2, MaxCells: *capacity * 16})
	rb := ring.New(ring.Config{
		Capacity:      *capacity,
		Strategy:      wait.New(wait.ParseKind(*strategyName)),
		MultiProducer: *multiProducer,
	})

	start := time.Now()
	done := make(chan struct{})
	var consumed, dropped int

	go func() {
		defer close(done)
		for consumed < *events {
			ev := rb.TryConsume()
			if ev == nil {
				continue
			}
			eventPool.Release(ev)
			consumed++
		}
	}()

	for i := 0; i < *events; i++ {
		ev := eventPool.AcquireBar(schema.Bar{Symbol: "STRESS", Close: float64(i)})
		if ev == nil {
			return fmt.Errorf("pool exhausted at event %d", i)
		}
		if !rb.TryPublish(ev) {
			dropped++
			rb.Publish(ev)
		}
	}
	<-done

	elapsed := time.Since(start)
	rate := float64(*events) / elapsed.Seconds()
	log.Printf("published=%d consumed=%d backpressure_retries=%d", *events, consumed, dropped)
	log.Printf("cursor=%d consumer=%d elapsed=%v rate=%.0f events/s",
		rb.Cursor(), rb.ConsumerSequence(), elapsed, rate)
	if rb.Cursor() != rb.ConsumerSequence() {
		return fmt.Errorf("sequence mismatch: cursor=%d consumer=%d", rb.Cursor(), rb.ConsumerSequence())
	}
	return nil
}
