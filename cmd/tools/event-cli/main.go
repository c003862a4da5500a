package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/formiko/flagsh/internal/eventbus"
)

const (
	defaultNatsURL = "nats://127.0.0.1:4222"
	timeFormat     = "15:04:05"
)

func main() {
	var (
		natsURL    = flag.String("url", defaultNatsURL, "NATS server URL")
		stream     = flag.String("stream", "FLAGS", "JetStream stream name")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated), e.g. flag.placed,flag.removed")
		limit      = flag.Int("limit", 0, "Stop after N events (0 - follow until Ctrl+C)")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := tailEvents(ctx, bus, os.Stdout, parseStringList(*eventTypes), *limit); err != nil {
		log.Fatalf("❌ Tail failed: %v", err)
	}

	stats := bus.Metrics()
	fmt.Printf("📊 consumed=%d dropped=%d\n", stats.Consumed, stats.Dropped)
}

// tailEvents выводит события в реальном времени, пока не отменен ctx или не набран limit
func tailEvents(ctx context.Context, bus eventbus.EventBus, out io.Writer, types []string, limit int) error {
	fmt.Fprintf(out, "🎬 Tailing flag events (types: %v, limit: %d)\n", types, limit)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan *eventbus.Envelope, 64)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(ctx context.Context, ev *eventbus.Envelope) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	count := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			printEvent(out, ev)
			count++
			if limit > 0 && count >= limit {
				return nil
			}
		}
	}
}

// printEvent выводит событие в читаемом формате
func printEvent(out io.Writer, ev *eventbus.Envelope) {
	fmt.Fprintf(out, "[%s] %s [%s] %s\n",
		ev.Timestamp.Format(timeFormat),
		ev.Source,
		ev.EventType,
		ev.ID)

	fe, err := eventbus.DecodeFlagEvent(ev)
	if err != nil {
		fmt.Fprintf(out, "  ⚠️ %v\n", err)
		return
	}

	fmt.Fprintf(out, "  Flag: %s yaw=%d %s size=%.2f\n", fe.Key, fe.Yaw, fe.Variant, fe.Size)
	if ev.EventType == eventbus.EventFlagRemoved {
		fmt.Fprintf(out, "  Dropped: %d\n", fe.Dropped)
	}
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
