// sync-client tails shelf events from the TCP feed, reconnecting on loss.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mangashelf/internal/sync"
	"mangashelf/pkg/logging"
)

const reconnectDelay = time.Second

func main() {
	var (
		addr      = flag.String("addr", "127.0.0.1:7070", "TCP sync server address")
		pretty    = flag.Bool("pretty", true, "pretty print JSON events")
		eventType = flag.String("type", "", "only show events of this type")
	)
	flag.Parse()

	logging.Init(logging.Config{Level: "info", Format: "console", Output: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		err := run(ctx, *addr, *eventType, *pretty)
		if ctx.Err() != nil {
			return
		}
		logging.Warn().Err(err).Str("addr", *addr).Msg("disconnected")
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func run(ctx context.Context, addr, eventType string, pretty bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	logging.Info().Str("addr", addr).Msg("connected")

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		var ev sync.ShelfEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			fmt.Println(sc.Text())
			continue
		}
		if eventType != "" && ev.Type != eventType {
			continue
		}
		if err := printEvent(os.Stdout, ev, pretty); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("connection closed")
}

func printEvent(w io.Writer, ev sync.ShelfEvent, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(ev)
}
