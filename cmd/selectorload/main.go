// Command selectorload drives a small fleet of connections through a
// Selector against a single target address, for manual load testing and
// as a runnable example of the public API.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mionet/selector"
	"github.com/mionet/selector/channel"
)

func main() {
	var (
		target      string
		connections int
		duration    time.Duration
		payload     string
	)

	root := &cobra.Command{
		Use:   "selectorload",
		Short: "Drive connections through a selector.Selector against a TCP target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(target, connections, duration, payload)
		},
	}
	root.Flags().StringVar(&target, "target", "127.0.0.1:9092", "address to connect to")
	root.Flags().IntVar(&connections, "connections", 4, "number of connections to open")
	root.Flags().DurationVar(&duration, "duration", 10*time.Second, "how long to run before exiting")
	root.Flags().StringVar(&payload, "payload", "ping", "payload sent on each connection once it connects and again after every receive")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(target string, connections int, duration time.Duration, payload string) error {
	sel, err := selector.New(selector.WithChannelBuilder(channel.NewPlaintextChannelBuilder()))
	if err != nil {
		return fmt.Errorf("new selector: %w", err)
	}
	defer func() { _ = sel.CloseAll() }()

	ids := make([]string, 0, connections)
	for i := 0; i < connections; i++ {
		id := uuid.NewString()
		if err := sel.Connect(id, target, selector.UseDefaultBufferSize, selector.UseDefaultBufferSize); err != nil {
			return fmt.Errorf("connect %s: %w", id, err)
		}
		ids = append(ids, id)
	}

	deadline := time.Now().Add(duration)
	sent := 0
	for time.Now().Before(deadline) {
		if err := sel.Poll(200 * time.Millisecond); err != nil {
			return fmt.Errorf("poll: %w", err)
		}
		for _, id := range sel.Connected() {
			fmt.Fprintf(os.Stdout, "connected: %s\n", id)
			if err := sel.Send(channel.NewNetworkSend(id, []byte(payload))); err == nil {
				sent++
			}
		}
		for _, recv := range sel.CompletedReceives() {
			if err := sel.Send(channel.NewNetworkSend(recv.Source(), []byte(payload))); err == nil {
				sent++
			}
		}
		for _, id := range sel.Disconnected() {
			fmt.Fprintf(os.Stdout, "disconnected: %s\n", id)
		}
	}
	fmt.Fprintf(os.Stdout, "sent %d frames across %d connections\n", sent, len(ids))
	return nil
}
