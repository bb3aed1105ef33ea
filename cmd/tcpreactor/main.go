// File: cmd/tcpreactor/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Command tcpreactor runs a standalone TCP echo server on the epoll
// reactor. Every connection event is logged, and received chunks are
// dumped byte by byte for wire-level inspection.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/momentics/tcpreactor/api"
	"github.com/momentics/tcpreactor/server"
)

func main() {
	var (
		port       int
		eventQueue int
		echo       bool
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:   "tcpreactor",
		Short: "Single-threaded epoll TCP server",
		Long: `tcpreactor serves TCP connections from one event loop.

Connections are accepted and read in edge-triggered mode on a single
goroutine. With --echo (the default) every received chunk is written
straight back to the peer. Received bytes are logged as a hex dump.

SIGINT or SIGTERM stops the server after draining open connections.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(port, eventQueue, echo, debug)
		},
	}

	rootCmd.Flags().IntVarP(&port, "port", "p", server.DefaultPort, "TCP port to listen on (0 picks an ephemeral port)")
	rootCmd.Flags().IntVarP(&eventQueue, "event-queue", "e", server.DefaultEventQueueCapacity, "Events fetched per poll round")
	rootCmd.Flags().BoolVar(&echo, "echo", true, "Write received data back to the peer")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Verbose development logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(port, eventQueue int, echo, debug bool) error {
	log, err := newLogger(debug)
	if err != nil {
		return err
	}
	defer log.Sync()

	srv, err := server.New(diagnosticHandler(log),
		server.WithPort(port),
		server.WithEventQueueCapacity(eventQueue),
		server.WithEcho(echo),
		server.WithLogger(log),
	)
	if err != nil {
		return err
	}
	defer srv.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		sig := <-sigCh
		log.Info("signal received, stopping", zap.String("signal", sig.String()))
		srv.Stop()
	}()

	log.Info("starting server", zap.Int("port", port))
	return srv.Run()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// diagnosticHandler logs every connection event. Received chunks are
// rendered as space-separated 0x-prefixed bytes, one log entry per chunk.
func diagnosticHandler(log *zap.Logger) api.EventHandler {
	return &api.Callbacks{
		Start: func() { log.Info("server started") },
		Stop:  func() { log.Info("server stopped") },
		Connect: func(addr string) {
			log.Info("client connected", zap.String("addr", addr))
		},
		Disconnect: func(addr string) {
			log.Info("client disconnected", zap.String("addr", addr))
		},
		Receive: func(addr string, data []byte) {
			log.Info("received",
				zap.String("addr", addr),
				zap.Int("bytes", len(data)),
				zap.String("data", hexBytes(data)))
		},
	}
}

func hexBytes(data []byte) string {
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "0x%02X", c)
	}
	return b.String()
}
