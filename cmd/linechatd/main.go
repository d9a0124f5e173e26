package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ledzpl/linechat/internal/chat"
	"github.com/ledzpl/linechat/internal/config"
	"github.com/ledzpl/linechat/internal/eventlog"
	"github.com/ledzpl/linechat/pkg/tcpserver"
)

func main() {
	cfg, err := config.Load(os.Getenv("LINECHAT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "linechatd: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Logging.NewLogger(os.Stdout)
	logger.Info("starting", "config", cfg.String())

	events, err := eventlog.Open(cfg.EventLog)
	if err != nil {
		logger.Error("failed to open event log", "path", cfg.EventLog, "error", err)
		os.Exit(1)
	}

	room := chat.NewRoom(
		chat.WithCapacity(cfg.Capacity),
		chat.WithNameLimit(cfg.NameLimit),
		chat.WithLineLimit(cfg.LineLimit),
		chat.WithEventLog(events),
		chat.WithLogger(logger),
	)

	server := tcpserver.New(cfg.Address, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err = server.ListenAndServe(ctx, func(conn net.Conn) {
		chat.HandleSession(room, conn)
	})

	if err != nil && !errors.Is(err, context.Canceled) {
		// Startup failure: nothing was served, so no shutdown event.
		events.Close()
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	// The listener is down; tell every connected client and seal the log.
	room.Shutdown()
}
