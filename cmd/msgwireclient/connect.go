package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/shadowmesh/msgwire/internal/config"
	"github.com/shadowmesh/msgwire/pkg/client"
	"github.com/shadowmesh/msgwire/pkg/logging"
)

func newConnectCmd() *cobra.Command {
	var secure bool

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to a peer and print received messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConnect(cmd, secure)
		},
	}
	cmd.Flags().BoolVar(&secure, "secure", true, "negotiate a secured session before accepting traffic (requires identity in config)")
	return cmd
}

func runConnect(cmd *cobra.Command, secure bool) error {
	cfg, err := config.LoadOrCreate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLogger, err := newLoggerFromConfig(cfg)
	if err != nil {
		return err
	}
	defer closeLogger()

	opts := []client.Option{client.WithLogger(logger), client.WithHeartBeat(cfg.HeartBeat)}
	if cfg.Identity.Name != "" {
		opts = append(opts, client.WithCredentials(cfg.Identity.Name, cfg.Identity.Secret))
	}

	c, err := client.New(cfg.ConnectionURL, opts...)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer c.Close()

	cmd.Printf("connected as %s to %s\n", c.ClientID(), cfg.ConnectionURL)

	c.OnMessageReceived(func(frames [][]byte, from client.Identity) {
		cmd.Printf("[%s] %d frame(s)\n", from, len(frames))
		for i, f := range frames {
			cmd.Printf("  [%d] %s\n", i, f)
		}
	})
	c.OnProtocolFailed(func(err error) {
		cmd.Printf("secured handshake failed: %v\n", err)
	})

	if secure && cfg.Identity.Name != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		ok, err := c.SecureConnection(ctx, true)
		cancel()
		if err != nil {
			return fmt.Errorf("secure connection: %w", err)
		}
		if !ok {
			return fmt.Errorf("secure connection: handshake did not complete")
		}
		cmd.Println("secured session established")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	cmd.Println("shutting down")
	return nil
}

func newLoggerFromConfig(cfg *config.Config) (logging.Logger, func(), error) {
	logger, err := logging.NewJSONLogger("msgwireclient", logging.ParseLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, func() { logger.Close() }, nil
}
