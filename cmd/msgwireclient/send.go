package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shadowmesh/msgwire/internal/config"
	"github.com/shadowmesh/msgwire/pkg/client"
)

func newSendCmd() *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "send [frame...]",
		Short: "Connect, optionally secure the session, send one message, and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, args, wait)
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Second, "grace period to let the message flush before disconnecting")
	return cmd
}

func runSend(cmd *cobra.Command, args []string, wait time.Duration) error {
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

	if cfg.Identity.Name != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		ok, err := c.SecureConnection(ctx, true)
		cancel()
		if err != nil {
			return fmt.Errorf("secure connection: %w", err)
		}
		if !ok {
			return fmt.Errorf("secure connection: handshake did not complete")
		}
	}

	frames := make([][]byte, len(args))
	for i, a := range args {
		frames[i] = []byte(a)
	}
	if err := c.Send(frames); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	time.Sleep(wait)
	cmd.Printf("sent %d frame(s) as %s\n", len(frames), c.ClientID())
	return nil
}
