package main

import (
	"github.com/spf13/cobra"

	"github.com/shadowmesh/msgwire/internal/config"
)

const version = "0.1.0"

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "msgwireclient",
		Short: "Secure message-wire client",
		Long:  "msgwireclient dials a message-wire peer, optionally negotiates a zero-knowledge secured session, and exchanges framed messages.",
	}

	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigPath(), "path to the client's YAML config file")

	root.AddCommand(newConnectCmd())
	root.AddCommand(newSendCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the client version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println("msgwireclient " + version)
			return nil
		},
	}
}
