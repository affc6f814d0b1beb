package main

import (
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the trigger, translation and monitoring API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFrom(cmd)
			return a.Server(cmd.Context()).Run(cmd.Context())
		},
	}
}
