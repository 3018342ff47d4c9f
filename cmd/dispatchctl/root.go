package main

import (
	"fleet-dispatch-service/internal/config"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// cli holds state shared by every subcommand.
type cli struct {
	configPath string
	cfg        *config.Config
}

func (c *cli) load(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func NewRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:           "dispatchctl",
		Short:         "Run fleet dispatch suggestions and manage the distance cache",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", os.Getenv("DISPATCH_CONFIG"), "path to a YAML or JSON config file")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newSuggestCmd(c))
	root.AddCommand(newETAsCmd(c))
	root.AddCommand(newCacheCmd(c))

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dispatchctl %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}
