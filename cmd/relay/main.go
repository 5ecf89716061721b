package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"

	datadir   = btcutil.AppDataDir("relay-cli", false)
	statePath = filepath.Join(datadir, "state.json")
	dbDir     = filepath.Join(datadir, "db")

	rootCmd = &cobra.Command{
		Use:   "relay",
		Short: "CLI for the multisig relay",
		Long: "This CLI lets you manage the primary key of a multisig account, " +
			"link it to a running relay daemon acting as cosigner and send payments",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if _, err := os.Stat(datadir); os.IsNotExist(err) {
				os.MkdirAll(datadir, os.ModeDir|0755)
			}
		},
		SilenceUsage: true,
		Version:      formatVersion(),
	}
)

func init() {
	rootCmd.AddCommand(
		configCmd, keysCmd, accountCmd, linkCmd, payCmd, sendCmd, watchCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
