package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	networkName string
	horizonURL  string
	cosignerURL string
	amount      string

	configSetCmd = &cobra.Command{
		Use:   "set",
		Short: "edit single CLI config entry",
		Long: "this command lets you customize a single configuration entry of " +
			"the relay CLI",
		Args: cobra.ExactArgs(2),
		RunE: configSet,
	}
	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "edit multiple CLI config entries",
		Long: "this command lets you customize multiple configuration entries of " +
			"the relay CLI",
		RunE: configInit,
	}
	configCmd = &cobra.Command{
		Use:   "config",
		Short: "print or edit CLI configuration",
		Long: "this command lets you show or customize the configuration of " +
			"the relay CLI",
		RunE: configPrint,
	}
)

func init() {
	state := initialState()
	configInitCmd.Flags().StringVar(
		&networkName, "network", state["network"], "ledger network (testnet, public)",
	)
	configInitCmd.Flags().StringVar(
		&horizonURL, "horizon-url", state["horizon_url"],
		"url of the Horizon server to connect to",
	)
	configInitCmd.Flags().StringVar(
		&cosignerURL, "cosigner-url", state["cosigner_url"],
		"url of the relay daemon acting as cosigner",
	)
	configInitCmd.Flags().StringVar(
		&amount, "amount", state["amount"], "default payment amount",
	)
	configCmd.AddCommand(configSetCmd, configInitCmd)
}

func configSet(_ *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Prevent setting anything that is not part of the state.
	if _, ok := initialState()[key]; !ok {
		return fmt.Errorf("unknown config entry %s", key)
	}

	if err := setState(map[string]string{key: value}); err != nil {
		return err
	}

	if key == "primary_secret" {
		value = "***"
	}
	fmt.Printf("%s %s has been set\n", key, value)
	return nil
}

func configInit(_ *cobra.Command, _ []string) error {
	if _, err := getState(); err != nil {
		return err
	}

	if err := setState(map[string]string{
		"network":      networkName,
		"horizon_url":  horizonURL,
		"cosigner_url": cosignerURL,
		"amount":       amount,
	}); err != nil {
		return err
	}

	fmt.Println("CLI has been configured")
	return nil
}

func configPrint(_ *cobra.Command, _ []string) error {
	state, err := getState()
	if err != nil {
		return err
	}
	if state["primary_secret"] != "" {
		state["primary_secret"] = "***"
	}

	buf, _ := json.MarshalIndent(state, "", "   ")
	fmt.Println(string(buf))
	return nil
}
