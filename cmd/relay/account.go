package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	accountFundCmd = &cobra.Command{
		Use:   "fund [address]",
		Short: "fund account on test network",
		Long: "this command funds the given account, or the primary one, with " +
			"the test network faucet",
		Args: cobra.MaximumNArgs(1),
		RunE: accountFund,
	}
	accountBalanceCmd = &cobra.Command{
		Use:   "balance [address]",
		Short: "get account balance",
		Long: "this command returns the balances of the given account, or the " +
			"primary one",
		Args: cobra.MaximumNArgs(1),
		RunE: accountBalance,
	}
	accountInfoCmd = &cobra.Command{
		Use:   "info [address]",
		Short: "get account info",
		Long: "this command returns sequence, flags, signers, thresholds and " +
			"data entries of the given account, or the primary one",
		Args: cobra.MaximumNArgs(1),
		RunE: accountInfo,
	}
	accountCmd = &cobra.Command{
		Use:   "account",
		Short: "query and fund ledger accounts",
	}
)

func init() {
	accountCmd.AddCommand(accountFundCmd, accountBalanceCmd, accountInfoCmd)
}

func accountFund(_ *cobra.Command, args []string) error {
	svc, err := getAccountService()
	if err != nil {
		return err
	}
	address, err := addressFromArgs(args)
	if err != nil {
		return err
	}

	res, err := svc.FundAccount(context.Background(), address)
	if err != nil {
		printErr(err)
		return nil
	}
	return printJSON(res)
}

func accountBalance(_ *cobra.Command, args []string) error {
	svc, err := getAccountService()
	if err != nil {
		return err
	}
	address, err := addressFromArgs(args)
	if err != nil {
		return err
	}

	balances, err := svc.GetBalance(context.Background(), address)
	if err != nil {
		printErr(err)
		return nil
	}
	return printJSON(balances)
}

func accountInfo(_ *cobra.Command, args []string) error {
	svc, err := getAccountService()
	if err != nil {
		return err
	}
	address, err := addressFromArgs(args)
	if err != nil {
		return err
	}

	info, err := svc.GetAccountInfo(context.Background(), address)
	if err != nil {
		printErr(err)
		return nil
	}
	return printJSON(info)
}

func addressFromArgs(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	key, err := getPrimaryKey()
	if err != nil {
		return "", err
	}
	return key.Address(), nil
}
