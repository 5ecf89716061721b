package main

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	linkCmd = &cobra.Command{
		Use:   "link",
		Short: "link the primary account to the cosigner",
		Long: "this command registers the primary account with the cosigner and " +
			"adds its secondary signer to the account, so that payments require " +
			"both signatures",
		RunE: link,
	}
	payCmd = &cobra.Command{
		Use:   "pay <destination> [amount]",
		Short: "send a multisig payment",
		Long: "this command sends a payment signed by the primary key and " +
			"counter-signed by the cosigner",
		Args: cobra.RangeArgs(1, 2),
		RunE: pay,
	}
	sendCmd = &cobra.Command{
		Use:   "send <destination> [amount]",
		Short: "send a payment signed by the primary key only",
		Long: "this command sends a payment signed by the primary key only, " +
			"rejected by the ledger once the account is linked",
		Args: cobra.RangeArgs(1, 2),
		RunE: send,
	}
)

func link(_ *cobra.Command, _ []string) error {
	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.LinkSecondarySigner(context.Background())
	if err != nil {
		printErr(err)
		return nil
	}
	return printJSON(map[string]interface{}{
		"primary_address":   res.PrimaryAddress,
		"secondary_address": res.SecondaryAddress,
		"already_linked":    res.AlreadyLinked(),
		"tx":                res.Tx,
	})
}

func pay(_ *cobra.Command, args []string) error {
	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.SendMultisigPayment(
		context.Background(), args[0], amountFromArgs(args),
	)
	if err != nil {
		printErr(err)
		return nil
	}
	return printJSON(res)
}

func send(_ *cobra.Command, args []string) error {
	svc, cleanup, err := getTransactionService()
	if err != nil {
		return err
	}
	defer cleanup()

	res, err := svc.SendPayment(
		context.Background(), args[0], amountFromArgs(args),
	)
	if err != nil {
		printErr(err)
		return nil
	}
	return printJSON(res)
}

func amountFromArgs(args []string) string {
	if len(args) == 2 {
		return args[1]
	}
	return ""
}
