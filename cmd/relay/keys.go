package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
	"github.com/vulpemventures/multisig-relay/pkg/wallet/mnemonic"
)

var (
	withMnemonic  bool
	mnemonicWords string
	mnemonicPass  string
	mnemonicIndex uint32
	overwriteKey  bool

	keysGenerateCmd = &cobra.Command{
		Use:   "generate",
		Short: "generate a new primary key",
		Long: "this command generates a random primary key, or one derived from " +
			"a new mnemonic, and stores it in the CLI state",
		RunE: keysGenerate,
	}
	keysImportCmd = &cobra.Command{
		Use:   "import",
		Short: "import an existing primary key",
		Long: "this command imports the primary key from its secret, or derives " +
			"it from the given mnemonic",
		RunE: keysImport,
	}
	keysShowCmd = &cobra.Command{
		Use:   "show",
		Short: "show the primary address",
		RunE:  keysShow,
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "manage the primary key",
		Long:  "this command lets you generate, import or show the primary key",
	}
)

func init() {
	keysGenerateCmd.Flags().BoolVar(
		&withMnemonic, "mnemonic", false, "derive the key from a new mnemonic",
	)
	keysImportCmd.Flags().StringVar(
		&mnemonicWords, "mnemonic", "", "space separated list of words",
	)
	keysCmd.PersistentFlags().StringVar(
		&mnemonicPass, "password", "", "optional mnemonic password",
	)
	keysCmd.PersistentFlags().Uint32Var(
		&mnemonicIndex, "index", 0, "account index of the derivation path",
	)
	keysCmd.PersistentFlags().BoolVar(
		&overwriteKey, "force", false, "overwrite the existing primary key",
	)
	keysCmd.AddCommand(keysGenerateCmd, keysImportCmd, keysShowCmd)
}

func keysGenerate(_ *cobra.Command, _ []string) error {
	if !withMnemonic {
		key, err := wallet.NewKeypair()
		if err != nil {
			return err
		}
		return storeKey(key, "")
	}

	words, err := mnemonic.NewMnemonic(mnemonic.NewMnemonicArgs{})
	if err != nil {
		return err
	}
	key, err := wallet.NewKeypairFromMnemonic(wallet.NewKeypairFromMnemonicArgs{
		Mnemonic: words,
		Password: mnemonicPass,
		Index:    mnemonicIndex,
	})
	if err != nil {
		return err
	}
	return storeKey(key, strings.Join(words, " "))
}

func keysImport(_ *cobra.Command, args []string) error {
	var (
		key *wallet.Keypair
		err error
	)
	switch {
	case mnemonicWords != "":
		key, err = wallet.NewKeypairFromMnemonic(wallet.NewKeypairFromMnemonicArgs{
			Mnemonic: strings.Fields(mnemonicWords),
			Password: mnemonicPass,
			Index:    mnemonicIndex,
		})
	case len(args) == 1:
		key, err = wallet.NewKeypairFromSecret(args[0])
	default:
		return fmt.Errorf("either secret or mnemonic must be given")
	}
	if err != nil {
		return err
	}
	return storeKey(key, "")
}

func keysShow(_ *cobra.Command, _ []string) error {
	key, err := getPrimaryKey()
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"address": key.Address()})
}

func storeKey(key *wallet.Keypair, words string) error {
	state, err := getState()
	if err != nil {
		return err
	}
	if state["primary_secret"] != "" && !overwriteKey {
		return fmt.Errorf("primary key already set, use --force to overwrite it")
	}
	if err := setState(map[string]string{"primary_secret": key.Secret()}); err != nil {
		return err
	}

	out := map[string]string{"address": key.Address()}
	if words != "" {
		out["mnemonic"] = words
	}
	return printJSON(out)
}
