package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vulpemventures/multisig-relay/internal/core/application"
	"github.com/vulpemventures/multisig-relay/internal/core/ports"
	http_cosigner "github.com/vulpemventures/multisig-relay/internal/infrastructure/cosigner/http"
	"github.com/vulpemventures/multisig-relay/internal/infrastructure/ledger/horizon"
	"github.com/vulpemventures/multisig-relay/internal/infrastructure/storage/db/jsonfile"
	"github.com/vulpemventures/multisig-relay/pkg/wallet"
)

var colorRed = string("\033[31m")

func initialState() map[string]string {
	return map[string]string{
		"network":        "testnet",
		"horizon_url":    "https://horizon-testnet.stellar.org",
		"cosigner_url":   "http://localhost:3001",
		"amount":         application.DefaultPaymentAmount,
		"primary_secret": "",
	}
}

func getLedger() (ports.Ledger, error) {
	state, err := getState()
	if err != nil {
		return nil, err
	}
	passphrase, err := horizon.PassphraseForNetwork(state["network"])
	if err != nil {
		return nil, err
	}
	return horizon.NewService(horizon.ServiceArgs{
		HorizonURL: state["horizon_url"],
		Passphrase: passphrase,
	})
}

func getPrimaryKey() (*wallet.Keypair, error) {
	state, err := getState()
	if err != nil {
		return nil, err
	}
	secret := state["primary_secret"]
	if secret == "" {
		return nil, fmt.Errorf(
			"missing primary key, try 'relay keys generate' or 'relay keys import'",
		)
	}
	return wallet.NewKeypairFromSecret(secret)
}

func getAccountService() (*application.AccountService, error) {
	ledger, err := getLedger()
	if err != nil {
		return nil, err
	}
	return application.NewAccountService(ledger)
}

func getTransactionService() (*application.TransactionService, func(), error) {
	state, err := getState()
	if err != nil {
		return nil, nil, err
	}
	ledger, err := getLedger()
	if err != nil {
		return nil, nil, err
	}
	key, err := getPrimaryKey()
	if err != nil {
		return nil, nil, err
	}
	cosigner, err := http_cosigner.NewService(http_cosigner.ServiceArgs{
		URL: state["cosigner_url"],
	})
	if err != nil {
		return nil, nil, err
	}
	rm, err := jsonfile.NewRepoManager(dbDir)
	if err != nil {
		return nil, nil, err
	}

	svc, err := application.NewTransactionService(
		application.TransactionServiceArgs{
			Ledger:      ledger,
			Cosigner:    cosigner,
			RepoManager: rm,
			PrimaryKey:  key,
			Amount:      state["amount"],
		},
	)
	if err != nil {
		rm.Close()
		return nil, nil, err
	}
	return svc, rm.Close, nil
}

func getState() (map[string]string, error) {
	file, err := os.ReadFile(statePath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := writeState(initialState()); err != nil {
			return nil, err
		}
		return initialState(), nil
	}

	data := initialState()
	if err := json.Unmarshal(file, &data); err != nil {
		return nil, fmt.Errorf("invalid state file %s: %s", statePath, err)
	}
	return data, nil
}

func setState(partialState map[string]string) error {
	state, err := getState()
	if err != nil {
		return err
	}

	for key, value := range partialState {
		state[key] = value
	}
	return writeState(state)
}

func writeState(state map[string]string) error {
	dir := filepath.Dir(statePath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err = os.MkdirAll(dir, 0755)
		if err != nil {
			return fmt.Errorf("failed to create directory: %v", err)
		}
	}

	buf, _ := json.MarshalIndent(state, "", "  ")
	// The state holds the primary secret.
	if err := os.WriteFile(statePath, buf, 0600); err != nil {
		return fmt.Errorf("writing to file: %w", err)
	}

	return nil
}

func printJSON(v interface{}) error {
	buf, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal response: %s", err)
	}
	fmt.Println(string(buf))
	return nil
}

func printErr(err error) {
	msg := fmt.Sprintf("%s%s", colorRed, capitalize(err.Error()))
	fmt.Fprintln(os.Stderr, msg)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	ss := strings.ToUpper(s[0:1])
	ss += s[1:]
	return ss
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date,
	)
}
