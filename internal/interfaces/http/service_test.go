package http_interface_test

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	appconfig "github.com/vulpemventures/multisig-relay/internal/app-config"
	http_interface "github.com/vulpemventures/multisig-relay/internal/interfaces/http"
)

func TestNewService(t *testing.T) {
	tests := []struct {
		name      string
		config    http_interface.ServiceConfig
		appConfig *appconfig.AppConfig
	}{
		{
			name:      "port_out_of_range",
			config:    http_interface.ServiceConfig{Port: 80},
			appConfig: newAppConfig(t),
		},
		{
			name:   "unknown_network",
			config: http_interface.ServiceConfig{Port: 18010},
			appConfig: func() *appconfig.AppConfig {
				cfg := newAppConfig(t)
				cfg.Network = "regtest"
				return cfg
			}(),
		},
		{
			name:   "unknown_db",
			config: http_interface.ServiceConfig{Port: 18010},
			appConfig: func() *appconfig.AppConfig {
				cfg := newAppConfig(t)
				cfg.RepoManagerType = "leveldb"
				return cfg
			}(),
		},
		{
			name:   "non_durable_db",
			config: http_interface.ServiceConfig{Port: 18010},
			appConfig: func() *appconfig.AppConfig {
				cfg := newAppConfig(t)
				cfg.RepoManagerType = "inmemory"
				cfg.RepoManagerConfig = nil
				return cfg
			}(),
		},
		{
			name:   "invalid_primary_secret",
			config: http_interface.ServiceConfig{Port: 18010},
			appConfig: func() *appconfig.AppConfig {
				cfg := newAppConfig(t)
				cfg.PrimarySecret = "SABC"
				return cfg
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := http_interface.NewService(tt.config, tt.appConfig)
			require.Error(t, err)
			require.Nil(t, svc)
		})
	}
}

func TestServiceStartStop(t *testing.T) {
	port := 18011
	svc, err := http_interface.NewService(
		http_interface.ServiceConfig{Port: port, NoWatcher: true}, newAppConfig(t),
	)
	require.NoError(t, err)

	require.NoError(t, svc.Start())

	url := fmt.Sprintf("http://localhost:%d/healthz", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond)

	svc.Stop()

	_, err = http.Get(url)
	require.Error(t, err)
}

func newAppConfig(t *testing.T) *appconfig.AppConfig {
	return &appconfig.AppConfig{
		Network:           "testnet",
		HorizonURL:        "https://horizon-testnet.stellar.org",
		RepoManagerType:   "json",
		RepoManagerConfig: t.TempDir(),
		NotifierType:      "local",
	}
}
