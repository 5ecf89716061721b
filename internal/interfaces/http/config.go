package http_interface

import (
	"fmt"
)

const (
	minPort = 1024
	maxPort = 49151
)

// ServiceConfig holds the options of the http interface. With NoWatcher the
// daemon only acts as cosigner and notification hub.
type ServiceConfig struct {
	Port      int
	NoWatcher bool
}

func (c ServiceConfig) validate() error {
	if c.Port < minPort || c.Port > maxPort {
		return fmt.Errorf("port must be in range [%d, %d]", minPort, maxPort)
	}
	return nil
}

func (c ServiceConfig) address() string {
	return fmt.Sprintf(":%d", c.Port)
}
