package main

import (
	"testing"

	"github.com/coinbase/chaingateway/internal/config"
	"github.com/coinbase/chaingateway/internal/utils/testapp"
)

func TestIntegrationCron(t *testing.T) {
	testapp.TestAllConfigs(t, func(t *testing.T, cfg *config.Config) {
		if !cfg.IsFunctionalTest() {
			t.Skip()
		}

		manager := startManager(config.WithCustomConfig(cfg))
		manager.Shutdown()
		manager.WaitForInterrupt()
	})
}
