package config

import (
	"sync"
	"testing"
)

func resetGlobal() {
	current.Store(nil)
	initOnce = sync.Once{}
	initErr = nil
}

func TestInitialize(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	path := writeConfig(t, `
server:
  listen_address: "127.0.0.1:8181"
`)
	if err := Initialize(path); err != nil {
		t.Fatalf("failed to initialize config: %v", err)
	}

	cfg := GetConfig()
	if cfg == nil {
		t.Fatal("expected non-nil config after initialization")
	}
	if cfg.Server.ListenAddress != "127.0.0.1:8181" {
		t.Errorf("expected listen address %q, got %q", "127.0.0.1:8181", cfg.Server.ListenAddress)
	}

	other := writeConfig(t, `
server:
  listen_address: "127.0.0.1:9191"
`)
	if err := Initialize(other); err != nil {
		t.Fatalf("second Initialize returned error: %v", err)
	}
	if GetConfig().Server.ListenAddress != "127.0.0.1:8181" {
		t.Error("second Initialize must be ignored")
	}
}

func TestInitialize_ErrorIsSticky(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	bad := writeConfig(t, "runner:\n  workers: -2\n")
	if err := Initialize(bad); err == nil {
		t.Fatal("expected invalid config to fail")
	}
	if err := Initialize(writeConfig(t, "runner:\n  workers: 2\n")); err == nil {
		t.Error("a failed Initialize must keep failing")
	}
	if GetConfig() != nil {
		t.Error("no configuration should be published after a failure")
	}
}

func TestReloadConfig(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	SetConfig(NewDefaultConfig())

	if err := ReloadConfig(writeConfig(t, "runner:\n  workers: 0\n  scene_timeout: -1s\n")); err == nil {
		t.Fatal("expected reload of invalid config to fail")
	}
	if GetConfig().Runner.Workers != DefaultRunnerWorkers {
		t.Error("failed reload must keep the current configuration")
	}

	if err := ReloadConfig(writeConfig(t, "runner:\n  workers: 3\n")); err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if GetConfig().Runner.Workers != 3 {
		t.Errorf("expected 3 workers after reload, got %d", GetConfig().Runner.Workers)
	}
}

func TestMustGetConfig_Panics(t *testing.T) {
	resetGlobal()
	defer resetGlobal()

	defer func() {
		if recover() == nil {
			t.Error("expected panic before initialization")
		}
	}()
	MustGetConfig()
}
