package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"firestige.xyz/capturescope/internal/config"
	"firestige.xyz/capturescope/pkg/capture"
)

func TestInitStdoutOnly(t *testing.T) {
	logger, err := Init(config.LogConfig{Level: "info"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if logger == nil {
		t.Fatal("expected a logger, got nil")
	}
}

func TestInitWithFileOutput(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	logger, err := Init(config.LogConfig{
		Level: "debug",
		Outputs: config.LogOutputsConfig{
			File: config.FileOutputConfig{
				Enabled: true,
				Path:    logPath,
				Rotation: config.RotationConfig{
					MaxSizeMB:  10,
					MaxBackups: 3,
					MaxAgeDays: 7,
					Compress:   true,
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	logger.Info("test message")

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Errorf("log file was not created at %s", logPath)
	}
}

func TestInitWithInvalidLevel(t *testing.T) {
	_, err := Init(config.LogConfig{Level: "invalid"})
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "invalid log level") {
		t.Errorf("expected error about invalid log level, got: %v", err)
	}
}

func TestInitWithMissingFilePath(t *testing.T) {
	_, err := Init(config.LogConfig{
		Level: "info",
		Outputs: config.LogOutputsConfig{
			File: config.FileOutputConfig{Enabled: true},
		},
	})
	if err == nil {
		t.Fatal("expected error for missing file path, got nil")
	}
	if !strings.Contains(err.Error(), "path") {
		t.Errorf("expected error about missing path, got: %v", err)
	}
}

func TestCurrent_FallsBackWhenNothingInstalled(t *testing.T) {
	defer capture.Forget()
	if Current() == nil {
		t.Fatal("Current must never return nil")
	}
}

func TestInstall_ScopesToCaller(t *testing.T) {
	defer capture.Forget()
	var buf bytes.Buffer
	base, err := Init(config.LogConfig{Level: "info"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	guard := Install(base)
	defer guard.Close()

	if Current() != base {
		t.Error("Current should return the just-installed logger")
	}
	_ = buf
}

func TestInstallAuto_CrossesGoroutines(t *testing.T) {
	defer capture.Forget()
	base, err := Init(config.LogConfig{Level: "info"})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	guard := InstallAuto(base)
	wrapped := capture.WrapCall(func() {
		if Current() != base {
			t.Error("wrapped call should observe the auto-scoped logger")
		}
	})
	guard.Close()

	done := make(chan struct{})
	go func() {
		defer capture.Forget()
		defer close(done)
		wrapped()
	}()
	<-done
}
