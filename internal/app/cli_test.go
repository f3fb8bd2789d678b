package app

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestRegisterFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	// Verify all flags are registered
	expectedFlags := []string{
		"transport",
		"host",
		"port",
		"auth-type",
		"auth-basic-username",
		"auth-basic-password",
		"auth-api-keys",
		"docs-cache-dir",
		"docs-fetch-timeout",
		"docs-fetch-retries",
		"docs-concurrency",
		"docs-rate-limit",
		"docs-max-chunk-len",
		"docs-max-results",
		"docs-sync-on-start",
		"docs-sync-schedule",
		"docs-lock-timeout",
		"docs-search-cache-size",
		"docs-search-cache-ttl",
	}

	for _, name := range expectedFlags {
		if flags.Lookup(name) == nil {
			t.Errorf("Expected flag %q to be registered", name)
		}
	}
}

func TestRegisterFlags_Shorthand(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	shorthandFlags := map[string]string{
		"transport":           "t",
		"host":                "H",
		"port":                "p",
		"auth-type":           "a",
		"auth-basic-username": "u",
		"auth-basic-password": "P",
		"auth-api-keys":       "k",
		"docs-cache-dir":      "d",
		"docs-concurrency":    "c",
		"docs-max-results":    "n",
	}

	for name, shorthand := range shorthandFlags {
		flag := flags.Lookup(name)
		if flag == nil {
			t.Errorf("Flag %q not found", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("Flag %q expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

func TestRegisterFlags_SetValues(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(flags)

	err := flags.Parse([]string{
		"--transport", "sse",
		"--host", "localhost",
		"--port", "9090",
		"--auth-type", "basic",
		"-d", "/tmp/docs",
		"--docs-fetch-timeout", "5s",
		"--docs-sync-on-start=false",
		"--docs-sync-schedule", "@every 6h",
	})
	if err != nil {
		t.Fatalf("Failed to parse flags: %v", err)
	}

	transport, _ := flags.GetString("transport")
	if transport != "sse" {
		t.Errorf("Expected transport 'sse', got '%s'", transport)
	}

	host, _ := flags.GetString("host")
	if host != "localhost" {
		t.Errorf("Expected host 'localhost', got '%s'", host)
	}

	port, _ := flags.GetInt("port")
	if port != 9090 {
		t.Errorf("Expected port 9090, got %d", port)
	}

	authType, _ := flags.GetString("auth-type")
	if authType != "basic" {
		t.Errorf("Expected auth-type 'basic', got '%s'", authType)
	}

	cacheDir, _ := flags.GetString("docs-cache-dir")
	if cacheDir != "/tmp/docs" {
		t.Errorf("Expected docs-cache-dir '/tmp/docs', got '%s'", cacheDir)
	}

	timeout, _ := flags.GetDuration("docs-fetch-timeout")
	if timeout != 5*time.Second {
		t.Errorf("Expected docs-fetch-timeout 5s, got %v", timeout)
	}

	syncOnStart, _ := flags.GetBool("docs-sync-on-start")
	if syncOnStart {
		t.Error("Expected docs-sync-on-start to be false")
	}

	schedule, _ := flags.GetString("docs-sync-schedule")
	if schedule != "@every 6h" {
		t.Errorf("Expected docs-sync-schedule '@every 6h', got '%s'", schedule)
	}
}
