package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {

	// Test cases
	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-s", "secret",
			"-t", "30", "-k", "60", "-m", "3", "-b", "https://auth.example",
			"-f", "auth@example.com", "-e", "smtp.example:587", "-u", "user", "-p", "password",
			"-i", "1", "-l", "90", "-j", "7",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP:            "127.0.0.1:9090",
				DatabaseDSN:                 "db",
				SecretKey:                   "secret",
				SessionValidityDuration:     30 * time.Minute,
				ActionTokenValidityDuration: 60 * time.Minute,
				MaxLoginAttempts:            3,
				BaseURL:                     "https://auth.example",
				EmailFrom:                   "auth@example.com",
				SMTPAddr:                    "smtp.example:587",
				SMTPUsername:                "user",
				SMTPPassword:                "password",
				WorkerPollInterval:          1 * time.Second,
				WorkerLeaseTTL:              90 * time.Second,
				JobMaxAttempts:              7,
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			os.Args = tt.args

			config := &Config{}

			if !tt.expectPanic {

				require.NotPanics(t, func() { parseFlags(config) })
				assert.Empty(t, cmp.Diff(config, tt.expected))
			} else {
				require.Panics(t, func() { parseFlags(config) })
			}
		})
	}
}
