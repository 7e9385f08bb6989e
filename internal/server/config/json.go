package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avolkovs/authkeeper/internal/flagx"
	"github.com/avolkovs/authkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1s" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddrHTTP            string         `json:"endpoint_addr_http"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	SessionValidityDuration     timex.Duration `json:"session_validity_duration"`
	ActionTokenValidityDuration timex.Duration `json:"action_token_validity_duration"`
	MaxLoginAttempts            int            `json:"max_login_attempts"`
	BaseURL                     string         `json:"base_url"`
	EmailFrom                   string         `json:"email_from"`
	SMTPAddr                    string         `json:"smtp_addr"`
	SMTPUsername                string         `json:"smtp_username"`
	SMTPPassword                string         `json:"smtp_password"`
	WorkerPollInterval          timex.Duration `json:"worker_poll_interval"`
	WorkerLeaseTTL              timex.Duration `json:"worker_lease_ttl"`
	JobMaxAttempts              int            `json:"job_max_attempts"`
	RetryBackoffBase            timex.Duration `json:"retry_backoff_base"`
	RetryBackoffCap             timex.Duration `json:"retry_backoff_cap"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is the -c or -config command-line
// flag; if it is not set, no JSON file is loaded. If the file cannot be read
// or contains invalid JSON, the function panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.DatabaseDSN = c.DatabaseDSN
	config.SecretKey = c.SecretKey
	config.SessionValidityDuration = time.Duration(c.SessionValidityDuration.Duration)
	config.ActionTokenValidityDuration = time.Duration(c.ActionTokenValidityDuration.Duration)
	config.MaxLoginAttempts = c.MaxLoginAttempts
	config.BaseURL = c.BaseURL
	config.EmailFrom = c.EmailFrom
	config.SMTPAddr = c.SMTPAddr
	config.SMTPUsername = c.SMTPUsername
	config.SMTPPassword = c.SMTPPassword
	config.WorkerPollInterval = time.Duration(c.WorkerPollInterval.Duration)
	config.WorkerLeaseTTL = time.Duration(c.WorkerLeaseTTL.Duration)
	config.JobMaxAttempts = c.JobMaxAttempts
	config.RetryBackoffBase = time.Duration(c.RetryBackoffBase.Duration)
	config.RetryBackoffCap = time.Duration(c.RetryBackoffCap.Duration)
}
