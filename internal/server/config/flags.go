package config

import (
	"flag"
	"os"
	"time"

	"github.com/avolkovs/authkeeper/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   action-token HMAC secret key
//	-t int      session validity, minutes
//	-k int      action token validity, minutes
//	-m int      failed logins before lockout
//	-b string   public base URL for email links
//	-f string   From address for outgoing email
//	-e string   SMTP endpoint (host:port)
//	-u string   SMTP username
//	-p string   SMTP password
//	-i int      worker poll interval, seconds
//	-l int      worker lease TTL, seconds
//	-j int      job delivery attempts before permanent failure
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers and converted to time.Duration.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-k", "-m", "-b", "-f", "-e", "-u", "-p", "-i", "-l", "-j"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionValidityDuration := fs.Int("t", int(config.SessionValidityDuration.Minutes()), "session_validity_duration (in minutes)")
	actionTokenValidityDuration := fs.Int("k", int(config.ActionTokenValidityDuration.Minutes()), "action_token_validity_duration (in minutes)")

	fs.IntVar(&config.MaxLoginAttempts, "m", config.MaxLoginAttempts, "failed logins before lockout")
	fs.StringVar(&config.BaseURL, "b", config.BaseURL, "public base URL for email links")
	fs.StringVar(&config.EmailFrom, "f", config.EmailFrom, "From address for outgoing email")
	fs.StringVar(&config.SMTPAddr, "e", config.SMTPAddr, "SMTP endpoint (host:port)")
	fs.StringVar(&config.SMTPUsername, "u", config.SMTPUsername, "SMTP username")
	fs.StringVar(&config.SMTPPassword, "p", config.SMTPPassword, "SMTP password")

	workerPollInterval := fs.Int("i", int(config.WorkerPollInterval.Seconds()), "worker_poll_interval (in seconds)")
	workerLeaseTTL := fs.Int("l", int(config.WorkerLeaseTTL.Seconds()), "worker_lease_ttl (in seconds)")
	fs.IntVar(&config.JobMaxAttempts, "j", config.JobMaxAttempts, "job delivery attempts before permanent failure")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionValidityDuration = time.Duration(*sessionValidityDuration) * time.Minute
	config.ActionTokenValidityDuration = time.Duration(*actionTokenValidityDuration) * time.Minute
	config.WorkerPollInterval = time.Duration(*workerPollInterval) * time.Second
	config.WorkerLeaseTTL = time.Duration(*workerLeaseTTL) * time.Second
}
