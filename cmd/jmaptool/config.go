package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"github.com/spf13/viper"

	"jmapclient/internal/common/validation"
	"jmapclient/internal/common/version"
	"jmapclient/internal/jmap/client"
)

// Config holds all configuration for jmaptool.
type Config struct {
	// Connection settings
	Host        string
	Port        int
	Username    string
	Password    string
	OTP         string
	AccessToken string
	AuthMethod  string // auto, basic, bearer
	UseKeyring  bool
	KeyringPass string // enables the encrypted file keyring

	// Action
	Action string

	// Action arguments
	Mailbox     string
	Limit       int
	File        string
	ContentType string
	PushMode    string
	Duration    time.Duration
	MetricsAddr string

	// Network settings
	SkipVerify bool
	ProxyURL   string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	RateLimit  float64

	// Logging
	VerboseMode bool
	LogLevel    string
	LogFormat   string

	// Other
	ConfigFile  string
	ShowVersion bool
}

// Action constants
const (
	ActionTestConnect      = "testconnect"
	ActionTestAuth         = "testauth"
	ActionGetMailboxes     = "getmailboxes"
	ActionListEmails       = "listemails"
	ActionGetIdentities    = "getidentities"
	ActionUploadBlob       = "uploadblob"
	ActionGetVacation      = "getvacation"
	ActionListCalendars    = "listcalendars"
	ActionListAddressBooks = "listaddressbooks"
	ActionListSieve        = "listsieve"
	ActionWatch            = "watch"
)

var validActions = []string{
	ActionTestConnect, ActionTestAuth, ActionGetMailboxes, ActionListEmails,
	ActionGetIdentities, ActionUploadBlob, ActionGetVacation, ActionListCalendars,
	ActionListAddressBooks, ActionListSieve, ActionWatch,
}

// envPrefix is prepended to the upper-cased flag name, as in JMAPHOST.
const envPrefix = "JMAP"

// NewConfig creates a new Config with sensible default values.
func NewConfig() *Config {
	return &Config{
		Port:        443,
		AuthMethod:  "auto",
		Limit:       20,
		ContentType: "application/octet-stream",
		PushMode:    "auto",
		Duration:    60 * time.Second,
		Timeout:     30 * time.Second,
		MaxRetries:  3,
		RetryDelay:  2 * time.Second,
		LogLevel:    "info",
		LogFormat:   "csv",
	}
}

// registerFlags binds every option of config to fs.
func registerFlags(fs *flag.FlagSet, config *Config) {
	fs.StringVar(&config.Action, "action", config.Action, "Action to perform (env: JMAPACTION)")
	fs.StringVar(&config.Host, "host", config.Host, "JMAP server hostname or URL (env: JMAPHOST)")
	fs.IntVar(&config.Port, "port", config.Port, "JMAP server port (env: JMAPPORT)")
	fs.StringVar(&config.Username, "username", config.Username, "Username for authentication (env: JMAPUSERNAME)")
	fs.StringVar(&config.Password, "password", config.Password, "Password for authentication (env: JMAPPASSWORD)")
	fs.StringVar(&config.OTP, "otp", config.OTP, "One-time code appended to the password (env: JMAPOTP)")
	fs.StringVar(&config.AccessToken, "accesstoken", config.AccessToken, "Access token for Bearer authentication (env: JMAPACCESSTOKEN)")
	fs.StringVar(&config.AuthMethod, "authmethod", config.AuthMethod, "Authentication method: auto, basic, bearer (env: JMAPAUTHMETHOD)")
	fs.BoolVar(&config.UseKeyring, "usekeyring", config.UseKeyring, "Store and restore bearer tokens in the system keyring (env: JMAPUSEKEYRING)")
	fs.StringVar(&config.KeyringPass, "keyringpassword", config.KeyringPass, "Password for the encrypted file keyring, used when no system keyring exists (env: JMAPKEYRINGPASSWORD)")

	fs.StringVar(&config.Mailbox, "mailbox", config.Mailbox, "Mailbox role or id for listemails (env: JMAPMAILBOX)")
	fs.IntVar(&config.Limit, "limit", config.Limit, "Maximum number of emails to list (env: JMAPLIMIT)")
	fs.StringVar(&config.File, "file", config.File, "File to upload for uploadblob (env: JMAPFILE)")
	fs.StringVar(&config.ContentType, "contenttype", config.ContentType, "Content type of the uploaded file (env: JMAPCONTENTTYPE)")
	fs.StringVar(&config.PushMode, "pushmode", config.PushMode, "State change delivery for watch: auto, eventsource, polling (env: JMAPPUSHMODE)")
	fs.DurationVar(&config.Duration, "duration", config.Duration, "How long watch runs, 0 = until interrupted (env: JMAPDURATION)")
	fs.StringVar(&config.MetricsAddr, "metricsaddr", config.MetricsAddr, "Serve Prometheus metrics on this address during watch (env: JMAPMETRICSADDR)")

	fs.BoolVar(&config.SkipVerify, "skipverify", config.SkipVerify, "Skip TLS certificate verification (env: JMAPSKIPVERIFY)")
	fs.StringVar(&config.ProxyURL, "proxy", config.ProxyURL, "HTTP/HTTPS proxy URL (env: JMAPPROXY)")
	fs.DurationVar(&config.Timeout, "timeout", config.Timeout, "HTTP request timeout (env: JMAPTIMEOUT)")
	fs.IntVar(&config.MaxRetries, "maxretries", config.MaxRetries, "Maximum connection retry attempts (env: JMAPMAXRETRIES)")
	fs.DurationVar(&config.RetryDelay, "retrydelay", config.RetryDelay, "Base delay between connection retries (env: JMAPRETRYDELAY)")
	fs.Float64Var(&config.RateLimit, "ratelimit", config.RateLimit, "Maximum requests per second, 0 = unlimited (env: JMAPRATELIMIT)")

	fs.BoolVar(&config.VerboseMode, "verbose", config.VerboseMode, "Enable verbose output (env: JMAPVERBOSE)")
	fs.StringVar(&config.LogLevel, "loglevel", config.LogLevel, "Log level: debug, info, warn, error (env: JMAPLOGLEVEL)")
	fs.StringVar(&config.LogFormat, "logformat", config.LogFormat, "Log format: csv, json (env: JMAPLOGFORMAT)")

	fs.StringVar(&config.ConfigFile, "config", config.ConfigFile, "YAML file with default option values (env: JMAPCONFIG)")
	fs.BoolVar(&config.ShowVersion, "version", false, "Show version information")
}

// parseAndConfigureFlags parses command-line flags, environment variables
// and the optional config file. Precedence is flag, then environment, then
// file, then default.
func parseAndConfigureFlags() *Config {
	fs := flag.CommandLine
	fs.Usage = usage
	config, err := parseFlags(fs, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	return config
}

func parseFlags(fs *flag.FlagSet, args []string) (*Config, error) {
	config := NewConfig()
	registerFlags(fs, config)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Track which flags were explicitly set via command line
	provided := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		provided[f.Name] = true
	})

	if !provided["config"] {
		config.ConfigFile = os.Getenv(envPrefix + "CONFIG")
	}

	v, err := loadSettings(fs, config.ConfigFile)
	if err != nil {
		return nil, err
	}

	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		if provided[f.Name] || f.Name == "config" || f.Name == "version" || !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = append(errs, fmt.Errorf("invalid value for %s: %w", f.Name, err))
		}
	})
	return config, errors.Join(errs...)
}

// loadSettings layers the JMAP* environment over the config file. Keys are
// the flag names.
func loadSettings(fs *flag.FlagSet, path string) (*viper.Viper, error) {
	v := viper.New()
	fs.VisitAll(func(f *flag.Flag) {
		_ = v.BindEnv(f.Name, envPrefix+strings.ToUpper(f.Name))
	})
	if path == "" {
		return v, nil
	}

	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return v, nil
}

func usage() {
	fmt.Fprintf(os.Stderr, "jmaptool - JMAP Testing Tool - Version %s\n\n", version.Get())
	fmt.Fprintf(os.Stderr, "JMAP testing tool for mail, calendar, contacts and filter operations.\n\n")
	fmt.Fprintf(os.Stderr, "Actions:\n")
	fmt.Fprintf(os.Stderr, "  testconnect       Test JMAP server connectivity and discover session\n")
	fmt.Fprintf(os.Stderr, "  testauth          Test authentication\n")
	fmt.Fprintf(os.Stderr, "  getmailboxes      List mailboxes of every account\n")
	fmt.Fprintf(os.Stderr, "  listemails        List emails in a mailbox (-mailbox, -limit)\n")
	fmt.Fprintf(os.Stderr, "  getidentities     List sender identities\n")
	fmt.Fprintf(os.Stderr, "  uploadblob        Upload a file (-file, -contenttype)\n")
	fmt.Fprintf(os.Stderr, "  getvacation       Show the vacation response\n")
	fmt.Fprintf(os.Stderr, "  listcalendars     List calendars\n")
	fmt.Fprintf(os.Stderr, "  listaddressbooks  List address books\n")
	fmt.Fprintf(os.Stderr, "  listsieve         List sieve scripts\n")
	fmt.Fprintf(os.Stderr, "  watch             Print state changes (-pushmode, -duration, -metricsaddr)\n\n")
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEvery option can also be set with a JMAP<OPTION> environment variable\n")
	fmt.Fprintf(os.Stderr, "(for example JMAPHOST, JMAPPASSWORD) or as a key in the -config file.\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  jmaptool -action testconnect -host jmap.fastmail.com\n")
	fmt.Fprintf(os.Stderr, "  jmaptool -action testauth -host jmap.fastmail.com -username user@example.com -accesstoken \"token\"\n")
	fmt.Fprintf(os.Stderr, "  jmaptool -action listemails -host mail.example.com -username user@example.com -password secret -mailbox inbox\n")
	fmt.Fprintf(os.Stderr, "  jmaptool -config jmaptool.yaml -action watch -duration 5m -metricsaddr :9090\n")
}

// validateConfiguration validates the configuration.
func validateConfiguration(config *Config) error {
	action := strings.ToLower(config.Action)
	valid := false
	for _, a := range validActions {
		if a == action {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid action: %s (valid: %s)", config.Action, strings.Join(validActions, ", "))
	}
	config.Action = action

	if config.Host == "" {
		return fmt.Errorf("host is required")
	}
	if err := validation.ValidateServerURL(config.serverURL()); err != nil {
		return err
	}
	if err := validation.ValidatePort(config.Port); err != nil {
		return err
	}

	config.AuthMethod = strings.ToLower(config.AuthMethod)
	switch config.AuthMethod {
	case "auto", "basic", "bearer":
	default:
		return fmt.Errorf("invalid auth method: %s (valid: auto, basic, bearer)", config.AuthMethod)
	}

	// Every action but testconnect talks to the API
	if config.Action != ActionTestConnect {
		if config.AccessToken == "" && config.Password == "" && !config.UseKeyring {
			return fmt.Errorf("either password, accesstoken or usekeyring is required for %s", config.Action)
		}
		if config.Password != "" && config.AccessToken == "" && config.Username == "" {
			return fmt.Errorf("username is required for basic authentication")
		}
	}

	if config.ProxyURL != "" {
		if err := validation.ValidateProxyURL(config.ProxyURL); err != nil {
			return fmt.Errorf("invalid proxy URL: %w", err)
		}
	}
	if config.MaxRetries < 0 {
		return fmt.Errorf("maxretries cannot be negative")
	}
	if config.RateLimit < 0 {
		return fmt.Errorf("ratelimit cannot be negative")
	}

	switch config.Action {
	case ActionListEmails:
		if config.Limit <= 0 {
			return fmt.Errorf("limit must be positive")
		}
	case ActionUploadBlob:
		if config.File == "" {
			return fmt.Errorf("file is required for %s", config.Action)
		}
		if err := validation.ValidateFilePath(config.File, "file"); err != nil {
			return err
		}
	case ActionWatch:
		config.PushMode = strings.ToLower(config.PushMode)
		switch client.PushMode(config.PushMode) {
		case client.PushAuto, client.PushEventSource, client.PushPolling:
		default:
			return fmt.Errorf("invalid push mode: %s (valid: auto, eventsource, polling)", config.PushMode)
		}
		if config.Duration < 0 {
			return fmt.Errorf("duration cannot be negative")
		}
	}

	config.LogLevel = strings.ToLower(config.LogLevel)
	switch config.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", config.LogLevel)
	}

	config.LogFormat = strings.ToLower(config.LogFormat)
	if config.LogFormat != "csv" && config.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (valid: csv, json)", config.LogFormat)
	}

	return nil
}

// serverURL turns Host and Port into the base URL of the server.
func (c *Config) serverURL() string {
	host := c.Host
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	if c.Port == 443 || c.Port == 0 {
		return "https://" + host
	}
	return fmt.Sprintf("https://%s:%d", host, c.Port)
}

// filePasswordPrompt returns the file keyring password source, nil when
// -keyringpassword is unset so that only system keyrings are used.
func (c *Config) filePasswordPrompt() keyring.PromptFunc {
	if c.KeyringPass == "" {
		return nil
	}
	return keyring.FixedStringPrompt(c.KeyringPass)
}

// clientConfig maps the tool options onto a library configuration.
func (c *Config) clientConfig() *client.Config {
	cfg := client.NewConfig(c.serverURL())
	cfg.AuthMethod = client.AuthMode(c.AuthMethod)
	cfg.Username = c.Username
	cfg.Password = c.Password
	cfg.OTP = c.OTP
	cfg.AccessToken = c.AccessToken
	cfg.SkipVerify = c.SkipVerify
	cfg.ProxyURL = c.ProxyURL
	cfg.RateLimit = c.RateLimit
	cfg.PushMode = client.PushMode(c.PushMode)
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	if c.UseKeyring && c.AccessToken == "" && c.Password == "" {
		cfg.AuthMethod = client.AuthBearer
	}
	cfg.StrictReads = true
	return cfg
}
