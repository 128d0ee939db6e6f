package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"timesheet/internal/core"
)

// Policy controls what the Guard accepts and how summaries are grouped.
type Policy struct {
	DailyCap        decimal.Decimal
	WeekWindow      core.WeekWindow
	Dates           core.DatePolicy
	GroupByDocument bool

	// Catalog overrides; empty means the backend's own catalog.
	Projects  []string
	Documents []string
}

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int

	// Session
	OwnerID  string
	UserName string

	// Database and local snapshot
	SQLiteDBPath string
	SnapshotPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleCatalogSheetName   string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Anomaly check
	AnomalyURL     string
	AnomalyAPIKey  string
	AnomalyTimeout time.Duration
	AnomalyRetries int

	// Worker
	SyncBatchSize   int
	SyncInterval    time.Duration
	CleanupInterval time.Duration
	CleanupAge      time.Duration

	// Backend selection
	DataBackend string

	// Entry policy
	PolicyFile string
	Policy     Policy

	// Logging
	LogLevel  string
	LogFormat string

	loadErrors []string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "8081"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),

		OwnerID:  getEnv("OWNER_ID", "local"),
		UserName: getEnv("USER_NAME", "anonymous"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/timesheet.db"),
		SnapshotPath: getEnv("SNAPSHOT_PATH", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "timesheet"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_entries"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Timesheet"),
		GoogleCatalogSheetName:   getEnv("GOOGLE_CATALOG_SHEET_NAME", "Catalog"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		AnomalyURL:     getEnv("ANOMALY_URL", ""),
		AnomalyAPIKey:  getEnv("ANOMALY_API_KEY", ""),
		AnomalyTimeout: getEnvDuration("ANOMALY_TIMEOUT", 10*time.Second),
		AnomalyRetries: getEnvInt("ANOMALY_RETRIES", 2),

		SyncBatchSize:   getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncInterval:    getEnvDuration("SYNC_INTERVAL", 30*time.Second),
		CleanupInterval: getEnvDuration("CLEANUP_INTERVAL", time.Hour),
		CleanupAge:      getEnvDuration("CLEANUP_AGE", 24*time.Hour),

		DataBackend: getEnv("DATA_BACKEND", "memory"),

		PolicyFile: getEnv("TIMESHEET_POLICY_FILE", ""),
		Policy:     DefaultPolicy(),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.PolicyFile != "" {
		if err := ApplyPolicyFile(&cfg.Policy, cfg.PolicyFile); err != nil {
			cfg.loadErrors = append(cfg.loadErrors, err.Error())
		}
	}
	cfg.applyPolicyEnv()

	return cfg
}

// DefaultPolicy is an 8 hour cap, week-to-date weekly window, weekends allowed
// and document grouping enabled.
func DefaultPolicy() Policy {
	return Policy{
		DailyCap:        core.DefaultDailyCap,
		WeekWindow:      core.WeekToDate,
		Dates:           core.DefaultDatePolicy(),
		GroupByDocument: true,
	}
}

func (c *Config) applyPolicyEnv() {
	if v := os.Getenv("DAILY_CAP_HOURS"); v != "" {
		d, err := core.ParseHours(v)
		if err != nil {
			c.loadErrors = append(c.loadErrors, fmt.Sprintf("invalid DAILY_CAP_HOURS '%s'", v))
		} else {
			c.Policy.DailyCap = d
		}
	}
	if v := os.Getenv("WEEK_WINDOW"); v != "" {
		c.Policy.WeekWindow = core.WeekWindow(strings.ToLower(strings.TrimSpace(v)))
	}
	c.Policy.Dates.AllowWeekends = getEnvBool("ALLOW_WEEKENDS", c.Policy.Dates.AllowWeekends)
	c.Policy.Dates.NotBeforeWeekStart = getEnvBool("RESTRICT_TO_CURRENT_WEEK", c.Policy.Dates.NotBeforeWeekStart)
	c.Policy.Dates.NotAfterToday = getEnvBool("DISALLOW_FUTURE", c.Policy.Dates.NotAfterToday)
	c.Policy.GroupByDocument = getEnvBool("GROUP_BY_DOCUMENT", c.Policy.GroupByDocument)
}

type policyFile struct {
	DailyCap              *float64 `toml:"daily_cap"`
	WeekWindow            *string  `toml:"week_window"`
	AllowWeekends         *bool    `toml:"allow_weekends"`
	RestrictToCurrentWeek *bool    `toml:"restrict_to_current_week"`
	DisallowFuture        *bool    `toml:"disallow_future"`
	GroupByDocument       *bool    `toml:"group_by_document"`
	Projects              []string `toml:"projects"`
	Documents             []string `toml:"documents"`
}

// ApplyPolicyFile overlays the keys present in a TOML policy file onto p.
// Keys missing from the file keep their current value.
func ApplyPolicyFile(p *Policy, path string) error {
	var f policyFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return fmt.Errorf("policy file '%s': %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("policy file '%s': unknown keys %v", path, undecoded)
	}

	if f.DailyCap != nil {
		p.DailyCap = decimal.NewFromFloat(*f.DailyCap)
	}
	if f.WeekWindow != nil {
		p.WeekWindow = core.WeekWindow(strings.ToLower(strings.TrimSpace(*f.WeekWindow)))
	}
	if f.AllowWeekends != nil {
		p.Dates.AllowWeekends = *f.AllowWeekends
	}
	if f.RestrictToCurrentWeek != nil {
		p.Dates.NotBeforeWeekStart = *f.RestrictToCurrentWeek
	}
	if f.DisallowFuture != nil {
		p.Dates.NotAfterToday = *f.DisallowFuture
	}
	if f.GroupByDocument != nil {
		p.GroupByDocument = *f.GroupByDocument
	}
	if len(f.Projects) > 0 {
		p.Projects = f.Projects
	}
	if len(f.Documents) > 0 {
		p.Documents = f.Documents
	}
	return nil
}

// WritePolicyFile encodes p in the format read by ApplyPolicyFile.
func WritePolicyFile(p Policy, path string) error {
	capHours, _ := p.DailyCap.Float64()
	window := string(p.WeekWindow)
	f := policyFile{
		DailyCap:              &capHours,
		WeekWindow:            &window,
		AllowWeekends:         &p.Dates.AllowWeekends,
		RestrictToCurrentWeek: &p.Dates.NotBeforeWeekStart,
		DisallowFuture:        &p.Dates.NotAfterToday,
		GroupByDocument:       &p.GroupByDocument,
		Projects:              p.Projects,
		Documents:             p.Documents,
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create policy directory: %w", err)
		}
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create policy file: %w", err)
	}
	defer out.Close()
	return toml.NewEncoder(out).Encode(f)
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	errors := append([]string(nil), c.loadErrors...)

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sheets", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if strings.TrimSpace(c.OwnerID) == "" {
		errors = append(errors, "owner id cannot be empty")
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if err := ensureDir(c.SQLiteDBPath); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create SQLite database directory: %v", err))
		}
	}
	if c.SnapshotPath != "" {
		if err := ensureDir(c.SnapshotPath); err != nil {
			errors = append(errors, fmt.Sprintf("cannot create snapshot directory: %v", err))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Google Sheets is required by the sheets backend and optional otherwise
	if c.DataBackend == "sheets" || c.GoogleSpreadsheetID != "" {
		errors = append(errors, c.validateSheets()...)
	}

	// Validate anomaly endpoint if provided
	if c.AnomalyURL != "" {
		if parsedURL, err := url.Parse(c.AnomalyURL); err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
			errors = append(errors, fmt.Sprintf("invalid anomaly URL '%s': must be an http(s) URL", c.AnomalyURL))
		}
	}
	if c.AnomalyTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("invalid anomaly timeout %v: must be positive", c.AnomalyTimeout))
	}
	if c.AnomalyRetries < 0 || c.AnomalyRetries > 10 {
		errors = append(errors, fmt.Sprintf("invalid anomaly retries %d: must be between 0 and 10", c.AnomalyRetries))
	}

	// Validate entry policy
	errors = append(errors, c.Policy.validate()...)

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	// Validate worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func (c *Config) validateSheets() []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when using sheets backend")
	}
	hasJSON := c.GoogleServiceAccountJSON != ""
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasJSON && !hasFile {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for Google Sheets")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return errors
}

func (p Policy) validate() []string {
	var errors []string
	if !p.DailyCap.IsPositive() {
		errors = append(errors, fmt.Sprintf("invalid daily cap %s: must be greater than zero", p.DailyCap))
	} else if p.DailyCap.GreaterThan(decimal.NewFromInt(24)) {
		errors = append(errors, fmt.Sprintf("invalid daily cap %s: must be at most 24 hours", p.DailyCap))
	}
	if _, err := core.ParseWeekWindow(string(p.WeekWindow)); err != nil {
		errors = append(errors, fmt.Sprintf("invalid week window '%s': must be 'week_to_date' or 'full_week'", p.WeekWindow))
	}
	return errors
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("'%s': %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
