package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"psync/internal/logger"
)

type Config struct {
	// Ledger (CRM/billing) API
	LedgerAPIKey     string
	LedgerLocationID string
	LedgerBaseURL    string        `validate:"required,url"`
	LedgerAPIVersion string        `validate:"required"`
	LedgerTimeout    time.Duration `validate:"gt=0"`
	// VerifyContact fetches embedded contact ids before trusting them.
	VerifyContact bool

	// Contact custom field ids written after resolution; empty ids are skipped.
	ContactFieldJobNo  string
	ContactFieldStatus string
	ContactFieldDate   string
	// SearchByJobNo looks contacts up by the job number field when nothing else matches.
	SearchByJobNo bool

	// Billing
	Currency    string `validate:"required,iso4217"`
	PhoneRegion string `validate:"required,len=2"`

	// Tagging after a successful sync
	SyncTag         string
	OpportunityTags []string

	// Payment recording
	PaymentDelay        time.Duration `validate:"gte=0"`
	ConflictMaxAttempts int           `validate:"gte=1,lte=20"`

	// Instalment schedules
	RemainderPolicy    string `validate:"oneof=first-instalment separate-first"`
	ScheduleDayOfMonth int    `validate:"gte=-1,lte=31"`
	ScheduleLiveMode   bool

	// Outputs
	ProgressFile string
	ResultFile   string
	JournalDB    string
	ErrorLogFile string
	StatusAddr   string
	StaleAfter   time.Duration `validate:"gt=0"`

	// Logging Configuration
	LogLevel      string `validate:"oneof=trace debug info warn error fatal panic"`
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

var validate = validator.New()

func Load() (*Config, error) {
	config := &Config{
		LedgerAPIKey:        getEnv("LEDGER_API_KEY", ""),
		LedgerLocationID:    getEnv("LEDGER_LOCATION_ID", ""),
		LedgerBaseURL:       getEnv("LEDGER_BASE_URL", "https://services.leadconnectorhq.com"),
		LedgerAPIVersion:    getEnv("LEDGER_API_VERSION", "2021-07-28"),
		LedgerTimeout:       getDuration("LEDGER_TIMEOUT", 30*time.Second),
		VerifyContact:       getBool("VERIFY_CONTACT", false),
		ContactFieldJobNo:   getEnv("CONTACT_FIELD_JOB_NO", ""),
		ContactFieldStatus:  getEnv("CONTACT_FIELD_STATUS", ""),
		ContactFieldDate:    getEnv("CONTACT_FIELD_DATE", ""),
		SearchByJobNo:       getBool("CONTACT_SEARCH_JOB_NO", false),
		Currency:            strings.ToUpper(getEnv("CURRENCY", "GBP")),
		PhoneRegion:         strings.ToUpper(getEnv("PHONE_REGION", "GB")),
		SyncTag:             getEnv("SYNC_TAG", "PS Synced"),
		OpportunityTags:     getList("OPPORTUNITY_TAGS", []string{"PS Synced"}),
		PaymentDelay:        getDuration("PAYMENT_DELAY", 3*time.Second),
		ConflictMaxAttempts: getInt("CONFLICT_MAX_ATTEMPTS", 5),
		RemainderPolicy:     getEnv("REMAINDER_POLICY", "first-instalment"),
		ScheduleDayOfMonth:  getInt("SCHEDULE_DAY_OF_MONTH", 0),
		ScheduleLiveMode:    getBool("SCHEDULE_LIVE_MODE", true),
		ProgressFile:        getEnv("PROGRESS_FILE", defaultProgressFile()),
		ResultFile:          getEnv("RESULT_FILE", ""),
		JournalDB:           getEnv("JOURNAL_DB", "psync.db"),
		ErrorLogFile:        getEnv("ERROR_LOG_FILE", "psync-errors.log"),
		StatusAddr:          getEnv("STATUS_ADDR", "127.0.0.1:8787"),
		StaleAfter:          getDuration("PROGRESS_STALE_AFTER", 2*time.Minute),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:           getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:       getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:           getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	return nil
}

// RequireLedger reports whether the ledger credentials are set. Commands that
// only read local state run without them.
func (c *Config) RequireLedger() error {
	if c.LedgerAPIKey == "" {
		return fmt.Errorf("LEDGER_API_KEY is required")
	}
	if c.LedgerLocationID == "" {
		return fmt.Errorf("LEDGER_LOCATION_ID is required")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func defaultProgressFile() string {
	return os.TempDir() + string(os.PathSeparator) + "psync_progress.txt"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

func getBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}

// getDuration accepts Go durations ("3s") or plain seconds ("3").
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
