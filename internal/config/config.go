package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	DispatchGoroutine = "goroutine"
	DispatchAMQP      = "amqp"
)

type Config struct {
	// HTTP Server
	Port            string
	WritesPerMinute int

	// Database
	SQLiteDBPath string

	// Classifier service
	ClassifierURL         string
	ClassifierTimeout     time.Duration
	ClassifierPingTimeout time.Duration

	// Feedback dispatch: goroutine or amqp
	FeedbackDispatch string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Logging
	LogLevel string

	// Insight thresholds
	Insights Insights
}

// Insights holds the tunable nudge heuristics parameters.
type Insights struct {
	LookbackDays          int
	WeekendRatio          float64
	SpikeRatio            float64
	UnderBudgetUsagePct   float64
	UnderBudgetElapsedPct float64
}

func Load() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "8081"),
		WritesPerMinute: getEnvInt("WRITES_PER_MINUTE", 60),
		SQLiteDBPath:    getEnv("SQLITE_DB_PATH", "./data/finsight.db"),

		ClassifierURL:         strings.TrimRight(getEnv("CLASSIFIER_URL", "http://localhost:8000"), "/"),
		ClassifierTimeout:     getEnvMillis("CLASSIFIER_TIMEOUT_MS", 3000*time.Millisecond),
		ClassifierPingTimeout: getEnvMillis("CLASSIFIER_PING_TIMEOUT_MS", 2000*time.Millisecond),

		FeedbackDispatch: getEnv("FEEDBACK_DISPATCH", DispatchGoroutine),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finsight"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "classifier_feedback"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		Insights: Insights{
			LookbackDays:          getEnvInt("INSIGHT_LOOKBACK_DAYS", 30),
			WeekendRatio:          getEnvFloat("INSIGHT_WEEKEND_RATIO", 1.2),
			SpikeRatio:            getEnvFloat("INSIGHT_SPIKE_RATIO", 2),
			UnderBudgetUsagePct:   getEnvFloat("INSIGHT_UNDER_BUDGET_USAGE", 85),
			UnderBudgetElapsedPct: getEnvFloat("INSIGHT_UNDER_BUDGET_ELAPSED", 25),
		},
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.WritesPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid writes per minute %d: must be at least 1", c.WritesPerMinute))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate classifier endpoint
	if parsedURL, err := url.Parse(c.ClassifierURL); err != nil || parsedURL.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid classifier URL '%s'", c.ClassifierURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid classifier URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.ClassifierTimeout <= 0 || c.ClassifierTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid classifier timeout %v: must be between 1ms and 1m", c.ClassifierTimeout))
	}
	if c.ClassifierPingTimeout <= 0 || c.ClassifierPingTimeout > time.Minute {
		errors = append(errors, fmt.Sprintf("invalid classifier ping timeout %v: must be between 1ms and 1m", c.ClassifierPingTimeout))
	}

	// Validate feedback dispatch and AMQP
	switch c.FeedbackDispatch {
	case DispatchGoroutine:
	case DispatchAMQP:
		if c.AMQPURL == "" {
			errors = append(errors, "AMQP_URL is required when FEEDBACK_DISPATCH is 'amqp'")
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid feedback dispatch '%s': must be one of [%s %s]",
			c.FeedbackDispatch, DispatchGoroutine, DispatchAMQP))
	}

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

	// Validate insight thresholds
	in := c.Insights
	if in.LookbackDays < 1 || in.LookbackDays > 366 {
		errors = append(errors, fmt.Sprintf("invalid insight lookback %d days: must be between 1 and 366", in.LookbackDays))
	}
	if in.WeekendRatio <= 1 {
		errors = append(errors, fmt.Sprintf("invalid weekend ratio %v: must be greater than 1", in.WeekendRatio))
	}
	if in.SpikeRatio <= 1 {
		errors = append(errors, fmt.Sprintf("invalid spike ratio %v: must be greater than 1", in.SpikeRatio))
	}
	if in.UnderBudgetUsagePct <= 0 || in.UnderBudgetUsagePct > 100 {
		errors = append(errors, fmt.Sprintf("invalid under-budget usage %v%%: must be in (0, 100]", in.UnderBudgetUsagePct))
	}
	if in.UnderBudgetElapsedPct < 0 || in.UnderBudgetElapsedPct >= 100 {
		errors = append(errors, fmt.Sprintf("invalid under-budget elapsed %v%%: must be in [0, 100)", in.UnderBudgetElapsedPct))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
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

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvMillis reads an integer number of milliseconds.
func getEnvMillis(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.Atoi(value); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}
