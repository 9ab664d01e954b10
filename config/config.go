/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT            = "5001"
	DEFAULT_STORE_BASE_URL  = "https://api.airtable.com/v0"
	DEFAULT_STORE_TABLE     = "Announcements"
	DEFAULT_STORE_TIMEOUT   = 15
	DEFAULT_RUN_TIMEOUT     = 300
	DEFAULT_PACE_EVERY      = 10
	DEFAULT_PACE_PAUSE_MS   = 1000
	DEFAULT_SEARCH_TTL_DAYS = 60
	DEFAULT_SCHEDULE_CRON   = "0 3 * * *"
	DEFAULT_TASK_QUEUE      = "expiration"
	DEFAULT_MONITORING_PORT = "5004"
)

// ErrConfigurationMissing is returned when a value the engine cannot run
// without is absent. It is fatal at startup.
var ErrConfigurationMissing = errors.New("configuration missing")

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL    bool   `json:"ssl" envconfig:"EXPIRY_SERVER_SSL"`
	Domain string `json:"domain" envconfig:"EXPIRY_SERVER_SSL_DOMAIN"`
	Email  string `json:"ssl_email" envconfig:"EXPIRY_SERVER_SSL_EMAIL"`
	Port   string `json:"port" envconfig:"EXPIRY_SERVER_PORT"`
}

// TriggerConfig holds the shared secret guarding the activation endpoint.
// An empty secret leaves the endpoint open.
type TriggerConfig struct {
	Secret string `json:"secret" envconfig:"EXPIRY_TRIGGER_SECRET"`
}

// StoreConfig describes how to reach the remote records store.
type StoreConfig struct {
	BaseURL    string `json:"base_url" envconfig:"EXPIRY_STORE_BASE_URL"`
	APIKey     string `json:"api_key" envconfig:"EXPIRY_STORE_API_KEY"`
	BaseID     string `json:"base_id" envconfig:"EXPIRY_STORE_BASE_ID"`
	Table      string `json:"table" envconfig:"EXPIRY_STORE_TABLE"`
	TimeoutSec int    `json:"timeout_sec" envconfig:"EXPIRY_STORE_TIMEOUT_SEC"`
}

type ExpirationConfig struct {
	PaceEvery        int    `json:"pace_every" envconfig:"EXPIRY_PACE_EVERY"`
	PacePauseMs      int    `json:"pace_pause_ms" envconfig:"EXPIRY_PACE_PAUSE_MS"`
	SearchTTLDays    int    `json:"search_ttl_days" envconfig:"EXPIRY_SEARCH_TTL_DAYS"`
	RequireExpiresAt bool   `json:"require_expires_at" envconfig:"EXPIRY_REQUIRE_EXPIRES_AT"`
	RunTimeoutSec    int    `json:"run_timeout_sec" envconfig:"EXPIRY_RUN_TIMEOUT_SEC"`
	Timezone         string `json:"timezone" envconfig:"EXPIRY_TIMEZONE"`
}

type RetryConfig struct {
	MaxAttempts       int `json:"max_attempts" envconfig:"EXPIRY_RETRY_MAX_ATTEMPTS"`
	InitialIntervalMs int `json:"initial_interval_ms" envconfig:"EXPIRY_RETRY_INITIAL_INTERVAL_MS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"EXPIRY_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"EXPIRY_REDIS_SKIP_TLS_VERIFY"`
}

type ScheduleConfig struct {
	Cron           string `json:"cron" envconfig:"EXPIRY_SCHEDULE_CRON"`
	Queue          string `json:"queue" envconfig:"EXPIRY_SCHEDULE_QUEUE"`
	MonitoringPort string `json:"monitoring_port" envconfig:"EXPIRY_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"EXPIRY_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"EXPIRY_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"EXPIRY_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"EXPIRY_SLACK_WEBHOOK_URL"`
}

type Notification struct {
	Slack SlackWebhook `json:"slack"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"EXPIRY_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"EXPIRY_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	Trigger         TriggerConfig    `json:"trigger"`
	Store           StoreConfig      `json:"store"`
	Expiration      ExpirationConfig `json:"expiration"`
	Retry           RetryConfig      `json:"retry"`
	Redis           RedisConfig      `json:"redis"`
	Schedule        ScheduleConfig   `json:"schedule"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Notification    Notification     `json:"notification"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("expiry", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, fmt.Errorf("%w: config not loaded, create lifecycle.json or set EXPIRY_* variables", ErrConfigurationMissing)
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Announcement Lifecycle"
	}

	// Trim white spaces from fields
	cnf.Store.APIKey = strings.TrimSpace(cnf.Store.APIKey)
	cnf.Store.BaseID = strings.TrimSpace(cnf.Store.BaseID)
	cnf.Store.BaseURL = strings.TrimRight(strings.TrimSpace(cnf.Store.BaseURL), "/")
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Store.APIKey == "" {
		log.Println("Error: Store API key is empty. It's a required field.")
		return fmt.Errorf("%w: store API key is required", ErrConfigurationMissing)
	}

	if cnf.Store.BaseID == "" {
		log.Println("Error: Store base ID is empty. It's a required field.")
		return fmt.Errorf("%w: store base ID is required", ErrConfigurationMissing)
	}

	if cnf.Store.BaseURL == "" {
		cnf.Store.BaseURL = DEFAULT_STORE_BASE_URL
	}
	if cnf.Store.Table == "" {
		cnf.Store.Table = DEFAULT_STORE_TABLE
	}
	if cnf.Store.TimeoutSec <= 0 {
		cnf.Store.TimeoutSec = DEFAULT_STORE_TIMEOUT
	}

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Trigger.Secret == "" {
		log.Println("Warning: Trigger secret is empty. The activation endpoint will accept unauthenticated requests.")
	}

	if cnf.Expiration.PaceEvery <= 0 {
		cnf.Expiration.PaceEvery = DEFAULT_PACE_EVERY
	}
	if cnf.Expiration.PacePauseMs < 0 {
		cnf.Expiration.PacePauseMs = 0
	} else if cnf.Expiration.PacePauseMs == 0 {
		cnf.Expiration.PacePauseMs = DEFAULT_PACE_PAUSE_MS
	}
	if cnf.Expiration.SearchTTLDays <= 0 {
		cnf.Expiration.SearchTTLDays = DEFAULT_SEARCH_TTL_DAYS
	}
	if cnf.Expiration.RunTimeoutSec <= 0 {
		cnf.Expiration.RunTimeoutSec = DEFAULT_RUN_TIMEOUT
	}
	if cnf.Expiration.Timezone == "" {
		cnf.Expiration.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(cnf.Expiration.Timezone); err != nil {
		return fmt.Errorf("invalid expiration timezone %q: %w", cnf.Expiration.Timezone, err)
	}

	if cnf.Retry.MaxAttempts <= 0 {
		cnf.Retry.MaxAttempts = 1
	}
	if cnf.Retry.InitialIntervalMs <= 0 {
		cnf.Retry.InitialIntervalMs = 500
	}

	if cnf.Schedule.Cron == "" {
		cnf.Schedule.Cron = DEFAULT_SCHEDULE_CRON
	}
	if cnf.Schedule.Queue == "" {
		cnf.Schedule.Queue = DEFAULT_TASK_QUEUE
	}
	if cnf.Schedule.MonitoringPort == "" {
		cnf.Schedule.MonitoringPort = DEFAULT_MONITORING_PORT
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// Location returns the time zone used for calendar-day comparisons.
func (e ExpirationConfig) Location() *time.Location {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil || e.Timezone == "" {
		return time.UTC
	}
	return loc
}

// PacePause is the pause taken after every PaceEvery processed records.
func (e ExpirationConfig) PacePause() time.Duration {
	return time.Duration(e.PacePauseMs) * time.Millisecond
}

// RunTimeout bounds the wall-clock time of one activation.
func (e ExpirationConfig) RunTimeout() time.Duration {
	return time.Duration(e.RunTimeoutSec) * time.Second
}

// Timeout bounds a single call to the records store.
func (s StoreConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
