package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "0.0.0.0", cfg.ServerHost)
				assert.Equal(t, 8080, cfg.ServerPort)
				assert.Equal(t, "postgres", cfg.DBDriver)
				assert.Equal(t, 25, cfg.DBMaxOpenConnections)
				assert.Equal(t, 5*time.Minute, cfg.DBConnMaxLifetime)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Empty(t, cfg.LogFile)
				assert.Equal(t, "authenticated", cfg.AuthJWTAudience)
				assert.Equal(t, 60*time.Second, cfg.RecipientCountCacheTTL)
				assert.False(t, cfg.DispatchConcurrentChannels)
				assert.Equal(t, 5*time.Minute, cfg.DispatchDefaultTimeout)
				assert.Equal(t, 10, cfg.PushBatchSize)
				assert.Equal(t, 100*time.Millisecond, cfg.PushBatchDelay)
				assert.Equal(t, 100, cfg.EmailBatchSize)
				assert.Equal(t, 2*time.Second, cfg.EmailBatchDelay)
				assert.Equal(t, 50, cfg.SMSBatchSize)
				assert.Equal(t, 3*time.Second, cfg.SMSBatchDelay)
				assert.Equal(t, 3, cfg.ProviderMaxAttempts)
				assert.Equal(t, "communications", cfg.MetricsNamespace)
			},
		},
		{
			name: "load custom database configuration",
			envVars: map[string]string{
				"DB_DRIVER":               "mysql",
				"DB_CONNECTION_STRING":    "user:password@tcp(localhost:3306)/testdb",
				"DB_MAX_OPEN_CONNECTIONS": "50",
				"DB_CONN_MAX_LIFETIME":    "10",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "mysql", cfg.DBDriver)
				assert.Equal(t, "user:password@tcp(localhost:3306)/testdb", cfg.DBConnectionString)
				assert.Equal(t, 50, cfg.DBMaxOpenConnections)
				assert.Equal(t, 10*time.Minute, cfg.DBConnMaxLifetime)
			},
		},
		{
			name: "load custom dispatch configuration",
			envVars: map[string]string{
				"DISPATCH_CONCURRENT_CHANNELS":    "true",
				"DISPATCH_DEFAULT_TIMEOUT_SECONDS": "120",
				"SMS_BATCH_SIZE":                  "5",
				"SMS_BATCH_DELAY_MS":              "10",
				"SCHEDULER_ENABLED":               "true",
				"SCHEDULER_INTERVAL_SECONDS":      "15",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.DispatchConcurrentChannels)
				assert.Equal(t, 2*time.Minute, cfg.DispatchDefaultTimeout)
				assert.Equal(t, 5, cfg.SMSBatchSize)
				assert.Equal(t, 10*time.Millisecond, cfg.SMSBatchDelay)
				assert.True(t, cfg.SchedulerEnabled)
				assert.Equal(t, 15*time.Second, cfg.SchedulerInterval)
			},
		},
		{
			name: "load custom log configuration",
			envVars: map[string]string{
				"LOG_LEVEL":            "debug",
				"LOG_FILE":             "/var/log/communications.log",
				"LOG_FILE_MAX_SIZE_MB": "10",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, "/var/log/communications.log", cfg.LogFile)
				assert.Equal(t, 10, cfg.LogFileMaxSizeMB)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Clearenv()

			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			cfg := Load()

			tt.validate(t, cfg)
		})
	}
}

func TestConfig_GetGinMode(t *testing.T) {
	assert.Equal(t, "debug", (&Config{LogLevel: "debug"}).GetGinMode())
	assert.Equal(t, "release", (&Config{LogLevel: "info"}).GetGinMode())
	assert.Equal(t, "release", (&Config{LogLevel: "unknown"}).GetGinMode())
}

func TestConfig_ProvidersConfigured(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.EmailConfigured())
	assert.False(t, cfg.SMSConfigured())
	assert.False(t, cfg.PushConfigured())

	cfg = &Config{
		ResendAPIKey:      "re_123",
		TwilioAccountSID:  "AC123",
		TwilioAuthToken:   "token",
		TwilioPhoneNumber: "+390000000",
		VAPIDPublicKey:    "pub",
		VAPIDPrivateKey:   "priv",
	}
	assert.True(t, cfg.EmailConfigured())
	assert.True(t, cfg.SMSConfigured())
	assert.True(t, cfg.PushConfigured())

	cfg.TwilioPhoneNumber = ""
	assert.False(t, cfg.SMSConfigured())
}
