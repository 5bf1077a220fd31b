package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env             string        `mapstructure:"ENV"`
	Port            string        `mapstructure:"PORT"`
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	RequestTimeout  time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	CORSAllowed     string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
	MaxUploadSizeMB int64         `mapstructure:"MAX_UPLOAD_MB"`
	AdminKey        string        `mapstructure:"ADMIN_KEY"`

	BackendURL       string `mapstructure:"BACKEND_URL"`
	BackendAnonKey   string `mapstructure:"BACKEND_ANON_KEY"`
	BackendJWTSecret string `mapstructure:"BACKEND_JWT_SECRET"`
	DatabaseURL      string `mapstructure:"DATABASE_URL"`

	StorageBucket    string `mapstructure:"STORAGE_BUCKET"`
	StorageEndpoint  string `mapstructure:"STORAGE_ENDPOINT"`
	StorageRegion    string `mapstructure:"STORAGE_REGION"`
	StoragePublicURL string `mapstructure:"STORAGE_PUBLIC_URL"`
	UploadDir        string `mapstructure:"UPLOAD_DIR"`

	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	NATSURL           string `mapstructure:"NATS_URL"`
	NATSSubjectPrefix string `mapstructure:"NATS_SUBJECT_PREFIX"`
	NominatimURL      string `mapstructure:"NOMINATIM_URL"`

	DemoFixtures          bool          `mapstructure:"DEMO_FIXTURES"`
	AnalysisDelay         time.Duration `mapstructure:"ANALYSIS_DELAY"`
	SubmitDelay           time.Duration `mapstructure:"SUBMIT_DELAY"`
	SubmitCooldown        time.Duration `mapstructure:"SUBMIT_COOLDOWN"`
	ResetDelay            time.Duration `mapstructure:"RESET_DELAY"`
	GeolocationTimeout    time.Duration `mapstructure:"GEOLOCATION_TIMEOUT"`
	PasswordResetRedirect string        `mapstructure:"PASSWORD_RESET_REDIRECT"`
	PointsPerReport       int           `mapstructure:"POINTS_PER_REPORT"`
	SessionIdleTimeout    time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`
	SessionSweepInterval  time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`
}

func Load() (Config, error) {
	return load(".env")
}

func load(file string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(file)
	v.SetConfigType("env")
	v.AutomaticEnv()
	_ = v.ReadInConfig()

	v.SetDefault("ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("MAX_UPLOAD_MB", 20)
	v.SetDefault("STORAGE_BUCKET", "problem-images")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("UPLOAD_DIR", "./data/uploads")
	v.SetDefault("NATS_SUBJECT_PREFIX", "citifix")
	v.SetDefault("ANALYSIS_DELAY", "1s")
	v.SetDefault("SUBMIT_DELAY", "2s")
	v.SetDefault("SUBMIT_COOLDOWN", "2s")
	v.SetDefault("RESET_DELAY", "3s")
	v.SetDefault("GEOLOCATION_TIMEOUT", "10s")
	v.SetDefault("POINTS_PER_REPORT", 10)
	v.SetDefault("SESSION_IDLE_TIMEOUT", "24h")
	v.SetDefault("SESSION_SWEEP_INTERVAL", "1m")
	v.SetDefault("PASSWORD_RESET_REDIRECT", "http://localhost:3000/reset-password")
	// Keys without a default are invisible to Unmarshal unless bound.
	for _, key := range []string{
		"ADMIN_KEY", "BACKEND_URL", "BACKEND_ANON_KEY", "BACKEND_JWT_SECRET", "DATABASE_URL",
		"STORAGE_ENDPOINT", "STORAGE_PUBLIC_URL", "REDIS_ADDR", "NATS_URL", "NOMINATIM_URL",
	} {
		_ = v.BindEnv(key)
	}
	v.SetDefault("DEMO_FIXTURES", strings.EqualFold(v.GetString("ENV"), "dev"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	cfg.BackendURL = strings.TrimRight(strings.TrimSpace(cfg.BackendURL), "/")
	cfg.BackendAnonKey = strings.TrimSpace(cfg.BackendAnonKey)
	return cfg, nil
}

// Missing lists the backend settings the service cannot run without.
func (c Config) Missing() []string {
	var out []string
	if c.BackendURL == "" {
		out = append(out, "BACKEND_URL")
	}
	if c.BackendAnonKey == "" {
		out = append(out, "BACKEND_ANON_KEY")
	}
	return out
}

func (c Config) Configured() bool {
	return len(c.Missing()) == 0
}
