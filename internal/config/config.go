package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	infisical "github.com/infisical/go-sdk"
	"github.com/spf13/viper"
)

// Poster backends.
const (
	PosterX        = "x"
	PosterTelegram = "telegram"
	PosterDryRun   = "dryrun"
)

const (
	settingsFile = "settings.yaml"
	secretsFile  = ".secrets.yaml"
	defaultEnv   = "development"
)

type XConfig struct {
	ConsumerKey       string `mapstructure:"consumer_key"`
	ConsumerSecret    string `mapstructure:"consumer_secret"`
	AccessToken       string `mapstructure:"access_token"`
	AccessTokenSecret string `mapstructure:"access_token_secret"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type OpenAIConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	CharLimit int    `mapstructure:"char_limit"`
}

type AkashAPIConfig struct {
	ConsoleServer  string `mapstructure:"console_server"`
	CloudmosServer string `mapstructure:"cloudmos_server"`
}

type ScheduleConfig struct {
	Time         string        `mapstructure:"time"`
	Timezone     string        `mapstructure:"timezone"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Granularity  string        `mapstructure:"granularity"`
	Amount       int           `mapstructure:"amount"`
	PostPause    time.Duration `mapstructure:"post_pause"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type Config struct {
	X             XConfig        `mapstructure:"x"`
	Telegram      TelegramConfig `mapstructure:"telegram"`
	OpenAI        OpenAIConfig   `mapstructure:"openai"`
	AkashAPI      AkashAPIConfig `mapstructure:"akash_api"`
	Schedule      ScheduleConfig `mapstructure:"schedule"`
	Poster        string         `mapstructure:"poster"`
	PlotDir       string         `mapstructure:"plot_dir"`
	SnapshotDir   string         `mapstructure:"snapshot_dir"`
	Port          string         `mapstructure:"port"`
	DatabaseURL   string         `mapstructure:"database_url"`
	RedisURL      string         `mapstructure:"redis_url"`
	RedisPassword string         `mapstructure:"redis_password"`
	Log           LogConfig      `mapstructure:"log"`
}

var defaults = map[string]any{
	"x.consumer_key":            "",
	"x.consumer_secret":         "",
	"x.access_token":            "",
	"x.access_token_secret":     "",
	"telegram.bot_token":        "",
	"telegram.chat_id":          0,
	"openai.base_url":           "",
	"openai.api_key":            "",
	"openai.model":              "DeepSeek-R1",
	"openai.char_limit":         280,
	"akash_api.console_server":  "https://console-api.akash.network/v1",
	"akash_api.cloudmos_server": "https://api.cloudmos.io/internal",
	"schedule.time":             "11:00",
	"schedule.timezone":         "UTC",
	"schedule.poll_interval":    "5m",
	"schedule.granularity":      "week",
	"schedule.amount":           4,
	"schedule.post_pause":       "1s",
	"poster":                    PosterX,
	"plot_dir":                  "plots",
	"snapshot_dir":              "",
	"port":                      "8080",
	"database_url":              "",
	"redis_url":                 "",
	"redis_password":            "",
	"log.level":                 "info",
}

// Load layers defaults, dir/settings.yaml, dir/.secrets.yaml, the section
// named by SWITCH_ENV, environment variables (x.consumer_key is read from
// X_CONSUMER_KEY) and finally Infisical for secrets still empty.
func Load(dir string) (Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, name := range []string{settingsFile, secretsFile} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := applyEnvironment(v, envOr("SWITCH_ENV", defaultEnv)); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	// If Infisical credentials are available, fetch secrets from Infisical
	clientID := os.Getenv("INFISICAL_CLIENT_ID")
	clientSecret := os.Getenv("INFISICAL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		loadFromInfisical(&cfg, clientID, clientSecret)
	}

	return cfg, nil
}

// applyEnvironment merges the "default" section and then the env section
// over the top-level settings, when the files have them.
func applyEnvironment(v *viper.Viper, env string) error {
	for _, section := range []string{"default", strings.ToLower(env)} {
		sub := v.Sub(section)
		if sub == nil {
			continue
		}
		if err := v.MergeConfigMap(sub.AllSettings()); err != nil {
			return fmt.Errorf("merge %s settings: %w", section, err)
		}
	}
	return nil
}

// Validate checks the settings the selected poster and the scheduler need.
func (c Config) Validate() error {
	var errs []error
	switch c.Poster {
	case PosterX:
		if c.X.ConsumerKey == "" || c.X.ConsumerSecret == "" || c.X.AccessToken == "" || c.X.AccessTokenSecret == "" {
			errs = append(errs, errors.New("x poster needs consumer_key, consumer_secret, access_token and access_token_secret"))
		}
	case PosterTelegram:
		if c.Telegram.BotToken == "" || c.Telegram.ChatID == 0 {
			errs = append(errs, errors.New("telegram poster needs bot_token and chat_id"))
		}
	case PosterDryRun:
	default:
		errs = append(errs, fmt.Errorf("unknown poster %q", c.Poster))
	}
	if _, err := time.Parse("15:04", c.Schedule.Time); err != nil {
		errs = append(errs, fmt.Errorf("schedule.time %q: want HH:MM", c.Schedule.Time))
	}
	if c.Schedule.PollInterval <= 0 {
		errs = append(errs, errors.New("schedule.poll_interval must be positive"))
	}
	if c.AkashAPI.ConsoleServer == "" || c.AkashAPI.CloudmosServer == "" {
		errs = append(errs, errors.New("akash_api needs console_server and cloudmos_server"))
	}
	return errors.Join(errs...)
}

// SlogLevel maps log.level onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func loadFromInfisical(cfg *Config, clientID, clientSecret string) {
	siteURL := envOr("INFISICAL_SITE_URL", "https://app.infisical.com")
	projectID := os.Getenv("INFISICAL_PROJECT_ID")
	envSlug := envOr("INFISICAL_ENV", "prod")

	if projectID == "" {
		slog.Warn("INFISICAL_PROJECT_ID not set, skipping Infisical")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          siteURL,
		AutoTokenRefresh: false,
	})

	_, err := client.Auth().UniversalAuthLogin(clientID, clientSecret)
	if err != nil {
		slog.Error("infisical auth failed", "error", err)
		return
	}

	for key, target := range secretTargets(cfg) {
		if *target != "" {
			continue // already set by file or env
		}
		secret, err := client.Secrets().Retrieve(infisical.RetrieveSecretOptions{
			SecretKey:   key,
			Environment: envSlug,
			ProjectID:   projectID,
			SecretPath:  "/",
		})
		if err != nil {
			slog.Warn("failed to retrieve secret from infisical", "key", key, "error", err)
			continue
		}
		*target = secret.SecretValue
		slog.Info("loaded secret from infisical", "key", key)
	}
}

// secretTargets names each secret by its environment variable.
func secretTargets(cfg *Config) map[string]*string {
	return map[string]*string{
		"X_CONSUMER_KEY":        &cfg.X.ConsumerKey,
		"X_CONSUMER_SECRET":     &cfg.X.ConsumerSecret,
		"X_ACCESS_TOKEN":        &cfg.X.AccessToken,
		"X_ACCESS_TOKEN_SECRET": &cfg.X.AccessTokenSecret,
		"TELEGRAM_BOT_TOKEN":    &cfg.Telegram.BotToken,
		"OPENAI_API_KEY":        &cfg.OpenAI.APIKey,
		"DATABASE_URL":          &cfg.DatabaseURL,
		"REDIS_PASSWORD":        &cfg.RedisPassword,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
