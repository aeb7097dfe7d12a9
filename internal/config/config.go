package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PaperPromoter/internal/domain"
	"PaperPromoter/internal/infrastructure/imaging"
	"PaperPromoter/internal/stage"
)

const (
	configPathEnv     = "PAPERPROMOTER_CONFIG"
	openAIKeyEnv      = "OPENAI_API_KEY"
	openAIBaseURLEnv  = "OPENAI_BASE_URL"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	dotEnvFile        = ".env"
)

// Config holds every setting of one batch invocation.
type Config struct {
	Run           RunConfig          `yaml:"run"`
	Models        ModelConfig        `yaml:"models"`
	Images        ImageConfig        `yaml:"images"`
	Database      DatabaseConfig     `yaml:"database"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
}

// RunConfig selects inputs, outputs and the pipeline mode.
type RunConfig struct {
	InputDir           string `yaml:"inputDir"`
	OutputDir          string `yaml:"outputDir"`
	CacheDir           string `yaml:"cacheDir"`
	Concurrency        int    `yaml:"concurrency"`
	BaselineMode       string `yaml:"baselineMode"`
	Ablation           string `yaml:"ablation"`
	Platform           string `yaml:"platform"`
	SkipSucceeded      bool   `yaml:"skipSucceeded"`
	FailOnProjectError bool   `yaml:"failOnProjectError"`
}

// ModelConfig describes the OpenAI-compatible endpoint and the gateway policy.
type ModelConfig struct {
	APIKey      string        `yaml:"apiKey"`
	BaseURL     string        `yaml:"baseUrl"`
	TextModel   string        `yaml:"textModel"`
	VisionModel string        `yaml:"visionModel"`
	MaxRetries  int           `yaml:"maxRetries"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
	MaxDelay    time.Duration `yaml:"maxDelay"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// ImageConfig controls figure extraction and preprocessing.
type ImageConfig struct {
	Quality    string `yaml:"quality"`
	MaxFigures int    `yaml:"maxFigures"`
	MaxPages   int    `yaml:"maxPages"`
}

// DatabaseConfig describes the optional Postgres run ledger.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// LoggingConfig selects level and handler format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Mode resolves the baseline/ablation selectors.
func (c Config) Mode() (domain.PipelineMode, error) {
	return domain.ParseMode(c.Run.BaselineMode, c.Run.Ablation)
}

// Load builds the configuration from defaults, the YAML file, .env and the
// process environment, then command line flags, in that order of precedence.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, &domain.ConfigurationError{Reason: "load " + dotEnvFile, Err: err}
	}
	return load(args, os.Getenv, os.Stderr)
}

func load(args []string, getenv func(string) string, usage io.Writer) (Config, error) {
	flags := flag.NewFlagSet("paperpromoter", flag.ContinueOnError)
	flags.SetOutput(usage)
	fl := registerFlags(flags)
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()

	path := fl.configPath
	if path == "" {
		path = getenv(configPathEnv)
	}
	if path != "" {
		fileCfg, explicit, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		cfg = mergeConfig(cfg, fileCfg)
		if explicit.Models.MaxRetries != nil {
			cfg.Models.MaxRetries = *explicit.Models.MaxRetries
		}
	}

	cfg.applyEnvOverrides(getenv)

	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
	fl.apply(&cfg, set)

	return cfg, nil
}

// explicitValues records file settings whose zero value is meaningful.
type explicitValues struct {
	Models struct {
		MaxRetries *int `yaml:"maxRetries"`
	} `yaml:"models"`
}

func readFile(path string) (Config, explicitValues, error) {
	var explicit explicitValues
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, explicit, &domain.ConfigurationError{Reason: "read config " + path, Err: err}
	}
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, explicit, &domain.ConfigurationError{Reason: "parse config " + path, Err: err}
	}
	if err := yaml.Unmarshal(raw, &explicit); err != nil {
		return Config{}, explicit, &domain.ConfigurationError{Reason: "parse config " + path, Err: err}
	}
	return fileCfg, explicit, nil
}

// Validate collects every setting that prevents a run from starting.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Run.InputDir) == "" {
		problems = append(problems, "--input-dir is required")
	}
	if strings.TrimSpace(c.Run.OutputDir) == "" {
		problems = append(problems, "--output-dir is required")
	}
	if c.Run.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("--concurrency must be at least 1, got %d", c.Run.Concurrency))
	}
	if strings.TrimSpace(c.Models.APIKey) == "" {
		problems = append(problems, "text API key missing (--text-api-key or "+openAIKeyEnv+")")
	}
	if strings.TrimSpace(c.Models.TextModel) == "" {
		problems = append(problems, "--text-model is required")
	}
	if c.Models.MaxRetries < 0 {
		problems = append(problems, "models.maxRetries must not be negative")
	}
	if c.Images.MaxFigures < 0 {
		problems = append(problems, "--max-figures must not be negative")
	}
	if _, err := stage.LookupPlatform(c.Run.Platform); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := imaging.NewPreprocessor(c.Images.Quality); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.Mode(); err != nil {
		problems = append(problems, err.Error())
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		problems = append(problems, fmt.Sprintf("unknown log format %q", c.Logging.Format))
	}
	if c.Notifications.Telegram.BotToken != "" && c.Notifications.Telegram.ChatID == "" {
		problems = append(problems, "telegram chat id missing for configured bot token")
	}

	if len(problems) > 0 {
		return &domain.ConfigurationError{Reason: strings.Join(problems, "; ")}
	}
	return nil
}

func (c *Config) applyEnvOverrides(getenv func(string) string) {
	if v := getenv(openAIKeyEnv); v != "" {
		c.Models.APIKey = v
	}

	if v := getenv(openAIBaseURLEnv); v != "" {
		c.Models.BaseURL = v
	}

	if v := getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	r, o := &base.Run, override.Run
	if o.InputDir != "" {
		r.InputDir = o.InputDir
	}
	if o.OutputDir != "" {
		r.OutputDir = o.OutputDir
	}
	if o.CacheDir != "" {
		r.CacheDir = o.CacheDir
	}
	if o.Concurrency != 0 {
		r.Concurrency = o.Concurrency
	}
	if o.BaselineMode != "" {
		r.BaselineMode = o.BaselineMode
	}
	if o.Ablation != "" {
		r.Ablation = o.Ablation
	}
	if o.Platform != "" {
		r.Platform = o.Platform
	}
	r.SkipSucceeded = r.SkipSucceeded || o.SkipSucceeded
	r.FailOnProjectError = r.FailOnProjectError || o.FailOnProjectError

	m, om := &base.Models, override.Models
	if om.APIKey != "" {
		m.APIKey = om.APIKey
	}
	if om.BaseURL != "" {
		m.BaseURL = om.BaseURL
	}
	if om.TextModel != "" {
		m.TextModel = om.TextModel
	}
	if om.VisionModel != "" {
		m.VisionModel = om.VisionModel
	}
	if om.BaseDelay != 0 {
		m.BaseDelay = om.BaseDelay
	}
	if om.MaxDelay != 0 {
		m.MaxDelay = om.MaxDelay
	}
	if om.CallTimeout != 0 {
		m.CallTimeout = om.CallTimeout
	}

	if override.Images.Quality != "" {
		base.Images.Quality = override.Images.Quality
	}
	if override.Images.MaxFigures != 0 {
		base.Images.MaxFigures = override.Images.MaxFigures
	}
	if override.Images.MaxPages != 0 {
		base.Images.MaxPages = override.Images.MaxPages
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Run: RunConfig{
			Concurrency: 2,
			Platform:    stage.Twitter.Name,
		},
		Models: ModelConfig{
			TextModel:   "gpt-4o-mini",
			MaxRetries:  3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
			CallTimeout: 2 * time.Minute,
		},
		Images: ImageConfig{
			Quality:    imaging.DefaultQuality,
			MaxFigures: stage.DefaultMaxFigures,
			MaxPages:   12,
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}
