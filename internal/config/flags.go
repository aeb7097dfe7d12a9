package config

import "flag"

// flagValues holds raw command line values. Only flags present on the
// command line override the file and environment layers.
type flagValues struct {
	configPath         string
	inputDir           string
	outputDir          string
	cacheDir           string
	apiKey             string
	apiBase            string
	textModel          string
	visionModel        string
	concurrency        int
	baselineMode       string
	ablation           string
	platform           string
	imageQuality       string
	maxFigures         int
	maxRetries         int
	logLevel           string
	logFormat          string
	skipSucceeded      bool
	failOnProjectError bool
}

func registerFlags(fs *flag.FlagSet) *flagValues {
	v := &flagValues{}
	fs.StringVar(&v.configPath, "config", "", "path to YAML config (env "+configPathEnv+")")
	fs.StringVar(&v.inputDir, "input-dir", "", "directory with one sub-folder per paper project")
	fs.StringVar(&v.outputDir, "output-dir", "", "directory for generated posts")
	fs.StringVar(&v.cacheDir, "cache-dir", "", "durable asset cache directory (memory only when empty)")
	fs.StringVar(&v.apiKey, "text-api-key", "", "API key for the model endpoint (env "+openAIKeyEnv+")")
	fs.StringVar(&v.apiBase, "text-api-base", "", "base URL of an OpenAI-compatible endpoint (env "+openAIBaseURLEnv+")")
	fs.StringVar(&v.textModel, "text-model", "", "text generation model")
	fs.StringVar(&v.visionModel, "vision-model", "", "vision model (defaults to the text model)")
	fs.IntVar(&v.concurrency, "concurrency", 0, "projects processed at once")
	fs.StringVar(&v.baselineMode, "baseline-mode", "", "original | fewshot | with_figure")
	fs.StringVar(&v.ablation, "ablation", "", "no_logical_draft | no_visual_analysis | no_platform_adaptation")
	fs.StringVar(&v.platform, "platform", "", "target platform: twitter | xiaohongshu")
	fs.StringVar(&v.imageQuality, "image-quality", "", "figure preset: high | medium | low | very_low")
	fs.IntVar(&v.maxFigures, "max-figures", 0, "figures sent to the vision model per project")
	fs.IntVar(&v.maxRetries, "max-retries", 0, "retries per model call on transient failures")
	fs.StringVar(&v.logLevel, "log-level", "", "debug | info | warn | error")
	fs.StringVar(&v.logFormat, "log-format", "", "text | json")
	fs.BoolVar(&v.skipSucceeded, "skip-succeeded", false, "skip projects the run ledger reports as succeeded")
	fs.BoolVar(&v.failOnProjectError, "fail-on-project-error", false, "exit with code 3 when any project failed")
	return v
}

func (v *flagValues) apply(cfg *Config, set map[string]bool) {
	if set["input-dir"] {
		cfg.Run.InputDir = v.inputDir
	}
	if set["output-dir"] {
		cfg.Run.OutputDir = v.outputDir
	}
	if set["cache-dir"] {
		cfg.Run.CacheDir = v.cacheDir
	}
	if set["text-api-key"] {
		cfg.Models.APIKey = v.apiKey
	}
	if set["text-api-base"] {
		cfg.Models.BaseURL = v.apiBase
	}
	if set["text-model"] {
		cfg.Models.TextModel = v.textModel
	}
	if set["vision-model"] {
		cfg.Models.VisionModel = v.visionModel
	}
	if set["concurrency"] {
		cfg.Run.Concurrency = v.concurrency
	}
	if set["baseline-mode"] {
		cfg.Run.BaselineMode = v.baselineMode
	}
	if set["ablation"] {
		cfg.Run.Ablation = v.ablation
	}
	if set["platform"] {
		cfg.Run.Platform = v.platform
	}
	if set["image-quality"] {
		cfg.Images.Quality = v.imageQuality
	}
	if set["max-figures"] {
		cfg.Images.MaxFigures = v.maxFigures
	}
	if set["max-retries"] {
		cfg.Models.MaxRetries = v.maxRetries
	}
	if set["log-level"] {
		cfg.Logging.Level = v.logLevel
	}
	if set["log-format"] {
		cfg.Logging.Format = v.logFormat
	}
	if set["skip-succeeded"] {
		cfg.Run.SkipSucceeded = v.skipSucceeded
	}
	if set["fail-on-project-error"] {
		cfg.Run.FailOnProjectError = v.failOnProjectError
	}
}
