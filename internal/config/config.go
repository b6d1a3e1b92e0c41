package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	BaseDir string       `yaml:"base_dir" mapstructure:"base_dir"`
	Model   ModelConfig  `yaml:"model" mapstructure:"model"`
	Report  ReportConfig `yaml:"report" mapstructure:"report"`
	Log     LogConfig    `yaml:"log" mapstructure:"log"`
}

// ModelConfig locates the classifier artifact and the onnxruntime library.
type ModelConfig struct {
	Path           string `yaml:"path" mapstructure:"path"`
	MetadataPath   string `yaml:"metadata_path" mapstructure:"metadata_path"`
	RuntimeLibrary string `yaml:"runtime_library" mapstructure:"runtime_library"`
	Version        string `yaml:"version" mapstructure:"version"`
}

// ReportConfig configures PDF report output.
type ReportConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	ScanType string `yaml:"scan_type" mapstructure:"scan_type"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// flagKeys maps command-line flag names onto config keys.
var flagKeys = map[string]string{
	"model":       "model.path",
	"metadata":    "model.metadata_path",
	"reports-dir": "report.dir",
	"log-level":   "log.level",
}

// Load reads configuration from file, environment and, when fs is non-nil,
// command-line flags. Relative paths are resolved against BaseDir, which
// defaults to the executable's directory.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("BRAINSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("base_dir", "")
	v.SetDefault("model.path", filepath.Join("models", "brain_tumor_classifier.onnx"))
	v.SetDefault("model.metadata_path", filepath.Join("models", "model_metadata.json"))
	v.SetDefault("model.runtime_library", "")
	v.SetDefault("model.version", "BrainTumorClassifier v2.0")
	v.SetDefault("report.dir", "reports")
	v.SetDefault("report.scan_type", "Brain MRI")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "json")

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, eris.Wrapf(err, "config: bind flag %s", name)
				}
			}
		}
	}

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) resolvePaths() error {
	if c.BaseDir == "" {
		dir, err := executableDir()
		if err != nil {
			return err
		}
		c.BaseDir = dir
	}

	c.Model.Path = c.resolve(c.Model.Path)
	c.Model.MetadataPath = c.resolve(c.Model.MetadataPath)
	c.Report.Dir = c.resolve(c.Report.Dir)
	return nil
}

// executable is replaced in tests.
var executable = os.Executable

// executableDir is the directory holding the running binary, with symlinks
// resolved, so the model and reports sit next to the program regardless of
// the caller's working directory.
func executableDir() (string, error) {
	exe, err := executable()
	if err != nil {
		return "", eris.Wrap(err, "config: locate executable")
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", eris.Wrap(err, "config: resolve executable path")
	}
	return filepath.Dir(exe), nil
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// InitLogger initializes the global zap logger. Output goes to stderr so that
// stdout stays reserved for the result record.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
