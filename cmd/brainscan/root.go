package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Brownie44l1/brainscan/internal/config"
	"github.com/Brownie44l1/brainscan/internal/model"
	"github.com/Brownie44l1/brainscan/internal/pipeline"
	"github.com/Brownie44l1/brainscan/internal/report"
	"github.com/Brownie44l1/brainscan/internal/result"
)

// loadedModel is a classifier the entry point owns until exit.
type loadedModel interface {
	pipeline.Classifier
	Close()
}

// loadModel is replaced in tests; the ONNX runtime needs a native library.
var loadModel = func(cfg config.ModelConfig) (loadedModel, model.Metadata, error) {
	s, err := model.NewServer(model.Options{
		ModelPath:      cfg.Path,
		MetadataPath:   cfg.MetadataPath,
		RuntimeLibrary: cfg.RuntimeLibrary,
	})
	if err != nil {
		return nil, model.Metadata{}, err
	}
	return s, s.Metadata, nil
}

const defaultLogLevel = "warn"

func newRootCmd() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:   "brainscan [flags] [--] <image>",
		Short: "Classify a brain MRI image and write a diagnostic report",
		Long: "Runs a pretrained tumor classifier over one MRI image, grades severity from the model confidence, " +
			"writes a PDF report and prints a single JSON result line to stdout.",
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		// Unknown flags are dropped so a stray dash still ends in a result
		// record; paths starting with "-" go after "--".
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(cmd.Flags())
			if err != nil {
				return eris.Wrap(err, "load config")
			}
			cfg = c

			if err := config.InitLogger(cfg.Log); err != nil {
				fallback := cfg.Log
				fallback.Level = defaultLogLevel
				if ferr := config.InitLogger(fallback); ferr != nil {
					return eris.Wrap(ferr, "init logger")
				}
				zap.L().Warn("invalid log level, using "+defaultLogLevel,
					zap.String("level", cfg.Log.Level), zap.Error(err))
			}

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), cfg, args)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = zap.L().Sync()
		},
	}

	cmd.Flags().String("model", "", "path to the ONNX classifier")
	cmd.Flags().String("metadata", "", "path to the model metadata JSON")
	cmd.Flags().String("reports-dir", "", "directory to write PDF reports into")
	cmd.Flags().String("log-level", "", "log level (debug, info, warn, error)")

	return cmd
}

// run loads the model and processes one image. Failures are reported through
// the printed record, not the returned error.
func run(out io.Writer, cfg *config.Config, args []string) error {
	m, meta, err := loadModel(cfg.Model)
	if err != nil {
		zap.L().Error("model load failed", zap.String("path", cfg.Model.Path), zap.Error(err))
		return emit(out, result.ModelLoadError())
	}
	defer m.Close()

	res, err := process(cfg, m, meta, args)
	if err != nil {
		zap.L().Error("processing failed", zap.String("error", eris.ToString(err, true)))
		return emit(out, result.ProcessingError())
	}
	return emit(out, res)
}

func process(cfg *config.Config, clf pipeline.Classifier, meta model.Metadata, args []string) (res *result.PredictionResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, eris.Errorf("panic: %v", p)
		}
	}()

	if len(args) < 1 {
		return nil, eris.New("missing image path argument")
	}

	reports := report.NewGenerator(report.Options{
		Dir:          cfg.Report.Dir,
		ModelVersion: cfg.Model.Version,
		ScanType:     cfg.Report.ScanType,
	})
	return pipeline.NewRunner(clf, meta, reports).Run(args[0])
}

func emit(out io.Writer, res *result.PredictionResult) error {
	if err := json.NewEncoder(out).Encode(res); err != nil {
		return eris.Wrap(err, "write result")
	}
	return nil
}
