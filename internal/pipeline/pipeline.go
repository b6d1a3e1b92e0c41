// Package pipeline runs one image through preprocessing, inference, severity
// grading and report generation.
package pipeline

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Brownie44l1/brainscan/internal/imaging"
	"github.com/Brownie44l1/brainscan/internal/model"
	"github.com/Brownie44l1/brainscan/internal/result"
)

// Classifier runs a single forward pass over a preprocessed batch.
type Classifier interface {
	Predict(inputData []float32) (*model.Prediction, error)
}

// ReportWriter renders a result to a report file and returns its name.
type ReportWriter interface {
	Generate(r *result.PredictionResult) (string, error)
}

// Runner wires the stages together. It holds no per-run state.
type Runner struct {
	classifier   Classifier
	preprocessor *imaging.Preprocessor
	reports      ReportWriter
	classes      []string
}

// NewRunner creates a Runner for a model described by meta.
func NewRunner(classifier Classifier, meta model.Metadata, reports ReportWriter) *Runner {
	return &Runner{
		classifier:   classifier,
		preprocessor: imaging.NewPreprocessor(meta),
		reports:      reports,
		classes:      meta.Classes,
	}
}

// Run classifies the image at imagePath and writes its report. On error no
// partial result is returned.
func (r *Runner) Run(imagePath string) (*result.PredictionResult, error) {
	inputData, err := r.preprocessor.PreprocessFile(imagePath)
	if err != nil {
		return nil, eris.Wrap(err, "preprocess")
	}

	pred, err := r.classifier.Predict(inputData)
	if err != nil {
		return nil, eris.Wrap(err, "predict")
	}
	if len(pred.Probabilities) != len(r.classes) {
		return nil, eris.Wrapf(model.ErrShapeMismatch, "predict: %d probabilities for %d classes", len(pred.Probabilities), len(r.classes))
	}

	res := result.New(pred, r.classes)
	zap.L().Info("image classified",
		zap.String("image", imagePath),
		zap.String("classification", res.Classification),
		zap.String("confidence", res.ConfidenceScore),
		zap.String("severity", res.Severity),
	)

	reportFile, err := r.reports.Generate(res)
	if err != nil {
		return nil, eris.Wrap(err, "generate report")
	}

	return res.WithReport(reportFile), nil
}
