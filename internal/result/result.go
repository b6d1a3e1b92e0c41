// Package result defines the record printed for every invocation.
package result

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/Brownie44l1/brainscan/internal/model"
	"github.com/Brownie44l1/brainscan/internal/severity"
)

// Classification values used in place of a class label when a run fails.
const (
	ModelLoadErrorClassification  = "Model Load Error"
	ProcessingErrorClassification = "Processing Error"
)

// PredictionResult is the flat record written to stdout. Field order is the
// key order of the JSON object.
type PredictionResult struct {
	Classification  string        `json:"classification"`
	ConfidenceScore string        `json:"confidence_score"`
	Severity        string        `json:"severity"`
	Probabilities   Probabilities `json:"probabilities"`
	ReportFile      *string       `json:"report_file"`
}

// ClassProbability pairs a class label with its formatted percentage.
type ClassProbability struct {
	Class string
	Value string
}

// Probabilities marshals as a JSON object whose keys keep slice order.
type Probabilities []ClassProbability

// MarshalJSON implements json.Marshaler.
func (p Probabilities) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cp := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(cp.Class)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(cp.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get returns the formatted percentage for class.
func (p Probabilities) Get(class string) (string, bool) {
	for _, cp := range p {
		if cp.Class == class {
			return cp.Value, true
		}
	}
	return "", false
}

// New assembles the success record for a prediction. ReportFile is left nil
// until the report has been written.
func New(pred *model.Prediction, classes []string) *PredictionResult {
	probs := make(Probabilities, 0, len(classes))
	for i, class := range classes {
		probs = append(probs, ClassProbability{Class: class, Value: FormatPercent(pred.Probabilities[i])})
	}

	return &PredictionResult{
		Classification:  pred.Class,
		ConfidenceScore: FormatPercent(pred.Confidence),
		Severity:        severity.Determine(pred.Class, float64(pred.Confidence)),
		Probabilities:   probs,
	}
}

// WithReport returns a copy of r that references the given report file.
func (r PredictionResult) WithReport(file string) *PredictionResult {
	r.ReportFile = &file
	return &r
}

// ModelLoadError is the record emitted when the classifier cannot be loaded.
func ModelLoadError() *PredictionResult {
	return errorRecord(ModelLoadErrorClassification)
}

// ProcessingError is the record emitted for any failure after model load.
func ProcessingError() *PredictionResult {
	return errorRecord(ProcessingErrorClassification)
}

func errorRecord(classification string) *PredictionResult {
	return &PredictionResult{
		Classification:  classification,
		ConfidenceScore: "0%",
		Severity:        severity.Unknown,
		Probabilities:   Probabilities{},
	}
}

// FormatPercent renders a probability as a percentage rounded to two decimal
// places with trailing zeros dropped, keeping at least one: 0.9725 -> "97.25%",
// 1 -> "100.0%".
func FormatPercent(p float32) string {
	rounded := strconv.FormatFloat(float64(p)*100, 'f', 2, 64)
	v, _ := strconv.ParseFloat(rounded, 64)

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s + "%"
}
