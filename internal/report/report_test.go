package report

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/brainscan/internal/model"
	"github.com/Brownie44l1/brainscan/internal/result"
)

func sampleResult(t *testing.T, probs ...float32) *result.PredictionResult {
	t.Helper()
	pred, err := model.NewPrediction(model.Classes, probs)
	require.NoError(t, err)
	return result.New(pred, model.Classes)
}

func newTestGenerator(t *testing.T, ids ...string) *Generator {
	t.Helper()
	g := NewGenerator(Options{
		Dir:          filepath.Join(t.TempDir(), "reports"),
		ModelVersion: "BrainTumorClassifier v2.0",
		ScanType:     "Brain MRI",
	})
	g.compress = false
	g.now = func() time.Time { return time.Date(2026, 10, 15, 9, 30, 0, 123456000, time.Local) }
	if len(ids) > 0 {
		next := 0
		g.newID = func() (string, error) {
			id := ids[next%len(ids)]
			next++
			return id, nil
		}
	}
	return g
}

func TestGenerate_WritesPDF(t *testing.T) {
	g := newTestGenerator(t)
	name, err := g.Generate(sampleResult(t, 0.9725, 0.0125, 0.01, 0.005))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^report_[0-9a-f]{32}\.pdf$`), name)

	data, err := os.ReadFile(filepath.Join(g.Dir(), name))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestGenerate_Sections(t *testing.T) {
	g := newTestGenerator(t,
		"aaaaaaaabbbbbbbbccccccccdddddddd",
		"0123456789abcdef0123456789abcdef",
	)
	name, err := g.Generate(sampleResult(t, 0.9725, 0.0125, 0.01, 0.005))
	require.NoError(t, err)
	assert.Equal(t, "report_aaaaaaaabbbbbbbbccccccccdddddddd.pdf", name)

	data, err := os.ReadFile(filepath.Join(g.Dir(), name))
	require.NoError(t, err)
	content := string(data)

	// Sections appear in order.
	ordered := []string{
		title,
		"Report ID", "01234567",
		"Date", "2026-10-15 09:30:00.123456",
		"Model Version", "BrainTumorClassifier v2.0",
		"Scan Type", "Brain MRI",
		"1. Diagnostic Summary",
		"Primary Classification:", "glioma_tumor",
		"Model Confidence:", "97.25%",
		"AI Risk Stratification:", "High",
		"2. Probability Distribution",
		"Tumor Type", "Probability",
		"glioma tumor", "97.25%",
		"meningioma tumor", "1.25%",
		"pituitary tumor", "1.0%",
		"no tumor", "0.5%",
		"3. Clinical Interpretation",
		"Imaging features are consistent with glioma_tumor.",
		"Recommendation:",
		"Neurologist consultation and contrast-enhanced MRI advised.",
		"AI-generated report for screening support only.",
	}
	pos := 0
	for _, s := range ordered {
		idx := bytes.Index(data[pos:], []byte(s))
		require.GreaterOrEqual(t, idx, 0, "%q missing or out of order", s)
		pos += idx + len(s)
	}

	// The file identifier is not the one shown inside the report.
	assert.NotContains(t, content, "(aaaaaaaa)")
}

func TestGenerate_NoTumorInterpretation(t *testing.T) {
	g := newTestGenerator(t)
	name, err := g.Generate(sampleResult(t, 0.01, 0.01, 0.01, 0.97))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(g.Dir(), name))
	require.NoError(t, err)
	assert.Contains(t, string(data), "The AI model does not detect radiological patterns")
	assert.Contains(t, string(data), "Routine follow-up recommended if symptoms persist.")
	assert.NotContains(t, string(data), "Neurologist consultation")
}

func TestGenerate_UniqueNames(t *testing.T) {
	g := newTestGenerator(t)
	r := sampleResult(t, 0.2, 0.5, 0.2, 0.1)

	first, err := g.Generate(r)
	require.NoError(t, err)
	second, err := g.Generate(r)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.FileExists(t, filepath.Join(g.Dir(), first))
	assert.FileExists(t, filepath.Join(g.Dir(), second))
}

func TestGenerate_UnwritableDir(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	g := NewGenerator(Options{Dir: filepath.Join(blocker, "reports")})
	_, err := g.Generate(sampleResult(t, 0.1, 0.1, 0.1, 0.7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report: create")
}

func TestGenerate_FailedWriteLeavesNoFile(t *testing.T) {
	g := newTestGenerator(t)
	g.output = func(_ *fpdf.Fpdf, w io.Writer) error {
		if _, err := w.Write([]byte("%PDF-1.3\n% truncated")); err != nil {
			return err
		}
		return errors.New("no space left on device")
	}

	name, err := g.Generate(sampleResult(t, 0.1, 0.1, 0.1, 0.7))
	require.Error(t, err)
	assert.Empty(t, name)
	assert.Contains(t, err.Error(), "no space left on device")

	entries, err := os.ReadDir(g.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestGenerate_IDFailure(t *testing.T) {
	g := newTestGenerator(t)
	g.newID = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := g.Generate(sampleResult(t, 0.1, 0.1, 0.1, 0.7))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entropy exhausted")
}

func TestInterpret(t *testing.T) {
	interp, rec := interpret(model.NoTumor)
	assert.Equal(t, "The AI model does not detect radiological patterns suggestive of intracranial tumor.", interp)
	assert.Equal(t, "Routine follow-up recommended if symptoms persist.", rec)

	interp, rec = interpret(model.Pituitary)
	assert.Equal(t, "Imaging features are consistent with pituitary_tumor. Further clinical evaluation recommended.", interp)
	assert.Equal(t, "Neurologist consultation and contrast-enhanced MRI advised.", rec)
}

func TestRandomHex(t *testing.T) {
	a, err := randomHex()
	require.NoError(t, err)
	b, err := randomHex()
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
