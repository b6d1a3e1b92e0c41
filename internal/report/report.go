// Package report renders the PDF diagnostic report for a prediction.
package report

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Brownie44l1/brainscan/internal/model"
	"github.com/Brownie44l1/brainscan/internal/result"
)

const (
	title      = "AI-Assisted Brain MRI Diagnostic Report"
	disclaimer = "AI-generated report for screening support only. " +
		"Not a replacement for professional medical diagnosis."

	dateLayout = "2006-01-02 15:04:05.000000"

	// Layout in points.
	margin      = 72.0
	inch        = 72.0
	lineHeight  = 14.0
	rowHeight   = 18.0
	gridLine    = 0.5
	fontFamily  = "Helvetica"
	titleSize   = 18.0
	sectionSize = 14.0
	normalSize  = 11.0
)

// Options configures a Generator.
type Options struct {
	Dir          string
	ModelVersion string
	ScanType     string
}

// Generator writes one PDF per prediction into a reports directory.
type Generator struct {
	dir          string
	modelVersion string
	scanType     string

	now      func() time.Time
	newID    func() (string, error)
	output   func(*fpdf.Fpdf, io.Writer) error
	compress bool
}

// NewGenerator creates a Generator writing into opts.Dir.
func NewGenerator(opts Options) *Generator {
	return &Generator{
		dir:          opts.Dir,
		modelVersion: opts.ModelVersion,
		scanType:     opts.ScanType,
		now:          time.Now,
		newID:        randomHex,
		output:       (*fpdf.Fpdf).Output,
		compress:     true,
	}
}

// Dir is the directory reports are written to.
func (g *Generator) Dir() string { return g.dir }

// Generate renders r and returns the file name of the new report, relative to
// Dir. The displayed Report ID is drawn separately from the file name.
func (g *Generator) Generate(r *result.PredictionResult) (string, error) {
	fileID, err := g.newID()
	if err != nil {
		return "", eris.Wrap(err, "report: generate file id")
	}
	name := "report_" + fileID + ".pdf"

	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "report: create %s", g.dir)
	}

	pdf, err := g.render(r)
	if err != nil {
		return "", err
	}

	path := filepath.Join(g.dir, name)
	if err := g.write(pdf, path); err != nil {
		return "", err
	}

	zap.L().Info("report written", zap.String("path", path))
	return name, nil
}

// write stores the rendered document at path. A failed write leaves no file
// behind.
func (g *Generator) write(pdf *fpdf.Fpdf, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}

	if err := g.output(pdf, f); err != nil {
		f.Close()
		os.Remove(path)
		return eris.Wrapf(err, "report: write %s", path)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return eris.Wrapf(err, "report: close %s", path)
	}
	return nil
}

func (g *Generator) render(r *result.PredictionResult) (*fpdf.Fpdf, error) {
	reportID, err := g.newID()
	if err != nil {
		return nil, eris.Wrap(err, "report: generate report id")
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(g.compress)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)
	pdf.SetTitle(title, false)
	pdf.SetCreator(g.modelVersion, false)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetDrawColor(128, 128, 128)
	pdf.SetLineWidth(gridLine)

	// Title banner
	pdf.SetFont(fontFamily, "", titleSize)
	pdf.SetTextColor(0, 0, 139)
	pdf.CellFormat(0, titleSize+4, title, "", 1, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(0.3 * inch)

	// Metadata table
	pdf.SetFont(fontFamily, "", normalSize)
	metadata := [][2]string{
		{"Report ID", reportID[:8]},
		{"Date", g.now().Format(dateLayout)},
		{"Model Version", g.modelVersion},
		{"Scan Type", g.scanType},
	}
	for _, row := range metadata {
		pdf.CellFormat(150, rowHeight, tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(350, rowHeight, tr(row[1]), "1", 1, "L", false, 0, "")
	}
	pdf.Ln(0.3 * inch)

	// Diagnostic summary
	section(pdf, "1. Diagnostic Summary")
	labeled(pdf, tr, "Primary Classification:", r.Classification)
	labeled(pdf, tr, "Model Confidence:", r.ConfidenceScore)
	labeled(pdf, tr, "AI Risk Stratification:", r.Severity)
	pdf.Ln(0.3 * inch)

	// Probability distribution
	section(pdf, "2. Probability Distribution")
	pdf.SetFillColor(211, 211, 211)
	pdf.CellFormat(250, rowHeight, "Tumor Type", "1", 0, "L", true, 0, "")
	pdf.CellFormat(150, rowHeight, "Probability", "1", 1, "L", true, 0, "")
	for _, cp := range r.Probabilities {
		pdf.CellFormat(250, rowHeight, tr(strings.ReplaceAll(cp.Class, "_", " ")), "1", 0, "L", false, 0, "")
		pdf.CellFormat(150, rowHeight, tr(cp.Value), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(0.3 * inch)

	// Clinical interpretation
	section(pdf, "3. Clinical Interpretation")
	interpretation, recommendation := interpret(r.Classification)
	pdf.SetFont(fontFamily, "", normalSize)
	pdf.MultiCell(0, lineHeight, tr(interpretation), "", "L", false)
	pdf.Ln(0.2 * inch)
	pdf.SetFont(fontFamily, "B", normalSize)
	pdf.CellFormat(0, lineHeight, "Recommendation:", "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", normalSize)
	pdf.MultiCell(0, lineHeight, tr(recommendation), "", "L", false)
	pdf.Ln(0.5 * inch)

	pdf.MultiCell(0, lineHeight, disclaimer, "", "L", false)

	if err := pdf.Error(); err != nil {
		return nil, eris.Wrap(err, "report: render")
	}
	return pdf, nil
}

func section(pdf *fpdf.Fpdf, heading string) {
	pdf.SetFont(fontFamily, "", sectionSize)
	pdf.CellFormat(0, sectionSize+4, heading, "", 1, "L", false, 0, "")
	pdf.Ln(0.1 * inch)
}

func labeled(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	pdf.SetFont(fontFamily, "B", normalSize)
	pdf.Write(lineHeight, label+" ")
	pdf.SetFont(fontFamily, "", normalSize)
	pdf.Write(lineHeight, tr(value))
	pdf.Ln(lineHeight)
}

// interpret returns the interpretation paragraph and recommendation for a
// classification.
func interpret(classification string) (string, string) {
	if classification == model.NoTumor {
		return "The AI model does not detect radiological patterns suggestive of intracranial tumor.",
			"Routine follow-up recommended if symptoms persist."
	}
	return fmt.Sprintf("Imaging features are consistent with %s. Further clinical evaluation recommended.", classification),
		"Neurologist consultation and contrast-enhanced MRI advised."
}

// randomHex returns 128 random bits as 32 lowercase hex characters.
func randomHex() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(u[:]), nil
}
