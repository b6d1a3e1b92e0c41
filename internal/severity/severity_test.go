package severity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Brownie44l1/brainscan/internal/model"
)

func TestDetermine_NoTumorIsAlwaysLow(t *testing.T) {
	for _, c := range []float64{0, 0.1, 0.5, 0.7, 0.9, 0.95, 1} {
		assert.Equal(t, Low, Determine(model.NoTumor, c), "confidence %v", c)
	}
}

func TestDetermine_TumorTiers(t *testing.T) {
	tests := []struct {
		confidence float64
		want       string
	}{
		{1.0, High},
		{0.95, High},
		{0.9000001, High},
		{0.90, Moderate},
		{0.75, Moderate},
		{0.7000001, Moderate},
		{0.70, Indeterminate},
		{0.50, Indeterminate},
		{0.25, Indeterminate},
		{0, Indeterminate},
	}

	for _, label := range []string{model.Glioma, model.Meningioma, model.Pituitary} {
		for _, tt := range tests {
			assert.Equal(t, tt.want, Determine(label, tt.confidence), "%s at %v", label, tt.confidence)
		}
	}
}

func TestDetermine_UnknownLabelUsesThresholds(t *testing.T) {
	assert.Equal(t, High, Determine("no tumor", 0.99))
}
