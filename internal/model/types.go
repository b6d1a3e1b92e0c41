package model

import (
	"encoding/json"
	"os"
	"slices"

	"github.com/rotisserie/eris"
)

// Class labels in the fixed order of the model's output vector.
const (
	Glioma     = "glioma_tumor"
	Meningioma = "meningioma_tumor"
	Pituitary  = "pituitary_tumor"
	NoTumor    = "no_tumor"
)

// Classes lists the output classes in index order.
var Classes = []string{Glioma, Meningioma, Pituitary, NoTumor}

// ImageSize is the spatial resolution the classifier was trained on.
const ImageSize = 224

// Tensor layouts.
const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Channel orders.
const (
	ChannelsBGR = "bgr"
	ChannelsRGB = "rgb"
)

// Metadata describes the exported ONNX graph.
type Metadata struct {
	InputName    string   `json:"input_name"`
	OutputName   string   `json:"output_name"`
	InputShape   []int64  `json:"input_shape"`
	OutputShape  []int64  `json:"output_shape"`
	Classes      []string `json:"classes"`
	ImageSize    int      `json:"image_size"`
	Layout       string   `json:"layout"`
	ChannelOrder string   `json:"channel_order"`
}

// DefaultMetadata matches a Keras classifier exported with its native
// channels-last input and BGR training data.
func DefaultMetadata() Metadata {
	return Metadata{
		InputName:    "input",
		OutputName:   "output",
		InputShape:   []int64{1, ImageSize, ImageSize, 3},
		OutputShape:  []int64{1, int64(len(Classes))},
		Classes:      slices.Clone(Classes),
		ImageSize:    ImageSize,
		Layout:       LayoutNHWC,
		ChannelOrder: ChannelsBGR,
	}
}

// LoadMetadata reads the metadata sidecar at path. A missing file yields
// DefaultMetadata; fields absent from the file keep their defaults.
func LoadMetadata(path string) (Metadata, error) {
	meta := DefaultMetadata()

	metaFile, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return meta, nil
	}
	if err != nil {
		return Metadata{}, eris.Wrap(err, "failed to read metadata")
	}

	if err := json.Unmarshal(metaFile, &meta); err != nil {
		return Metadata{}, eris.Wrap(err, "failed to parse metadata")
	}
	if err := meta.Validate(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// Validate checks the metadata against the fixed input contract.
func (m Metadata) Validate() error {
	if !slices.Equal(m.Classes, Classes) {
		return eris.Errorf("metadata classes %v do not match %v", m.Classes, Classes)
	}
	if m.ImageSize != ImageSize {
		return eris.Errorf("metadata image size %d, want %d", m.ImageSize, ImageSize)
	}
	if m.Layout != LayoutNHWC && m.Layout != LayoutNCHW {
		return eris.Errorf("unknown tensor layout %q", m.Layout)
	}
	if m.ChannelOrder != ChannelsBGR && m.ChannelOrder != ChannelsRGB {
		return eris.Errorf("unknown channel order %q", m.ChannelOrder)
	}
	if want := m.InputSize(); shapeSize(m.InputShape) != want {
		return eris.Errorf("input shape %v does not hold a 1x%dx%dx3 batch", m.InputShape, m.ImageSize, m.ImageSize)
	}
	if shapeSize(m.OutputShape) != int64(len(m.Classes)) {
		return eris.Errorf("output shape %v does not hold %d classes", m.OutputShape, len(m.Classes))
	}
	return nil
}

// InputSize is the number of float32 values in one preprocessed batch.
func (m Metadata) InputSize() int64 {
	return int64(3 * m.ImageSize * m.ImageSize)
}

func shapeSize(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, dim := range shape {
		n *= dim
	}
	return n
}

// Prediction is the decoded output of one forward pass.
type Prediction struct {
	Class         string
	Index         int
	Confidence    float32
	Probabilities []float32
}

// NewPrediction picks the highest-probability class. Ties resolve to the
// lowest index.
func NewPrediction(classes []string, probs []float32) (*Prediction, error) {
	if len(probs) == 0 || len(probs) != len(classes) {
		return nil, eris.Wrapf(ErrShapeMismatch, "got %d probabilities for %d classes", len(probs), len(classes))
	}

	maxIdx := 0
	maxVal := probs[0]
	for i, val := range probs {
		if val > maxVal {
			maxVal = val
			maxIdx = i
		}
	}

	return &Prediction{
		Class:         classes[maxIdx],
		Index:         maxIdx,
		Confidence:    maxVal,
		Probabilities: slices.Clone(probs),
	}, nil
}
