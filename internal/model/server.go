package model

import (
	"os"

	"github.com/rotisserie/eris"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// ErrShapeMismatch reports a batch or output whose size disagrees with the
// model's tensors.
var ErrShapeMismatch = eris.New("tensor shape mismatch")

// Options configures NewServer.
type Options struct {
	ModelPath      string
	MetadataPath   string
	RuntimeLibrary string
}

// Server holds a loaded ONNX session and its pre-allocated tensors for the
// lifetime of the process.
type Server struct {
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewServer loads the classifier. Any error means the model is unusable.
func NewServer(opts Options) (*Server, error) {
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, eris.Wrapf(err, "model file %s", opts.ModelPath)
	}

	metadata, err := LoadMetadata(opts.MetadataPath)
	if err != nil {
		return nil, err
	}

	if opts.RuntimeLibrary != "" {
		ort.SetSharedLibraryPath(opts.RuntimeLibrary)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, eris.Wrap(err, "failed to initialize ONNX environment")
	}

	s := &Server{Metadata: metadata}

	s.inputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		s.Close()
		return nil, eris.Wrap(err, "failed to create input tensor")
	}

	s.outputTensor, err = ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		s.Close()
		return nil, eris.Wrap(err, "failed to create output tensor")
	}

	s.session, err = ort.NewAdvancedSession(opts.ModelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{s.inputTensor}, []ort.ArbitraryTensor{s.outputTensor},
		nil)
	if err != nil {
		s.Close()
		return nil, eris.Wrap(err, "failed to create ONNX session")
	}

	zap.L().Debug("model loaded",
		zap.String("path", opts.ModelPath),
		zap.Int64s("input_shape", metadata.InputShape),
		zap.Strings("classes", metadata.Classes),
	)

	return s, nil
}

// Predict runs one forward pass over a single preprocessed batch.
func (s *Server) Predict(inputData []float32) (*Prediction, error) {
	in := s.inputTensor.GetData()
	if len(inputData) != len(in) {
		return nil, eris.Wrapf(ErrShapeMismatch, "expected %d input values, got %d", len(in), len(inputData))
	}
	copy(in, inputData)

	if err := s.session.Run(); err != nil {
		return nil, eris.Wrap(err, "inference failed")
	}

	return NewPrediction(s.Metadata.Classes, s.outputTensor.GetData())
}

// Close releases the session, tensors and ONNX environment.
func (s *Server) Close() {
	if s.session != nil {
		s.session.Destroy()
	}
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if ort.IsInitialized() {
		ort.DestroyEnvironment()
	}
}
