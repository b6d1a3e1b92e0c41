// Package imaging turns an image file into the classifier's input batch.
package imaging

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/nfnt/resize"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/brainscan/internal/model"
)

// ErrInvalidImage is returned when the input cannot be decoded as an image.
var ErrInvalidImage = eris.New("invalid image")

// Preprocessor resizes and normalizes images for a given model input contract.
type Preprocessor struct {
	size         int
	layout       string
	channelOrder string
}

// NewPreprocessor builds a Preprocessor from model metadata.
func NewPreprocessor(meta model.Metadata) *Preprocessor {
	return &Preprocessor{
		size:         meta.ImageSize,
		layout:       meta.Layout,
		channelOrder: meta.ChannelOrder,
	}
}

// PreprocessFile decodes the image at path and returns a single-item batch.
func (p *Preprocessor) PreprocessFile(path string) ([]float32, error) {
	img, err := Decode(path)
	if err != nil {
		return nil, err
	}
	return p.Preprocess(img), nil
}

// Decode reads and decodes an image file. Every failure wraps ErrInvalidImage.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidImage, "open %s: %v", path, err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidImage, "decode %s: %v", path, err)
	}

	zap.L().Debug("image decoded",
		zap.String("format", format),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
	)
	return img, nil
}

// Preprocess resizes img to size x size, scales 8-bit intensities to [0,1]
// and lays the three channels out in the configured layout and order.
func (p *Preprocessor) Preprocess(img image.Image) []float32 {
	size := uint(p.size)
	resized := resize.Resize(size, size, dropAlpha(img), resize.Bilinear)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	const channels = 3
	plane := width * height
	inputData := make([]float32, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			px := [channels]float32{
				float32(r>>8) / 255.0,
				float32(g>>8) / 255.0,
				float32(b>>8) / 255.0,
			}
			if p.channelOrder == model.ChannelsBGR {
				px[0], px[2] = px[2], px[0]
			}

			pixelIndex := y*width + x
			for c := 0; c < channels; c++ {
				if p.layout == model.LayoutNCHW {
					inputData[c*plane+pixelIndex] = px[c]
				} else {
					inputData[pixelIndex*channels+c] = px[c]
				}
			}
		}
	}

	return inputData
}

// dropAlpha returns an opaque copy of img holding its straight (not
// premultiplied) color values, so translucent pixels keep their stored
// intensities instead of being darkened towards black.
func dropAlpha(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}
	return out
}
