package capture

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders for pushed frames
	_ "image/png"
	"net/http"

	"golang.org/x/image/draw"
)

// MaxFrameDimension bounds the longest side of a sampled frame.
const MaxFrameDimension = 1280

var allowedFrameMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// DecodeFrame sniffs the bytes, decodes JPEG or PNG and downscales the
// result to MaxFrameDimension.
func DecodeFrame(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty frame")
	}
	mime := http.DetectContentType(data)
	if !allowedFrameMIME[mime] {
		return nil, fmt.Errorf("unsupported frame format: %s", mime)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return downscale(img, MaxFrameDimension), nil
}

func downscale(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxDim && h <= maxDim {
		return img
	}

	var nw, nh int
	if w > h {
		nw = maxDim
		nh = h * maxDim / w
	} else {
		nh = maxDim
		nw = w * maxDim / h
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}
