package pipeline

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/rotisserie/eris"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// PrepareImage decodes a meal photo, downscales it so its longest side is at
// most maxDim, and re-encodes it as JPEG. Phone photos are routinely 4000px
// wide; the model sees no extra detail past maxDim and the upload cost scales
// with pixel count. Returns the encoded bytes and media type.
func PrepareImage(data []byte, maxDim, quality int) ([]byte, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", eris.Wrap(err, "pipeline: decode image")
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w <= maxDim && h <= maxDim && format == "jpeg" {
		return data, "image/jpeg", nil
	}

	if w > maxDim || h > maxDim {
		scale := float64(maxDim) / float64(w)
		if h > w {
			scale = float64(maxDim) / float64(h)
		}
		dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, "", eris.Wrap(err, "pipeline: encode jpeg")
	}
	return buf.Bytes(), "image/jpeg", nil
}
