package generator

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	xdraw "golang.org/x/image/draw"
)

const (
	downloadLimit  = 32 << 20 // 32MiB cap on any fetched image
	maxInputHeight = 1024
	jpegQuality    = 90
)

// downloadImage fetches the image bytes behind a resolved read URL.
func downloadImage(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("download image: http %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, downloadLimit))
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("download image: empty body")
	}
	return data, nil
}

// normalizeForUpload re-encodes an input image into the shape image models
// accept most reliably: transparency flattened onto white, at most
// maxInputHeight pixels tall, JPEG encoded.
func normalizeForUpload(data []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	flattened := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(flattened, flattened.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	xdraw.Draw(flattened, flattened.Bounds(), src, bounds.Min, xdraw.Over)

	final := scaleToMaxHeight(flattened, maxInputHeight)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, final, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func scaleToMaxHeight(src *image.RGBA, maxHeight int) image.Image {
	height := src.Bounds().Dy()
	if height <= maxHeight {
		return src
	}

	ratio := float64(maxHeight) / float64(height)
	width := int(float64(src.Bounds().Dx()) * ratio)
	if width < 1 {
		width = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, maxHeight))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
