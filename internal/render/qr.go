// Package render draws fixture strings as QR codes.
package render

import (
	"image/color"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	qrcode "github.com/skip2/go-qrcode"
)

// Size is the edge length of rendered PNGs in pixels.
const Size = 128

// Renderer turns a string into a scannable image. Dark modules are black on white
// and the highest error-correction level is used.
type Renderer struct {
	Size       int
	Foreground color.Color
	Background color.Color
	Level      qrcode.RecoveryLevel
}

// New returns a Renderer with the fixed display options.
func New() *Renderer {
	return &Renderer{
		Size:       Size,
		Foreground: color.Black,
		Background: color.White,
		Level:      qrcode.Highest,
	}
}

func (r *Renderer) code(text string) (*qrcode.QRCode, error) {
	q, err := qrcode.New(text, r.Level)
	if err != nil {
		return nil, errors.Wrap(err, "build qr code")
	}
	q.ForegroundColor = r.Foreground
	q.BackgroundColor = r.Background
	return q, nil
}

// PNG renders text as a PNG image.
func (r *Renderer) PNG(text string) ([]byte, error) {
	q, err := r.code(text)
	if err != nil {
		return nil, err
	}
	return q.PNG(r.Size)
}

// Terminal renders text with half-block characters for display in a shell.
func (r *Renderer) Terminal(text string) (string, error) {
	q, err := r.code(text)
	if err != nil {
		return "", err
	}
	return q.ToSmallString(false), nil
}

// WriteFile renders text into dir/name.png and returns the file path.
func (r *Renderer) WriteFile(dir, name, text string) (string, error) {
	png, err := r.PNG(text)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create output dir")
	}
	path := filepath.Join(dir, name+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", errors.Wrap(err, "write qr file")
	}
	return path, nil
}
