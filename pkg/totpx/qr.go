package totpx

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"
)

// DefaultQRSize is the edge length in pixels of rendered QR codes.
const DefaultQRSize = 256

// PNGRenderer renders provisioning URIs as QR code PNGs.
type PNGRenderer struct {
	Size int
}

func (r PNGRenderer) RenderQR(uri string) ([]byte, error) {
	size := r.Size
	if size <= 0 {
		size = DefaultQRSize
	}

	code, err := qr.Encode(uri, qr.M, qr.Auto)
	if err != nil {
		return nil, fmt.Errorf("totpx: encode qr: %w", err)
	}
	code, err = barcode.Scale(code, size, size)
	if err != nil {
		return nil, fmt.Errorf("totpx: scale qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, code); err != nil {
		return nil, fmt.Errorf("totpx: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
