// Package verifylink builds the public verification URL for a fingerprint
// and renders it as a QR code for printing on archive cards.
package verifylink

import (
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultQRSize is the edge length in pixels of rendered QR codes.
const DefaultQRSize = 200

// Builder turns fingerprints into links under a fixed base URL.
type Builder struct {
	base string
}

// NewBuilder returns a Builder for base, which must be an absolute URL.
// Any query or fragment on base is dropped.
func NewBuilder(base string) (*Builder, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q is not absolute", base)
	}
	u.RawQuery, u.Fragment = "", ""
	clean := u.String()
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	return &Builder{base: clean}, nil
}

// URL returns the verification link for fingerprint fp.
func (b *Builder) URL(fp string) string {
	return b.base + "?verify=" + url.QueryEscape(fp)
}

// QRCode renders the verification link for fp as a PNG of size pixels.
func (b *Builder) QRCode(fp string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(b.URL(fp), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}
	return png, nil
}
