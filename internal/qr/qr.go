// Package qr renders group IDs as scannable codes.
package qr

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const imageSize = 256

// DataURL encodes the bare group ID as a QR PNG data URL. The payload is
// the raw ID, not a join URL; the client decides what to do with a
// scanned code.
func DataURL(groupID string) (string, error) {
	png, err := qrcode.Encode(groupID, qrcode.Medium, imageSize)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
