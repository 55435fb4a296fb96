package whatsapp

import (
	"encoding/base64"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// renderQR encodes a pairing token as a PNG data URL that a frontend can
// drop into an <img> tag. Falls back to the raw token when encoding fails.
func renderQR(code string) string {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		zap.L().Warn("whatsapp: QR encoding failed, returning raw pairing code", zap.Error(err))
		return code
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
