package qr

import (
	"encoding/json"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/jwalitptl/booking-api/pkg/code"
)

// Payload is the JSON object encoded into a confirmation QR image. The
// check-in scanner accepts either this shape or a bare code string.
type Payload struct {
	AppointmentID string `json:"appointmentId"`
	Code          string `json:"code"`
}

// Encode renders the payload as a PNG of the given pixel size.
func Encode(p Payload, size int) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal QR payload: %w", err)
	}
	png, err := qrcode.Encode(string(data), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR image: %w", err)
	}
	return png, nil
}

// Decode interprets scanned QR text. JSON payloads win; anything else is
// treated as a bare confirmation code, normalized for lookup. Returns an
// error when the text is neither.
func Decode(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		if p.AppointmentID == "" && p.Code == "" {
			return Payload{}, fmt.Errorf("QR payload carries no appointment reference")
		}
		return p, nil
	}

	normalized := code.Normalize(raw)
	if !code.Valid(normalized) {
		return Payload{}, fmt.Errorf("scanned text is not a confirmation code")
	}
	return Payload{Code: normalized}, nil
}
