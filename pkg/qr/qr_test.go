package qr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONPayload(t *testing.T) {
	p, err := Decode(`{"appointmentId":"8f14e45f-ceea-4672-a51a-6fb9c8236b39","code":"AB23CD"}`)
	require.NoError(t, err)
	assert.Equal(t, "8f14e45f-ceea-4672-a51a-6fb9c8236b39", p.AppointmentID)
	assert.Equal(t, "AB23CD", p.Code)
}

func TestDecodeBareCodeFallback(t *testing.T) {
	p, err := Decode("ab23cd")
	require.NoError(t, err)
	assert.Empty(t, p.AppointmentID)
	assert.Equal(t, "AB23CD", p.Code)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode("definitely not a code")
	assert.Error(t, err)

	_, err = Decode("{}")
	assert.Error(t, err)
}

func TestEncodeRoundTrip(t *testing.T) {
	png, err := Encode(Payload{AppointmentID: "id", Code: "AB23CD"}, 256)
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	// PNG magic bytes.
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}
