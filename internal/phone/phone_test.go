package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "local format with leading zero",
			input:    "08012345678",
			expected: "2348012345678",
		},
		{
			name:     "international format with plus",
			input:    "+2348012345678",
			expected: "2348012345678",
		},
		{
			name:     "formatted with spaces and dashes",
			input:    "+234 801-234-5678",
			expected: "2348012345678",
		},
		{
			name:     "already canonical",
			input:    "2348012345678",
			expected: "2348012345678",
		},
		{
			name:     "leading zero but wrong length is left alone",
			input:    "0801234567",
			expected: "0801234567",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeJID(t *testing.T) {
	assert.Equal(t, "2348012345678", NormalizeJID("2348012345678@s.whatsapp.net"))
	assert.Equal(t, "2348012345678", NormalizeJID("08012345678@s.whatsapp.net"))
	assert.Equal(t, "2348012345678", NormalizeJID("2348012345678"))
}

func TestNormalizeConsistencyAcrossPaths(t *testing.T) {
	// The outbound path normalizes a dialable number, the inbound path a
	// wire identifier; both must resolve the same human to the same key.
	outbound := Normalize("08012345678")
	inbound := NormalizeJID("2348012345678@s.whatsapp.net")
	assert.Equal(t, outbound, inbound)
}

func TestStripTransportSuffix(t *testing.T) {
	assert.Equal(t, "2348012345678", StripTransportSuffix("2348012345678@s.whatsapp.net"))
	assert.Equal(t, "status", StripTransportSuffix("status@broadcast"))
	assert.Equal(t, "nosuffix", StripTransportSuffix("nosuffix"))
}
