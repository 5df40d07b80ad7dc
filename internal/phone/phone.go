// Package phone canonicalizes recipient identifiers so the same human maps
// to the same key on the outbound path (rate-limit bucket, audit record)
// and the inbound path (normalized sender address).
package phone

import (
	"strings"

	"github.com/smartflowafrica/smartflow-sub001/internal/constants"
)

// Normalize strips all non-digit characters and rewrites a local-format
// leading zero to the country-code form when the digit count matches the
// local format. "08012345678" and "+234 801 234 5678" both normalize to
// "2348012345678".
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) == constants.LocalNumberDigits && strings.HasPrefix(digits, "0") {
		return constants.CountryCodePrefix + digits[1:]
	}
	return digits
}

// StripTransportSuffix removes the gateway's addressing suffix from a raw
// wire identifier ("2348012345678@s.whatsapp.net" -> "2348012345678").
func StripTransportSuffix(jid string) string {
	if idx := strings.IndexByte(jid, '@'); idx >= 0 {
		return jid[:idx]
	}
	return jid
}

// NormalizeJID canonicalizes a wire identifier to the bare digit form used
// everywhere in this layer.
func NormalizeJID(jid string) string {
	return Normalize(StripTransportSuffix(jid))
}
