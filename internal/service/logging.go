package service

import (
	"strings"

	"github.com/smartflowafrica/smartflow-sub001/internal/constants"
)

// maskRecipient masks a recipient address for log output, keeping only the
// trailing digits.
func maskRecipient(recipient string) string {
	if recipient == "" {
		return ""
	}

	cleaned := recipient
	if idx := strings.IndexByte(cleaned, '@'); idx >= 0 {
		cleaned = cleaned[:idx]
	}

	if len(cleaned) > constants.DefaultPhoneMaskLength {
		return "***" + cleaned[len(cleaned)-constants.DefaultPhoneMaskLength:]
	}
	return "***"
}

// truncateID shortens provider message ids for log output.
func truncateID(id string) string {
	if len(id) > constants.DefaultMessageIDLength {
		return id[:constants.DefaultMessageIDLength] + "..."
	}
	return id
}
