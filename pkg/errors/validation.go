package errors

import (
	"strings"
	"unicode"
)

// ValidateHost validates a printer host name or IP literal.
// It rejects values that cannot be dialed safely:
//   - No empty hosts
//   - No control characters or whitespace
//   - No embedded port, scheme or path (those belong in their own fields)
//   - Maximum length of 253 characters (DNS limit)
func ValidateHost(host string) error {
	if strings.TrimSpace(host) == "" {
		return New(ErrCodeInvalidInput, "host is required")
	}

	if len(host) > 253 {
		return New(ErrCodeInvalidInput, "host too long (max 253 characters)")
	}

	for _, r := range host {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidInput, "host contains invalid characters")
		}
	}

	if strings.Contains(host, "://") || strings.ContainsAny(host, "/\\") {
		return New(ErrCodeInvalidInput, "host must be a bare hostname or IP: %q", host)
	}

	// IPv6 literals contain colons; anything else with one carries a port.
	if strings.Count(host, ":") == 1 {
		return New(ErrCodeInvalidInput, "host must not include a port: %q", host)
	}

	return nil
}

// ValidatePort validates a TCP port number.
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return New(ErrCodeInvalidInput, "port out of range: %d", port)
	}
	return nil
}

// ValidatePayload validates a raw printer payload.
func ValidatePayload(payload []byte) error {
	if len(payload) == 0 {
		return New(ErrCodeInvalidInput, "zpl payload is required")
	}
	return nil
}
