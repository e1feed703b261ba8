package utils

import (
	"regexp"
	"strings"
	"unicode"
)

// MaxLogStringLength defines the maximum length for user-provided strings in logs
const MaxLogStringLength = 200

// MaxNameLength bounds participant and meeting names before they enter
// transcripts and vote registries
const MaxNameLength = 64

// SanitizeLogString sanitizes a user-controlled string for safe logging
// It replaces control characters, limits string length, and escapes format specifiers
func SanitizeLogString(input string) string {
	if input == "" {
		return ""
	}

	// Truncate long strings
	if len(input) > MaxLogStringLength {
		input = input[:MaxLogStringLength] + "... (truncated)"
	}

	// Pre-process CRLF to avoid double spaces
	input = strings.ReplaceAll(input, "\r\n", "\n")

	// Replace control characters with spaces
	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)

	// Replace % with %% to prevent format string issues
	sanitized = strings.ReplaceAll(sanitized, "%", "%%")

	// Remove any character that's not a letter, number, punctuation, symbol or whitespace
	re := regexp.MustCompile(`[^\p{L}\p{N}\p{P}\p{S}\p{Z}]`)
	sanitized = re.ReplaceAllString(sanitized, "")

	return sanitized
}

// SanitizeName normalizes a participant or meeting name at intake.
// Names become registry identities and transcript content, so control
// characters are stripped, whitespace runs collapse to a single space,
// and overlong names are cut at MaxNameLength
func SanitizeName(input string) string {
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, input)

	input = strings.Join(strings.Fields(input), " ")

	if len(input) > MaxNameLength {
		input = input[:MaxNameLength]
	}

	return input
}
