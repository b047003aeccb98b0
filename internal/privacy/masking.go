package privacy

import (
	"strconv"
	"strings"

	"qtbridge/internal/models"
)

const keepLast = 4

// MaskID masks a numeric QQ or Telegram id, keeping the last 4 digits
// Example: 123456789 -> "*****6789", -1001234567 -> "-******4567"
func MaskID(id int64) string {
	s := strconv.FormatInt(id, 10)
	if strings.HasPrefix(s, "-") {
		return "-" + maskString(s[1:], keepLast)
	}
	return maskString(s, keepLast)
}

// MaskScope masks the id part of a scope key
// Example: group:123456789 -> "group:*****6789"
func MaskScope(scope models.Scope) string {
	return string(scope.Kind) + ":" + MaskID(scope.ID)
}

// MaskIdentity masks the scope of a message identity while keeping the
// message id readable for debugging.
func MaskIdentity(id models.MessageIdentity) string {
	return string(id.Platform) + "/" + MaskScope(id.Scope) + "/" + id.MessageID
}

// MaskToken hides the secret half of a bot token
// Example: "123456:ABCdef-ghiJKL" -> "123456:**********JKL"
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	botID, secret, ok := strings.Cut(token, ":")
	if !ok {
		return maskString(token, 3)
	}
	return botID + ":" + maskString(secret, 3)
}

// MaskURL replaces every occurrence of token in rawURL with its masked form.
// Telegram file URLs embed the bot token in their path.
func MaskURL(rawURL, token string) string {
	if token == "" || rawURL == "" {
		return rawURL
	}
	return strings.ReplaceAll(rawURL, token, MaskToken(token))
}

// maskString masks a string showing only the last n characters
func maskString(s string, keep int) string {
	if s == "" {
		return ""
	}
	if len(s) <= keep {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-keep) + s[len(s)-keep:]
}
