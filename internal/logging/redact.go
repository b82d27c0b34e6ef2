package logging

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/config"
)

// Secret creates a zap field for a config.Secret. Only the length leaks.
func Secret(key string, val config.Secret) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val.Value()))+"]")
}

// RedactedString creates a zap field with the value redacted.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}
