package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungtran1995/chatbot-server-test/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "json info", level: "info", format: "json"},
		{name: "console debug", level: "debug", format: "console"},
		{name: "bad level", level: "loud", format: "json", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, logger)
		})
	}
}

func TestContextFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, ContextFields(ctx))

	ctx = WithSessionID(ctx, "sess-42")
	ctx = WithRequestID(ctx, "req-7")

	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "session_id", fields[0].Key)
	assert.Equal(t, "request_id", fields[1].Key)

	assert.Equal(t, "sess-42", SessionIDFromContext(ctx))
	assert.Equal(t, "req-7", RequestIDFromContext(ctx))
}

func TestSecretField(t *testing.T) {
	f := Secret("api_key", config.Secret("sk-12345"))
	assert.Equal(t, "api_key", f.Key)
	assert.Equal(t, "[REDACTED:8]", f.String)

	f = RedactedString("token", "abc")
	assert.Equal(t, "[REDACTED:3]", f.String)
}
