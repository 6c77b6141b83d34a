package russh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_Success(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		result Result
		want   bool
	}{
		{
			name:   "success",
			result: Result{ExitCode: 0},
			want:   true,
		},
		{
			name:   "non-zero exit",
			result: Result{ExitCode: 1, Stderr: "boom"},
			want:   false,
		},
		{
			name:   "command not found",
			result: Result{ExitCode: 127},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.result.Success())
		})
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "new", StateNew.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestAuthState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unauthenticated", Unauthenticated.String())
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "closed", SessionClosed.String())
	assert.Equal(t, "unknown", AuthState(-1).String())
}
