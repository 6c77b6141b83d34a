package sessiontest

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nonZeroExitCode = 13

func coreContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryCore,
			Name:        "run-echo",
			Description: "Run captures stdout and a zero exit code",
			Run: func(t T, env Env) {
				res, err := env.Session.Run(t.Context(), "echo hello")
				require.NoError(t, err)
				require.NotNil(t, res)

				assert.Equal(t, "hello\n", res.Stdout)
				assert.Empty(t, res.Stderr)
				assert.Equal(t, 0, res.ExitCode)
				assert.True(t, res.Success())
			},
		},
		{
			Category:    CategoryCore,
			Name:        "run-nonzero-exit",
			Description: "A non-zero exit is reported in the result, not as an error",
			Run: func(t T, env Env) {
				res, err := env.Session.Run(t.Context(), "exit 13")
				require.NoError(t, err)
				require.NotNil(t, res)

				assert.Equal(t, nonZeroExitCode, res.ExitCode)
				assert.False(t, res.Success())
			},
		},
		{
			Category:    CategoryCore,
			Name:        "run-stderr",
			Description: "Run captures stderr separately from stdout",
			Run: func(t T, env Env) {
				res, err := env.Session.Run(t.Context(), "echo oops >&2")
				require.NoError(t, err)

				assert.Empty(t, res.Stdout)
				assert.Equal(t, "oops\n", res.Stderr)
			},
		},
	}
}
