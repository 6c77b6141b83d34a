package sessiontest

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruffel/russh"
)

func channelContracts() []TestCase {
	return []TestCase{
		{
			Category:    CategoryChannel,
			Name:        "stdout-drains-once",
			Description: "The second read of stdout returns an empty string",
			Run: func(t T, env Env) {
				ch := startChannel(t, env, "echo hi")

				out, err := ch.ReadStdout()
				require.NoError(t, err)
				assert.Equal(t, "hi\n", out)

				out, err = ch.ReadStdout()
				require.NoError(t, err)
				assert.Empty(t, out)
			},
		},
		{
			Category:    CategoryChannel,
			Name:        "exit-status-once",
			Description: "ExitStatus reports the code once and 0 afterwards",
			Run: func(t T, env Env) {
				ch := startChannel(t, env, "exit 13")

				code, err := ch.ExitStatus()
				require.NoError(t, err)
				assert.Equal(t, nonZeroExitCode, code)

				code, err = ch.ExitStatus()
				require.NoError(t, err)
				assert.Equal(t, 0, code)
			},
		},
		{
			Category:    CategoryChannel,
			Name:        "stdin-one-shot",
			Description: "Only the first stdin write reaches the command",
			Run: func(t T, env Env) {
				ch := startChannel(t, env, "cat")

				require.NoError(t, ch.WriteStdin("ping"))
				require.NoError(t, ch.WriteStdin("pong"))

				out, err := ch.ReadStdout()
				require.NoError(t, err)
				assert.Equal(t, "ping", out)
			},
		},
		{
			Category:    CategoryChannel,
			Name:        "exit-status-closes-channel",
			Description: "Streams read after ExitStatus are empty",
			Run: func(t T, env Env) {
				ch := startChannel(t, env, "echo unread")

				_, err := ch.ExitStatus()
				require.NoError(t, err)

				out, err := ch.ReadStdout()
				require.NoError(t, err)
				assert.Empty(t, out)

				errOut, err := ch.ReadStderr()
				require.NoError(t, err)
				assert.Empty(t, errOut)
			},
		},
		{
			Category:    CategoryChannel,
			Name:        "close-idempotent",
			Description: "Closing a channel twice succeeds",
			Run: func(t T, env Env) {
				ch := startChannel(t, env, "echo hi")

				require.NoError(t, ch.Close())
				require.NoError(t, ch.Close())
			},
		},
	}
}

func startChannel(t T, env Env, command string) russh.Channel {
	ch, err := env.Session.ExecCommand(t.Context(), command)
	require.NoError(t, err)
	require.NotNil(t, ch)

	t.Cleanup(func() { _ = ch.Close() })

	return ch
}
