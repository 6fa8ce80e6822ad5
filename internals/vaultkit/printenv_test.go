package vaultkit

import (
	"strings"
	"testing"

	"gotest.tools/assert"

	"github.com/vaultkit/vaultkit-cli/internals/cli"
	"github.com/vaultkit/vaultkit-cli/internals/cli/ui/fakeui"
)

func TestPrintEnvCommand_Run(t *testing.T) {
	cases := map[string]struct {
		args     []string
		osEnv    []string
		expected [][]string
		err      string
	}{
		"recognized": {
			args:  []string{"printenv"},
			osEnv: []string{"VAULTKIT_DEBUG=true", "HOME=/root"},
			expected: [][]string{
				{"VAULTKIT_DEBUG", "set"},
			},
		},
		"unrecognized": {
			args:  []string{"printenv"},
			osEnv: []string{"VAULTKIT_DEBGU=true"},
			expected: [][]string{
				{"VAULTKIT_DEBGU", "unrecognized"},
			},
		},
		"strict unrecognized": {
			args:  []string{"printenv", "--strict"},
			osEnv: []string{"VAULTKIT_DEBGU=true"},
			expected: [][]string{
				{"VAULTKIT_DEBGU", "unrecognized"},
			},
			err: "environment variable set, but not recognized: VAULTKIT_DEBGU",
		},
		"strict recognized": {
			args:  []string{"printenv", "--strict"},
			osEnv: []string{"VAULTKIT_DEBUG=true"},
			expected: [][]string{
				{"VAULTKIT_DEBUG", "set"},
			},
		},
		"own flags are not configured by the environment": {
			args:  []string{"printenv"},
			osEnv: []string{"VAULTKIT_PRINTENV_STRICT=true"},
			expected: [][]string{
				{"VAULTKIT_PRINTENV_STRICT", "unrecognized"},
			},
		},
		"verbose": {
			args:  []string{"printenv", "--verbose"},
			osEnv: nil,
			expected: [][]string{
				{"VAULTKIT_DEBUG", "-"},
			},
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			io := fakeui.NewIO()
			app := cli.NewApp(ApplicationName, "test")
			app.PersistentFlags().Bool("debug", false, "debug")
			cmd := NewPrintEnvCommand(app, io)
			cmd.osEnv = func() []string { return tc.osEnv }
			cmd.Register(app)

			err := app.Run(tc.args)

			if tc.err != "" {
				assert.Error(t, err, tc.err)
			} else {
				assert.NilError(t, err)
			}
			lines := strings.Split(strings.TrimSpace(io.Out.String()), "\n")
			assert.DeepEqual(t, strings.Fields(lines[0]), []string{"NAME", "STATUS"})
			var rows [][]string
			for _, line := range lines[1:] {
				rows = append(rows, strings.Fields(line))
			}
			assert.DeepEqual(t, rows, tc.expected)
		})
	}
}
