package ui

import (
	"os"
	"testing"

	"gotest.tools/assert"
)

func TestStandardIO_Prompts(t *testing.T) {
	r, w, err := os.Pipe()
	assert.NilError(t, err)
	defer r.Close()
	defer w.Close()

	promptIn, err := os.CreateTemp(t.TempDir(), "prompt-in")
	assert.NilError(t, err)
	defer promptIn.Close()
	promptOut, err := os.CreateTemp(t.TempDir(), "prompt-out")
	assert.NilError(t, err)
	defer promptOut.Close()

	cases := map[string]struct {
		io          standardIO
		expectedIn  *os.File
		expectedOut *os.File
		err         error
	}{
		"terminal while piped": {
			io:          standardIO{input: r, output: w, promptIn: promptIn, promptOut: promptOut},
			expectedIn:  promptIn,
			expectedOut: promptOut,
		},
		"piped without terminal": {
			io:  standardIO{input: r, output: w},
			err: ErrCannotAsk,
		},
		"terminal without output": {
			io:  standardIO{input: r, output: w, promptIn: promptIn},
			err: ErrCannotAsk,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			in, out, err := tc.io.Prompts()

			assert.Equal(t, err, tc.err)
			if tc.err != nil {
				return
			}
			assert.Equal(t, in, tc.expectedIn)
			assert.Equal(t, out, tc.expectedOut)
		})
	}
}
