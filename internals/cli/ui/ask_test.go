package ui

import (
	"bytes"
	"testing"

	"gotest.tools/assert"

	"github.com/vaultkit/vaultkit-cli/internals/cli/ui/fakeui"
)

func TestAskWithDefault(t *testing.T) {
	question := "foo?"
	defaultValue := "bar"
	defaultOutput := "foo? [" + defaultValue + "] "
	cases := map[string]struct {
		in          []string
		expected    string
		expectedOut string
	}{
		"value entered": {
			in:          []string{"foobar\n"},
			expected:    "foobar",
			expectedOut: defaultOutput,
		},
		"no value entered": {
			in:          []string{"\n"},
			expected:    defaultValue,
			expectedOut: defaultOutput,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			// Setup
			io := fakeui.NewIO()
			io.PromptIn.Reads = tc.in

			// Run
			actual, err := AskWithDefault(io, question, defaultValue)

			// Assert
			assert.NilError(t, err)
			assert.Equal(t, actual, tc.expected)

			assert.Equal(t, io.PromptOut.String(), tc.expectedOut)
		})
	}
}

func TestConfirmCaseInsensitive(t *testing.T) {
	cases := map[string]struct {
		expectedConfirmation []string
		promptIn             string
		expected             bool
	}{
		"confirmed, one choice": {
			[]string{"answer"},
			"answer",
			true,
		},
		"not confirmed, one choice": {
			[]string{"answer"},
			"otheranswer",
			false,
		},
		"confirmed, first choice": {
			[]string{"answer1", "answer2"},
			"answer1",
			true,
		},
		"confirmed, second choice": {
			[]string{"answer1", "answer2"},
			"answer2",
			true,
		},
		"not confirmed, two choices": {
			[]string{"answer1", "answer2"},
			"answer3",
			false,
		},
		"confirmed, lowercase": {
			[]string{"ANSWER"},
			"answer",
			true,
		},
		"confirmed, uppercase": {
			[]string{"answer"},
			"ANSWER",
			true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			// Setup
			io := fakeui.NewIO()
			io.PromptIn.Buffer = bytes.NewBufferString(tc.promptIn)

			// Run
			actual, err := ConfirmCaseInsensitive(io, "question", tc.expectedConfirmation...)

			// Assert
			assert.NilError(t, err)
			assert.Equal(t, actual, tc.expected)
			assert.Equal(t, io.PromptOut.String(), "question: ")
		})
	}
}

func TestAskYesNo(t *testing.T) {
	cases := map[string]struct {
		question      string
		defaultAnswer ConfirmationType
		in            []string
		expected      bool
		out           string
	}{
		"default yes": {
			question:      "question",
			defaultAnswer: DefaultYes,
			in:            []string{"\n"},
			expected:      true,
			out:           "question [Y/n]: ",
		},
		"default no": {
			question:      "question",
			defaultAnswer: DefaultNo,
			in:            []string{"\n"},
			expected:      false,
			out:           "question [y/N]: ",
		},
		"default none": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"\n", "\n", "\n"},
			expected:      false,
			out: "question [y/n]: " +
				"question [y/n]: " +
				"question [y/N]: ",
		},
		"n": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"n\n"},
			expected:      false,
			out:           "question [y/n]: ",
		},
		"N": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"N\n"},
			expected:      false,
			out:           "question [y/n]: ",
		},
		"NO": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"NO\n"},
			expected:      false,
			out:           "question [y/n]: ",
		},
		"no": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"no\n"},
			expected:      false,
			out:           "question [y/n]: ",
		},
		"No": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"No\n"},
			expected:      false,
			out:           "question [y/n]: ",
		},
		"y": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"y\n"},
			expected:      true,
			out:           "question [y/n]: ",
		},
		"Y": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"Y\n"},
			expected:      true,
			out:           "question [y/n]: ",
		},
		"yes": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"yes\n"},
			expected:      true,
			out:           "question [y/n]: ",
		},
		"YES": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"YES\n"},
			expected:      true,
			out:           "question [y/n]: ",
		},
		"Yes": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"Yes\n"},
			expected:      true,
			out:           "question [y/n]: ",
		},
		"invalid default yes": {
			question:      "question",
			defaultAnswer: DefaultYes,
			in:            []string{"Yesshouldnotwork\n", "n\n"},
			expected:      false,
			out: "question [Y/n]: " +
				"question [Y/n]: ",
		},
		"invalid default no": {
			question:      "question",
			defaultAnswer: DefaultNo,
			in:            []string{"noshouldnotwork\n", "y\n"},
			expected:      true,
			out: "question [y/N]: " +
				"question [y/N]: ",
		},
		"invalid default none": {
			question:      "question",
			defaultAnswer: DefaultNone,
			in:            []string{"invalid\n", "invalid\n", "invalid\n"},
			expected:      false,
			out: "question [y/n]: " +
				"question [y/n]: " +
				"question [y/N]: ",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			// Setup
			io := fakeui.NewIO()
			io.PromptIn.Reads = tc.in

			// Run
			actual, err := AskYesNo(io, tc.question, tc.defaultAnswer)

			// Assert
			assert.NilError(t, err)
			assert.Equal(t, actual, tc.expected)
			assert.Equal(t, io.PromptOut.String(), tc.out)
		})
	}
}

func TestAskSecret(t *testing.T) {
	io := fakeui.NewIO()
	io.PromptIn.Reads = []string{"hunter2\n"}

	actual, err := AskSecret(io, "Passphrase: ")

	assert.NilError(t, err)
	assert.Equal(t, actual, "hunter2")
	assert.Equal(t, io.PromptOut.String(), "Passphrase: \n")
}

func TestAskSecret_CannotAsk(t *testing.T) {
	io := fakeui.NewIO()
	io.PromptErr = ErrCannotAsk

	_, err := AskSecret(io, "Passphrase: ")

	assert.Equal(t, err, ErrCannotAsk)
}

func TestAskPassphrase(t *testing.T) {
	cases := map[string]struct {
		in       []string
		n        int
		expected string
		err      error
	}{
		"match": {
			in:       []string{"secret\n", "secret\n"},
			n:        3,
			expected: "secret",
		},
		"match on retry": {
			in:       []string{"secret\n", "other\n", "secret\n", "secret\n"},
			n:        3,
			expected: "secret",
		},
		"no match": {
			in:  []string{"secret\n", "other\n"},
			n:   1,
			err: ErrPassphrasesDoNotMatch,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			io := fakeui.NewIO()
			io.PromptIn.Reads = tc.in

			actual, err := AskPassphrase(io, "Passphrase: ", "Repeat: ", tc.n)

			assert.Equal(t, err, tc.err)
			assert.Equal(t, actual, tc.expected)
		})
	}
}
