package configuration

import (
	"path/filepath"
	"testing"
	"time"

	"gotest.tools/assert"
)

type testConfig struct {
	Name    string        `yaml:"name"`
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

func TestParseMap(t *testing.T) {
	m, err := ReadMap([]byte("name: personal\nenabled: \"true\"\ntimeout: 15m\n"))
	assert.NilError(t, err)

	var actual testConfig
	err = ParseMap(m, &actual)

	assert.NilError(t, err)
	assert.DeepEqual(t, actual, testConfig{Name: "personal", Enabled: true, Timeout: 15 * time.Minute})
}

func TestReadMap_Empty(t *testing.T) {
	m, err := ReadMap(nil)

	assert.NilError(t, err)
	assert.Equal(t, len(m), 0)
}

func TestReadMap_Invalid(t *testing.T) {
	_, err := ReadMap([]byte("{{{"))

	assert.Equal(t, err, ErrDecodeFailed)
}

func TestGetVersion(t *testing.T) {
	cases := map[string]struct {
		m        ConfigMap
		expected int
		err      bool
	}{
		"not set": {
			m:        ConfigMap{},
			expected: 1,
		},
		"set": {
			m:        ConfigMap{"version": 2},
			expected: 2,
		},
		"wrong type": {
			m:   ConfigMap{"version": "two"},
			err: true,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			actual, err := tc.m.GetVersion()

			assert.Equal(t, err != nil, tc.err)
			assert.Equal(t, actual, tc.expected)
		})
	}
}

func TestWriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yml")
	src := testConfig{Name: "work", Enabled: true}

	err := WriteToFile(src, path, 0600)
	assert.NilError(t, err)

	m, err := ReadMapFromFile(path)
	assert.NilError(t, err)
	var actual testConfig
	err = ParseMap(m, &actual)
	assert.NilError(t, err)
	assert.DeepEqual(t, actual, src)
}

func TestReadMapFromFile_NotFound(t *testing.T) {
	_, err := ReadMapFromFile(filepath.Join(t.TempDir(), "missing.yml"))

	assert.Equal(t, err, ErrFileNotFound)
}
