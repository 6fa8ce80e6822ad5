// Package configuration reads and writes versioned configuration files.
package configuration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/secrethub/secrethub-go/internals/errio"
	yaml "gopkg.in/yaml.v2"
)

var (
	errConfig = errio.Namespace("configuration")

	// ErrDecodeFailed is given when the config cannot be decoded.
	ErrDecodeFailed = errConfig.Code("decode_fail").Error("failed to decode config")
	// ErrEncodeFailed is given when the config cannot be encoded.
	ErrEncodeFailed = errConfig.Code("encode_fail").Error("failed to encode config")
	// ErrFileNotFound is given when the config file cannot be found.
	ErrFileNotFound = errConfig.Code("not_found").Error("config file not found")
)

// ReadMapFromFile reads the file at path as a ConfigMap, so that it can be
// migrated before it is parsed with ParseMap.
func ReadMapFromFile(path string) (ConfigMap, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ReadMap(data)
}

// ReadMap attempts to unmarshal a []byte it into the dest map.
// Both json and yaml are supported
func ReadMap(data []byte) (ConfigMap, error) {
	var dest ConfigMap

	// Supports both json and yaml
	if err := yaml.Unmarshal(data, &dest); err != nil {
		return nil, ErrDecodeFailed
	}
	if dest == nil {
		dest = ConfigMap{}
	}

	return dest, nil
}

// ParseMap uses mapstructure to convert a ConfigMap into a struct
//
// For example, the following YAML:
//
//	ssh_agent_enabled: true
//
// Can be loaded in a struct of type:
//
//	type Settings struct {
//	    SSHAgentEnabled bool `yaml:"ssh_agent_enabled"`
//	}
//
// decodeHook is used to convert non-standard types into the correct format
func ParseMap(src ConfigMap, dst interface{}) error {
	c := mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           dst,
		WeaklyTypedInput: true,
		DecodeHook:       decodeHook,
	}
	decoder, err := mapstructure.NewDecoder(&c)
	if err != nil {
		return errio.Error(err)
	}

	return decoder.Decode(map[string]interface{}(src))
}

// decodeHook adds extra decoding functionality to parsing the map.
func decodeHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if t == reflect.TypeOf(time.Duration(0)) && f == reflect.TypeOf("") {
		return time.ParseDuration(data.(string))
	}

	return data, nil
}

// WriteToFile attempts to marshal the src arg and write to a file at the given path.
// Files ending in .json are written as indented json, everything else as yaml.
// The file is written next to its destination first and then moved in place.
func WriteToFile(src interface{}, path string, fileMode os.FileMode) error {
	var data []byte
	var err error
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		data, err = json.MarshalIndent(src, "", "  ")
	} else {
		data, err = yaml.Marshal(src)
	}
	if err != nil {
		return ErrEncodeFailed
	}
	if len(data) > 0 && data[len(data)-1] != '\n' {
		data = append(data, '\n')
	}

	err = os.MkdirAll(filepath.Dir(path), 0700)
	if err != nil {
		return errio.Error(err)
	}

	tmp := path + ".tmp"
	err = os.WriteFile(tmp, data, fileMode)
	if err != nil {
		return errio.Error(err)
	}
	return os.Rename(tmp, path)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrFileNotFound
	}
	return data, err
}

// ConfigMap is the type used for configurations that are still in a map format
// Map format is to make changes in structure with migrations possible
type ConfigMap map[string]interface{}

// GetVersion returns the version of the configuration file.
// If it is not set, it is assumed that is configuration version 1.
func (c ConfigMap) GetVersion() (int, error) {
	version, ok := c["version"]
	if !ok {
		// Version not set
		return 1, nil
	}

	ret, ok := version.(int)
	if !ok {
		return 0, errConfig.Code("version_wrong_type").Errorf("config value `version` has wrong type %T (actual) != int (expected)", version)
	}

	return ret, nil
}
