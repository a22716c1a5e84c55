package config

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"github.com/Norgate-AV/xsys/internal/utils"
)

// ProjectConfig holds the keys xsys reads from the cargo configuration file.
// Every other key in the file is ignored.
type ProjectConfig struct {
	// Path of the file the values came from, empty when no file was found
	Path string

	// build.target
	Target    string
	HasTarget bool

	// build.rustflags
	Flags    []string
	HasFlags bool
}

// LoadProject reads the nearest cargo configuration file above dir.
// A missing file is not an error and yields an empty ProjectConfig.
func LoadProject(dir string) (*ProjectConfig, error) {
	path := FindProjectConfig(dir)
	if path == "" {
		return &ProjectConfig{}, nil
	}

	return ReadProject(path)
}

// ReadProject parses the cargo configuration file at path
func ReadProject(path string) (*ProjectConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, eris.Wrapf(ErrMalformedConfig, "%s: %v", path, err)
	}

	pc := &ProjectConfig{Path: path}

	if v.IsSet("build.target") {
		target, ok := v.Get("build.target").(string)
		if !ok {
			return nil, eris.Wrapf(ErrMalformedConfig, "%s: build.target must be a string", path)
		}

		pc.Target = target
		pc.HasTarget = true
	}

	if v.IsSet("build.rustflags") {
		flags, err := flagList(v.Get("build.rustflags"))
		if err != nil {
			return nil, eris.Wrapf(ErrMalformedConfig, "%s: build.rustflags %v", path, err)
		}

		pc.Flags = flags
		pc.HasFlags = true
	}

	return pc, nil
}

// flagList accepts the two forms cargo accepts: a list of strings or one space separated string
func flagList(value interface{}) ([]string, error) {
	switch val := value.(type) {
	case string:
		return utils.SplitFlags(val), nil
	case []string:
		return append([]string{}, val...), nil
	case []interface{}:
		flags := make([]string, 0, len(val))

		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("entry %d is not a string", i)
			}

			flags = append(flags, s)
		}

		return flags, nil
	default:
		return nil, fmt.Errorf("must be a string or a list of strings")
	}
}
