package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tidwall/jsonc"

	"github.com/shinji-kodama/dllbundle/internal/model"
)

// EnvPrefix is the prefix of environment variables that override file
// settings, e.g. DLLBUNDLE_BIN_NAME.
const EnvPrefix = "DLLBUNDLE"

// DefaultFiles are the config file names searched for, in order, when no
// explicit path is given.
var DefaultFiles = []string{
	"dllbundle.yaml",
	"dllbundle.yml",
	"dllbundle.jsonc",
	"dllbundle.json",
}

// flagKeys maps command-line flags whose name differs from their config key.
// Other flags bind to the key spelled like them with '-' replaced by '_'.
var flagKeys = map[string]string{
	"extra-library": "extra_libraries",
}

// Loader builds a Config from defaults, a config file, the environment and
// command-line flags, in increasing order of precedence.
type Loader struct {
	fs afero.Fs

	// Dir is where default config files are searched for. Empty means the
	// working directory.
	Dir string
}

// NewLoader creates a Loader reading from the real filesystem.
func NewLoader() *Loader {
	return &Loader{fs: afero.NewOsFs()}
}

// NewLoaderWithFS creates a Loader reading config files from fs.
func NewLoaderWithFS(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// Load returns the configuration and the path of the file it read, which is
// empty when none was found. Flags from flags that were set on the command
// line win over everything else; flags may be nil.
//
// An explicit path that cannot be read is an error; a missing default file
// is not. The result is not validated.
func (l *Loader) Load(explicitPath string, flags *pflag.FlagSet) (*Config, string, error) {
	defaults := make(map[string]any)
	if err := mapstructure.Decode(Default(), &defaults); err != nil {
		return nil, "", fmt.Errorf("failed to encode defaults: %w", err)
	}
	v := newViper(l.fs, defaults)

	path, data, err := l.readFile(explicitPath)
	if err != nil {
		return nil, "", err
	}
	if data != nil {
		if err := readInto(v, path, data); err != nil {
			return nil, "", model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("failed to parse config file %s", path), err)
		}
	}

	if err := bindFlags(v, flags, defaults); err != nil {
		return nil, "", model.WrapCLIError(model.ExitConfigError, "cannot bind flags", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.ErrorUnused = true
	}); err != nil {
		source := "the " + EnvPrefix + "_* environment"
		if path != "" {
			source = path + " or " + source
		}
		return nil, "", model.WrapCLIError(model.ExitConfigError, "invalid configuration in "+source, err)
	}

	return cfg, path, nil
}

// newViper returns a viper instance seeded with defaults and reading
// DLLBUNDLE_* variables. Set-but-empty variables count, so
// DLLBUNDLE_HELPER= disables the helper.
func newViper(fs afero.Fs, defaults map[string]any) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()
	return v
}

// readFile returns the path and content of the config file to use, or a nil
// content when there is none.
func (l *Loader) readFile(explicitPath string) (string, []byte, error) {
	if explicitPath != "" {
		data, err := afero.ReadFile(l.fs, explicitPath)
		if err != nil {
			return "", nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("cannot read config file %s", explicitPath), err)
		}
		return explicitPath, data, nil
	}

	for _, name := range DefaultFiles {
		path := filepath.Join(l.Dir, name)
		data, err := afero.ReadFile(l.fs, path)
		if err == nil {
			return path, data, nil
		}
		if !os.IsNotExist(err) {
			return "", nil, model.WrapCLIError(model.ExitConfigError,
				fmt.Sprintf("cannot read config file %s", path), err)
		}
	}
	return "", nil, nil
}

// readInto loads file content into v. JSON files may carry comments and
// trailing commas; anything that is not .json or .jsonc is YAML.
func readInto(v *viper.Viper, path string, data []byte) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		v.SetConfigType("json")
		data = jsonc.ToJSON(data)
	default:
		v.SetConfigType("yaml")
	}
	return v.ReadConfig(bytes.NewReader(data))
}

// bindFlags binds every flag in flags that names a config key. Viper only
// takes a bound flag's value when it was set on the command line.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]any) error {
	if flags == nil {
		return nil
	}

	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key, ok := flagKeys[f.Name]
		if !ok {
			key = strings.ReplaceAll(f.Name, "-", "_")
		}
		if _, known := keys[key]; !known {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}
