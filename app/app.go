package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

const (
	cfgName     = "application"
	testCfgName = "application_test"
	// EnvPrefix prefixes environment overrides: RESTX_CLIENT_ENDPOINT overrides client.endpoint.
	EnvPrefix = "RESTX"
)

var (
	cfg  *viper.Viper
	once sync.Once

	ErrNoConfig = errors.New("can not find application.yml")
)

// Config loads the application configuration once.
//
// Under `go test` application_test.yml is read, otherwise application.yml. Both are
// searched in the project root (the nearest directory holding go.mod), the working
// directory, and the config directory of each.
func Config() mo.Result[*viper.Viper] {
	once.Do(func() {
		cfg, _ = Load(isTestProcess())
	})
	return lo.If(cfg == nil, mo.Err[*viper.Viper](ErrNoConfig)).Else(mo.Ok(cfg))
}

// Load reads a fresh configuration without touching the one cached by Config.
func Load(test bool) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, dir := range searchPaths() {
		v.AddConfigPath(dir)
	}
	name := lo.Ternary(test, testCfgName, cfgName)
	v.SetConfigName(name)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrNoConfig, name)
		}
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return v, nil
}

// File reads the configuration at path, e.g. from a --config flag.
func File(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return v, nil
}

// searchPaths lists the project root and the working directory, each followed by
// its config subdirectory.
func searchPaths() []string {
	cwd, err := os.Getwd()
	if err != nil {
		return []string{".", "./config"}
	}
	var dirs []string
	if root, ok := findProjectRoot(cwd); ok {
		dirs = append(dirs, root, filepath.Join(root, "config"))
	}
	return lo.Uniq(append(dirs, cwd, filepath.Join(cwd, "config")))
}

// findProjectRoot walks upward from start until it finds a directory containing a go.mod.
func findProjectRoot(start string) (string, bool) {
	dir := start
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// isTestProcess detects whether we are running under `go test`.
func isTestProcess() bool {
	for _, a := range os.Args {
		if strings.HasPrefix(a, "-test.") {
			return true
		}
	}
	const maxFrames = 256
	pcs := make([]uintptr, maxFrames)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if strings.HasSuffix(f.File, "_test.go") {
			return true
		}
		if !more {
			break
		}
	}
	return false
}
