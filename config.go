package restx

import (
	"fmt"

	"github.com/kcmvp/restx/app"
	"github.com/kcmvp/restx/param"
	"github.com/samber/mo"
	"github.com/spf13/viper"
)

// DefaultConfigKey is the configuration key Configured reads when given none.
const DefaultConfigKey = "client"

type clientConfig struct {
	Endpoint string          `mapstructure:"endpoint"`
	Encoding string          `mapstructure:"encoding"`
	Schemes  []string        `mapstructure:"schemes"`
	Redact   []string        `mapstructure:"redact"`
	Defaults []defaultConfig `mapstructure:"defaults"`
}

type defaultConfig struct {
	Name   string  `mapstructure:"name"`
	Value  *string `mapstructure:"value"`
	Kind   string  `mapstructure:"kind"`
	Multi  bool    `mapstructure:"multi"`
	Encode *bool   `mapstructure:"encode"`
}

func (d defaultConfig) parameter() (param.Parameter, error) {
	kind, err := param.ParseKind(d.Kind)
	if err != nil {
		return param.Parameter{}, fmt.Errorf("default parameter '%s': %w", d.Name, err)
	}
	p := param.Absent(kind, d.Name)
	if d.Value != nil {
		p = param.New(kind, d.Name, *d.Value)
	}
	p.Multi = d.Multi
	if d.Encode != nil {
		p.Encode = *d.Encode
	}
	return p, nil
}

// FromConfig builds a client from the section of v under key. Options passed in
// are applied after the configured ones.
//
//	client:
//	  endpoint: https://api.example.com/v1
//	  encoding: utf-8
//	  defaults:
//	    - name: key
//	      value: v1
//	      kind: query
func FromConfig(v *viper.Viper, key string, opts ...Option) (*Client, error) {
	if v == nil || !v.IsSet(key) {
		return nil, fmt.Errorf("%w: no client configuration under '%s'", ErrConfiguration, key)
	}
	var cfg clientConfig
	if err := v.UnmarshalKey(key, &cfg); err != nil {
		return nil, fmt.Errorf("%w: read '%s': %w", ErrConfiguration, key, err)
	}
	configured := []Option{
		WithEndpoint(cfg.Endpoint),
		WithEncoding(cfg.Encoding),
	}
	if len(cfg.Schemes) > 0 {
		configured = append(configured, WithSchemes(cfg.Schemes...))
	}
	if len(cfg.Redact) > 0 {
		configured = append(configured, WithRedaction(cfg.Redact...))
	}
	for _, d := range cfg.Defaults {
		p, err := d.parameter()
		if err != nil {
			return nil, err
		}
		configured = append(configured, WithDefaults(p))
	}
	return NewClient(append(configured, opts...)...)
}

// Configured builds a client from the application configuration file, see app.Config.
func Configured(key string, opts ...Option) mo.Result[*Client] {
	if key == "" {
		key = DefaultConfigKey
	}
	v, err := app.Config().Get()
	if err != nil {
		return mo.Err[*Client](fmt.Errorf("%w: %w", ErrConfiguration, err))
	}
	return mo.TupleToResult(FromConfig(v, key, opts...))
}
