package build

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kcmvp/restx"
	"github.com/kcmvp/restx/app"
	"github.com/kcmvp/restx/param"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
)

var (
	ErrNoResource = errors.New("a resource template is required")
	ErrBadJSON    = errors.New("invalid parameter file")
)

// jsonSections are the top level keys of a --json file, in the order they are read.
var jsonSections = []lo.Tuple2[string, param.Kind]{
	lo.T2("segments", param.PathSegment),
	lo.T2("query", param.QueryString),
	lo.T2("params", param.GetOrPost),
}

type flags struct {
	endpoint string
	encoding string
	schemes  []string
	segments []string
	query    []string
	params   []string
	defaults []string
	jsonFile string
	config   string
	key      string
	noQuery  bool
	verbose  bool
}

// BuildCmd prints the URI a restx client would request.
var BuildCmd = newBuildCmd()

func newBuildCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "build [resource]",
		Short: "Compose the absolute URI of a resource, e.g. `urix build -e https://api.example.com users/{id} -s id=42`.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args)
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&f.endpoint, "endpoint", "e", "", "base endpoint relative resources are resolved against")
	fs.StringVar(&f.encoding, "encoding", "", "IANA charset applied before percent-encoding (default UTF-8)")
	fs.StringSliceVar(&f.schemes, "schemes", nil, "schemes recognized as absolute")
	fs.StringArrayVarP(&f.segments, "segment", "s", nil, "path segment parameter name=value")
	fs.StringArrayVarP(&f.query, "query", "q", nil, "query parameter name=value, repeatable")
	fs.StringArrayVarP(&f.params, "param", "p", nil, "get-or-post parameter name=value, repeatable")
	fs.StringArrayVarP(&f.defaults, "default", "d", nil, "default query parameter name=value")
	fs.StringVar(&f.jsonFile, "json", "", "JSON file with resource, segments, query and params")
	fs.StringVarP(&f.config, "config", "c", "", "YAML file holding client sections")
	fs.StringVarP(&f.key, "key", "k", "", "client section to read from the configuration")
	fs.BoolVar(&f.noQuery, "no-query", false, "do not append query parameters")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log composition details")
	return cmd
}

func run(cmd *cobra.Command, f *flags, args []string) error {
	doc := gjson.Result{}
	if f.jsonFile != "" {
		data, err := os.ReadFile(f.jsonFile)
		if err != nil {
			return err
		}
		if !gjson.ValidBytes(data) {
			return fmt.Errorf("%w: %s", ErrBadJSON, f.jsonFile)
		}
		doc = gjson.ParseBytes(data)
	}
	resource := lo.FirstOr(args, doc.Get("resource").String())
	if strings.TrimSpace(resource) == "" {
		return ErrNoResource
	}
	client, err := newClient(cmd, f)
	if err != nil {
		return err
	}
	req := restx.NewRequest(resource)
	for _, section := range jsonSections {
		for _, p := range fromJSON(doc.Get(section.A), section.B) {
			req.Add(p)
		}
	}
	addPairs(req, param.PathSegment, f.segments)
	addPairs(req, param.QueryString, f.query)
	addPairs(req, param.GetOrPost, f.params)

	result := client.BuildURI
	if f.noQuery {
		result = client.BuildURIWithoutQuery
	}
	uri, err := result(req).Get()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
	return err
}

func newClient(cmd *cobra.Command, f *flags) (*restx.Client, error) {
	level := lo.Ternary(f.verbose, slog.LevelDebug, slog.LevelWarn)
	opts := []restx.Option{
		restx.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))),
	}
	if f.endpoint != "" {
		opts = append(opts, restx.WithEndpoint(f.endpoint))
	}
	if f.encoding != "" {
		opts = append(opts, restx.WithEncoding(f.encoding))
	}
	if len(f.schemes) > 0 {
		opts = append(opts, restx.WithSchemes(f.schemes...))
	}
	opts = append(opts, restx.WithDefaults(lo.Map(f.defaults, func(pair string, _ int) param.Parameter {
		return pairOf(param.QueryString, pair)
	})...))
	switch {
	case f.config != "":
		v, err := app.File(f.config)
		if err != nil {
			return nil, err
		}
		return restx.FromConfig(v, lo.Ternary(f.key == "", restx.DefaultConfigKey, f.key), opts...)
	case f.key != "":
		return restx.Configured(f.key, opts...).Get()
	default:
		return restx.NewClient(opts...)
	}
}

// pairOf parses name=value. A pair without '=' has no value.
func pairOf(kind param.Kind, pair string) param.Parameter {
	name, value, found := strings.Cut(pair, "=")
	if !found {
		return param.Absent(kind, name)
	}
	return param.New(kind, name, value)
}

func addPairs(req *restx.Request, kind param.Kind, pairs []string) {
	for _, pair := range pairs {
		req.Add(pairOf(kind, pair))
	}
}

// fromJSON reads an object of name to value. An array value gives one parameter
// per element, null gives a parameter without value.
func fromJSON(section gjson.Result, kind param.Kind) []param.Parameter {
	var ps []param.Parameter
	section.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch {
		case value.IsArray():
			for _, item := range value.Array() {
				ps = append(ps, param.New(kind, name, item.String()))
			}
		case value.Type == gjson.Null:
			ps = append(ps, param.Absent(kind, name))
		default:
			ps = append(ps, param.New(kind, name, value.String()))
		}
		return true
	})
	return ps
}
