// Package restx composes absolute request URIs from an optional base endpoint, a
// resource template with `{name}` placeholders and typed parameters, and sends
// the resulting requests through a pluggable transport.
package restx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/kcmvp/restx/encoder"
	"github.com/kcmvp/restx/param"
	"github.com/kcmvp/restx/tmpl"
	"github.com/kcmvp/restx/transport"
	"github.com/kcmvp/restx/validator"
	"github.com/samber/lo"
	"github.com/samber/mo"
)

// Authenticator decorates an outgoing request, e.g. with a token. It may rewrite
// the request URL.
type Authenticator interface {
	Authenticate(ctx context.Context, req *http.Request) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, req *http.Request) error

func (f AuthenticatorFunc) Authenticate(ctx context.Context, req *http.Request) error {
	return f(ctx, req)
}

// BearerToken sets the Authorization header.
func BearerToken(token string) Authenticator {
	return AuthenticatorFunc(func(_ context.Context, req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

type settings struct {
	endpoint string
	encoding string
	schemes  []string
	defaults []param.Parameter
	logger   *slog.Logger
	doer     transport.Doer
	auth     Authenticator
	redact   []string
}

// Option configures a Client. Options are applied in order and validated together
// by NewClient.
type Option func(*settings)

// WithEndpoint sets the absolute base URI that relative resources are resolved against.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) {
		s.endpoint = endpoint
	}
}

// WithEncoding sets the IANA charset used before percent-encoding. Default UTF-8.
func WithEncoding(name string) Option {
	return func(s *settings) {
		s.encoding = name
	}
}

// WithSchemes replaces the schemes recognized as absolute.
func WithSchemes(schemes ...string) Option {
	return func(s *settings) {
		s.schemes = schemes
	}
}

// WithDefaults adds client level parameters that apply to every request.
func WithDefaults(params ...param.Parameter) Option {
	return func(s *settings) {
		s.defaults = append(s.defaults, params...)
	}
}

// WithLogger sets the logger for composition and exchange logs. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithDoer sets the transport used by Execute. Default transport.Default().
func WithDoer(doer transport.Doer) Option {
	return func(s *settings) {
		s.doer = doer
	}
}

// WithAuthenticator sets the hook Execute runs on every request before dispatch.
func WithAuthenticator(auth Authenticator) Option {
	return func(s *settings) {
		s.auth = auth
	}
}

// WithRedaction sets the query parameter name patterns hidden in log lines, both
// the composed URI and the request/response exchange of Execute. Default
// transport.DefaultRedactPatterns.
func WithRedaction(patterns ...string) Option {
	return func(s *settings) {
		s.redact = patterns
	}
}

// Client composes and sends requests. Its configuration is fixed at construction
// except for the default parameters, which are an immutable snapshot replaced
// atomically by AddDefaultParameter. A Client is safe for concurrent use.
type Client struct {
	endpoint mo.Option[*url.URL]
	base     string
	enc      *encoder.Encoder
	schemes  validator.Schemes
	defaults atomic.Pointer[param.Collection]
	logger   *slog.Logger
	doer     transport.Doer
	auth     Authenticator
	redact   []string
}

// NewClient validates the options and returns a ready client. Every failure is an
// ErrConfiguration.
func NewClient(opts ...Option) (*Client, error) {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	c := &Client{
		endpoint: mo.None[*url.URL](),
		schemes:  lo.Ternary(len(s.schemes) > 0, validator.NewSchemes(s.schemes...), validator.DefaultSchemes),
		logger:   s.logger,
		doer:     s.doer,
		auth:     s.auth,
		redact:   s.redact,
	}
	if len(c.schemes) == 0 {
		return nil, fmt.Errorf("%w: no usable scheme in %v", ErrConfiguration, s.schemes)
	}
	enc, err := encoder.New(s.encoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	c.enc = enc
	if strings.TrimSpace(s.endpoint) != "" {
		u, err := validator.Endpoint(s.endpoint, c.schemes)
		if err != nil {
			return nil, err
		}
		c.endpoint = mo.Some(u)
		c.base = strings.TrimSpace(s.endpoint)
	}
	defaults := param.Defaults()
	for _, p := range s.defaults {
		if err := defaults.Add(p); err != nil {
			return nil, err
		}
	}
	c.defaults.Store(defaults)
	if c.doer == nil {
		c.doer = transport.Default()
	}
	c.doer = transport.WithLogging(c.doer, c.logger, c.redact...)
	return c, nil
}

// Endpoint returns the configured base URI.
func (c *Client) Endpoint() mo.Option[*url.URL] {
	return c.endpoint
}

// Encoding returns the canonical name of the configured charset.
func (c *Client) Encoding() string {
	return c.enc.Name()
}

// AddDefaultParameter adds a client level parameter. Builds already running keep
// the snapshot they started with.
func (c *Client) AddDefaultParameter(p param.Parameter) error {
	for {
		current := c.defaults.Load()
		next := current.Clone()
		if err := next.Add(p); err != nil {
			return err
		}
		if c.defaults.CompareAndSwap(current, next) {
			return nil
		}
	}
}

// RemoveDefaultParameter removes every default parameter with the given name and kind.
func (c *Client) RemoveDefaultParameter(name string, kind param.Kind) int {
	for {
		current := c.defaults.Load()
		next := current.Clone()
		n := next.Remove(name, kind)
		if n == 0 || c.defaults.CompareAndSwap(current, next) {
			return n
		}
	}
}

// DefaultParameters returns the current default parameters in insertion order.
func (c *Client) DefaultParameters() []param.Parameter {
	return c.defaults.Load().All()
}

// BuildURI returns the absolute URI of req with every query parameter appended.
func (c *Client) BuildURI(req *Request) mo.Result[string] {
	return c.build(req, true)
}

// BuildURIWithoutQuery is BuildURI without appending query parameters. A literal
// query written in the resource template is kept.
func (c *Client) BuildURIWithoutQuery(req *Request) mo.Result[string] {
	return c.build(req, false)
}

func (c *Client) build(req *Request, withQuery bool) mo.Result[string] {
	if req == nil {
		return mo.Err[string](fmt.Errorf("%w: nil request", ErrConfiguration))
	}
	if err := req.Err(); err != nil {
		return mo.Err[string](err)
	}
	if err := validator.Resource(c.endpoint, req.resource, c.schemes); err != nil {
		return mo.Err[string](err)
	}
	defaults := c.defaults.Load()
	resolution := tmpl.Parse(req.resource).Resolve(param.SegmentLookup(req.params, defaults), c.enc)
	if len(resolution.Unresolved) > 0 {
		c.log().Warn("unresolved placeholders left in uri",
			slog.String("resource", req.resource),
			slog.Any("placeholders", resolution.Unresolved))
	}
	uri := mergeURI(c.base, resolution.Path, c.schemes)
	if withQuery {
		uri = composeQuery(uri, param.MergeQuery(req.params, defaults), c.enc)
	}
	c.log().Debug("uri composed",
		slog.String("method", req.method),
		slog.String("uri", transport.Redact(uri, c.redact...)))
	return mo.Ok(uri)
}

// Execute builds req and sends it. Header and cookie parameters are merged with the
// defaults, request values first. The authenticator runs last, before dispatch.
func (c *Client) Execute(ctx context.Context, req *Request) (*http.Response, error) {
	uri, err := c.BuildURI(req).Get()
	if err != nil {
		return nil, err
	}
	body, contentType := req.body()
	hreq, err := http.NewRequestWithContext(ctx, req.method, uri, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	defaults := c.defaults.Load()
	for _, h := range param.Merge(req.params, defaults, param.Header) {
		hreq.Header.Add(h.Name, h.Text())
	}
	if contentType != "" && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	for _, ck := range param.Merge(req.params, defaults, param.Cookie) {
		hreq.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Text()})
	}
	if c.auth != nil {
		if err := c.auth.Authenticate(ctx, hreq); err != nil {
			return nil, fmt.Errorf("authenticate %s %s: %w", req.method, transport.Redact(uri, c.redact...), err)
		}
	}
	return c.doer.Do(hreq)
}

func (c *Client) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
