package restx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kcmvp/restx/constraint"
	"github.com/kcmvp/restx/encoder"
	"github.com/kcmvp/restx/param"
	"github.com/kcmvp/restx/transport"
	"github.com/kcmvp/restx/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const endpoint = "https://api.example.com/v1"

func newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr error
	}{
		{name: "no endpoint", opts: nil},
		{name: "endpoint", opts: []Option{WithEndpoint(endpoint)}},
		{name: "file endpoint", opts: []Option{WithEndpoint("file:///var/data")}},
		{name: "relative endpoint", opts: []Option{WithEndpoint("api/v1")}, wantErr: validator.ErrInvalidEndpoint},
		{name: "endpoint with query", opts: []Option{WithEndpoint(endpoint + "?key=1")}, wantErr: validator.ErrInvalidEndpoint},
		{name: "endpoint with fragment", opts: []Option{WithEndpoint(endpoint + "#x")}, wantErr: validator.ErrInvalidEndpoint},
		{name: "endpoint with empty fragment", opts: []Option{WithEndpoint(endpoint + "#")}, wantErr: validator.ErrInvalidEndpoint},
		{name: "endpoint with empty query", opts: []Option{WithEndpoint(endpoint + "?")}, wantErr: validator.ErrInvalidEndpoint},
		{name: "endpoint without host", opts: []Option{WithEndpoint("https:///v1")}, wantErr: validator.ErrInvalidEndpoint},
		{name: "scheme not recognized", opts: []Option{WithEndpoint(endpoint), WithSchemes("http")}, wantErr: validator.ErrInvalidEndpoint},
		{name: "schemes applied before endpoint check", opts: []Option{WithSchemes("gopher"), WithEndpoint("gopher://hole")}},
		{name: "blank schemes", opts: []Option{WithSchemes(" ", "")}, wantErr: ErrConfiguration},
		{name: "encoding", opts: []Option{WithEncoding("ISO-8859-1")}},
		{name: "unsupported encoding", opts: []Option{WithEncoding("klingon")}, wantErr: encoder.ErrUnsupportedEncoding},
		{name: "body default", opts: []Option{WithDefaults(param.Body("{}", "application/json"))}, wantErr: param.ErrBodyDefault},
		{name: "duplicate default", opts: []Option{WithDefaults(param.Query("key", "1"), param.Query("key", "2"))}, wantErr: param.ErrDuplicate},
		{name: "multi default", opts: []Option{WithDefaults(param.Query("tag", "1").Multiple(), param.Query("tag", "2").Multiple())}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.opts...)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorIs(t, err, ErrConfiguration)
				require.Nil(t, c)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, c)
		})
	}
}

func TestBuildURI_Scenarios(t *testing.T) {
	withEndpoint := newClient(t, WithEndpoint(endpoint))
	bare := newClient(t)
	keyed := newClient(t, WithEndpoint(endpoint), WithDefaults(param.Query("key", "v1")))

	tests := []struct {
		name    string
		client  *Client
		req     *Request
		want    string
		wantErr error
	}{
		{
			name:   "path segment",
			client: withEndpoint,
			req:    NewRequest("users/{id}").AddURLSegment("id", "42"),
			want:   endpoint + "/users/42",
		},
		{
			name:   "query string",
			client: withEndpoint,
			req:    NewRequest("search").AddQueryParameter("q", "a b").AddQueryParameter("page", "2"),
			want:   endpoint + "/search?q=a%20b&page=2",
		},
		{
			name:   "recognized absolute resource without endpoint",
			client: bare,
			req:    NewRequest("ftp://host/res"),
			want:   "ftp://host/res",
		},
		{
			name:    "unrecognized scheme without endpoint",
			client:  bare,
			req:     NewRequest("gopher://x"),
			wantErr: validator.ErrNotAbsolute,
		},
		{
			name:    "relative resource without endpoint",
			client:  bare,
			req:     NewRequest("users/1"),
			wantErr: validator.ErrNotAbsolute,
		},
		{
			name:   "request value overrides single valued default",
			client: keyed,
			req:    NewRequest("items").AddQueryParameter("key", "v2"),
			want:   endpoint + "/items?key=v2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := tt.client.BuildURI(tt.req).Get()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.ErrorIs(t, err, ErrConfiguration)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, uri)
		})
	}
}

func TestBuildURI_AbsolutePassThrough(t *testing.T) {
	resources := []string{
		"https://other.example.com/a/b?x=1#frag",
		"HTTP://UPPER.example.com/",
		"ws://socket.example.com:9000/feed",
		"file:///etc/hosts",
	}
	for _, c := range []*Client{newClient(t), newClient(t, WithEndpoint(endpoint))} {
		for _, r := range resources {
			require.Equal(t, r, c.BuildURI(NewRequest(r)).MustGet())
		}
	}
	// With an endpoint, any scheme followed by an authority passes through.
	c := newClient(t, WithEndpoint(endpoint))
	for _, r := range []string{"gopher://x/res", "custom+api://h/p"} {
		require.Equal(t, r, c.BuildURI(NewRequest(r)).MustGet())
	}
	// Without one, the scheme still has to be recognized.
	_, err := newClient(t).BuildURI(NewRequest("custom+api://h/p")).Get()
	require.ErrorIs(t, err, validator.ErrNotAbsolute)
}

func TestBuildURI_SingleSlash(t *testing.T) {
	bases := []string{"https://h/api", "https://h/api/", "https://h/api//"}
	resources := []string{"users", "/users", "//users"}
	for _, b := range bases {
		c := newClient(t, WithEndpoint(b))
		for _, r := range resources {
			t.Run(b+"+"+r, func(t *testing.T) {
				require.Equal(t, "https://h/api/users", c.BuildURI(NewRequest(r)).MustGet())
			})
		}
	}
}

func TestBuildURI_Segments(t *testing.T) {
	c := newClient(t, WithEndpoint(endpoint), WithDefaults(
		param.Segment("tenant", "acme"),
		param.Segment("id", "0"),
	))
	tests := []struct {
		name string
		req  *Request
		want string
	}{
		{
			name: "default fills the gap",
			req:  NewRequest("{tenant}/users/{id}").AddURLSegment("id", "7"),
			want: endpoint + "/acme/users/7",
		},
		{
			name: "request wins over default",
			req:  NewRequest("{tenant}/users").AddURLSegment("tenant", "globex"),
			want: endpoint + "/globex/users",
		},
		{
			name: "unused segment is not a query parameter",
			req:  NewRequest("users").AddURLSegment("unused", "x"),
			want: endpoint + "/users",
		},
		{
			name: "value is path escaped",
			req:  NewRequest("files/{name}").AddURLSegment("name", "a b/c?.txt"),
			want: endpoint + "/files/a%20b%2Fc%3F.txt",
		},
		{
			name: "raw value",
			req:  NewRequest("files/{path}").Add(param.Segment("path", "a/b").Raw()),
			want: endpoint + "/files/a/b",
		},
		{
			name: "placeholder in literal query",
			req:  NewRequest("search?q={term}").AddURLSegment("term", "a&b"),
			want: endpoint + "/search?q=a%26b",
		},
		{
			name: "unresolved placeholder passes through",
			req:  NewRequest("users/{missing}"),
			want: endpoint + "/users/{missing}",
		},
		{
			name: "braces that are not placeholders",
			req:  NewRequest("json/{}/{open"),
			want: endpoint + "/json/{}/{open",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.BuildURI(tt.req).MustGet())
		})
	}
}

func TestBuildURI_Query(t *testing.T) {
	c := newClient(t, WithEndpoint(endpoint), WithDefaults(
		param.Query("key", "k1"),
		param.Query("scope", "read").Multiple(),
		param.GetPost("lang", "en"),
	))
	tests := []struct {
		name string
		req  *Request
		want string
	}{
		{
			name: "defaults only",
			req:  NewRequest("items"),
			want: endpoint + "/items?key=k1&scope=read&lang=en",
		},
		{
			name: "request entries first in insertion order",
			req: NewRequest("items").
				AddQueryParameter("b", "2").
				AddParameter("a", "1").
				AddQueryParameter("b", "3"),
			want: endpoint + "/items?b=2&a=1&b=3&key=k1&scope=read&lang=en",
		},
		{
			name: "multi valued default keeps both values",
			req:  NewRequest("items").AddQueryParameter("scope", "write"),
			want: endpoint + "/items?scope=write&key=k1&scope=read&lang=en",
		},
		{
			name: "get or post overrides query default",
			req:  NewRequest("items").AddParameter("key", "k2").AddQueryParameter("lang", "fr"),
			want: endpoint + "/items?key=k2&lang=fr&scope=read",
		},
		{
			name: "literal query first",
			req:  NewRequest("items?sort=desc").AddQueryParameter("q", "x"),
			want: endpoint + "/items?sort=desc&q=x&key=k1&scope=read&lang=en",
		},
		{
			name: "fragment last",
			req:  NewRequest("items#top").AddQueryParameter("key", "z"),
			want: endpoint + "/items?key=z&scope=read&lang=en#top",
		},
		{
			name: "absent value",
			req:  NewRequest("items").Add(param.Absent(param.QueryString, "debug")),
			want: endpoint + "/items?debug=&key=k1&scope=read&lang=en",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, c.BuildURI(tt.req).MustGet())
		})
	}
}

func TestBuildURIWithoutQuery(t *testing.T) {
	c := newClient(t, WithEndpoint(endpoint), WithDefaults(param.Query("key", "k1")))
	req := NewRequest("users/{id}?fields=name").AddURLSegment("id", "9").AddQueryParameter("q", "x")
	require.Equal(t, endpoint+"/users/9?fields=name", c.BuildURIWithoutQuery(req).MustGet())
	require.Equal(t, endpoint+"/users/9?fields=name&q=x&key=k1", c.BuildURI(req).MustGet())

	_, err := newClient(t).BuildURIWithoutQuery(NewRequest("users")).Get()
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestBuildURI_RequestErrors(t *testing.T) {
	c := newClient(t, WithEndpoint(endpoint))
	tests := []struct {
		name    string
		req     *Request
		wantErr error
	}{
		{"nil request", nil, ErrConfiguration},
		{"blank name", NewRequest("x").AddQueryParameter(" ", "1"), validator.ErrInvalidName},
		{"duplicate segment", NewRequest("{id}").AddURLSegment("id", "1").AddURLSegment("id", "2"), param.ErrDuplicate},
		{"second body", NewRequest("x", "POST").AddBody("a", "text/plain").AddBody("b", "text/plain"), param.ErrDuplicate},
		{"constraint", NewRequest("x").AddQueryParameter("limit", "500", constraint.IntBetween(1, 100)), constraint.ErrMustBetween},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.BuildURI(tt.req).Get()
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuildURI_Charset(t *testing.T) {
	c := newClient(t, WithEndpoint(endpoint), WithEncoding("ISO-8859-1"))
	require.Equal(t, "ISO-8859-1", c.Encoding())
	uri := c.BuildURI(NewRequest("cities/{name}").AddURLSegment("name", "Málaga").AddQueryParameter("q", "ñ")).MustGet()
	require.Equal(t, endpoint+"/cities/M%E1laga?q=%F1", uri)
}

func TestBuildURI_RoundTrip(t *testing.T) {
	var printable strings.Builder
	for ch := byte(0x20); ch < 0x7f; ch++ {
		printable.WriteByte(ch)
	}
	values := []string{printable.String(), "héllo wörld", "日本語", "a+b=c&d"}
	c := newClient(t, WithEndpoint(endpoint))
	for _, v := range values {
		uri := c.BuildURI(NewRequest("echo").AddQueryParameter("v", v)).MustGet()
		_, raw, found := strings.Cut(uri, "?v=")
		require.True(t, found)
		got, err := encoder.UTF8.Unescape(raw)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestBuildURI_WarnsOnUnresolved(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	originalLogger := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(originalLogger)

	c := newClient(t, WithEndpoint(endpoint))
	require.Equal(t, endpoint+"/users/{uid}/{uid}", c.BuildURI(NewRequest("users/{uid}/{uid}")).MustGet())
	out := logBuf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "unresolved placeholders")
	assert.Contains(t, out, "uid")

	logBuf.Reset()
	c.BuildURI(NewRequest("users"))
	assert.Empty(t, logBuf.String())
}

func TestBuildURI_DebugIsRedacted(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newClient(t, WithEndpoint(endpoint), WithLogger(logger), WithDefaults(param.Query("api_key", "s3cr3t")))
	c.BuildURI(NewRequest("items"))
	assert.Contains(t, logBuf.String(), "api_key=REDACTED")
	assert.NotContains(t, logBuf.String(), "s3cr3t")
}

func TestDefaultParameters(t *testing.T) {
	c := newClient(t, WithEndpoint(endpoint))
	require.NoError(t, c.AddDefaultParameter(param.Query("key", "v1")))
	require.ErrorIs(t, c.AddDefaultParameter(param.Query("key", "v2")), param.ErrDuplicate)
	require.ErrorIs(t, c.AddDefaultParameter(param.Body("x", "text/plain")), param.ErrBodyDefault)
	require.Len(t, c.DefaultParameters(), 1)

	require.Equal(t, endpoint+"/a?key=v1", c.BuildURI(NewRequest("a")).MustGet())
	require.Equal(t, 1, c.RemoveDefaultParameter("key", param.QueryString))
	require.Equal(t, 0, c.RemoveDefaultParameter("key", param.QueryString))
	require.Equal(t, endpoint+"/a", c.BuildURI(NewRequest("a")).MustGet())
}

func TestBuildURI_Concurrent(t *testing.T) {
	c := newClient(t, WithEndpoint(endpoint))
	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if err := c.AddDefaultParameter(param.Query(fmt.Sprintf("d%d", i), "x")); err != nil {
				errs <- err
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			uri, err := c.BuildURI(NewRequest("users/{id}").AddURLSegment("id", fmt.Sprint(i))).Get()
			if err != nil {
				errs <- err
				return
			}
			if !strings.HasPrefix(uri, fmt.Sprintf("%s/users/%d", endpoint, i)) {
				errs <- fmt.Errorf("unexpected uri %s", uri)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, c.DefaultParameters(), workers)
}

func TestExecute(t *testing.T) {
	type seen struct {
		method, uri, body, contentType, auth, cookie string
		accept                                      []string
	}
	var got seen
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		ck, _ := r.Cookie("sid")
		got = seen{
			method:      r.Method,
			uri:         r.URL.RequestURI(),
			body:        string(b),
			contentType: r.Header.Get("Content-Type"),
			auth:        r.Header.Get("Authorization"),
			accept:      r.Header.Values("Accept"),
		}
		if ck != nil {
			got.cookie = ck.Value
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := newClient(t,
		WithEndpoint(srv.URL+"/api"),
		WithDoer(srv.Client()),
		WithAuthenticator(BearerToken("t0k")),
		WithDefaults(
			param.Query("key", "k"),
			param.HeaderOf("Accept", "application/json"),
			param.CookieOf("sid", "default"),
		),
	)
	req := NewRequest("orders/{id}", "post").
		AddURLSegment("id", "5").
		AddHeader("Accept", "text/plain").
		AddCookie("sid", "mine").
		AddBody(`{"qty":1}`, "application/json")
	resp, err := c.Execute(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "/api/orders/5?key=k", got.uri)
	assert.Equal(t, `{"qty":1}`, got.body)
	assert.Equal(t, "application/json", got.contentType)
	assert.Equal(t, "Bearer t0k", got.auth)
	assert.Equal(t, []string{"text/plain"}, got.accept)
	assert.Equal(t, "mine", got.cookie)
}

func TestExecute_LogsRedactedExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newClient(t,
		WithEndpoint(srv.URL),
		WithDoer(srv.Client()),
		WithLogger(logger),
		WithRedaction("sig"),
		WithDefaults(param.Query("sig", "s3cr3t")),
	)
	resp, err := c.Execute(context.Background(), NewRequest("ping"))
	require.NoError(t, err)
	defer resp.Body.Close()

	out := buf.String()
	assert.Contains(t, out, "request done")
	assert.Contains(t, out, "status=204")
	assert.Contains(t, out, "sig=REDACTED")
	assert.NotContains(t, out, "s3cr3t")
}

func TestExecute_Failures(t *testing.T) {
	called := false
	doer := transport.DoerFunc(func(*http.Request) (*http.Response, error) {
		called = true
		return nil, errors.New("unreachable")
	})

	_, err := newClient(t, WithDoer(doer)).Execute(context.Background(), NewRequest("relative"))
	require.ErrorIs(t, err, ErrConfiguration)
	require.False(t, called, "configuration errors stop before any network activity")

	denied := errors.New("denied")
	c := newClient(t, WithEndpoint(endpoint), WithDoer(doer), WithAuthenticator(AuthenticatorFunc(
		func(context.Context, *http.Request) error { return denied },
	)))
	_, err = c.Execute(context.Background(), NewRequest("x"))
	require.ErrorIs(t, err, denied)
	require.False(t, called)

	_, err = newClient(t, WithEndpoint(endpoint), WithDoer(doer)).Execute(context.Background(), NewRequest("x"))
	require.Error(t, err)
	require.True(t, called)
}
