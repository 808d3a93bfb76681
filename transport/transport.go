// Package transport dispatches composed requests. It owns connection pooling and
// request logging; composing the request is not its concern.
package transport

import (
	"net"
	"net/http"
	"sync"
	"time"
)

const DefaultTimeout = 30 * time.Second

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

var (
	transportOnce sync.Once
	pooled        *http.Transport
	clientsMu     sync.Mutex
	clients       = map[time.Duration]*http.Client{}
)

// Shared returns a client for the timeout, reusing one pooled *http.Transport
// for every client it hands out. A non positive timeout means DefaultTimeout.
func Shared(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	clientsMu.Lock()
	defer clientsMu.Unlock()
	if client, ok := clients[timeout]; ok {
		return client
	}
	client := &http.Client{
		Timeout:   timeout,
		Transport: sharedTransport(),
	}
	clients[timeout] = client
	return client
}

// Default is the Doer used by clients that do not configure one.
func Default() Doer {
	return Shared(DefaultTimeout)
}

func sharedTransport() *http.Transport {
	transportOnce.Do(func() {
		pooled = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          256,
			MaxIdleConnsPerHost:   64,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
	})
	return pooled
}
