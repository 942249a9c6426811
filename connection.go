package reqwire

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Connection wraps one incoming HTTP request together with the path
// parameters supplied by the routing layer and the process-wide State.
//
// Header, cookie, query and form parsing results are computed at most once
// per connection and cached for reuse by any later extractor or by
// observability collaborators. A Connection is owned by one request's task;
// the cached parses are still guarded so middleware running on other
// goroutines can read them safely.
type Connection struct {
	id         string
	request    *http.Request
	pathParams map[string]string
	state      *State

	headersOnce sync.Once
	headers     map[string]string

	cookiesOnce sync.Once
	cookies     map[string]string

	queryOnce sync.Once
	query     url.Values

	bodyOnce sync.Once
	body     []byte
	bodyErr  error

	formOnce sync.Once
	form     map[string]any
	formErr  error
}

// ConnectionOption configures a Connection at construction.
type ConnectionOption func(*Connection)

// WithPathParams supplies the raw path-parameter values matched by the
// routing layer.
func WithPathParams(params map[string]string) ConnectionOption {
	return func(c *Connection) {
		c.pathParams = params
	}
}

// WithState attaches the process-wide shared state.
func WithState(state *State) ConnectionOption {
	return func(c *Connection) {
		c.state = state
	}
}

// NewConnection wraps an incoming request. Each connection gets a unique ID
// usable for correlation in logs and errors.
func NewConnection(r *http.Request, opts ...ConnectionOption) *Connection {
	c := &Connection{
		id:      uuid.NewString(),
		request: r,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.pathParams == nil {
		c.pathParams = map[string]string{}
	}
	if c.state == nil {
		c.state = NewState()
	}
	return c
}

// ID returns the unique connection ID.
func (c *Connection) ID() string { return c.id }

// Request returns the underlying request.
func (c *Connection) Request() *http.Request { return c.request }

// URL returns the request URL as a string, for error messages.
func (c *Connection) URL() string { return c.request.URL.String() }

// State returns the process-wide shared state attached to this connection.
func (c *Connection) State() *State { return c.state }

// PathParam returns the raw value for a matched path parameter.
func (c *Connection) PathParam(name string) (string, bool) {
	v, ok := c.pathParams[name]
	return v, ok
}

// HeaderValues returns all values for a header, case-insensitively.
func (c *Connection) HeaderValues(alias string) []string {
	return c.request.Header.Values(alias)
}

// Headers returns a lower-cased single-value view of the request headers,
// parsed once per connection.
func (c *Connection) Headers() map[string]string {
	c.headersOnce.Do(func() {
		c.headers = make(map[string]string, len(c.request.Header))
		for key, vals := range c.request.Header {
			if len(vals) > 0 {
				c.headers[strings.ToLower(key)] = vals[0]
			}
		}
	})
	return c.headers
}

// Cookies returns the request cookies as a name-to-value map, parsed once
// per connection.
func (c *Connection) Cookies() map[string]string {
	c.cookiesOnce.Do(func() {
		cookies := c.request.Cookies()
		c.cookies = make(map[string]string, len(cookies))
		for _, cookie := range cookies {
			c.cookies[cookie.Name] = cookie.Value
		}
	})
	return c.cookies
}

// QueryValues returns the parsed query string, parsed once per connection.
func (c *Connection) QueryValues() url.Values {
	c.queryOnce.Do(func() {
		c.query = c.request.URL.Query()
	})
	return c.query
}

// Body reads and caches the raw request body.
func (c *Connection) Body() ([]byte, error) {
	c.bodyOnce.Do(func() {
		if c.request.Body == nil {
			return
		}
		c.body, c.bodyErr = io.ReadAll(c.request.Body)
	})
	return c.body, c.bodyErr
}

// Form parses and caches the form body for the given encoding, so repeated
// access, by middleware for example, does not re-parse.
func (c *Connection) Form(encoding Encoding) (map[string]any, error) {
	c.formOnce.Do(func() {
		body, err := c.Body()
		if err != nil {
			c.formErr = err
			return
		}
		if encoding == EncodingMultiPart {
			c.form, c.formErr = parseMultipartForm(c.request.Header.Get("Content-Type"), body)
			return
		}
		c.form, c.formErr = parseURLEncodedForm(body)
	})
	return c.form, c.formErr
}

// State is process-wide shared state injected under the "state" reserved
// key. It is populated on first use and lives until process restart or
// explicit clearing; per-request data does not belong here.
type State struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewState creates an empty State.
func NewState() *State {
	return &State{values: make(map[string]any)}
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores a value under key.
func (s *State) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes the value stored under key.
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Clear removes all stored values. Explicit invalidation for tests and
// controlled restarts.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = make(map[string]any)
}
