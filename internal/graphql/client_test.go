package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jamesprial/gqlfetch/internal/config"
)

// Verify that HTTPClient satisfies the Client interface at compile time.
var _ Client = (*HTTPClient)(nil)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

// newTestClient builds an HTTPClient pointed at url with a short timeout.
func newTestClient(t *testing.T, url string) *HTTPClient {
	t.Helper()
	client, err := NewHTTPClient(config.ClientConfig{URL: url, Timeout: 5})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	return client
}

// staticServer answers every request with status and body.
func staticServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// capturedRequest records what a test server received.
type capturedRequest struct {
	method  string
	path    string
	headers http.Header
	body    []byte
}

// capturingServer records the last request and answers with body.
func capturingServer(t *testing.T, body string) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got.method = r.Method
		got.path = r.URL.Path
		got.headers = r.Header.Clone()
		got.body = b
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

// ---------------------------------------------------------------------------
// normalizeURL tests
// ---------------------------------------------------------------------------

func Test_normalizeURL_Cases(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare host", input: "http://127.0.0.1:8080", want: "http://127.0.0.1:8080/graphql"},
		{name: "trailing slash", input: "http://127.0.0.1:8080/", want: "http://127.0.0.1:8080/graphql"},
		{name: "already has suffix", input: "http://127.0.0.1:8080/graphql", want: "http://127.0.0.1:8080/graphql"},
		{name: "suffix with trailing slash", input: "http://127.0.0.1:8080/graphql/", want: "http://127.0.0.1:8080/graphql"},
		{name: "multiple trailing slashes", input: "http://localhost///", want: "http://localhost/graphql"},
		{name: "nested path", input: "http://localhost/api", want: "http://localhost/api/graphql"},
		{name: "query string kept", input: "http://localhost/graphql?x=1", want: "http://localhost/graphql?x=1"},
		{name: "query string on bare host", input: "http://localhost?x=1", want: "http://localhost/graphql?x=1"},
		{name: "fragment kept", input: "http://localhost/api/#frag", want: "http://localhost/api/graphql#frag"},
		{name: "missing scheme", input: "localhost:8080", wantErr: true},
		{name: "unparseable", input: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeURL(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("normalizeURL(%q) = %q, want error", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("normalizeURL(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("normalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// NewHTTPClient tests
// ---------------------------------------------------------------------------

func Test_NewHTTPClient_Cases(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ClientConfig
		wantErr string
	}{
		{name: "valid config", cfg: config.ClientConfig{URL: "http://localhost", Timeout: 30}},
		{name: "zero timeout uses default", cfg: config.ClientConfig{URL: "http://localhost"}},
		{name: "negative timeout uses default", cfg: config.ClientConfig{URL: "http://localhost", Timeout: -1}},
		{name: "empty URL returns error", cfg: config.ClientConfig{}, wantErr: "URL is required"},
		{name: "relative URL returns error", cfg: config.ClientConfig{URL: "localhost:8080"}, wantErr: "invalid URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewHTTPClient(tt.cfg)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %q, want it to contain %q", err.Error(), tt.wantErr)
				}
				if client != nil {
					t.Error("expected nil client on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.httpClient.Timeout <= 0 {
				t.Errorf("timeout = %v, want positive", client.httpClient.Timeout)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Request shape
// ---------------------------------------------------------------------------

func Test_Execute_SendsExpectedBodyAndHeaders(t *testing.T) {
	srv, got := capturingServer(t, `{"data":{"users":[{"name":"user1"},{"name":"user2"}]}}`)
	client := newTestClient(t, srv.URL)

	data, err := client.Execute(context.Background(), "{ users{name} }", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got.method != http.MethodPost {
		t.Errorf("method = %q, want POST", got.method)
	}
	if got.path != "/graphql" {
		t.Errorf("path = %q, want /graphql", got.path)
	}
	if ct := got.headers.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if string(got.body) != `{"query":"{ users{name} }"}` {
		t.Errorf("body = %s, want exactly the query object", got.body)
	}
	if got.headers.Get("Authorization") != "" {
		t.Error("Authorization header sent without a configured token")
	}
	if string(data) != `{"users":[{"name":"user1"},{"name":"user2"}]}` {
		t.Errorf("data = %s", data)
	}
}

func Test_Execute_VariablesIncluded(t *testing.T) {
	srv, got := capturingServer(t, `{"data":{"request":"ok"}}`)
	client := newTestClient(t, srv.URL)

	vars := map[string]any{"url": "http://example.com"}
	if _, err := client.Execute(context.Background(), `query($url: String!) { request(url: $url) }`, vars); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var body Request
	if err := json.Unmarshal(got.body, &body); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if body.Variables["url"] != "http://example.com" {
		t.Errorf("variables = %v", body.Variables)
	}
}

func Test_Do_CustomHeadersAndBearer(t *testing.T) {
	srv, got := capturingServer(t, `{"data":{}}`)
	client, err := NewHTTPClient(config.ClientConfig{
		URL:         srv.URL,
		Headers:     map[string]string{"X-Trace": "t1", "Content-Type": "text/plain"},
		BearerToken: "secret",
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}

	if _, err := client.Do(context.Background(), Request{Query: "{ users { id } }", OperationName: ""}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if got.headers.Get("X-Trace") != "t1" {
		t.Errorf("X-Trace = %q", got.headers.Get("X-Trace"))
	}
	if got.headers.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q, configured headers must not override it", got.headers.Get("Content-Type"))
	}
	if got.headers.Get("Authorization") != "Bearer secret" {
		t.Errorf("Authorization = %q", got.headers.Get("Authorization"))
	}
}

func Test_Do_ResultDetails(t *testing.T) {
	body := `{"data":{"users":[]}}`
	srv := staticServer(t, http.StatusOK, body)
	client := newTestClient(t, srv.URL)

	res, err := client.Do(context.Background(), Request{Query: "{ users { name } }"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d", res.StatusCode)
	}
	if res.Size != len(body) {
		t.Errorf("Size = %d, want %d", res.Size, len(body))
	}
	if res.Duration <= 0 {
		t.Errorf("Duration = %v, want positive", res.Duration)
	}
}

// ---------------------------------------------------------------------------
// Failure modes
// ---------------------------------------------------------------------------

func Test_Execute_HTTPStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "401 is ErrUnauthorized",
			statusCode: http.StatusUnauthorized,
			body:       "unauthorized",
			check: func(t *testing.T, err error) {
				t.Helper()
				if !errors.Is(err, ErrUnauthorized) {
					t.Errorf("err = %v, want ErrUnauthorized", err)
				}
			},
		},
		{
			name:       "500 is StatusError with body",
			statusCode: http.StatusInternalServerError,
			body:       "boom",
			check: func(t *testing.T, err error) {
				t.Helper()
				var se *StatusError
				if !errors.As(err, &se) {
					t.Fatalf("err = %T %v, want *StatusError", err, err)
				}
				if se.StatusCode != 500 || se.Body != "boom" {
					t.Errorf("StatusError = %+v", se)
				}
			},
		},
		{
			name:       "404 is StatusError",
			statusCode: http.StatusNotFound,
			body:       "",
			check: func(t *testing.T, err error) {
				t.Helper()
				if !strings.Contains(err.Error(), "unexpected HTTP status 404") {
					t.Errorf("err = %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := staticServer(t, tt.statusCode, tt.body)
			client := newTestClient(t, srv.URL)
			data, err := client.Execute(context.Background(), "{ users{name} }", nil)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if data != nil {
				t.Errorf("data = %s, want nil", data)
			}
			tt.check(t, err)
		})
	}
}

func Test_StatusError_TruncatesBody(t *testing.T) {
	srv := staticServer(t, http.StatusBadGateway, strings.Repeat("x", 2000))
	client := newTestClient(t, srv.URL)

	_, err := client.Execute(context.Background(), "{ users{name} }", nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StatusError", err)
	}
	if len(se.Body) != maxErrorBody {
		t.Errorf("len(Body) = %d, want %d", len(se.Body), maxErrorBody)
	}
}

func Test_Execute_GraphQLErrors(t *testing.T) {
	srv := staticServer(t, http.StatusOK,
		`{"data":{"users":null},"errors":[{"message":"first","path":["users"]},{"message":"second"}]}`)
	client := newTestClient(t, srv.URL)

	data, err := client.Execute(context.Background(), "{ users{name} }", nil)
	if data != nil {
		t.Errorf("data = %s, want nil", data)
	}
	var re *ResponseError
	if !errors.As(err, &re) {
		t.Fatalf("err = %T %v, want *ResponseError", err, err)
	}
	if err.Error() != "graphql: first; second" {
		t.Errorf("Error() = %q", err.Error())
	}
	if string(re.Data) != `{"users":null}` {
		t.Errorf("partial data = %s", re.Data)
	}
	if len(re.Errors[0].Path) != 1 || re.Errors[0].Path[0] != "users" {
		t.Errorf("path = %v", re.Errors[0].Path)
	}
}

func Test_Do_GraphQLErrorsStillReturnsResult(t *testing.T) {
	srv := staticServer(t, http.StatusOK, `{"data":null,"errors":[{"message":"nope"}]}`)
	client := newTestClient(t, srv.URL)

	res, err := client.Do(context.Background(), Request{Query: "{ users{name} }"})
	if err == nil {
		t.Fatal("expected ResponseError")
	}
	if res == nil {
		t.Fatal("expected result alongside ResponseError")
	}
	if string(res.Response.Data) != "null" {
		t.Errorf("data = %s", res.Response.Data)
	}
}

func Test_Execute_MalformedJSONResponse(t *testing.T) {
	srv := staticServer(t, http.StatusOK, "not json")
	client := newTestClient(t, srv.URL)

	_, err := client.Execute(context.Background(), "{ users{name} }", nil)
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
	if !strings.Contains(err.Error(), "decode response") {
		t.Errorf("error = %q, want it to contain 'decode response'", err.Error())
	}
}

func Test_Execute_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := srv.URL
	srv.Close()

	client := newTestClient(t, closedURL)
	_, err := client.Execute(context.Background(), "{ users{name} }", nil)
	if err == nil {
		t.Fatal("expected error for connection refused, got nil")
	}
	if !strings.Contains(err.Error(), "request failed") {
		t.Errorf("error = %q, want it to contain 'request failed'", err.Error())
	}
}

func Test_Execute_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := newTestClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Execute(ctx, "{ users{name} }", nil)
	if err == nil {
		t.Fatal("expected error with cancelled context, got nil")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want it to wrap context.Canceled", err)
	}
}

func Test_Execute_ConcurrentRequests(t *testing.T) {
	var mu sync.Mutex
	count := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		_, _ = w.Write([]byte(`{"data":{"users":[]}}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL)

	const goroutines = 10
	var wg sync.WaitGroup
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, errs[idx] = client.Execute(context.Background(), "{ users{name} }", nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("goroutine %d error: %v", i, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if count != goroutines {
		t.Errorf("server received %d requests, want %d", count, goroutines)
	}
}

// ---------------------------------------------------------------------------
// ValidateQuery
// ---------------------------------------------------------------------------

func Test_ValidateQuery_Cases(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
	}{
		{"shorthand query", "{ users{name} }", false},
		{"named query with variables", "query Q($u: String!) { request(url: $u) }", false},
		{"fragment use", "query { users { ...F } } fragment F on User { id }", false},
		{"unbalanced braces", "{ users{name }", true},
		{"empty string", "", true},
		{"fragment only", "fragment F on User { id }", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuery(tt.query)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
