package testkit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/pflag"

	"github.com/sha1n/mcp-catalog-search/internal/app"
	"github.com/sha1n/mcp-catalog-search/internal/config"
)

// Service represents a test service that can be started and stopped
type Service interface {
	Start() (map[string]any, error)
	Stop() error
	GetName() string
}

// TestEnvContext provides access to properties collected during environment startup
type TestEnvContext interface {
	GetProperties() map[string]any
	GetProperty(name string) (any, bool)
}

// TestEnv manages the lifecycle of test services
type TestEnv interface {
	Start() (map[string]any, error)
	Stop() error
	GetContext() TestEnvContext
}

type testEnvContextImpl struct {
	properties map[string]any
}

func (c *testEnvContextImpl) GetProperties() map[string]any {
	return c.properties
}

func (c *testEnvContextImpl) GetProperty(name string) (any, bool) {
	val, ok := c.properties[name]
	return val, ok
}

type testEnvImpl struct {
	services []Service
	context  *testEnvContextImpl
}

// NewTestEnv creates a new test environment with the given services
func NewTestEnv(services ...Service) TestEnv {
	return &testEnvImpl{
		services: services,
		context:  &testEnvContextImpl{properties: make(map[string]any)},
	}
}

func (e *testEnvImpl) Start() (map[string]any, error) {
	for _, s := range e.services {
		props, err := s.Start()
		if err != nil {
			return nil, err
		}
		for k, v := range props {
			e.context.properties[k] = v
		}
	}
	return e.context.properties, nil
}

func (e *testEnvImpl) Stop() error {
	var lastErr error
	// Stop in reverse order
	for i := len(e.services) - 1; i >= 0; i-- {
		if err := e.services[i].Stop(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (e *testEnvImpl) GetContext() TestEnvContext {
	return e.context
}

// GetFreePort returns a free port from the kernel
func GetFreePort() (int, error) {
	return getFreePortWithAddr("localhost:0")
}

// MustGetFreePort returns a free port or fails the test
func MustGetFreePort(t testing.TB) int {
	t.Helper()
	port, err := GetFreePort()
	if err != nil {
		t.Fatalf("Failed to get free port: %v", err)
	}
	return port
}

func getFreePortWithAddr(addrStr string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", addrStr)
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// FlagOptions configures NewTestFlags
type FlagOptions struct {
	Port        int    // Uses free port if 0
	Transport   string // Defaults to "sse"
	Host        string // Defaults to "localhost"
	DataDir     string // Holds the catalog database and indexes; a temp dir if empty
	FiltersFile string // Browse filters file; none if empty
	APIKey      string // Enables apikey auth with this key if set
}

// NewTestFlags creates a configured pflag.FlagSet for testing
func NewTestFlags(t testing.TB, opts *FlagOptions) *pflag.FlagSet {
	t.Helper()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	app.RegisterFlags(flags)

	port := 0
	transport := "sse"
	host := "localhost"
	dataDir := ""
	filtersFile := ""
	apiKey := ""

	if opts != nil {
		if opts.Port != 0 {
			port = opts.Port
		}
		if opts.Transport != "" {
			transport = opts.Transport
		}
		if opts.Host != "" {
			host = opts.Host
		}
		dataDir = opts.DataDir
		filtersFile = opts.FiltersFile
		apiKey = opts.APIKey
	}

	if port == 0 {
		port = MustGetFreePort(t)
	}
	if dataDir == "" {
		dataDir = t.TempDir()
	}

	_ = flags.Set("port", fmt.Sprintf("%d", port))
	_ = flags.Set("transport", transport)
	_ = flags.Set("host", host)
	_ = flags.Set("catalog-db", filepath.Join(dataDir, "catalog.db"))
	_ = flags.Set("index-base-dir", filepath.Join(dataDir, "index"))
	_ = flags.Set("log-level", "warn")
	if apiKey != "" {
		_ = flags.Set("auth-type", "apikey")
		_ = flags.Set("auth-api-keys", apiKey)
	}
	if filtersFile != "" {
		_ = flags.Set("search-filters-file", filtersFile)
	}

	return flags
}

// ServerService runs the full application over SSE.
// Start reports the "endpoint" (SSE URL) and "base_url" properties.
type ServerService struct {
	flags *pflag.FlagSet

	mu   sync.Mutex
	srv  *http.Server
	done chan error
}

// NewServerService creates a service that serves with the given flags.
func NewServerService(flags *pflag.FlagSet) *ServerService {
	return &ServerService{flags: flags}
}

// GetName returns the service name.
func (s *ServerService) GetName() string {
	return "catalog-search"
}

// Start runs the server in the background and waits for its health endpoint.
func (s *ServerService) Start() (map[string]any, error) {
	params := app.DefaultRunParams()
	params.StartSSEServer = func(server *mcp.Server, settings *config.Settings) error {
		srv, err := app.NewSSEServer(server, settings)
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.srv = srv
		s.mu.Unlock()
		return srv.ListenAndServe()
	}

	host := s.flags.Lookup("host").Value.String()
	port := s.flags.Lookup("port").Value.String()
	baseURL := fmt.Sprintf("http://%s:%s", host, port)

	s.done = make(chan error, 1)
	go func() {
		s.done <- app.RunWithDeps(context.Background(), params, s.flags, "test")
	}()

	if err := waitForHealth(baseURL+"/health", s.done, 10*time.Second); err != nil {
		return nil, err
	}
	return map[string]any{
		"base_url": baseURL,
		"endpoint": baseURL + "/sse",
	}, nil
}

// Stop shuts the HTTP server down and waits for the application to exit.
func (s *ServerService) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	select {
	case err := <-s.done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitForHealth polls url until it answers 200, the server exits or the timeout expires.
func waitForHealth(url string, done <-chan error, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-done:
			return fmt.Errorf("server exited during startup: %w", err)
		default:
		}

		resp, err := http.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return fmt.Errorf("server not healthy after %s", timeout)
}
