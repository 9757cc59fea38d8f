package reasoning

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// Middleware wraps a completion call. It receives the request and a next
// function that calls the downstream handler.
type Middleware func(ctx context.Context, req Request, next func(context.Context, Request) (*Response, error)) (*Response, error)

// Client holds registered provider adapters, routes requests by provider
// identifier, and applies middleware.
type Client struct {
	providers       map[string]ProviderAdapter
	defaultProvider string
	middleware      []Middleware
	mu              sync.RWMutex
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers a provider adapter.
func WithProvider(name string, adapter ProviderAdapter) ClientOption {
	return func(c *Client) {
		c.providers[name] = adapter
	}
}

// WithDefaultProvider sets the default provider name.
func WithDefaultProvider(name string) ClientOption {
	return func(c *Client) {
		c.defaultProvider = name
	}
}

// WithMiddleware adds middleware to the client. The first registered
// middleware runs outermost.
func WithMiddleware(mw ...Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = append(c.middleware, mw...)
	}
}

// NewClient creates a new Client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]ProviderAdapter),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.defaultProvider == "" && len(c.providers) == 1 {
		for name := range c.providers {
			c.defaultProvider = name
		}
	}
	return c
}

// RegisterProvider adds a provider adapter to the client.
func (c *Client) RegisterProvider(name string, adapter ProviderAdapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = adapter
	if c.defaultProvider == "" {
		c.defaultProvider = name
	}
}

// Use appends middleware after construction. It is not safe to call while
// requests are in flight.
func (c *Client) Use(mw ...Middleware) {
	c.middleware = append(c.middleware, mw...)
}

// Providers returns the number of registered providers.
func (c *Client) Providers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.providers)
}

// resolveProvider picks the adapter for a request: explicit provider, then
// the model catalog, then the default provider.
func (c *Client) resolveProvider(req Request) (ProviderAdapter, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	name := req.Provider
	if name == "" {
		if info := GetModelInfo(req.Model); info != nil {
			if _, ok := c.providers[info.Provider]; ok {
				name = info.Provider
			}
		}
	}
	if name == "" {
		name = c.defaultProvider
	}
	if name == "" {
		return nil, &ConfigurationError{ServiceError: ServiceError{
			Message: "no provider specified and no default provider configured",
		}}
	}

	adapter, ok := c.providers[name]
	if !ok {
		return nil, &ConfigurationError{ServiceError: ServiceError{
			Message: fmt.Sprintf("provider %q is not registered", name),
		}}
	}
	return adapter, nil
}

// Complete sends a blocking request through middleware to the resolved provider.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	adapter, err := c.resolveProvider(req)
	if err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = adapter.Name()
	}

	handler := func(ctx context.Context, r Request) (*Response, error) {
		return adapter.Complete(ctx, r)
	}

	for i := len(c.middleware) - 1; i >= 0; i-- {
		mw := c.middleware[i]
		next := handler
		handler = func(ctx context.Context, r Request) (*Response, error) {
			return mw(ctx, r, next)
		}
	}

	return handler(ctx, req)
}

// Close releases resources held by all registered providers.
func (c *Client) Close() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var firstErr error
	for _, adapter := range c.providers {
		if closer, ok := adapter.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// NewClientFromEnv creates a Client with a gollm adapter for every provider
// whose credentials gollm can find. apiKey, when set, is used for the
// provider that owns model.
func NewClientFromEnv(model, apiKey string, opts ...GollmAdapterOption) *Client {
	c := NewClient()

	owner := ""
	if info := GetModelInfo(model); info != nil {
		owner = info.Provider
	}

	for _, provider := range []string{"anthropic", "openai"} {
		key := ""
		if provider == owner {
			key = apiKey
		}
		providerOpts := opts
		if provider == owner && model != "" {
			providerOpts = append([]GollmAdapterOption{WithModel(model)}, opts...)
		}
		adapter, err := NewGollmAdapter(provider, key, providerOpts...)
		if err != nil {
			log.Debug().Err(err).Str("provider", provider).Msg("reasoning: provider not available")
			continue
		}
		c.RegisterProvider(provider, adapter)
	}
	if owner != "" {
		c.mu.Lock()
		if _, ok := c.providers[owner]; ok {
			c.defaultProvider = owner
		}
		c.mu.Unlock()
	}

	return c
}
