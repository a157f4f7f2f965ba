package refreshkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/widgetlab/refreshkit/internal/singleflight"
)

// Settings configures a data source.
type Settings struct {
	// Endpoint is the path or absolute URL the source fetches.
	Endpoint string

	// Header holds extra headers sent with every refresh.
	Header map[string]string

	// CacheTTL overrides the client cache TTL for this source's fetches.
	CacheTTL time.Duration

	// Signed marks the source's requests as requiring credentials.
	Signed bool
}

// Update is the outcome of one source refresh.
type Update struct {
	Source    string
	Payload   json.RawMessage
	FetchedAt time.Time
	FromCache bool
	Err       error
}

// DataSource produces updates for one upstream resource. Implementations
// must be safe for concurrent use.
type DataSource interface {
	// Identifier uniquely names the source within a registry.
	Identifier() string

	// Configure replaces the source's settings.
	Configure(settings Settings) error

	// Refresh fetches fresh data and emits it on the Updates channel.
	Refresh(ctx context.Context) (*Update, error)

	// Updates streams refresh outcomes. The channel is never closed; slow
	// consumers drop the oldest pending update rather than blocking refresh.
	Updates() <-chan Update
}

// SourceRegistry tracks data sources by identifier and coalesces concurrent
// refreshes of the same source into one fetch.
type SourceRegistry struct {
	logger Logger

	mu      sync.RWMutex
	sources map[string]DataSource

	flight singleflight.Group
}

// NewSourceRegistry creates an empty registry.
func NewSourceRegistry(logger Logger) *SourceRegistry {
	if logger == nil {
		logger = nopLogger{}
	}
	return &SourceRegistry{
		logger:  logger,
		sources: make(map[string]DataSource),
	}
}

// Register adds a source; registering a duplicate identifier fails.
func (r *SourceRegistry) Register(src DataSource) error {
	id := src.Identifier()
	if id == "" {
		return fmt.Errorf("refreshkit: source has an empty identifier")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sources[id]; exists {
		return fmt.Errorf("refreshkit: source %q already registered", id)
	}
	r.sources[id] = src
	return nil
}

// Lookup returns the source registered under id.
func (r *SourceRegistry) Lookup(id string) (DataSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[id]
	return src, ok
}

// Deregister removes the source and reports whether it was present. Pending
// refreshes complete normally.
func (r *SourceRegistry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[id]
	delete(r.sources, id)
	return ok
}

// Refresh fetches the named source. Concurrent calls for the same id share
// one fetch and receive the same update.
func (r *SourceRegistry) Refresh(ctx context.Context, id string) (*Update, error) {
	src, ok := r.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("refreshkit: unknown source %q", id)
	}

	v, err, shared := r.flight.Do(id, func() (interface{}, error) {
		return src.Refresh(ctx)
	})
	if shared {
		r.logger.Debug("refresh coalesced", "source", id)
	}
	if err != nil {
		return nil, err
	}
	return v.(*Update), nil
}

// RefreshAll refreshes every registered source and returns per-source
// errors; nil entries mean success.
func (r *SourceRegistry) RefreshAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sources))
	for id := range r.sources {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	results := make(map[string]error, len(ids))
	var wg sync.WaitGroup
	var resMu sync.Mutex
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := r.Refresh(ctx, id)
			resMu.Lock()
			results[id] = err
			resMu.Unlock()
		}(id)
	}
	wg.Wait()
	return results
}

// ClientSource is a DataSource backed by a Client performing GET fetches.
type ClientSource struct {
	id     string
	client *Client

	mu       sync.RWMutex
	settings Settings

	updates chan Update
}

// NewClientSource creates a source fetching through client with the given
// settings.
func NewClientSource(id string, client *Client, settings Settings) *ClientSource {
	return &ClientSource{
		id:       id,
		client:   client,
		settings: settings,
		updates:  make(chan Update, 16),
	}
}

// Identifier returns the source's registry key.
func (s *ClientSource) Identifier() string {
	return s.id
}

// Configure replaces the source's settings; the next Refresh uses them.
func (s *ClientSource) Configure(settings Settings) error {
	if settings.Endpoint == "" {
		return &ClientError{Kind: KindValidation, Message: "source settings require an endpoint"}
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// Refresh performs one fetch through the client and emits the outcome.
func (s *ClientSource) Refresh(ctx context.Context) (*Update, error) {
	s.mu.RLock()
	settings := s.settings
	s.mu.RUnlock()

	req := Request{
		Method: http.MethodGet,
		Path:   settings.Endpoint,
		Header: settings.Header,
		Signed: settings.Signed,
	}
	if settings.CacheTTL > 0 {
		req.Cache = &CachePolicy{Enabled: true, TTL: settings.CacheTTL}
	}

	env, err := s.client.Do(ctx, req)
	update := Update{Source: s.id, FetchedAt: time.Now()}
	if err != nil {
		update.Err = err
		s.emit(update)
		return nil, err
	}
	if env.Value != nil {
		update.Payload = *env.Value
	}
	update.FromCache = env.FromCache
	s.emit(update)
	return &update, nil
}

// Updates returns the source's outcome stream.
func (s *ClientSource) Updates() <-chan Update {
	return s.updates
}

// emit delivers without blocking: when the buffer is full the oldest pending
// update is dropped in favor of the new one.
func (s *ClientSource) emit(u Update) {
	for {
		select {
		case s.updates <- u:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}
