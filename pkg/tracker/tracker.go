// Package tracker queues storefront interaction events on the client side
// and ships them to the ingestion endpoint in batches.
package tracker

import (
	"context"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/utils"
	"storefront/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultBatchSize  = 10
	DefaultFlushDelay = 5 * time.Second

	sessionKey = "analytics_session_id"
)

// SessionStore is tab-scoped storage for the session identifier.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
}

// MemorySessionStore is the default SessionStore; it lives as long as the
// process.
type MemorySessionStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{values: make(map[string]string)}
}

func (s *MemorySessionStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *MemorySessionStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// PageContext returns the current page URL and referrer.
type PageContext func() (url, referrer string)

type Option func(*Tracker)

func WithBatchSize(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.batchSize = n
		}
	}
}

func WithFlushDelay(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.flushDelay = d
		}
	}
}

func WithBeacon(b Beacon) Option {
	return func(t *Tracker) { t.beacon = b }
}

func WithSessionStore(s SessionStore) Option {
	return func(t *Tracker) {
		if s != nil {
			t.sessions = s
		}
	}
}

func WithPageContext(p PageContext) Option {
	return func(t *Tracker) { t.page = p }
}

func WithUserAgent(userAgent string) Option {
	return func(t *Tracker) { t.userAgent = userAgent }
}

func WithSendTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.sendTimeout = d
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(t *Tracker) {
		if log != nil {
			t.log = log
		}
	}
}

// Tracker buffers events and flushes them when the buffer reaches the batch
// size or after FlushDelay without a new event. Delivery is best effort: a
// failed batch is dropped.
type Tracker struct {
	transport   Transport
	beacon      Beacon
	sessions    SessionStore
	page        PageContext
	userAgent   string
	batchSize   int
	flushDelay  time.Duration
	sendTimeout time.Duration
	log         *logger.Logger
	now         func() time.Time

	sessionMu sync.Mutex

	mu     sync.Mutex
	queue  []*models.AnalyticsEvent
	timer  *time.Timer
	closed bool
	// generation invalidates debounce callbacks that fired after the queue
	// they were armed for was taken.
	generation uint64

	inflight sync.WaitGroup
}

func New(transport Transport, opts ...Option) *Tracker {
	t := &Tracker{
		transport:   transport,
		sessions:    NewMemorySessionStore(),
		batchSize:   DefaultBatchSize,
		flushDelay:  DefaultFlushDelay,
		sendTimeout: defaultSendTimeout,
		log:         logger.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = t.log.WithComponent("tracker")
	return t
}

// SessionID returns the session identifier, generating and storing it on
// first use.
func (t *Tracker) SessionID() string {
	t.sessionMu.Lock()
	defer t.sessionMu.Unlock()

	if id, ok := t.sessions.Get(sessionKey); ok && id != "" {
		return id
	}
	id := uuid.NewString()
	t.sessions.Set(sessionKey, id)
	return id
}

// Track records one interaction. It never blocks on the network and never
// fails.
func (t *Tracker) Track(eventType models.EventType, metadata map[string]interface{}) {
	defer func() {
		if r := recover(); r != nil {
			t.log.WithField("panic", r).Warn("Dropped analytics event")
		}
	}()

	event := &models.AnalyticsEvent{
		ID:        uuid.NewString(),
		EventType: eventType,
		Timestamp: utils.FormatTimeISO(t.now()),
		Metadata:  t.buildMetadata(metadata),
		UserAgent: t.userAgent,
	}

	// Resolved before taking t.mu: the store is caller-supplied and may panic.
	event.SessionID = t.SessionID()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.queue = append(t.queue, event)

	if len(t.queue) >= t.batchSize {
		t.sendAsyncLocked(t.takeLocked())
		return
	}
	t.armTimerLocked()
}

// armTimerLocked restarts the debounce timer.
func (t *Tracker) armTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.generation++
	generation := t.generation
	t.timer = time.AfterFunc(t.flushDelay, func() {
		t.flushGeneration(generation)
	})
}

func (t *Tracker) flushGeneration(generation uint64) {
	t.mu.Lock()
	if generation != t.generation {
		t.mu.Unlock()
		return
	}
	batch := t.takeLocked()
	if len(batch) > 0 {
		t.inflight.Add(1)
	}
	t.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	defer t.inflight.Done()
	t.send(context.Background(), batch)
}

func (t *Tracker) buildMetadata(metadata map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		merged[k] = v
	}
	if t.page != nil {
		url, referrer := t.page()
		merged[models.MetaURL] = url
		merged[models.MetaReferrer] = referrer
	}
	return merged
}

// Pending returns the number of queued events.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.queue)
}

// Flush sends whatever is queued. Events tracked while the send is in
// flight go into a fresh queue.
func (t *Tracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	batch := t.takeLocked()
	if len(batch) > 0 {
		t.inflight.Add(1)
	}
	t.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	defer t.inflight.Done()
	t.send(ctx, batch)
	return nil
}

// Close is the shutdown hook. The remaining queue goes to the beacon when
// one is configured and accepts it, otherwise to the transport. The queue is
// cleared either way and later Track calls are ignored.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	batch := t.takeLocked()
	t.mu.Unlock()

	if len(batch) > 0 {
		if t.beacon == nil || !t.beacon.SendBeacon(batch) {
			ctx, cancel := context.WithTimeout(context.Background(), t.sendTimeout)
			t.send(ctx, batch)
			cancel()
		}
	}

	t.inflight.Wait()
	return nil
}

// takeLocked swaps out the queue and cancels the debounce timer.
func (t *Tracker) takeLocked() []*models.AnalyticsEvent {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.generation++
	batch := t.queue
	t.queue = nil
	return batch
}

// sendAsyncLocked registers the send with inflight before t.mu is released,
// so Close waits for it.
func (t *Tracker) sendAsyncLocked(batch []*models.AnalyticsEvent) {
	t.inflight.Add(1)
	go func() {
		defer t.inflight.Done()
		t.send(context.Background(), batch)
	}()
}

func (t *Tracker) send(ctx context.Context, batch []*models.AnalyticsEvent) {
	if t.transport == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, t.sendTimeout)
	defer cancel()

	if err := t.transport.Send(ctx, batch); err != nil {
		t.log.WithError(err).WithField("events", len(batch)).Debug("Dropped analytics batch")
	}
}
