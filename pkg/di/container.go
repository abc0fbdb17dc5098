// Package di wires the repository layer's collaborators from configuration.
package di

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-search-repository/cache"
	"github.com/goliatone/go-search-repository/config"
	"github.com/goliatone/go-search-repository/events"
	"github.com/goliatone/go-search-repository/internal/cacheinfra"
	"github.com/goliatone/go-search-repository/internal/metrics"
	"github.com/goliatone/go-search-repository/lock"
	"github.com/goliatone/go-search-repository/messaging"
	"github.com/goliatone/go-search-repository/repository"
	"github.com/goliatone/go-search-repository/search"
	"github.com/goliatone/go-search-repository/stacks"
)

// Container provides dependency injection for the repository layer. It
// manages singleton instances of the cache client, publisher, locker and
// metrics recorder, and provides factory methods for building repositories
// that share them.
type Container struct {
	settings  config.Settings
	store     search.Client
	log       *logrus.Entry
	rdb       redis.UniversalClient
	cache     cache.Client
	publisher messaging.Publisher
	locker    lock.Locker
	registry  *prometheus.Registry
	metrics   *metrics.Recorder
}

// NewContainer creates a DI container around an existing search client. The
// redis connection, cache backend, publisher and locker are built from the
// settings; with the memory backend no redis connection is opened and the
// in-process publisher and locker are used instead.
func NewContainer(store search.Client, settings config.Settings, log *logrus.Entry) (*Container, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	registry := prometheus.NewRegistry()
	c := &Container{
		settings: settings,
		store:    store,
		log:      log,
		registry: registry,
		metrics:  metrics.New(registry),
	}

	cacheCfg := cache.Config{
		DefaultTTL:      settings.Cache.DefaultTTL,
		CleanupInterval: settings.Cache.CleanupInterval,
		Namespace:       settings.Cache.Namespace,
	}

	switch settings.Cache.Backend {
	case "redis":
		c.rdb = redis.NewClient(&redis.Options{
			Addr:     settings.Redis.Addr,
			Password: settings.Redis.Password,
			DB:       settings.Redis.DB,
		})
		client, err := cacheinfra.NewRedisClient(c.rdb, cacheCfg)
		if err != nil {
			return nil, err
		}
		c.cache = client
		c.publisher = messaging.NewRedisPublisher(c.rdb, settings.Notifications.Channel, log)
		c.locker = lock.NewRedisLocker(c.rdb, settings.Cache.Namespace)
	default:
		client, err := cacheinfra.NewMemoryClient(cacheCfg)
		if err != nil {
			return nil, err
		}
		c.cache = client
		c.publisher = messaging.NewMemoryPublisher()
		c.locker = lock.NewMemoryLocker()
	}

	return c, nil
}

// NewContainerWithDefaults creates a container using default settings. This
// is a convenience constructor for tests and examples.
func NewContainerWithDefaults(store search.Client) (*Container, error) {
	return NewContainer(store, config.Default(), nil)
}

// Close releases the redis connection when one was opened.
func (c *Container) Close() error {
	if c.rdb != nil {
		return c.rdb.Close()
	}
	return nil
}

// Store returns the search client repositories are built on.
func (c *Container) Store() search.Client { return c.store }

// Cache returns the singleton cache client.
func (c *Container) Cache() cache.Client { return c.cache }

// Publisher returns the singleton change-event publisher.
func (c *Container) Publisher() messaging.Publisher { return c.publisher }

// Locker returns the singleton distributed locker.
func (c *Container) Locker() lock.Locker { return c.locker }

// Settings returns a copy of the configuration used by this container.
func (c *Container) Settings() config.Settings { return c.settings }

// MetricsRegistry returns the container's prometheus registry, for mounting
// on a /metrics handler.
func (c *Container) MetricsRegistry() *prometheus.Registry { return c.registry }

// RepositoryOptions materializes the container's collaborators as repository
// construction options.
func (c *Container) RepositoryOptions() []repository.Option {
	return []repository.Option{
		repository.WithCache(c.cache),
		repository.WithDefaultCacheTTL(c.settings.Cache.DefaultTTL),
		repository.WithPublisher(c.publisher),
		repository.WithNotificationDelay(c.settings.Notifications.Delay),
		repository.WithScrollBatchSize(c.settings.Scroll.BatchSize),
		repository.WithScrollLease(c.settings.Scroll.Lease),
		repository.WithLogger(c.log),
		repository.WithMetrics(c.metrics),
	}
}

// NewReadOnly creates a read-only repository for the described type, wired
// to the container's collaborators.
//
// Since Go methods cannot have type parameters, this is provided as a
// package-level function. Example: NewReadOnly(container, users.Descriptor())
func NewReadOnly[T repository.Entity](c *Container, desc repository.Descriptor[T], extra ...repository.Option) (*repository.ReadOnly[T], error) {
	return repository.NewReadOnly(desc, c.store, append(c.RepositoryOptions(), extra...)...)
}

// NewMutable creates a mutable repository for the described type, wired to
// the container's collaborators.
func NewMutable[T repository.Entity](c *Container, desc repository.Descriptor[T], extra ...repository.Option) (*repository.Mutable[T], error) {
	return repository.NewMutable(desc, c.store, append(c.RepositoryOptions(), extra...)...)
}

// NewEventRepository creates the event repository on the container's stack.
func (c *Container) NewEventRepository(extra ...repository.Option) (*events.Repository, error) {
	return events.New(c.store, append(c.RepositoryOptions(), extra...)...)
}

// NewStackRepository creates the stack repository, cascading into the given
// event repository.
func (c *Container) NewStackRepository(eventRepo *events.Repository, extra ...repository.Option) (*stacks.Repository, error) {
	return stacks.New(c.store, eventRepo, append(c.RepositoryOptions(), extra...)...)
}
