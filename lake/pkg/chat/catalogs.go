package chat

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/jellydator/ttlcache/v3"
	"gopkg.in/yaml.v3"
)

//go:embed catalogs.yaml
var defaultCatalogsYAML []byte

var ErrNotFound = errors.New("not found")

// CatalogSource lists what the user can pick as query context.
type CatalogSource interface {
	Catalogs(ctx context.Context) ([]string, error)
	Databases(ctx context.Context, catalog string) ([]string, error)
	Tables(ctx context.Context, catalog, database string) ([]string, error)
}

type catalogFile struct {
	Catalogs []struct {
		Name      string              `yaml:"name"`
		Databases []string            `yaml:"databases"`
		Tables    map[string][]string `yaml:"tables"`
	} `yaml:"catalogs"`
	Tables []string `yaml:"tables"`
}

// StaticCatalog is a CatalogSource backed by a YAML document.
type StaticCatalog struct {
	names     []string
	databases map[string][]string
	tables    map[string]map[string][]string
	defaults  []string
}

// DefaultCatalog returns the embedded catalog listing.
func DefaultCatalog() *StaticCatalog {
	c, err := ParseCatalog(defaultCatalogsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalogs.yaml: %v", err))
	}
	return c
}

func LoadCatalogFile(path string) (*StaticCatalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*StaticCatalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog yaml: %w", err)
	}
	if len(file.Catalogs) == 0 {
		return nil, errors.New("catalog file lists no catalogs")
	}

	c := &StaticCatalog{
		databases: make(map[string][]string, len(file.Catalogs)),
		tables:    make(map[string]map[string][]string, len(file.Catalogs)),
		defaults:  file.Tables,
	}
	for _, entry := range file.Catalogs {
		if entry.Name == "" {
			return nil, errors.New("catalog entry without a name")
		}
		if _, dup := c.databases[entry.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog %q", entry.Name)
		}
		c.names = append(c.names, entry.Name)
		c.databases[entry.Name] = entry.Databases
		c.tables[entry.Name] = entry.Tables
	}
	return c, nil
}

func (c *StaticCatalog) Catalogs(context.Context) ([]string, error) {
	return append([]string(nil), c.names...), nil
}

func (c *StaticCatalog) Databases(_ context.Context, catalog string) ([]string, error) {
	dbs, ok := c.databases[catalog]
	if !ok {
		return nil, fmt.Errorf("%w: catalog %s", ErrNotFound, catalog)
	}
	return append([]string{}, dbs...), nil
}

func (c *StaticCatalog) Tables(_ context.Context, catalog, database string) ([]string, error) {
	dbs, ok := c.databases[catalog]
	if !ok {
		return nil, fmt.Errorf("%w: catalog %s", ErrNotFound, catalog)
	}
	if !contains(dbs, database) {
		return nil, fmt.Errorf("%w: database %s.%s", ErrNotFound, catalog, database)
	}
	if tables, ok := c.tables[catalog][database]; ok {
		return append([]string{}, tables...), nil
	}
	return append([]string{}, c.defaults...), nil
}

// SchemaLister is the part of the schema inspector the UI needs.
type SchemaLister interface {
	ListDatabases(ctx context.Context, catalog string) ([]string, error)
	ListTables(ctx context.Context, catalog, database string) ([]string, error)
}

// InspectorCatalog lists databases and tables live from the engine for a fixed set of catalogs.
type InspectorCatalog struct {
	names     []string
	inspector SchemaLister
}

func NewInspectorCatalog(inspector SchemaLister, catalogs []string) *InspectorCatalog {
	return &InspectorCatalog{names: catalogs, inspector: inspector}
}

func (c *InspectorCatalog) Catalogs(context.Context) ([]string, error) {
	return append([]string(nil), c.names...), nil
}

func (c *InspectorCatalog) Databases(ctx context.Context, catalog string) ([]string, error) {
	if !contains(c.names, catalog) {
		return nil, fmt.Errorf("%w: catalog %s", ErrNotFound, catalog)
	}
	return c.inspector.ListDatabases(ctx, catalog)
}

func (c *InspectorCatalog) Tables(ctx context.Context, catalog, database string) ([]string, error) {
	if !contains(c.names, catalog) {
		return nil, fmt.Errorf("%w: catalog %s", ErrNotFound, catalog)
	}
	return c.inspector.ListTables(ctx, catalog, database)
}

const (
	defaultCatalogTTL     = 10 * time.Minute
	defaultWarmupPoolSize = 4
)

type CachedCatalogConfig struct {
	Logger         *slog.Logger
	Source         CatalogSource
	TTL            time.Duration
	WarmupPoolSize int
}

// CachedCatalog caches database and table listings of another source.
type CachedCatalog struct {
	log    *slog.Logger
	cfg    CachedCatalogConfig
	cache  *ttlcache.Cache[string, []string]
	warmup pond.ResultPool[int]
}

func NewCachedCatalog(cfg CachedCatalogConfig) (*CachedCatalog, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Source == nil {
		return nil, errors.New("source is required")
	}
	if cfg.TTL == 0 {
		cfg.TTL = defaultCatalogTTL
	}
	if cfg.WarmupPoolSize == 0 {
		cfg.WarmupPoolSize = defaultWarmupPoolSize
	}
	return &CachedCatalog{
		log:    cfg.Logger,
		cfg:    cfg,
		cache:  ttlcache.New(ttlcache.WithTTL[string, []string](cfg.TTL)),
		warmup: pond.NewResultPool[int](cfg.WarmupPoolSize),
	}, nil
}

func (c *CachedCatalog) Catalogs(ctx context.Context) ([]string, error) {
	return c.cached("catalogs", func() ([]string, error) { return c.cfg.Source.Catalogs(ctx) })
}

func (c *CachedCatalog) Databases(ctx context.Context, catalog string) ([]string, error) {
	return c.cached("databases:"+catalog, func() ([]string, error) { return c.cfg.Source.Databases(ctx, catalog) })
}

func (c *CachedCatalog) Tables(ctx context.Context, catalog, database string) ([]string, error) {
	return c.cached("tables:"+catalog+"."+database, func() ([]string, error) {
		return c.cfg.Source.Tables(ctx, catalog, database)
	})
}

func (c *CachedCatalog) cached(key string, load func() ([]string, error)) ([]string, error) {
	if item := c.cache.Get(key); item != nil {
		return append([]string(nil), item.Value()...), nil
	}
	values, err := load()
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, values, ttlcache.DefaultTTL)
	return append([]string(nil), values...), nil
}

// Warm loads the databases and tables of every catalog into the cache and returns
// the number of table listings cached. Failures of individual listings are logged.
func (c *CachedCatalog) Warm(ctx context.Context) (int, error) {
	catalogs, err := c.Catalogs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list catalogs: %w", err)
	}

	group := c.warmup.NewGroupContext(ctx)
	for _, catalog := range catalogs {
		group.SubmitErr(func() (int, error) {
			dbs, err := c.Databases(ctx, catalog)
			if err != nil {
				c.log.Warn("chat: failed to warm databases", "catalog", catalog, "error", err)
				return 0, nil
			}
			n := 0
			for _, db := range dbs {
				if _, err := c.Tables(ctx, catalog, db); err != nil {
					c.log.Warn("chat: failed to warm tables", "catalog", catalog, "database", db, "error", err)
					continue
				}
				n++
			}
			return n, nil
		})
	}
	counts, err := group.Wait()
	if err != nil {
		return 0, fmt.Errorf("failed to warm catalog cache: %w", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	c.log.Info("chat: catalog cache warmed", "catalogs", len(catalogs), "table_listings", total)
	return total, nil
}

// Close stops the warmup pool.
func (c *CachedCatalog) Close() {
	c.warmup.StopAndWait()
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
