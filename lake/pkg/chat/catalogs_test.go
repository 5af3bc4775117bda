package chat_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/lakeoracle/oracle/lake/pkg/chat"
	"github.com/stretchr/testify/require"
)

func TestChat_DefaultCatalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := chat.DefaultCatalog()

	catalogs, err := c.Catalogs(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"test_catalog", "prod_catalog", "legacy_catalog"}, catalogs)

	dbs, err := c.Databases(ctx, "prod_catalog")
	require.NoError(t, err)
	require.Equal(t, []string{"prod_db1", "prod_db2", "analytics_prod", "sales_db"}, dbs)

	tables, err := c.Tables(ctx, "test_catalog", "test_db1")
	require.NoError(t, err)
	require.Equal(t, []string{"users", "orders", "products", "transactions", "customer_data", "sales_metrics", "inventory"}, tables)

	_, err = c.Databases(ctx, "nope")
	require.ErrorIs(t, err, chat.ErrNotFound)
	_, err = c.Tables(ctx, "prod_catalog", "test_db1")
	require.ErrorIs(t, err, chat.ErrNotFound)
}

func TestChat_ParseCatalog(t *testing.T) {
	t.Parallel()

	t.Run("per-database tables override defaults", func(t *testing.T) {
		t.Parallel()
		c, err := chat.ParseCatalog([]byte(`
catalogs:
  - name: lake
    databases: [events, billing]
    tables:
      billing: [invoices]
tables: [t1]
`))
		require.NoError(t, err)
		tables, err := c.Tables(context.Background(), "lake", "billing")
		require.NoError(t, err)
		require.Equal(t, []string{"invoices"}, tables)
		tables, err = c.Tables(context.Background(), "lake", "events")
		require.NoError(t, err)
		require.Equal(t, []string{"t1"}, tables)
	})

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{name: "no catalogs", yaml: "tables: [a]", wantErr: "no catalogs"},
		{name: "missing name", yaml: "catalogs:\n  - databases: [a]", wantErr: "without a name"},
		{name: "duplicate", yaml: "catalogs:\n  - name: a\n  - name: a", wantErr: "duplicate catalog"},
		{name: "invalid yaml", yaml: "catalogs: [", wantErr: "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := chat.ParseCatalog([]byte(tt.yaml))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestChat_LoadCatalogFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "catalogs.yaml")
	require.NoError(t, os.WriteFile(path, []byte("catalogs:\n  - name: only\n    databases: [db]\n"), 0o600))

	c, err := chat.LoadCatalogFile(path)
	require.NoError(t, err)
	catalogs, err := c.Catalogs(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"only"}, catalogs)

	_, err = chat.LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "failed to open catalog file")
}

type stubSchemaLister struct {
	databases map[string][]string
	err       error
}

func (s *stubSchemaLister) ListDatabases(_ context.Context, catalog string) ([]string, error) {
	return s.databases[catalog], s.err
}

func (s *stubSchemaLister) ListTables(_ context.Context, catalog, database string) ([]string, error) {
	return []string{catalog + "." + database + ".t"}, s.err
}

func TestChat_InspectorCatalog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := chat.NewInspectorCatalog(&stubSchemaLister{databases: map[string][]string{"memory": {"main"}}}, []string{"memory"})

	dbs, err := c.Databases(ctx, "memory")
	require.NoError(t, err)
	require.Equal(t, []string{"main"}, dbs)

	tables, err := c.Tables(ctx, "memory", "main")
	require.NoError(t, err)
	require.Equal(t, []string{"memory.main.t"}, tables)

	_, err = c.Databases(ctx, "other")
	require.ErrorIs(t, err, chat.ErrNotFound)
	_, err = c.Tables(ctx, "other", "main")
	require.ErrorIs(t, err, chat.ErrNotFound)
}

type countingSource struct {
	chat.CatalogSource

	mu    sync.Mutex
	calls map[string]int
	fail  string
}

func (s *countingSource) count(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
}

func (s *countingSource) Databases(ctx context.Context, catalog string) ([]string, error) {
	s.count("databases:" + catalog)
	if catalog == s.fail {
		return nil, errors.New("boom")
	}
	return s.CatalogSource.Databases(ctx, catalog)
}

func (s *countingSource) Tables(ctx context.Context, catalog, database string) ([]string, error) {
	s.count("tables:" + catalog + "." + database)
	return s.CatalogSource.Tables(ctx, catalog, database)
}

func TestChat_CachedCatalog(t *testing.T) {
	t.Parallel()

	t.Run("config", func(t *testing.T) {
		t.Parallel()
		_, err := chat.NewCachedCatalog(chat.CachedCatalogConfig{Source: chat.DefaultCatalog()})
		require.ErrorContains(t, err, "logger is required")
		_, err = chat.NewCachedCatalog(chat.CachedCatalogConfig{Logger: testLog})
		require.ErrorContains(t, err, "source is required")
	})

	t.Run("caches listings", func(t *testing.T) {
		t.Parallel()
		src := &countingSource{CatalogSource: chat.DefaultCatalog(), calls: map[string]int{}}
		c, err := chat.NewCachedCatalog(chat.CachedCatalogConfig{Logger: testLog, Source: src})
		require.NoError(t, err)
		defer c.Close()

		for i := 0; i < 3; i++ {
			_, err := c.Databases(context.Background(), "prod_catalog")
			require.NoError(t, err)
			_, err = c.Tables(context.Background(), "prod_catalog", "sales_db")
			require.NoError(t, err)
		}
		require.Equal(t, 1, src.calls["databases:prod_catalog"])
		require.Equal(t, 1, src.calls["tables:prod_catalog.sales_db"])
	})

	t.Run("errors are not cached", func(t *testing.T) {
		t.Parallel()
		src := &countingSource{CatalogSource: chat.DefaultCatalog(), calls: map[string]int{}, fail: "test_catalog"}
		c, err := chat.NewCachedCatalog(chat.CachedCatalogConfig{Logger: testLog, Source: src})
		require.NoError(t, err)
		defer c.Close()

		_, err = c.Databases(context.Background(), "test_catalog")
		require.Error(t, err)
		_, err = c.Databases(context.Background(), "test_catalog")
		require.Error(t, err)
		require.Equal(t, 2, src.calls["databases:test_catalog"])
	})

	t.Run("warm", func(t *testing.T) {
		t.Parallel()
		src := &countingSource{CatalogSource: chat.DefaultCatalog(), calls: map[string]int{}}
		c, err := chat.NewCachedCatalog(chat.CachedCatalogConfig{Logger: testLog, Source: src, WarmupPoolSize: 2})
		require.NoError(t, err)
		defer c.Close()

		n, err := c.Warm(context.Background())
		require.NoError(t, err)
		require.Equal(t, 10, n)

		_, err = c.Tables(context.Background(), "legacy_catalog", "old_analytics")
		require.NoError(t, err)
		require.Equal(t, 1, src.calls["tables:legacy_catalog.old_analytics"])
	})

	t.Run("warm skips failing catalogs", func(t *testing.T) {
		t.Parallel()
		src := &countingSource{CatalogSource: chat.DefaultCatalog(), calls: map[string]int{}, fail: "prod_catalog"}
		c, err := chat.NewCachedCatalog(chat.CachedCatalogConfig{Logger: testLog, Source: src})
		require.NoError(t, err)
		defer c.Close()

		n, err := c.Warm(context.Background())
		require.NoError(t, err)
		require.Equal(t, 6, n)
	})
}
