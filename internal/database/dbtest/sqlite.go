// Package dbtest opens an in-memory SQLite database with the service schema for tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-deals/internal/models"
)

// Models lists the tables in creation order.
var Models = []interface{}{
	(*models.Merchant)(nil),
	(*models.Deal)(nil),
	(*models.Redemption)(nil),
}

// NewSQLiteDB returns a fresh database private to the calling test. A single connection
// keeps the shared in-memory database alive and serialises statements.
func NewSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open(sqliteshim.ShimName, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	for _, m := range Models {
		if _, err := bunDB.NewCreateTable().Model(m).IfNotExists().Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}

	t.Cleanup(func() { _ = bunDB.Close() })
	return bunDB
}
