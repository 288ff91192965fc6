package poolsql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
)

type testMySQLContainer struct {
	container *mysql.MySQLContainer
	db        *sql.DB
}

func setupMySQL(t *testing.T) *testMySQLContainer {
	t.Helper()
	ctx := context.Background()

	mysqlContainer, err := mysql.Run(ctx, "mysql:8.0",
		mysql.WithDatabase("semitexa_test"),
		mysql.WithUsername("root"),
		mysql.WithPassword("testpass"),
	)
	require.NoError(t, err, "failed to start MySQL container")
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(mysqlContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := mysqlContainer.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))
	t.Cleanup(func() { _ = db.Close() })

	return &testMySQLContainer{container: mysqlContainer, db: db}
}

func TestPoolPopPushReusesConnections(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)
	ctx := context.Background()

	pool := NewPool(tc.db, 2)
	defer pool.Close()

	c1, err := pool.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Size())

	pool.Push(c1)
	c2, err := pool.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.Size(), "pushing and popping again must reuse the idle connection")
	pool.Push(c2)
}

func TestPoolPopRespectsLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)
	ctx := context.Background()

	pool := NewPool(tc.db, 1)
	defer pool.Close()

	c1, err := pool.Pop(ctx, 5*time.Second)
	require.NoError(t, err)
	defer pool.Push(c1)

	_, err = pool.Pop(ctx, 50*time.Millisecond)
	assert.Error(t, err, "a second Pop against a pool at capacity with no idle connections must time out")
}

func TestPoolCloseFailsFuturePops(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)
	ctx := context.Background()

	pool := NewPool(tc.db, 2)
	require.NoError(t, pool.Close())

	_, err := pool.Pop(ctx, time.Second)
	assert.Error(t, err)
}

func TestPoolAdapterQueryMaterializesRows(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)
	ctx := context.Background()

	_, err := tc.db.ExecContext(ctx, "CREATE TABLE widgets (id BIGINT PRIMARY KEY, name VARCHAR(64))")
	require.NoError(t, err)
	_, err = tc.db.ExecContext(ctx, "INSERT INTO widgets (id, name) VALUES (1, 'Bolt'), (2, 'Nut')")
	require.NoError(t, err)

	pool := NewPool(tc.db, 2)
	defer pool.Close()
	adapter := &PoolAdapter{Pool: pool}

	result, err := adapter.Query(ctx, "SELECT id, name FROM widgets ORDER BY id")
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "Bolt", result.Rows[0]["name"])
	assert.Equal(t, "Nut", result.Rows[1]["name"])
}

func TestPoolAdapterExecClassifiesDuplicateKeyAsIntegrityError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)
	ctx := context.Background()

	_, err := tc.db.ExecContext(ctx, "CREATE TABLE accounts (id BIGINT PRIMARY KEY)")
	require.NoError(t, err)

	pool := NewPool(tc.db, 2)
	defer pool.Close()
	adapter := &PoolAdapter{Pool: pool}

	_, err = adapter.Exec(ctx, "INSERT INTO accounts (id) VALUES (1)")
	require.NoError(t, err)

	_, err = adapter.Exec(ctx, "INSERT INTO accounts (id) VALUES (1)")
	assert.Error(t, err)
}

func TestDetectCapabilitiesReportsAtomicDDLOnMySQL8(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	tc := setupMySQL(t)

	caps, err := DetectCapabilities(context.Background(), tc.db)
	require.NoError(t, err)
	assert.Equal(t, 8, caps.Major)
	assert.True(t, caps.SupportsAtomicDDL)
}
