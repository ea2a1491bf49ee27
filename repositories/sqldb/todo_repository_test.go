package sqldb

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/ryanvade/infra-demo-lnl/config"
	"github.com/ryanvade/infra-demo-lnl/models"
	"github.com/ryanvade/infra-demo-lnl/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var todoRowColumns = []string{"id", "owner", "descr", "completed", "created_at", "updated_at"}

func newMockRepository(t *testing.T, driver Driver) (repositories.TodoRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewTodoRepository(Wrap(db, driver, zap.NewNop()), zap.NewNop()), mock
}

func TestDetectDriver(t *testing.T) {
	tests := []struct {
		dsn  string
		want Driver
	}{
		{"postgres://user:pw@localhost:5432/todo", Postgres},
		{"postgresql://localhost/todo", Postgres},
		{"host=localhost port=5432 user=todo dbname=todo sslmode=disable", Postgres},
		{"todo.db", SQLite},
		{"file:todo.db?cache=shared", SQLite},
		{":memory:", SQLite},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectDriver(tt.dsn), tt.dsn)
	}
}

func TestRebind(t *testing.T) {
	query := "SELECT id FROM todos WHERE owner = ? AND id > ? LIMIT ?"
	assert.Equal(t, "SELECT id FROM todos WHERE owner = $1 AND id > $2 LIMIT $3", Postgres.Rebind(query))
	assert.Equal(t, query, SQLite.Rebind(query))
}

func TestTodoRepository_Create(t *testing.T) {
	ctx := context.Background()
	todo, err := models.NewTodo("user-1", "buy milk")
	require.NoError(t, err)

	t.Run("inserts with postgres placeholders", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		insert := regexp.QuoteMeta("INSERT INTO todos (id, owner, descr, completed, created_at, updated_at)") + `\s+VALUES \(\$1, \$2, \$3, \$4, \$5, \$6\)`
		mock.ExpectExec(insert).
			WithArgs(todo.ID.String(), "user-1", "buy milk", false, todo.CreatedAt, todo.UpdatedAt).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, repo.Create(ctx, todo))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wraps driver errors", func(t *testing.T) {
		repo, mock := newMockRepository(t, SQLite)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO todos")).
			WillReturnError(errors.New("disk I/O error"))

		err := repo.Create(ctx, todo)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create todo")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTodoRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND owner = $2")).
			WithArgs(id.String(), "user-1").
			WillReturnRows(sqlmock.NewRows(todoRowColumns).AddRow(id.String(), "user-1", "buy milk", true, now, now))

		todo, err := repo.GetByID(ctx, "user-1", id)
		require.NoError(t, err)
		assert.Equal(t, id, todo.ID)
		assert.Equal(t, "buy milk", todo.Descr)
		assert.True(t, todo.Completed)
		assert.Equal(t, now, todo.CreatedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		mock.ExpectQuery(regexp.QuoteMeta("FROM todos")).
			WithArgs(id.String(), "user-2").
			WillReturnRows(sqlmock.NewRows(todoRowColumns))

		_, err := repo.GetByID(ctx, "user-2", id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTodoRepository_List(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	first := uuid.Must(uuid.NewV7())
	second := uuid.Must(uuid.NewV7())

	t.Run("first page", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		mock.ExpectQuery(regexp.QuoteMeta("FROM todos WHERE owner = $1 ORDER BY id LIMIT $2")).
			WithArgs("user-1", 20).
			WillReturnRows(sqlmock.NewRows(todoRowColumns).
				AddRow(first.String(), "user-1", "one", false, now, now).
				AddRow(second.String(), "user-1", "two", true, now, now))

		todos, err := repo.List(ctx, repositories.TodoFilter{Owner: "user-1", Limit: 20})
		require.NoError(t, err)
		require.Len(t, todos, 2)
		assert.Equal(t, first, todos[0].ID)
		assert.Equal(t, second, todos[1].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("after cursor", func(t *testing.T) {
		repo, mock := newMockRepository(t, SQLite)
		mock.ExpectQuery(regexp.QuoteMeta("FROM todos WHERE owner = ? AND id > ? ORDER BY id LIMIT ?")).
			WithArgs("user-1", first.String(), 1).
			WillReturnRows(sqlmock.NewRows(todoRowColumns).
				AddRow(second.String(), "user-1", "two", false, now, now))

		todos, err := repo.List(ctx, repositories.TodoFilter{Owner: "user-1", AfterID: &first, Limit: 1})
		require.NoError(t, err)
		require.Len(t, todos, 1)
		assert.Equal(t, second, todos[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty page is not nil", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		mock.ExpectQuery(regexp.QuoteMeta("FROM todos")).
			WillReturnRows(sqlmock.NewRows(todoRowColumns))

		todos, err := repo.List(ctx, repositories.TodoFilter{Owner: "user-1", Limit: 5})
		require.NoError(t, err)
		assert.NotNil(t, todos)
		assert.Empty(t, todos)
	})

	t.Run("query error", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		mock.ExpectQuery(regexp.QuoteMeta("FROM todos")).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.List(ctx, repositories.TodoFilter{Owner: "user-1", Limit: 5})
		assert.Error(t, err)
	})
}

func TestTodoRepository_Update(t *testing.T) {
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	now := time.Now().UTC()
	completed := true

	t.Run("partial update", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE todos")).
			WithArgs(nil, true, sqlmock.AnyArg(), id.String(), "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND owner = $2")).
			WithArgs(id.String(), "user-1").
			WillReturnRows(sqlmock.NewRows(todoRowColumns).AddRow(id.String(), "user-1", "buy milk", true, now, now))

		todo, err := repo.Update(ctx, "user-1", id, repositories.TodoUpdate{Completed: &completed})
		require.NoError(t, err)
		assert.True(t, todo.Completed)
		assert.Equal(t, "buy milk", todo.Descr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE todos")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		_, err := repo.Update(ctx, "user-1", id, repositories.TodoUpdate{Completed: &completed})
		assert.ErrorIs(t, err, repositories.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestTodoRepository_Delete(t *testing.T) {
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())

	t.Run("deleted", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todos WHERE id = $1 AND owner = $2")).
			WithArgs(id.String(), "user-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(ctx, "user-1", id))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nothing deleted", func(t *testing.T) {
		repo, mock := newMockRepository(t, Postgres)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM todos")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Delete(ctx, "user-1", id)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestMigrate(t *testing.T) {
	ctx := context.Background()

	t.Run("applies pending migrations in a transaction", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS todos")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX IF NOT EXISTS idx_todos_owner_id")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)")).
			WithArgs(1, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		require.NoError(t, Wrap(sqlDB, Postgres, zap.NewNop()).Migrate(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips applied migrations", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
			WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))

		require.NoError(t, Wrap(sqlDB, SQLite, zap.NewNop()).Migrate(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back a failed migration", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
			WillReturnRows(sqlmock.NewRows([]string{"version"}))
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS todos")).
			WillReturnError(errors.New("permission denied"))
		mock.ExpectRollback()

		err = Wrap(sqlDB, Postgres, zap.NewNop()).Migrate(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "migration 1")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestHealthCheck(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	require.NoError(t, Wrap(sqlDB, Postgres, zap.NewNop()).HealthCheck(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSQLiteRoundTrip runs the repository against an in-memory SQLite
// database. It is skipped when the binary is built without cgo.
func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := NewDB(config.DatabaseConfig{ConnectionString: ":memory:"}, zap.NewNop())
	if err != nil && strings.Contains(err.Error(), "CGO_ENABLED") {
		t.Skip("sqlite3 requires cgo")
	}
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))

	repo := NewTodoRepository(db, zap.NewNop())

	var ids []uuid.UUID
	for _, descr := range []string{"one", "two", "three"} {
		todo, err := models.NewTodo("user-1", descr)
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, todo))
		ids = append(ids, todo.ID)
		time.Sleep(2 * time.Millisecond)
	}
	other, err := models.NewTodo("user-2", "not yours")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, other))

	page, err := repo.List(ctx, repositories.TodoFilter{Owner: "user-1", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, err = repo.List(ctx, repositories.TodoFilter{Owner: "user-1", AfterID: &page[1].ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "three", page[0].Descr)

	_, err = repo.GetByID(ctx, "user-1", other.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	completed := true
	updated, err := repo.Update(ctx, "user-1", ids[0], repositories.TodoUpdate{Completed: &completed})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "one", updated.Descr)

	require.NoError(t, repo.Delete(ctx, "user-1", ids[0]))
	assert.ErrorIs(t, repo.Delete(ctx, "user-1", ids[0]), repositories.ErrNotFound)
}
