package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTodo(t *testing.T) {
	todo, err := NewTodo("user-1", "buy milk")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, todo.ID)
	assert.Equal(t, uuid.Version(7), todo.ID.Version())
	assert.Equal(t, "user-1", todo.Owner)
	assert.Equal(t, "buy milk", todo.Descr)
	assert.False(t, todo.Completed)
	assert.False(t, todo.CreatedAt.IsZero())
	assert.Equal(t, todo.CreatedAt, todo.UpdatedAt)
}

func TestNewTodo_IDsAreTimeOrdered(t *testing.T) {
	first, err := NewTodo("user-1", "first")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := NewTodo("user-1", "second")
	require.NoError(t, err)

	assert.Less(t, first.ID.String(), second.ID.String())
}

func TestTodo_TableName(t *testing.T) {
	assert.Equal(t, "todos", Todo{}.TableName())
}

func TestTodo_JSONOmitsOwner(t *testing.T) {
	todo := Todo{
		ID:        uuid.Must(uuid.NewV7()),
		Owner:     "user-1",
		Descr:     "write tests",
		Completed: true,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	data, err := json.Marshal(todo)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "owner")
	assert.Equal(t, todo.ID.String(), fields["id"])
	assert.Equal(t, "write tests", fields["descr"])
	assert.Equal(t, true, fields["completed"])
	assert.Equal(t, "2024-01-02T03:04:05Z", fields["createdAt"])
}
