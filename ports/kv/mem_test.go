package kv

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type checkpoint struct {
	Name    string
	Offsets map[string]int64
}

func testStore(t *testing.T, s Store) {
	t.Helper()

	_, err := Get[checkpoint](context.Background(), s, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	c1 := checkpoint{Name: "tail", Offsets: map[string]int64{"n1-0": 4}}
	require.NoError(t, Put(context.Background(), s, "cp/tail", c1))
	require.NoError(t, Put(context.Background(), s, "cp/other", checkpoint{Name: "other"}))

	loaded, err := Get[checkpoint](context.Background(), s, "cp/tail")
	require.NoError(t, err)
	require.Equal(t, c1, loaded)

	require.NoError(t, s.Delete(context.Background(), "cp/tail"))
	require.NoError(t, s.Delete(context.Background(), "cp/tail")) // idempotent
	_, err = Get[checkpoint](context.Background(), s, "cp/tail")
	require.ErrorIs(t, err, ErrNotFound)

	loaded, err = Get[checkpoint](context.Background(), s, "cp/other")
	require.NoError(t, err)
	require.Equal(t, "other", loaded.Name)
}

func Test_Memory(t *testing.T) {
	testStore(t, NewMemStore())
}

func Test_Memory_ValueDetached(t *testing.T) {
	s := NewMemStore()
	buf := []byte(`{"a":1}`)
	require.NoError(t, s.Put(context.Background(), "k", buf))
	buf[0] = 'X'

	got, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, []byte(`{"a":1}`), got)
}

func Test_File(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, s)
}

func Test_File_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	s1, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, Put(context.Background(), s1, "cp/tail", checkpoint{Name: "tail"}))

	s2, err := NewFileStore(dir)
	require.NoError(t, err)
	loaded, err := Get[checkpoint](context.Background(), s2, "cp/tail")
	require.NoError(t, err)
	require.Equal(t, "tail", loaded.Name)
}
