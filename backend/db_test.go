package backend

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDBSocket(t *testing.T) *DBSocket {
	t.Helper()
	s := NewDBSocket(Config{
		Alias: "db_test",
		Type:  TypeDB,
		Path:  filepath.Join(t.TempDir(), "blobs.db"),
	})
	_, err := s.Init().Wait()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close().Wait() })
	return s
}

func TestDBSocketRoundTrip(t *testing.T) {
	s := newTestDBSocket(t)

	meta, err := s.SetObject("hello.txt", []byte("Hello World!")).Wait()
	require.NoError(t, err)
	assert.Equal(t, "hello.txt", meta.ID)
	assert.Equal(t, int64(12), meta.Size)
	assert.Greater(t, meta.CreatedAt, int64(0))

	data, err := s.GetObject("hello.txt").Wait()
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello World!"), data)

	got, err := s.GetObjectMetadata("hello.txt").Wait()
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestDBSocketRefusesDuplicate(t *testing.T) {
	s := newTestDBSocket(t)

	_, err := s.SetObject("dup", []byte("a")).Wait()
	require.NoError(t, err)

	_, err = s.SetObject("dup", []byte("b")).Wait()
	assert.ErrorIs(t, err, ErrObjectExists)

	_, err = s.ApproveObjectMetadata("dup", 1).Wait()
	assert.ErrorIs(t, err, ErrObjectExists)

	ok, err := s.ApproveObjectMetadata("fresh", 1).Wait()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDBSocketMissingObject(t *testing.T) {
	s := newTestDBSocket(t)

	_, err := s.GetObject("missing").Wait()
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = s.GetObjectMetadata("missing").Wait()
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestDBSocketDelObject(t *testing.T) {
	s := newTestDBSocket(t)

	_, err := s.SetObject("victim", []byte("x")).Wait()
	require.NoError(t, err)

	existed, err := s.DelObject("victim").Wait()
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = s.DelObject("victim").Wait()
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestDBSocketIsOnline(t *testing.T) {
	s := newTestDBSocket(t)

	live, err := s.IsOnline().Wait()
	require.NoError(t, err)
	assert.True(t, live.Online)
	assert.GreaterOrEqual(t, live.LatencyMs, int64(0))
}

func TestDBSocketClose(t *testing.T) {
	s := newTestDBSocket(t)

	_, err := s.Close().Wait()
	require.NoError(t, err)

	_, err = s.IsReady().Wait()
	assert.ErrorIs(t, err, ErrSocketClosed)

	_, err = s.GetObject("anything").Wait()
	assert.ErrorIs(t, err, ErrSocketClosed)

	// IsOnline никогда не отклоняется, даже на закрытом сокете
	live, err := s.IsOnline().Wait()
	require.NoError(t, err)
	assert.False(t, live.Online)
}

func TestDBSocketDurability(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blobs.db")

	s := NewDBSocket(Config{Alias: "db_test", Type: TypeDB, Path: path})
	_, err := s.Init().Wait()
	require.NoError(t, err)
	_, err = s.SetObject("persist", []byte("still here")).Wait()
	require.NoError(t, err)
	_, err = s.Close().Wait()
	require.NoError(t, err)

	// Новый сокет над тем же файлом видит объект
	reopened := NewDBSocket(Config{Alias: "db_test", Type: TypeDB, Path: path})
	_, err = reopened.Init().Wait()
	require.NoError(t, err)
	defer func() { reopened.Close().Wait() }()

	data, err := reopened.GetObject("persist").Wait()
	require.NoError(t, err)
	assert.Equal(t, []byte("still here"), data)
}
