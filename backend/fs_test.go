package backend

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFSSocket(t *testing.T) (*FSSocket, string) {
	t.Helper()
	dir := t.TempDir()
	s := NewFSSocket(Config{
		Alias:     "fs_test",
		Type:      TypeFS,
		Root:      filepath.Join(dir, "blobs"),
		MetaTable: filepath.Join(dir, "blobs-meta.json"),
	})
	_, err := s.Init().Wait()
	require.NoError(t, err)
	return s, dir
}

func TestFSSocketRoundTrip(t *testing.T) {
	s, _ := newTestFSSocket(t)

	meta, err := s.SetObject("hello.txt", []byte("Hello World!")).Wait()
	require.NoError(t, err)
	assert.Equal(t, int64(12), meta.Size)

	data, err := s.GetObject("hello.txt").Wait()
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello World!"), data)

	got, err := s.GetObjectMetadata("hello.txt").Wait()
	require.NoError(t, err)
	assert.Equal(t, meta, got)
}

func TestFSSocketNumericFileNames(t *testing.T) {
	s, dir := newTestFSSocket(t)

	_, err := s.SetObject("first", []byte("a")).Wait()
	require.NoError(t, err)
	_, err = s.SetObject("second", []byte("b")).Wait()
	require.NoError(t, err)

	// Файлы именуются последовательными числами начиная с 1
	assert.FileExists(t, filepath.Join(dir, "blobs", "1"))
	assert.FileExists(t, filepath.Join(dir, "blobs", "2"))
}

func TestFSSocketCounterResumes(t *testing.T) {
	s, dir := newTestFSSocket(t)

	_, err := s.SetObject("first", []byte("a")).Wait()
	require.NoError(t, err)
	_, err = s.SetObject("second", []byte("b")).Wait()
	require.NoError(t, err)
	_, err = s.Close().Wait()
	require.NoError(t, err)

	// Переинициализация возобновляет счетчик с max(existing)+1
	reopened := NewFSSocket(Config{
		Alias:     "fs_test",
		Type:      TypeFS,
		Root:      filepath.Join(dir, "blobs"),
		MetaTable: filepath.Join(dir, "blobs-meta.json"),
	})
	_, err = reopened.Init().Wait()
	require.NoError(t, err)

	_, err = reopened.SetObject("third", []byte("c")).Wait()
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "blobs", "3"))
}

func TestFSSocketBackupWritesPrettySidecar(t *testing.T) {
	s, dir := newTestFSSocket(t)

	_, err := s.SetObject("hello.txt", []byte("Hello World!")).Wait()
	require.NoError(t, err)
	_, err = s.Backup().Wait()
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "blobs-meta.json"))
	require.NoError(t, err)
	// Pretty JSON с отступами
	assert.Contains(t, string(raw), "\n  ")

	var sidecar map[string]struct {
		ID        string `json:"id"`
		Size      int64  `json:"size"`
		CreatedAt int64  `json:"created_at"`
		File      string `json:"file"`
	}
	require.NoError(t, json.Unmarshal(raw, &sidecar))
	require.Contains(t, sidecar, "hello.txt")
	assert.Equal(t, int64(12), sidecar["hello.txt"].Size)
	assert.Equal(t, "1", sidecar["hello.txt"].File)
}

func TestFSSocketReloadsSidecarOnInit(t *testing.T) {
	s, dir := newTestFSSocket(t)

	_, err := s.SetObject("persist", []byte("still here")).Wait()
	require.NoError(t, err)
	_, err = s.Close().Wait() // Close сбрасывает sidecar
	require.NoError(t, err)

	reopened := NewFSSocket(Config{
		Alias:     "fs_test",
		Type:      TypeFS,
		Root:      filepath.Join(dir, "blobs"),
		MetaTable: filepath.Join(dir, "blobs-meta.json"),
	})
	_, err = reopened.Init().Wait()
	require.NoError(t, err)

	data, err := reopened.GetObject("persist").Wait()
	require.NoError(t, err)
	assert.Equal(t, []byte("still here"), data)
}

func TestFSSocketMalformedSidecarTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	meta := filepath.Join(dir, "blobs-meta.json")
	require.NoError(t, os.WriteFile(meta, []byte("{not json"), 0o644))

	s := NewFSSocket(Config{
		Alias:     "fs_test",
		Type:      TypeFS,
		Root:      filepath.Join(dir, "blobs"),
		MetaTable: meta,
	})
	_, err := s.Init().Wait()
	require.NoError(t, err)

	_, err = s.GetObjectMetadata("anything").Wait()
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFSSocketRefusesDuplicate(t *testing.T) {
	s, _ := newTestFSSocket(t)

	_, err := s.SetObject("dup", []byte("a")).Wait()
	require.NoError(t, err)
	_, err = s.SetObject("dup", []byte("b")).Wait()
	assert.ErrorIs(t, err, ErrObjectExists)
	_, err = s.ApproveObjectMetadata("dup", 1).Wait()
	assert.ErrorIs(t, err, ErrObjectExists)
}

func TestFSSocketDelObject(t *testing.T) {
	s, dir := newTestFSSocket(t)

	_, err := s.SetObject("victim", []byte("x")).Wait()
	require.NoError(t, err)

	existed, err := s.DelObject("victim").Wait()
	require.NoError(t, err)
	assert.True(t, existed)
	assert.NoFileExists(t, filepath.Join(dir, "blobs", "1"))

	existed, err = s.DelObject("victim").Wait()
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestFSSocketIsOnline(t *testing.T) {
	s, _ := newTestFSSocket(t)

	live, err := s.IsOnline().Wait()
	require.NoError(t, err)
	assert.True(t, live.Online)

	_, err = s.Close().Wait()
	require.NoError(t, err)

	live, err = s.IsOnline().Wait()
	require.NoError(t, err)
	assert.False(t, live.Online)
}
