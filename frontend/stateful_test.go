package frontend

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blobgate/backend"
)

func newTestStateful(t *testing.T, n int) (*Stateful, []*backend.MemorySocket) {
	t.Helper()
	mems, sockets := newMemoryFleet(n)
	aliases := make([]string, n)
	for i := range aliases {
		aliases[i] = "mem_" + string(rune('1'+i))
	}
	f, err := NewStateful(sockets, Config{
		Path:    filepath.Join(t.TempDir(), "index.db"),
		Name:    "objects",
		Aliases: aliases,
	})
	require.NoError(t, err)
	_, err = f.Init().Wait()
	require.NoError(t, err)
	return f, mems
}

func TestStatefulAliasCountMustMatch(t *testing.T) {
	_, sockets := newMemoryFleet(2)
	_, err := NewStateful(sockets, Config{
		Path:    "index.db",
		Name:    "objects",
		Aliases: []string{"only_one"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alias list length")
}

func TestStatefulWriteReadRoundTrip(t *testing.T) {
	f, _ := newTestStateful(t, 3)

	idx, err := f.WriteObject("hello.txt", b64("Hello World!"), "").Wait()
	require.NoError(t, err)
	require.GreaterOrEqual(t, idx, 0)

	obj, err := f.ReadObject("hello.txt", "").Wait()
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, []byte("Hello World!"), obj.Data)
	assert.Equal(t, int64(12), obj.Meta.Size)
}

func TestStatefulWriteOnce(t *testing.T) {
	f, _ := newTestStateful(t, 2)

	_, err := f.WriteObject("once", b64("a"), "").Wait()
	require.NoError(t, err)

	_, err = f.WriteObject("once", b64("b"), "").Wait()
	assert.ErrorIs(t, err, backend.ErrObjectExists)

	// Повтор с другим bearer тоже отклоняется
	_, err = f.WriteObject("once", b64("c"), "someone-else").Wait()
	assert.ErrorIs(t, err, backend.ErrObjectExists)
}

func TestStatefulBearerIsolation(t *testing.T) {
	f, _ := newTestStateful(t, 2)

	_, err := f.WriteObject("secret", b64("ABC"), "tok-A").Wait()
	require.NoError(t, err)

	_, err = f.ReadObject("secret", "tok-B").Wait()
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.ReadObject("secret", "").Wait()
	assert.ErrorIs(t, err, ErrUnauthorized)

	obj, err := f.ReadObject("secret", "tok-A").Wait()
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, []byte("ABC"), obj.Data)
}

func TestStatefulPublicObjectReadableByAnyone(t *testing.T) {
	f, _ := newTestStateful(t, 2)

	_, err := f.WriteObject("pub", b64("open"), "").Wait()
	require.NoError(t, err)

	for _, bearer := range []string{"", "tok-X", "whatever"} {
		obj, err := f.ReadObject("pub", bearer).Wait()
		require.NoError(t, err)
		require.NotNil(t, obj, "bearer %q", bearer)
		assert.Equal(t, []byte("open"), obj.Data)
	}
}

func TestStatefulReadAbsentIsNil(t *testing.T) {
	f, _ := newTestStateful(t, 2)

	obj, err := f.ReadObject("missing", "any").Wait()
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestStatefulIndexNamesAcceptingBackend(t *testing.T) {
	f, mems := newTestStateful(t, 3)

	idx, err := f.WriteObject("tracked", b64("x"), "").Wait()
	require.NoError(t, err)

	// В индексе ровно одна запись, и она именует принявший блоб сокет
	db, err := sql.Open("sqlite", f.cfg.Path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.Query(`SELECT backend FROM "objects" WHERE id = ?`, "tracked")
	require.NoError(t, err)
	defer rows.Close()

	var aliases []string
	for rows.Next() {
		var alias string
		require.NoError(t, rows.Scan(&alias))
		aliases = append(aliases, alias)
	}
	require.NoError(t, rows.Err())
	require.Len(t, aliases, 1)
	assert.Equal(t, f.cfg.Aliases[idx], aliases[0])
	assert.True(t, mems[idx].Contains("tracked"))
}

func TestStatefulReadQueriesOnlyIndexedBackend(t *testing.T) {
	f, mems := newTestStateful(t, 3)

	idx, err := f.WriteObject("pinned", b64("data"), "").Wait()
	require.NoError(t, err)

	before := make([]int, len(mems))
	for i, m := range mems {
		before[i] = m.GetCalls
	}

	_, err = f.ReadObject("pinned", "").Wait()
	require.NoError(t, err)

	for i, m := range mems {
		if i == idx {
			assert.Greater(t, m.GetCalls, before[i], "indexed backend must be queried")
		} else {
			assert.Equal(t, before[i], m.GetCalls, "non-indexed backend %d must not be queried", i)
		}
	}
}

func TestStatefulIndexSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	_, sockets := newMemoryFleet(1)
	cfg := Config{
		Path:    filepath.Join(dir, "index.db"),
		Name:    "objects",
		Aliases: []string{"mem_1"},
	}

	f, err := NewStateful(sockets, cfg)
	require.NoError(t, err)
	_, err = f.Init().Wait()
	require.NoError(t, err)

	_, err = f.WriteObject("durable", b64("kept"), "tok").Wait()
	require.NoError(t, err)
	_, err = f.Close().Wait()
	require.NoError(t, err)

	// Новый диспетчер над тем же индексом и тем же сокетом
	reborn, err := NewStateful(sockets, cfg)
	require.NoError(t, err)
	_, err = reborn.Init().Wait()
	require.NoError(t, err)

	obj, err := reborn.ReadObject("durable", "tok").Wait()
	require.NoError(t, err)
	require.NotNil(t, obj)
	assert.Equal(t, []byte("kept"), obj.Data)

	// Write-once действует и после перезапуска
	_, err = reborn.WriteObject("durable", b64("again"), "tok").Wait()
	assert.ErrorIs(t, err, backend.ErrObjectExists)
}

func TestStatefulCloseRejectsReady(t *testing.T) {
	f, _ := newTestStateful(t, 2)

	_, err := f.Close().Wait()
	require.NoError(t, err)

	_, err = f.IsReady().Wait()
	assert.ErrorIs(t, err, ErrFrontendClosed)

	_, err = f.WriteObject("late", b64("x"), "").Wait()
	assert.Error(t, err)
}
