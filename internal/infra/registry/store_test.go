package registry

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffcast/staffcast/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	require.NoError(t, s.Init())
	return s
}

func TestStore_PutGet(t *testing.T) {
	s := newTestStore(t)

	digest, err := s.Put("v20260301_120000", []byte(`{"trees":[]}`))
	require.NoError(t, err)
	assert.Len(t, digest, 64)

	data, err := s.Get("v20260301_120000", digest)
	require.NoError(t, err)
	assert.Equal(t, `{"trees":[]}`, string(data))
}

func TestStore_Get_DigestMismatch(t *testing.T) {
	s := newTestStore(t)
	digest, err := s.Put("v1", []byte("original"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.Path("v1"), []byte("tampered"), 0o644))
	_, err = s.Get("v1", digest)
	assert.ErrorIs(t, err, domain.ErrArtifactCorrupted)
}

func TestStore_Get_Missing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get("v404", "abc")
	assert.ErrorIs(t, err, domain.ErrArtifactCorrupted)
}

func TestStore_Put_NeverReplaces(t *testing.T) {
	s := newTestStore(t)
	digest, err := s.Put("v1", []byte("first"))
	require.NoError(t, err)

	_, err = s.Put("v1", []byte("second"))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	data, err := s.Get("v1", digest)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	entries, err := os.ReadDir(s.Dir() + "/artifacts")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file cleaned up")
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Put("v1", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, s.Remove("v1"))
	require.NoError(t, s.Remove("v1"), "second remove is a no-op")
	_, err = os.Stat(s.Path("v1"))
	assert.True(t, os.IsNotExist(err))
}

func TestStore_PathIsConfined(t *testing.T) {
	s := newTestStore(t)
	assert.NotContains(t, s.Path("../../etc/passwd"), "..")
}

func TestStore_Writable(t *testing.T) {
	assert.NoError(t, newTestStore(t).Writable())
}

func TestStore_Writable_MissingDir(t *testing.T) {
	s := NewStore(t.TempDir() + "/nested")
	assert.Error(t, s.Writable())
	require.NoError(t, s.Init())
	assert.NoError(t, s.Writable())
}
