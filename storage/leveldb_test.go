package storage

import (
	"io/ioutil"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_PutGetDelete(t *testing.T) {
	s, e := NewStorage("", nil)
	require.NoError(t, e)
	defer s.Close()

	require.NoError(t, s.Put(Account, []byte("a"), []byte("1")))
	assert.True(t, s.Contains(Account, []byte("a")))
	assert.False(t, s.Contains(Slot, []byte("a")))

	v, e := s.Get(Account, []byte("a"))
	require.NoError(t, e)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, s.Delete(Account, []byte("a")))
	assert.False(t, s.Contains(Account, []byte("a")))
}

func TestStorage_Keys(t *testing.T) {
	s, e := NewStorage("", nil)
	require.NoError(t, e)
	defer s.Close()

	require.NoError(t, s.Put(Account, []byte("k1"), []byte("1")))
	require.NoError(t, s.Put(Account, []byte("k2"), []byte("2")))
	require.NoError(t, s.Put(Slot, []byte("k3"), []byte("3")))

	keys := s.Keys(Account, nil)
	assert.Equal(t, [][]byte{[]byte("k1"), []byte("k2")}, keys)
}

func TestStorage_WriteBatch(t *testing.T) {
	s, e := NewStorage("", nil)
	require.NoError(t, e)
	defer s.Close()

	require.NoError(t, s.Put(Account, []byte("gone"), []byte("x")))
	require.NoError(t, s.WriteBatch([]Op{
		{Type: Account, Key: []byte("new"), Value: []byte("y")},
		{Type: Account, Key: []byte("gone")},
	}))

	assert.True(t, s.Contains(Account, []byte("new")))
	assert.False(t, s.Contains(Account, []byte("gone")))
}

func TestStorage_OnDisk(t *testing.T) {
	dir, e := ioutil.TempDir("", "accountguard")
	require.NoError(t, e)
	defer os.RemoveAll(dir)

	s, e := NewStorage(dir, nil)
	require.NoError(t, e)
	require.NoError(t, s.Put(Slot, []byte("h"), []byte{7}))
	s.Close()

	s, e = NewStorage(dir, nil)
	require.NoError(t, e)
	defer s.Close()
	v, e := s.Get(Slot, []byte("h"))
	require.NoError(t, e)
	assert.Equal(t, []byte{7}, v)
	assert.NotNil(t, s.Stats())
}
