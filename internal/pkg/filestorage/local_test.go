package filestorage

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	ls, err := NewLocalStorage(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return ls
}

func TestLocalStorage_SaveOpenDelete(t *testing.T) {
	ls := newTestStorage(t)

	stored, err := ls.Save(strings.NewReader("solution"), "exercises/TDT4125/user_3", "oving1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "exercises/TDT4125/user_3/oving1.pdf", stored)

	rc, err := ls.Open(stored)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "solution", string(body))

	require.NoError(t, ls.DeleteFile(stored))
	_, err = os.Stat(ls.GetFullPath(stored))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is fine
	assert.NoError(t, ls.DeleteFile(stored))
}

func TestLocalStorage_NameCollision(t *testing.T) {
	ls := newTestStorage(t)

	first, err := ls.Save(strings.NewReader("a"), "avatars/user_kari_2", "me.png")
	require.NoError(t, err)
	second, err := ls.Save(strings.NewReader("b"), "avatars/user_kari_2", "me.png")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasPrefix(second, "avatars/user_kari_2/me_"))
	assert.True(t, strings.HasSuffix(second, ".png"))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	ls := newTestStorage(t)

	_, err := ls.Save(strings.NewReader("x"), "../outside", "f.txt")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = ls.Open("../../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidPath)

	// directory components in the client filename are dropped
	stored, err := ls.Save(strings.NewReader("x"), "exercises/X/user_1", "../../evil.txt")
	require.NoError(t, err)
	assert.Equal(t, "exercises/X/user_1/evil.txt", stored)
}
