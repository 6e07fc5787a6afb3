package osfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xetdata/nfsserve/internal/vfs"
)

func TestNewRejectsNonDirectory(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := New(file)
	assert.Error(t, err)
}

func TestLookupGetAttrExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi"), 0o644))

	f, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	user := vfs.UserContext{}

	id, status := f.Lookup(ctx, f.RootDir(), "hello.txt", user)
	require.Equal(t, vfs.StatusOK, status)

	attr, status := f.GetAttr(ctx, id, user)
	require.Equal(t, vfs.StatusOK, status)
	assert.Equal(t, vfs.FileTypeRegular, attr.Type)
	assert.Equal(t, uint64(2), attr.Size)
}

func TestCreateWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	user := vfs.UserContext{}

	id, _, status := f.Create(ctx, f.RootDir(), "a.txt", vfs.Sattr3{}, user)
	require.Equal(t, vfs.StatusOK, status)

	_, status = f.Write(ctx, id, 0, []byte("payload"), user)
	require.Equal(t, vfs.StatusOK, status)

	data, eof, status := f.Read(ctx, id, 0, 1024, user)
	require.Equal(t, vfs.StatusOK, status)
	assert.True(t, eof)
	assert.Equal(t, "payload", string(data))

	content, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(content))
}

func TestMkdirAndReadDir(t *testing.T) {
	dir := t.TempDir()
	f, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	user := vfs.UserContext{}

	_, _, status := f.Mkdir(ctx, f.RootDir(), "sub", vfs.Sattr3{}, user)
	require.Equal(t, vfs.StatusOK, status)

	entries, end, status := f.ReadDir(ctx, f.RootDir(), 0, 0, user)
	require.Equal(t, vfs.StatusOK, status)
	assert.True(t, end)
	require.Len(t, entries, 1)
	assert.Equal(t, "sub", entries[0].Name)
}

func TestRemoveRejectsNonEmptyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "f"), nil, 0o644))

	f, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	user := vfs.UserContext{}

	status := f.Remove(ctx, f.RootDir(), "sub", user)
	assert.Equal(t, vfs.StatusNotEmpty, status)
}

func TestRenameAcrossDirectoriesPreservesFileid(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "dst"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file"), []byte("x"), 0o644))

	f, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	user := vfs.UserContext{}

	dstID, status := f.Lookup(ctx, f.RootDir(), "dst", user)
	require.Equal(t, vfs.StatusOK, status)
	id, status := f.Lookup(ctx, f.RootDir(), "file", user)
	require.Equal(t, vfs.StatusOK, status)

	status = f.Rename(ctx, f.RootDir(), "file", dstID, "moved", user)
	require.Equal(t, vfs.StatusOK, status)

	gotID, status := f.Lookup(ctx, dstID, "moved", user)
	require.Equal(t, vfs.StatusOK, status)
	assert.Equal(t, id, gotID)
}

func TestSymlinkReadlink(t *testing.T) {
	dir := t.TempDir()
	f, err := New(dir)
	require.NoError(t, err)
	ctx := context.Background()
	user := vfs.UserContext{}

	id, _, status := f.Symlink(ctx, f.RootDir(), "link", "/etc/passwd", vfs.Sattr3{}, user)
	require.Equal(t, vfs.StatusOK, status)

	target, status := f.Readlink(ctx, id, user)
	require.Equal(t, vfs.StatusOK, status)
	assert.Equal(t, "/etc/passwd", target)
}

func TestReadOnlyRejectsMutation(t *testing.T) {
	dir := t.TempDir()
	f, err := New(dir, ReadOnly())
	require.NoError(t, err)
	ctx := context.Background()
	user := vfs.UserContext{}

	_, _, status := f.Create(ctx, f.RootDir(), "a", vfs.Sattr3{}, user)
	assert.Equal(t, vfs.StatusROFS, status)
}
