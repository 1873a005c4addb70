package miniext2_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	miniext2 "github.com/finn-oss/blockfs/drivers/miniext2"
	"github.com/finn-oss/blockfs/errors"
	fixtures "github.com/finn-oss/blockfs/testing"
)

func mountTemp(t *testing.T) *miniext2.Driver {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volume.img")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	driver, err := miniext2.Mount(f)
	require.NoError(t, err)
	return driver
}

func TestMount_FreshVolume(t *testing.T) {
	d := mountTemp(t)

	require.Equal(t, "/", d.Pwd())
	names, err := d.Ls()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestMkdirAndCd(t *testing.T) {
	d := mountTemp(t)

	require.NoError(t, d.Mkdir("foo"))
	names, err := d.Ls()
	require.NoError(t, err)
	require.Equal(t, []string{"foo/"}, names)

	require.NoError(t, d.Cd("foo"))
	require.Equal(t, "/foo/", d.Pwd())

	names, err = d.Ls()
	require.NoError(t, err)
	require.Equal(t, []string{".."}, names)
}

func TestCd_AtRootFails(t *testing.T) {
	d := mountTemp(t)

	err := d.Cd("..")
	require.Error(t, err)
	var berr errors.BlockfsError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, errors.ErrAtRoot, berr.Kind())
}

func TestTouchAndCat(t *testing.T) {
	d := mountTemp(t)

	require.NoError(t, d.Touch("hello", []byte("world")))
	content, err := d.Cat("hello")
	require.NoError(t, err)
	require.Equal(t, "world", content)
}

func TestTouch_AlreadyExists(t *testing.T) {
	d := mountTemp(t)

	require.NoError(t, d.Touch("a", []byte("world")))
	err := d.Touch("a", []byte("anything"))
	require.Error(t, err)
	var berr errors.BlockfsError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, errors.ErrAlreadyExists, berr.Kind())
}

func TestRm_File(t *testing.T) {
	d := mountTemp(t)

	require.NoError(t, d.Touch("a", []byte("data")))
	require.NoError(t, d.Rm("a"))

	names, err := d.Ls()
	require.NoError(t, err)
	require.Empty(t, names)

	_, err = d.Cat("a")
	require.Error(t, err)
}

func TestRm_DirectoryFreesChildren(t *testing.T) {
	d := mountTemp(t)

	require.NoError(t, d.Mkdir("d"))
	require.NoError(t, d.Cd("d"))
	require.NoError(t, d.Touch("x", []byte("hi")))
	require.NoError(t, d.Cd(".."))
	require.NoError(t, d.Rm("d"))

	names, err := d.Ls()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestCd_NotFoundForMissingNameAndPlainFile(t *testing.T) {
	d := mountTemp(t)

	err := d.Cd("nope")
	require.Error(t, err)

	// Cd looks up "f/", and a plain file is stored as "f", so it is not found.
	require.NoError(t, d.Touch("f", []byte("x")))
	err = d.Cd("f")
	require.Error(t, err)
	var berr errors.BlockfsError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, errors.ErrNotFound, berr.Kind())
}

func TestTouch_IllegalName(t *testing.T) {
	d := mountTemp(t)

	err := d.Touch("a/b", []byte("x"))
	require.Error(t, err)
	var berr errors.BlockfsError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, errors.ErrIllegalName, berr.Kind())
}

func TestCat_OnDirectoryFailsWithCodecError(t *testing.T) {
	d := mountTemp(t)
	require.NoError(t, d.Mkdir("d"))

	// Directory entries are stored with a trailing "/".
	_, err := d.Cat("d/")
	require.Error(t, err)
	var berr errors.BlockfsError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, errors.ErrCodec, berr.Kind())
}

func TestFreeOnRemove_AllowsReuse(t *testing.T) {
	d := mountTemp(t)

	content := fixtures.RandomContent(t, 3000) // spans multiple blocks

	for i := 0; i < 20; i++ {
		require.NoError(t, d.Touch("big", content))
		require.NoError(t, d.Rm("big"))
	}
}

func TestRemount_PreservesTree(t *testing.T) {
	path := filepath.Join(t.TempDir(), "volume.img")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	require.NoError(t, err)
	d, err := miniext2.Mount(f)
	require.NoError(t, err)
	require.NoError(t, d.Mkdir("persisted"))
	require.NoError(t, f.Close())

	f2, err := os.OpenFile(path, os.O_RDWR, 0o600)
	require.NoError(t, err)
	defer f2.Close()
	d2, err := miniext2.Mount(f2)
	require.NoError(t, err)

	names, err := d2.Ls()
	require.NoError(t, err)
	require.Equal(t, []string{"persisted/"}, names)
}
