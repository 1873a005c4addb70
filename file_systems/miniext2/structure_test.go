package miniext2_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/finn-oss/blockfs/file_systems/miniext2"
)

func TestSuperblock_RoundTrip(t *testing.T) {
	sb := miniext2.DefaultSuperblock()
	decoded, err := miniext2.DecodeSuperblock(miniext2.EncodeSuperblock(sb))
	require.NoError(t, err)
	require.Equal(t, sb, decoded)
}

func TestSuperblock_LayoutSelfConsistency(t *testing.T) {
	sb := miniext2.DefaultSuperblock()

	require.EqualValues(t, sb.DataBitmap+miniext2.BlocksCount/8, sb.InodeBitmap)
	require.EqualValues(t, sb.InodeBitmap+miniext2.InodesCount/8, sb.InodeTable)
	require.EqualValues(t, sb.InodeTable+sb.InodesCount*sb.InodeSize, sb.DataBlocks)
}

func TestInode_RoundTrip(t *testing.T) {
	inode := miniext2.Inode{
		Size:        2500,
		IsDirectory: true,
		Direct:      [miniext2.InodeLinks]uint32{1, 2, 3},
	}
	decoded, err := miniext2.DecodeInode(miniext2.EncodeInode(inode))
	require.NoError(t, err)
	require.Equal(t, inode, decoded)
}

func TestInode_Default(t *testing.T) {
	inode := miniext2.DefaultInode()
	require.EqualValues(t, 0, inode.Size)
	require.False(t, inode.IsDirectory)
	for _, b := range inode.Direct {
		require.EqualValues(t, 0, b)
	}
}

func TestNumBlocksForSize(t *testing.T) {
	require.EqualValues(t, 0, miniext2.NumBlocksForSize(0))
	require.EqualValues(t, 1, miniext2.NumBlocksForSize(1))
	require.EqualValues(t, 1, miniext2.NumBlocksForSize(miniext2.BlockSize))
	require.EqualValues(t, 2, miniext2.NumBlocksForSize(miniext2.BlockSize+1))
}

func TestDirectory_RoundTrip(t *testing.T) {
	dir := miniext2.Directory{
		HasParent: true,
		Parent:    0,
		Entries: []miniext2.DirEntry{
			{Inode: 1, Name: "hello"},
			{Inode: 2, Name: "sub/"},
		},
	}
	decoded, err := miniext2.DecodeDirectory(miniext2.EncodeDirectory(dir))
	require.NoError(t, err)
	require.Equal(t, dir, decoded)
}

func TestDirectory_RootHasNoParent(t *testing.T) {
	root := miniext2.Directory{}
	decoded, err := miniext2.DecodeDirectory(miniext2.EncodeDirectory(root))
	require.NoError(t, err)
	require.False(t, decoded.HasParent)
	require.Empty(t, decoded.Entries)
}
