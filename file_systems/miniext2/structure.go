// Package miniext2 defines the on-disk structures of the volume — the
// Superblock, Inode, and Directory payload from spec.md §3 — and their
// binary codec (spec.md §4.3). It has no notion of a backing file or an
// allocator; it only turns these types into bytes and back.
//
// The codec is a deterministic little-endian encoding built on
// encoding/binary, the same approach used throughout the retrieved
// filesystem corpus (e.g. ext4 superblock decoding) for fixed on-disk
// layouts. Fixed-size fields are written in struct order with no padding;
// the one variable-length field (Directory.Entries) is prefixed with its
// element count, per spec.md §4.3.
package miniext2

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/finn-oss/blockfs/errors"
)

// Volume geometry constants, fixed per spec.md §3.
const (
	InodesCount = 1024
	BlocksCount = 1024
	BlockSize   = 1024
	InodeLinks  = 12
)

var byteOrder = binary.LittleEndian

// Superblock is the volume's metadata header: its geometry and the byte
// offsets of every other region, self-describing per spec.md §6.1.
type Superblock struct {
	BlockSize   uint32
	InodeSize   uint32
	BlocksCount uint32
	InodesCount uint32
	DataBitmap  uint32
	InodeBitmap uint32
	InodeTable  uint32
	DataBlocks  uint32
}

// SuperblockSize is the fixed on-disk size of an encoded Superblock.
var SuperblockSize = binary.Size(Superblock{})

// DefaultSuperblock builds the Superblock a fresh volume is formatted with:
// the fixed geometry constants and the region offsets spec.md §6.1's layout
// formula produces.
func DefaultSuperblock() Superblock {
	sb := Superblock{
		BlockSize:   BlockSize,
		InodeSize:   uint32(InodeSize),
		BlocksCount: BlocksCount,
		InodesCount: InodesCount,
	}
	sb.DataBitmap = uint32(SuperblockSize)
	sb.InodeBitmap = sb.DataBitmap + uint32(BlocksCount/8)
	sb.InodeTable = sb.InodeBitmap + uint32(InodesCount/8)
	sb.DataBlocks = sb.InodeTable + sb.InodesCount*sb.InodeSize
	return sb
}

// EncodeSuperblock serializes sb in the volume's fixed little-endian layout.
func EncodeSuperblock(sb Superblock) []byte {
	buf := new(bytes.Buffer)
	// Superblock's fields are all fixed-width, so binary.Write never fails.
	_ = binary.Write(buf, byteOrder, sb)
	return buf.Bytes()
}

// DecodeSuperblock parses a Superblock from exactly SuperblockSize bytes.
func DecodeSuperblock(raw []byte) (Superblock, error) {
	var sb Superblock
	if err := binary.Read(bytes.NewReader(raw), byteOrder, &sb); err != nil {
		return Superblock{}, errors.ErrCodec.Wrap(err)
	}
	return sb, nil
}

// Inode describes one file or directory: its byte size, its kind, and the
// indices of its data blocks. Only direct[0:ceil(size/blockSize)] is
// meaningful; trailing entries are unspecified, per spec.md §3.
type Inode struct {
	Size        uint32
	IsDirectory bool
	Direct      [InodeLinks]uint32
}

// InodeSize is the fixed on-disk size of an encoded Inode.
var InodeSize = binary.Size(Inode{})

// DefaultInode is the all-zero, empty inode spec.md §4.3 describes.
func DefaultInode() Inode {
	return Inode{}
}

// EncodeInode serializes inode in the volume's fixed little-endian layout.
func EncodeInode(inode Inode) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, byteOrder, inode)
	return buf.Bytes()
}

// DecodeInode parses an Inode from exactly InodeSize bytes.
func DecodeInode(raw []byte) (Inode, error) {
	var inode Inode
	if err := binary.Read(bytes.NewReader(raw), byteOrder, &inode); err != nil {
		return Inode{}, errors.ErrCodec.Wrap(err)
	}
	return inode, nil
}

// NumBlocksForSize returns ceil(size/BlockSize), the number of data blocks a
// payload of size bytes occupies.
func NumBlocksForSize(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	return (size + BlockSize - 1) / BlockSize
}

// DirEntry is one (inode index, name) pair in a Directory payload. Directory
// names carry a trailing "/" to distinguish them at lookup (spec.md §3);
// Directory itself doesn't enforce that, callers do.
type DirEntry struct {
	Inode uint32
	Name  string
}

// Directory is the payload of a directory inode: an optional parent inode
// index and an ordered, name-unique list of entries (spec.md §3).
type Directory struct {
	HasParent bool
	Parent    uint32
	Entries   []DirEntry
}

// EncodeDirectory serializes dir as a length-prefixed sequence: the parent
// flag and index, an entry count, then each entry's inode index and a
// length-prefixed name.
func EncodeDirectory(dir Directory) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, byteOrder, dir.HasParent)
	_ = binary.Write(buf, byteOrder, dir.Parent)
	_ = binary.Write(buf, byteOrder, uint32(len(dir.Entries)))
	for _, entry := range dir.Entries {
		_ = binary.Write(buf, byteOrder, entry.Inode)
		nameBytes := []byte(entry.Name)
		_ = binary.Write(buf, byteOrder, uint32(len(nameBytes)))
		buf.Write(nameBytes)
	}
	return buf.Bytes()
}

// DecodeDirectory parses a Directory payload previously produced by
// EncodeDirectory.
func DecodeDirectory(raw []byte) (Directory, error) {
	r := bytes.NewReader(raw)
	var dir Directory

	if err := binary.Read(r, byteOrder, &dir.HasParent); err != nil {
		return Directory{}, errors.ErrCodec.Wrap(err)
	}
	if err := binary.Read(r, byteOrder, &dir.Parent); err != nil {
		return Directory{}, errors.ErrCodec.Wrap(err)
	}

	var count uint32
	if err := binary.Read(r, byteOrder, &count); err != nil {
		return Directory{}, errors.ErrCodec.Wrap(err)
	}

	dir.Entries = make([]DirEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var entry DirEntry
		if err := binary.Read(r, byteOrder, &entry.Inode); err != nil {
			return Directory{}, errors.ErrCodec.Wrap(err)
		}
		var nameLen uint32
		if err := binary.Read(r, byteOrder, &nameLen); err != nil {
			return Directory{}, errors.ErrCodec.Wrap(err)
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return Directory{}, errors.ErrCodec.Wrap(err)
		}
		entry.Name = string(nameBytes)
		dir.Entries = append(dir.Entries, entry)
	}
	return dir, nil
}

// DefaultDataBitmapSize and DefaultInodeBitmapSize are the byte lengths of
// the two on-disk bitmaps. spec.md §9 (open question 2) notes the original
// sized the data bitmap from the inode-count constant; both are 1024/8 here,
// so it's harmless, but an implementation tuning the two counts
// independently must use the correct one — which these do.
const (
	DefaultDataBitmapSize  = BlocksCount / 8
	DefaultInodeBitmapSize = InodesCount / 8
)
