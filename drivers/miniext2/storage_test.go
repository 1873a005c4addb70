package miniext2_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	miniext2 "github.com/finn-oss/blockfs/drivers/miniext2"
)

func TestStorage_WriteThenRead(t *testing.T) {
	backing := make([]byte, 4096)
	storage := miniext2.NewStorage(bytesextra.NewReadWriteSeeker(backing))

	n, err := storage.Write(100, []byte("hello, volume"))
	require.NoError(t, err)
	require.Equal(t, len("hello, volume"), n)

	read, err := storage.Read(100, len("hello, volume"))
	require.NoError(t, err)
	require.Equal(t, "hello, volume", string(read))
}

func TestStorage_ReadPastEOFFails(t *testing.T) {
	backing := make([]byte, 8)
	storage := miniext2.NewStorage(bytesextra.NewReadWriteSeeker(backing))

	_, err := storage.Read(0, 64)
	require.Error(t, err)
}
