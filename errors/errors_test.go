package errors_test

import (
	"testing"

	"github.com/finn-oss/blockfs/errors"
	"github.com/stretchr/testify/require"
)

func TestKind_Error(t *testing.T) {
	require.Equal(t, "no such file or directory", errors.ErrNotFound.Error())
}

func TestKind_WithMessage(t *testing.T) {
	wrapped := errors.ErrAlreadyExists.WithMessage("hello")
	require.Equal(t, errors.ErrAlreadyExists, wrapped.Kind())
	require.Contains(t, wrapped.Error(), "hello")
}

func TestKind_Wrap(t *testing.T) {
	cause := errors.ErrIO.WithMessage("disk gone")
	wrapped := errors.ErrCodec.Wrap(cause)
	require.Equal(t, errors.ErrCodec, wrapped.Kind())
	require.ErrorIs(t, wrapped, cause)
}

func TestKind_BareValueSatisfiesBlockfsError(t *testing.T) {
	var err error = errors.ErrAtRoot
	var berr errors.BlockfsError
	require.ErrorAs(t, err, &berr)
	require.Equal(t, errors.ErrAtRoot, berr.Kind())
}
