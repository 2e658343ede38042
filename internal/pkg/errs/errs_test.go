package errs

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewError_KnownCode(t *testing.T) {
	req := require.New(t)

	err := NewError(ErrBlocked)
	req.Equal(ErrBlocked, err.Code)
	req.Equal(http.StatusForbidden, err.Status)
	req.NotEmpty(err.Message)
}

func TestNewError_UnknownCodeFallsBack(t *testing.T) {
	req := require.New(t)

	err := NewError(99999)
	req.Equal(ErrUnknown, err.Code)
	req.Equal(http.StatusInternalServerError, err.Status)
}

func TestCustomError_IsComparesByCode(t *testing.T) {
	req := require.New(t)

	req.True(errors.Is(NewError(ErrNotFound), NewError(ErrNotFound)))
	req.False(errors.Is(NewError(ErrNotFound), NewError(ErrBlocked)))
	req.False(errors.Is(NewError(ErrNotFound), errors.New("plain")))
}
