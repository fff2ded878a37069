package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Require(t testing.TB) *require.Assertions {
	return require.New(t)
}
