package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panda-miner/pkg/compression"
)

func TestRender(t *testing.T) {
	rows := Concat(Tile(2, "a", "b"), [][]string{{"c"}})

	assert.Equal(t, "a b\na b\nc\n", Basket(rows))
	assert.Equal(t, "a,b,c\n1,1,0\n1,1,0\n0,0,1\n", Matrix(rows))
}

func TestWriteFile(t *testing.T) {
	plain := WriteFile(t, "g.dat", Groceries)
	data, err := os.ReadFile(plain)
	require.NoError(t, err)
	assert.Equal(t, Groceries, string(data))

	packed := WriteFile(t, "g.dat.zst", Groceries)
	data, err = os.ReadFile(packed)
	require.NoError(t, err)
	assert.Equal(t, compression.TypeZstd, compression.DetectType(data))
}
