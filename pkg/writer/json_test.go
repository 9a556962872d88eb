package writer

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panda-miner/pkg/compression"
	"github.com/panda-miner/pkg/model"
)

type testData struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestJSONWriter_Write(t *testing.T) {
	data := testData{Name: "test", Value: 42}

	t.Run("compact output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewJSONWriter[testData]().Write(data, &buf))
		assert.Equal(t, `{"name":"test","value":42}`+"\n", buf.String())
	})

	t.Run("pretty output", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrettyJSONWriter[testData]().Write(data, &buf))
		assert.Contains(t, buf.String(), "\n  \"name\": \"test\"")

		decoded, err := Read[testData](&buf)
		require.NoError(t, err)
		assert.Equal(t, data, decoded)
	})
}

func TestJSONWriter_Compressed(t *testing.T) {
	data := testData{Name: "compressed", Value: 7}

	for _, typ := range []compression.Type{compression.TypeGzip, compression.TypeZstd} {
		t.Run(typ.String(), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, NewCompressedJSONWriter[testData](typ).Write(data, &buf))
			assert.Equal(t, typ, compression.DetectType(buf.Bytes()))

			decoded, err := Read[testData](&buf)
			require.NoError(t, err)
			assert.Equal(t, data, decoded)
		})
	}
}

func TestForPath(t *testing.T) {
	assert.Equal(t, compression.TypeZstd, ForPath[testData]("a/result.json.zst").Compression)
	assert.Equal(t, compression.TypeGzip, ForPath[testData]("result.json.gz").Compression)

	plain := ForPath[testData]("result.json")
	assert.Equal(t, compression.TypeNone, plain.Compression)
	assert.NotEmpty(t, plain.Indent)
}

func TestWriteToFileWithStats(t *testing.T) {
	result := model.MiningResult{
		TaskUUID:    "tid-1",
		InitialCost: 12,
		FinalCost:   7,
		StopReason:  "no_improvement",
		Patterns: []model.PatternResult{
			{Rank: 1, Items: []string{"a", "b"}, Transactions: []int{0, 1, 2}, Area: 6, Cost: 5},
		},
	}

	path := filepath.Join(t.TempDir(), "tid-1", "result.json.zst")
	stats, err := ForPath[model.MiningResult](path).WriteToFileWithStats(result, path)
	require.NoError(t, err)
	assert.Equal(t, path, stats.Path)
	assert.Equal(t, compression.TypeZstd, stats.Compression)
	assert.Positive(t, stats.CompressedSize)

	loaded, err := ReadFile[model.MiningResult](path)
	require.NoError(t, err)
	assert.Equal(t, result.TaskUUID, loaded.TaskUUID)
	assert.Equal(t, result.Patterns, loaded.Patterns)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile[testData](filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
