package words_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexFangSW/typephoon/internal/words"
)

func TestFileGeneratorFallback(t *testing.T) {
	gen, err := words.NewFileGenerator("")
	require.NoError(t, err)

	out := gen.Generate(10)
	assert.Len(t, strings.Fields(out), 10)
}

func TestFileGeneratorLoadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("alpha\nbeta\ngamma\n"), 0o644))

	gen, err := words.NewFileGenerator(path)
	require.NoError(t, err)

	out := gen.Generate(6)
	fields := strings.Fields(out)
	assert.Len(t, fields, 6)
	for _, w := range fields {
		assert.Contains(t, []string{"alpha", "beta", "gamma"}, w)
	}
}

func TestFileGeneratorZeroCount(t *testing.T) {
	gen, err := words.NewFileGenerator("")
	require.NoError(t, err)
	assert.Equal(t, "", gen.Generate(0))
}
