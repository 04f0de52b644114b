// Package words generates the randomized word lists raced against (spec §3
// GameCache.words, SPEC_FULL.md word-list file loader).
package words

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// fallback is used when no word file is configured, so a fresh checkout
// still runs a game end to end.
var fallback = []string{
	"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog",
	"pack", "my", "box", "with", "five", "dozen", "liquor", "jugs",
	"how", "vexingly", "quick", "daft", "zebras", "jump", "sphinx",
	"of", "black", "quartz", "judge", "my", "vow", "waltz", "bad",
	"nymph", "for", "quick", "jigs", "vex", "grumpy", "wizards",
}

// Generator produces a space-joined, shuffled word list of a given length.
type Generator interface {
	Generate(count int) string
}

// FileGenerator loads its word list from a newline-delimited file at
// construction time, falling back to an in-memory list if the file is
// empty or unconfigured.
type FileGenerator struct {
	words []string
}

// NewFileGenerator loads words from path. An empty path, or a file with no
// usable lines, yields the built-in fallback list.
func NewFileGenerator(path string) (*FileGenerator, error) {
	words := fallback
	if path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading word file %q: %w", path, err)
		}
		if len(loaded) > 0 {
			words = loaded
		}
	}
	return &FileGenerator{words: words}, nil
}

func loadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			words = append(words, line)
		}
	}
	return words, scanner.Err()
}

// Generate returns a shuffled, space-joined selection of count words. If
// count exceeds the loaded vocabulary, words repeat across reshuffled
// passes so the game never runs short.
func (g *FileGenerator) Generate(count int) string {
	if count <= 0 || len(g.words) == 0 {
		return ""
	}

	out := make([]string, 0, count)
	pool := make([]string, len(g.words))
	for len(out) < count {
		copy(pool, g.words)
		rand.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
		remaining := count - len(out)
		if remaining < len(pool) {
			pool = pool[:remaining]
		}
		out = append(out, pool...)
		pool = make([]string, len(g.words))
	}
	return strings.Join(out, " ")
}
