package stt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeVocab(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.txt")
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestBlankIDResolvedByName(t *testing.T) {
	lines := make([]string, 1025)
	for i := 0; i < 1024; i++ {
		lines[i] = "tok" + string(rune('a'+i%26)) + " " + itoa(i)
	}
	lines[1024] = "<blk> 1024"

	path := writeVocab(t, lines)
	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	require.Equal(t, 1024, v.BlankID)
}

func TestBlankIDFallsBackToLenMinusOne(t *testing.T) {
	lines := []string{"a 0", "b 1", "c 2"}
	path := writeVocab(t, lines)
	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	require.Equal(t, 2, v.BlankID)
}

func TestDetokenizeWordStartMarker(t *testing.T) {
	v := &Vocabulary{Tokens: []string{"▁hello", "▁world", "<blk>"}, BlankID: 2}
	got := v.Detokenize([]int64{0, 1})
	require.Equal(t, "hello world", got)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var digits []byte
	for i > 0 {
		digits = append([]byte{byte('0' + i%10)}, digits...)
		i /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}
