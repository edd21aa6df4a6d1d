package stt

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/agalue/swictation/internal/swicterr"
)

// wordStartMarker is the SentencePiece word-start marker (U+2581, "▁").
const wordStartMarker = "▁"

// Vocabulary is an ordered list of token strings plus the derived blank_id.
// Immutable once loaded and safe to share by reference across sessions.
type Vocabulary struct {
	Tokens  []string
	BlankID int
}

// LoadVocabulary reads a newline-delimited "token<space>id" file and resolves
// blank_id: search by the literal name "<blk>" or "<blank>", falling back to
// len-1 if neither is present (spec §4.6.2, §9 — this convention must not be
// "normalized" to any other scheme).
func LoadVocabulary(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, swicterr.ModelLoad("stt.LoadVocabulary", err)
	}
	defer f.Close()

	var tokens []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		idx := strings.LastIndex(line, " ")
		if idx < 0 {
			return nil, swicterr.ModelLoad("stt.LoadVocabulary",
				fmt.Errorf("malformed line %q: expected \"<token> <id>\"", line))
		}
		token := line[:idx]
		id, err := strconv.Atoi(line[idx+1:])
		if err != nil {
			return nil, swicterr.ModelLoad("stt.LoadVocabulary",
				fmt.Errorf("malformed id in line %q: %w", line, err))
		}
		if id != len(tokens) {
			return nil, swicterr.ModelLoad("stt.LoadVocabulary",
				fmt.Errorf("token ids must be dense starting at 0, got %d at position %d", id, len(tokens)))
		}
		tokens = append(tokens, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, swicterr.ModelLoad("stt.LoadVocabulary", err)
	}
	if len(tokens) == 0 {
		return nil, swicterr.ModelLoad("stt.LoadVocabulary", fmt.Errorf("empty vocabulary file %s", path))
	}

	blankID := len(tokens) - 1
	found := false
	for i, tok := range tokens {
		if tok == "<blk>" || tok == "<blank>" {
			blankID = i
			found = true
			break
		}
	}
	if !found {
		fmt.Printf("⚠️  vocabulary has no literal <blk>/<blank> token, using blank_id=%d (len-1)\n", blankID)
	} else {
		fmt.Printf("🔤 blank_id resolved to %d (%q)\n", blankID, tokens[blankID])
	}

	return &Vocabulary{Tokens: tokens, BlankID: blankID}, nil
}

// Detokenize concatenates token strings for the given ids, replacing the
// SentencePiece word-start marker with a preceding space and collapsing
// duplicate spaces. Capitalization and punctuation are left untouched;
// humanizing the text is C8 TextTransform's job.
func (v *Vocabulary) Detokenize(ids []int64) string {
	var b strings.Builder
	for _, id := range ids {
		if id < 0 || int(id) >= len(v.Tokens) {
			continue
		}
		tok := v.Tokens[id]
		if strings.HasPrefix(tok, wordStartMarker) {
			b.WriteByte(' ')
			tok = strings.TrimPrefix(tok, wordStartMarker)
		}
		b.WriteString(tok)
	}

	collapsed := strings.Join(strings.Fields(b.String()), " ")
	return collapsed
}
