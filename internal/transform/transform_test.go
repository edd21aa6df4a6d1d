package transform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func render(events []TranscriptionEvent) string {
	var s string
	for _, e := range events {
		if e.Kind == EventText {
			s += e.Text
		}
	}
	return s
}

func TestCapitalizesFirstWordOfSession(t *testing.T) {
	tr := New()
	got := render(tr.Apply("hello world"))
	require.Equal(t, "Hello world", got)
}

func TestLoneIBecomesCapitalI(t *testing.T) {
	tr := New()
	got := render(tr.Apply("hello i think"))
	require.Equal(t, "Hello I think", got)
}

func TestPunctuationSuppressesPrecedingSpace(t *testing.T) {
	tr := New()
	got := render(tr.Apply("hello comma world period"))
	require.Equal(t, "Hello, world.", got)
}

func TestQuestionMarkTriggersCapitalizationOfNextSentence(t *testing.T) {
	tr := New()
	got := render(tr.Apply("how are you question mark fine"))
	require.Equal(t, "How are you? Fine", got)
}

func TestAbbreviationExpandsAndDoesNotCapitalizeNext(t *testing.T) {
	tr := New()
	got := render(tr.Apply("mister smith arrived"))
	require.Equal(t, "Mr. smith arrived", got)
}

func TestQuoteTogglesOpenAndCloseAndCapitalizesAfterOpen(t *testing.T) {
	tr := New()
	got := render(tr.Apply("she said quote hello there quote"))
	require.Equal(t, `She said "Hello there"`, got)
}

func TestOpenAndCloseParenthesesSuppressAdjacentSpaces(t *testing.T) {
	tr := New()
	got := render(tr.Apply("see open parenthesis note close parenthesis here"))
	require.Equal(t, "See (note) here", got)
}

func TestNewLineAndTabEmitControlCharacters(t *testing.T) {
	tr := New()
	got := render(tr.Apply("first new line second tab third"))
	require.Equal(t, "First\n Second\t third", got)
}

func TestCapsOnAndOffTogglePersistentUppercase(t *testing.T) {
	tr := New()
	got := render(tr.Apply("caps on loud words caps off quiet"))
	require.Equal(t, "LOUD WORDS quiet", got)
}

func TestNumberPhraseConvertsWordsToDigits(t *testing.T) {
	tr := New()
	got := render(tr.Apply("i have number forty two apples"))
	require.Equal(t, "I have 42 apples", got)
}

func TestNumberPhraseAtSegmentStartHasNoLeadingSpace(t *testing.T) {
	tr := New()
	got := render(tr.Apply("number forty two items"))
	require.Equal(t, "42 items", got)
}

func TestYearPatternWithoutNumberPrefix(t *testing.T) {
	tr := New()
	got := render(tr.Apply("born in nineteen fifty"))
	require.Equal(t, "Born in 1950", got)
}

func TestStatePersistsAcrossApplyCallsUntilReset(t *testing.T) {
	tr := New()
	render(tr.Apply("caps on hello"))
	got := render(tr.Apply("still loud"))
	require.Equal(t, " STILL LOUD", got)

	tr.Reset()
	got = render(tr.Apply("quiet again"))
	require.Equal(t, "Quiet again", got)
}

func TestKeyActionEventHasNoText(t *testing.T) {
	tr := New()
	events := tr.Apply("delete that backspace")
	var found bool
	for _, e := range events {
		if e.Kind == EventKeyAction {
			found = true
			require.Equal(t, "Backspace", e.Key)
			require.Empty(t, e.Text)
		}
	}
	require.True(t, found)
}
