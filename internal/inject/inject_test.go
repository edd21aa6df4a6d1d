package inject

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agalue/swictation/internal/swicterr"
	"github.com/agalue/swictation/internal/transform"
)

func TestChannelInjectorDeliversEventsInOrder(t *testing.T) {
	c := NewChannelInjector(4)
	require.NoError(t, c.Inject(transform.TranscriptionEvent{Kind: transform.EventText, Text: "a"}))
	require.NoError(t, c.Inject(transform.TranscriptionEvent{Kind: transform.EventText, Text: "b"}))
	c.Close()

	var got []string
	for e := range c.Events() {
		got = append(got, e.Text)
	}
	require.Equal(t, []string{"a", "b"}, got)
}

func TestChannelInjectorCountsDropsWhenFull(t *testing.T) {
	c := NewChannelInjector(1)
	require.NoError(t, c.Inject(transform.TranscriptionEvent{Kind: transform.EventText, Text: "a"}))
	err := c.Inject(transform.TranscriptionEvent{Kind: transform.EventText, Text: "b"})
	require.Error(t, err)
	require.Equal(t, 1, c.Drops())

	var swicErr *swicterr.Error
	require.ErrorAs(t, err, &swicErr)
	require.Equal(t, swicterr.KindInjector, swicErr.Kind)
}

func TestLogInjectorNeverErrors(t *testing.T) {
	l := NewLogInjector()
	require.NoError(t, l.Inject(transform.TranscriptionEvent{Kind: transform.EventText, Text: "hi"}))
	require.NoError(t, l.Inject(transform.TranscriptionEvent{Kind: transform.EventKeyAction, Key: "Enter"}))
}
