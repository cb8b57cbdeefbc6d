package corecontext

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeListener struct{ name string }

func (f fakeListener) Name() string { return f.name }

func TestContextListenerRegistry(t *testing.T) {
	c := NewContext(zerolog.New(io.Discard), "alice")
	c.RegisterListener(fakeListener{"tags"})
	c.RegisterListener(fakeListener{"timeline"})
	require.Len(t, c.Listeners(), 2)

	c.UnregisterListener("tags")
	require.Len(t, c.Listeners(), 1)
	assert.Equal(t, "timeline", c.Listeners()[0].Name())
}

func TestContextScratchPoolReset(t *testing.T) {
	c := NewContext(zerolog.New(io.Discard), "bob")
	buf := c.GetScratch()
	buf.WriteString("leftover")
	c.PutScratch(buf)

	buf2 := c.GetScratch()
	assert.Equal(t, 0, buf2.Len(), "scratch buffer must be reset before reuse")
}

func TestWrapAndKindOf(t *testing.T) {
	base := NewContext(zerolog.New(io.Discard), "carol")
	_ = base

	err := Wrap(KindIO, "reading blob", assertErr{})
	assert.Equal(t, KindIO, KindOf(err))
	assert.True(t, Is(err, KindIO))
	assert.False(t, Is(err, KindDB))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
