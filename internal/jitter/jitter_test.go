package jitter_test

import (
	"frogquest/internal/input"
	"frogquest/internal/jitter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contents(buf jitter.Buffer) ([]uint32, []input.Set) {
	frames := []uint32{}
	inputs := []input.Set{}
	for frame, in := range buf.All() {
		frames = append(frames, frame)
		inputs = append(inputs, in)
	}
	return frames, inputs
}

func frames(buf jitter.Buffer) []uint32 {
	f, _ := contents(buf)
	return f
}

func TestJitter_MarshalBinary(t *testing.T) {
	var buf jitter.Buffer
	require.NoError(t, buf.Put(0, input.SetOf(input.Up)))
	require.NoError(t, buf.Put(1, input.SetOf(input.Left, input.Up, input.Right)))
	require.NoError(t, buf.Put(2, input.SetOf(input.Primary)))

	data, err := buf.MarshalBinary()
	assert.NoError(t, err)

	assert.Equal(t, []byte{
		3, 0, // numInputs
		0, 0, 0, 0, // frame
		0b00000001, // input
		1, 0, 0, 0, // frame
		0b00001101, // input
		2, 0, 0, 0, // frame
		0b00010000, // input
	}, data)
}

func TestJitter_UnmarshalBinary(t *testing.T) {
	data := []byte{
		2, 0, // numInputs
		8, 0, 0, 0, // frame
		0b00000101, // input
		9, 1, 0, 0, // frame
		0b00001010, // input
	}

	var buf jitter.Buffer
	err := buf.UnmarshalBinary(data)
	assert.NoError(t, err)

	frames, inputs := contents(buf)
	assert.Equal(t, []input.Set{
		input.SetOf(input.Up, input.Left),
		input.SetOf(input.Down, input.Right),
	}, inputs)
	assert.Equal(t, []uint32{8, 265}, frames)
	assert.Error(t, buf.Put(265, 0), "decoded frames count as stored")
	assert.NoError(t, buf.Put(266, 0))

	assert.ErrorIs(t, buf.UnmarshalBinary(data[:len(data)-1]), jitter.ErrShortData)
	assert.ErrorIs(t, buf.UnmarshalBinary(nil), jitter.ErrShortData)
}

func TestJitter_DiscardUntil(t *testing.T) {
	var buf jitter.Buffer
	for f := range uint32(6) {
		require.NoError(t, buf.Put(f, 0))
	}

	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, frames(buf))
	buf.DiscardUntil(2)
	assert.Equal(t, []uint32{3, 4, 5}, frames(buf))
	buf.DiscardUntil(1)
	assert.Equal(t, []uint32{3, 4, 5}, frames(buf))
	buf.DiscardUntil(0)
	assert.Equal(t, []uint32{3, 4, 5}, frames(buf))
	buf.DiscardUntil(6)
	assert.Equal(t, []uint32{}, frames(buf))

	assert.Error(t, buf.Put(5, 0), "frames stay increasing after a discard")
	require.NoError(t, buf.Put(6, 0))
	assert.Equal(t, []uint32{6}, frames(buf))
}

func TestJitter_Put(t *testing.T) {
	var buf jitter.Buffer
	require.NoError(t, buf.Put(2, input.SetOf(input.Down)))
	require.NoError(t, buf.Put(5, input.SetOf(input.Up)))
	assert.Error(t, buf.Put(5, 0))
	assert.Equal(t, []uint32{2, 5}, frames(buf))

	var first []uint32
	for frame := range buf.All() {
		first = append(first, frame)
		break
	}
	assert.Equal(t, []uint32{2}, first, "iteration stops early")

	for f := range uint32(jitter.MaxEntries - 2) {
		require.NoError(t, buf.Put(6+f, 0))
	}
	assert.Error(t, buf.Put(1000, 0), "full")
}
