package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})
	require.Equal(t, 5, buf.Available())

	buf.Pop(2)
	require.Equal(t, 3, buf.Available())
	require.Equal(t, []byte{3, 4, 5}, buf.Data())

	buf.Pop(10)
	require.Equal(t, 0, buf.Available())
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{1, 2, 3})
	require.Equal(t, 3, scratch.CurPosition())

	scratch.Output([]byte{4, 5})
	scratch.Update(0, 99)
	require.Equal(t, []byte{99, 2, 3, 4, 5}, scratch.Result())
	require.Equal(t, []byte{3, 4, 5}, scratch.DataSince(2))
	require.Nil(t, scratch.DataSince(6))

	scratch.Reset()
	require.Equal(t, 0, scratch.CurPosition())
}

func TestScratchOutputDropsOverflow(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax-1))
	scratch.Output([]byte{1, 2, 3})
	require.Equal(t, MessageMax, scratch.CurPosition())
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)
	require.True(t, fifo.IsEmpty())

	require.Equal(t, 5, fifo.Write([]byte{1, 2, 3, 4, 5}))
	require.Equal(t, 5, fifo.Available())
	require.Equal(t, 4, fifo.Free())

	readBuf := make([]byte, 3)
	require.Equal(t, 3, fifo.Read(readBuf))
	require.Equal(t, []byte{1, 2, 3}, readBuf)

	fifo.Pop(1)
	require.Equal(t, 1, fifo.Available())

	// one slot stays free
	fifo.Reset()
	require.Equal(t, 9, fifo.Write(make([]byte, 12)))
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Read(make([]byte, 2))

	require.Equal(t, 2, fifo.Write([]byte{5, 6}))
	require.Equal(t, []byte{3, 4, 5, 6}, fifo.Data())

	all := make([]byte, 4)
	require.Equal(t, 4, fifo.Read(all))
	require.Equal(t, []byte{3, 4, 5, 6}, all)
}
