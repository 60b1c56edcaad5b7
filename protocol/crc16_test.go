package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCRC16(t *testing.T) {
	require.Equal(t, uint16(0xFFFF), CRC16(nil))
	require.Equal(t, uint16(0x6F91), CRC16([]byte("123456789")))
}

func TestCRC16DetectsSingleByteChange(t *testing.T) {
	require.NotEqual(t, CRC16([]byte{0x01, 0x02, 0x03}), CRC16([]byte{0x01, 0x02, 0x04}))
}
