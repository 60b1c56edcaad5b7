package protocol

// Frame layout: len | seq | payload | crc16 (big endian) | 0x7E. The length
// covers the whole frame and the CRC covers len, seq and payload.
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E

	// Sequence bytes carry MessageDest in the high nibble
	MessageDest     = 0x10
	MessageSeqMask  = 0x0F
	MessageSeqShift = 4
)

// Transport frames outgoing telemetry on the firmware side. It is not safe
// for concurrent use; the background task owns it.
type Transport struct {
	output  OutputBuffer
	seq     uint8
	dropped uint32
}

// NewTransport returns a transport writing frames to output
func NewTransport(output OutputBuffer) *Transport {
	return &Transport{output: output}
}

// EncodeFrame writes one frame whose payload is produced by frameData. A
// payload that does not fit in MessageLengthMax is discarded, and so is the
// whole frame when a fixed size output has no room for a maximal one.
func (t *Transport) EncodeFrame(frameData func(output OutputBuffer)) bool {
	if f, ok := t.output.(interface{ Free() int }); ok && f.Free() < MessageLengthMax {
		t.dropped++
		return false
	}
	cursor := t.output.CurPosition()

	seq := MessageDest | (t.seq & MessageSeqMask)
	t.output.Output([]byte{0, seq})

	frameData(t.output)

	length := len(t.output.DataSince(cursor)) + MessageTrailerSize
	if length > MessageLengthMax {
		t.dropped++
		t.rewind(cursor)
		return false
	}
	t.output.Update(cursor, uint8(length))

	crc := CRC16(t.output.DataSince(cursor))
	t.output.Output([]byte{
		uint8((crc & 0xFF00) >> 8),
		uint8(crc & 0xFF),
		MessageValueSync,
	})
	t.seq++
	return true
}

// SendMessage frames a message ID followed by its fields
func (t *Transport) SendMessage(msgID uint16, args func(output OutputBuffer)) bool {
	return t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(msgID))
		if args != nil {
			args(output)
		}
	})
}

// Dropped returns the number of frames discarded
func (t *Transport) Dropped() uint32 {
	return t.dropped
}

// Reset restarts the sequence numbering
func (t *Transport) Reset() {
	t.seq = 0
}

func (t *Transport) rewind(pos int) {
	if s, ok := t.output.(interface{ Truncate(int) }); ok {
		s.Truncate(pos)
		return
	}
	// no way to take the bytes back; poison the frame so readers resync
	t.output.Update(pos, 0)
}
