// Package protocol implements the telemetry link between the ESC firmware
// and host tools: VLQ encoded fields carried in CRC protected frames.
package protocol

// Version is the telemetry protocol version reported by host tools
const Version = "0.1.0"

// Message IDs. Every frame payload starts with one of these as a VLQ.
const (
	MsgStatus = 1 // periodic controller status
	MsgEvent  = 2 // one entry of the firmware event ring
)

// MessageMax is the size of a scratch output buffer
const MessageMax = 256

// MessageBlock is a decoded frame
type MessageBlock struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // frame data without header and trailer
	CRC      uint16
}

// MessageID decodes the message ID at the start of the payload and returns
// the remaining fields
func (m *MessageBlock) MessageID() (uint16, []byte, error) {
	data := m.Payload
	id, err := DecodeVLQUint(&data)
	if err != nil {
		return 0, nil, err
	}
	return uint16(id), data, nil
}
