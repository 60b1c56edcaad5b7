package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrTransportClosed = errors.New("transport closed")
	ErrFrameTimeout    = errors.New("frame timeout")
)

// DecoderStats counts what the frame decoder has seen
type DecoderStats struct {
	Frames       uint64
	CRCErrors    uint64
	Resyncs      uint64
	SeqGaps      uint64
	SkippedBytes uint64
}

// Decoder splits a byte stream into frames. After any framing error it
// drops bytes up to the next sync byte and continues from there.
type Decoder struct {
	unsynced bool
	haveSeq  bool
	nextSeq  uint8
	stats    DecoderStats
}

// Decode consumes every complete frame in input and passes it to handle.
// An incomplete trailing frame is left in input.
func (d *Decoder) Decode(input InputBuffer, handle func(*MessageBlock)) {
	data := input.Data()

	for len(data) > 0 {
		if d.unsynced {
			syncPos := -1
			for i, b := range data {
				if b == MessageValueSync {
					syncPos = i
					break
				}
			}
			if syncPos < 0 {
				d.stats.SkippedBytes += uint64(len(data))
				data = nil
				break
			}
			d.stats.SkippedBytes += uint64(syncPos)
			data = data[syncPos+1:]
			d.unsynced = false
			d.stats.Resyncs++
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		if len(data) < MessageLengthMin {
			break
		}

		msgLen := int(data[MessagePositionLen])
		if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
			d.unsynced = true
			continue
		}

		seq := data[MessagePositionSeq]
		if seq&^MessageSeqMask != MessageDest {
			d.unsynced = true
			continue
		}

		if len(data) < msgLen {
			break
		}

		if data[msgLen-MessageTrailerSync] != MessageValueSync {
			d.unsynced = true
			continue
		}

		frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
			uint16(data[msgLen-MessageTrailerCRC+1])
		if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
			d.stats.CRCErrors++
			d.unsynced = true
			continue
		}

		payload := make([]byte, msgLen-MessageHeaderSize-MessageTrailerSize)
		copy(payload, data[MessageHeaderSize:msgLen-MessageTrailerSize])
		msg := &MessageBlock{
			Length:   uint8(msgLen),
			Sequence: seq,
			Payload:  payload,
			CRC:      frameCRC,
		}
		data = data[msgLen:]

		if d.haveSeq && seq != d.nextSeq {
			d.stats.SeqGaps++
		}
		d.haveSeq = true
		d.nextSeq = MessageDest | ((seq + 1) & MessageSeqMask)
		d.stats.Frames++

		handle(msg)
	}

	consumed := input.Available() - len(data)
	if consumed > 0 {
		input.Pop(consumed)
	}
}

// Stats returns the decoder counters
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// HostTransport reads telemetry frames from a serial port on the host
type HostTransport struct {
	port io.ReadCloser

	mu      sync.Mutex
	input   *FifoBuffer
	decoder Decoder

	frames   chan *MessageBlock
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	readErr  error
}

// NewHostTransport starts reading frames from port
func NewHostTransport(port io.ReadCloser) *HostTransport {
	t := &HostTransport{
		port:     port,
		input:    NewFifoBuffer(1024),
		frames:   make(chan *MessageBlock, 64),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// ReceiveFrame waits for the next frame
func (t *HostTransport) ReceiveFrame(timeout time.Duration) (*MessageBlock, error) {
	select {
	case msg := <-t.frames:
		return msg, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrFrameTimeout, timeout)
	case <-t.doneChan:
		select {
		case msg := <-t.frames:
			return msg, nil
		default:
		}
		if t.readErr != nil {
			return nil, t.readErr
		}
		return nil, ErrTransportClosed
	}
}

// Done is closed when the read loop exits
func (t *HostTransport) Done() <-chan struct{} {
	return t.doneChan
}

// Stats returns the decoder counters
func (t *HostTransport) Stats() DecoderStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.decoder.Stats()
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.process(buffer[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			select {
			case <-t.stopChan:
				return
			default:
			}
			t.readErr = fmt.Errorf("serial read: %w", err)
			return
		}
	}
}

func (t *HostTransport) process(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for len(data) > 0 {
		n := t.input.Write(data)
		data = data[n:]
		t.decoder.Decode(t.input, t.dispatch)
		if n == 0 {
			// a full ring that decodes nothing holds no frame
			t.input.Pop(t.input.Available())
		}
	}
}

// dispatch runs with t.mu held
func (t *HostTransport) dispatch(msg *MessageBlock) {
	select {
	case t.frames <- msg:
	default:
		// full: drop the oldest
		select {
		case <-t.frames:
		default:
		}
		t.frames <- msg
	}
}

// Close stops the read loop and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		err = t.port.Close()
		<-t.doneChan
	})
	return err
}
