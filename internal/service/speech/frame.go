package speech

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// 火山引擎流式语音接口使用的二进制帧格式：
//
//	byte0: version(4) | header size in words(4)
//	byte1: message type(4) | flags(4)
//	byte2: serialization(4) | compression(4)
//	byte3: reserved
//
// 之后依次为可选的 sequence、event 元数据、payload size 与 payload。
const frameVersion = 0x1

type messageType uint8

const (
	msgFullClientRequest messageType = 0x1
	msgAudioOnlyRequest  messageType = 0x2
	msgFullServerReply   messageType = 0x9
	msgAudioOnlyReply    messageType = 0xB
	msgServerError       messageType = 0xF
)

type frameFlags uint8

const (
	flagNone         frameFlags = 0x0
	flagSequence     frameFlags = 0x1
	flagLast         frameFlags = 0x2
	flagLastSequence frameFlags = 0x3
	flagEvent        frameFlags = 0x4
)

const (
	serialNone uint8 = 0x0
	serialJSON uint8 = 0x1
)

type eventType int32

const (
	eventStartConnection    eventType = 1
	eventFinishConnection   eventType = 2
	eventConnectionStarted  eventType = 50
	eventConnectionFailed   eventType = 51
	eventConnectionFinished eventType = 52
	eventSessionFinished    eventType = 152
)

var errShortFrame = errors.New("speech frame truncated")

// frame 为一帧解码后的内容。
type frame struct {
	Type        messageType
	Flags       frameFlags
	Serial      uint8
	Compression compression
	Sequence    int32
	Event       eventType
	SessionID   string
	ConnectID   string
	ErrorCode   uint32
	Payload     []byte
}

func (f *frame) hasSequence() bool {
	return f.Flags&0x3 == flagSequence || f.Flags&0x3 == flagLastSequence
}

func (f *frame) hasEvent() bool {
	return f.Flags&flagEvent == flagEvent
}

// final 表示服务端声明的最后一帧。
func (f *frame) final() bool {
	low := f.Flags & 0x3
	return low == flagLast || low == flagLastSequence || f.Sequence < 0
}

func connectionEvent(e eventType) bool {
	switch e {
	case eventStartConnection, eventFinishConnection,
		eventConnectionStarted, eventConnectionFailed, eventConnectionFinished:
		return true
	}
	return false
}

func carriesConnectID(e eventType) bool {
	return e == eventConnectionStarted || e == eventConnectionFailed || e == eventConnectionFinished
}

// marshal 将帧编码为二进制消息。
func (f *frame) marshal() []byte {
	out := make([]byte, 0, 16+len(f.Payload))
	out = append(out,
		frameVersion<<4|0x1,
		uint8(f.Type)<<4|uint8(f.Flags),
		f.Serial<<4|uint8(f.Compression),
		0x00,
	)

	if f.hasSequence() {
		out = binary.BigEndian.AppendUint32(out, uint32(f.Sequence))
	}

	if f.hasEvent() {
		out = binary.BigEndian.AppendUint32(out, uint32(f.Event))
		if !connectionEvent(f.Event) {
			out = appendSized(out, f.SessionID)
		}
		if carriesConnectID(f.Event) {
			out = appendSized(out, f.ConnectID)
		}
	}

	if f.Type == msgServerError {
		out = binary.BigEndian.AppendUint32(out, f.ErrorCode)
	}

	out = binary.BigEndian.AppendUint32(out, uint32(len(f.Payload)))
	return append(out, f.Payload...)
}

func appendSized(out []byte, s string) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(s)))
	return append(out, s...)
}

// frameReader 按顺序消费字节切片。
type frameReader struct {
	buf []byte
}

func (r *frameReader) next(n int) ([]byte, error) {
	if n < 0 || len(r.buf) < n {
		return nil, errShortFrame
	}
	out := r.buf[:n]
	r.buf = r.buf[n:]
	return out, nil
}

func (r *frameReader) uint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *frameReader) sized() (string, error) {
	size, err := r.uint32()
	if err != nil {
		return "", err
	}
	b, err := r.next(int(size))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalFrame 解码一帧服务端消息。
func unmarshalFrame(data []byte) (*frame, error) {
	r := &frameReader{buf: data}

	head, err := r.next(4)
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if version := head[0] >> 4; version != frameVersion {
		return nil, fmt.Errorf("unsupported frame version %d", version)
	}

	f := &frame{
		Type:        messageType(head[1] >> 4),
		Flags:       frameFlags(head[1] & 0x0F),
		Serial:      head[2] >> 4,
		Compression: compression(head[2] & 0x0F),
	}

	// header size 以 4 字节为单位，超出部分为扩展头，直接跳过
	if extra := int(head[0]&0x0F)*4 - 4; extra > 0 {
		if _, err := r.next(extra); err != nil {
			return nil, fmt.Errorf("read extended header: %w", err)
		}
	}

	if f.hasSequence() {
		seq, err := r.uint32()
		if err != nil {
			return nil, fmt.Errorf("read sequence: %w", err)
		}
		f.Sequence = int32(seq)
	}

	if f.hasEvent() {
		ev, err := r.uint32()
		if err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		f.Event = eventType(int32(ev))

		if !connectionEvent(f.Event) {
			if f.SessionID, err = r.sized(); err != nil {
				return nil, fmt.Errorf("read session id: %w", err)
			}
		}
		if carriesConnectID(f.Event) {
			if f.ConnectID, err = r.sized(); err != nil {
				return nil, fmt.Errorf("read connect id: %w", err)
			}
		}
	}

	if f.Type == msgServerError {
		if f.ErrorCode, err = r.uint32(); err != nil {
			return nil, fmt.Errorf("read error code: %w", err)
		}
	}

	size, err := r.uint32()
	if err != nil {
		return nil, fmt.Errorf("read payload size: %w", err)
	}
	if f.Payload, err = r.next(int(size)); err != nil {
		return nil, fmt.Errorf("read payload (%d bytes): %w", size, err)
	}

	return f, nil
}

// requestFrame 构造携带 JSON 参数的首帧。
func requestFrame(payload []byte, c compression) *frame {
	return &frame{Type: msgFullClientRequest, Flags: flagNone, Serial: serialJSON, Compression: c, Payload: payload}
}

// audioFrame 构造音频分包；最后一包使用负序号。
func audioFrame(chunk []byte, seq int32, last bool, c compression) *frame {
	f := &frame{Type: msgAudioOnlyRequest, Serial: serialNone, Compression: c, Payload: chunk, Sequence: seq}
	switch {
	case last && seq != 0:
		f.Flags = flagLastSequence
		f.Sequence = -seq
	case last:
		f.Flags = flagLast
	case seq > 0:
		f.Flags = flagSequence
	default:
		f.Flags = flagNone
	}
	return f
}
