package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize is the maximum accepted frame body. Guards against memory
// exhaustion from a corrupt or malicious length prefix.
const MaxFrameSize = 1 << 22 // 4MB

// fragmentHeader is the 4-byte record mark preceding each frame fragment:
// bit 31 flags the last fragment, bits 0-30 carry the fragment length.
type fragmentHeader struct {
	IsLast bool
	Length uint32
}

// readFragmentHeader reads and parses the record mark. EOF errors are
// returned unwrapped so callers can detect a normal peer disconnect.
func readFragmentHeader(r io.Reader) (fragmentHeader, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return fragmentHeader{}, err
	}
	header := binary.BigEndian.Uint32(buf[:])
	return fragmentHeader{
		IsLast: header&0x80000000 != 0,
		Length: header & 0x7FFFFFFF,
	}, nil
}

// readFrame reassembles one frame body from its fragments.
func readFrame(r io.Reader) ([]byte, error) {
	var body []byte
	for {
		header, err := readFragmentHeader(r)
		if err != nil {
			return nil, err
		}
		if uint64(header.Length)+uint64(len(body)) > MaxFrameSize {
			return nil, fmt.Errorf("frame size exceeds maximum %d bytes", MaxFrameSize)
		}
		fragment := make([]byte, header.Length)
		if _, err := io.ReadFull(r, fragment); err != nil {
			return nil, fmt.Errorf("read frame fragment: %w", err)
		}
		body = append(body, fragment...)
		if header.IsLast {
			return body, nil
		}
	}
}

// writeFrame writes one frame body as a single last fragment.
func writeFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return fmt.Errorf("frame size %d exceeds maximum %d bytes", len(body), MaxFrameSize)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body))|0x80000000)
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}
