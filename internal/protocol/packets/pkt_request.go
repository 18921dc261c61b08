package packets

import (
	"fmt"
	"strings"

	"github.com/goodieshq/gotftp/internal/protocol"
)

// Read or write request sent by the client to the well-known port
type PktRequest struct {
	Op       protocol.OpCode // OpReadRequest or OpWriteRequest
	Filename string          // Name of the file to read or write
	Mode     string          // Transfer mode, always "octet"
}

func NewReadRequest(filename, mode string) (*PktRequest, error) {
	return newRequest(protocol.OpReadRequest, filename, mode)
}

func NewWriteRequest(filename, mode string) (*PktRequest, error) {
	return newRequest(protocol.OpWriteRequest, filename, mode)
}

func newRequest(op protocol.OpCode, filename, mode string) (*PktRequest, error) {
	mode = strings.ToLower(mode)
	if mode != protocol.Mode {
		return nil, fmt.Errorf("%w: %q", protocol.ErrUnsupportedMode, mode)
	}
	pkt := &PktRequest{Op: op, Filename: filename, Mode: mode}
	if err := checkSize(pkt.size()); err != nil {
		return nil, err
	}
	return pkt, nil
}

func (p *PktRequest) size() int {
	return 2 + len(p.Filename) + 1 + len(p.Mode) + 1
}

func (p *PktRequest) OpCode() protocol.OpCode {
	return p.Op
}

func (p *PktRequest) Marshal() ([]byte, error) {
	if p.Op != protocol.OpReadRequest && p.Op != protocol.OpWriteRequest {
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnexpectedPacket, p.Op)
	}

	if err := checkSize(p.size()); err != nil {
		return nil, err
	}

	buf := make([]byte, 2, p.size())
	be.PutUint16(buf[0:2], uint16(p.Op))

	buf, err := appendString(buf, p.Filename)
	if err != nil {
		return nil, err
	}
	return appendString(buf, p.Mode)
}

// UnmarshalRequest parses a RRQ or WRQ. Anything after the mode is ignored.
func UnmarshalRequest(data []byte) (*PktRequest, error) {
	op, err := checkHeader(data, protocol.OpReadRequest, protocol.OpWriteRequest)
	if err != nil {
		return nil, err
	}

	filename, off, err := readString(data, 2)
	if err != nil {
		return nil, fmt.Errorf("filename: %w", err)
	}

	mode, _, err := readString(data, off)
	if err != nil {
		return nil, fmt.Errorf("mode: %w", err)
	}

	return &PktRequest{
		Op:       op,
		Filename: filename,
		Mode:     strings.ToLower(mode),
	}, nil
}
