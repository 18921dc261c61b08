package packets

import (
	"fmt"

	"github.com/goodieshq/gotftp/internal/protocol"
)

// Error packet, terminates the transfer it is sent on
type PktError struct {
	Code    protocol.ErrCode
	Message string
}

func NewError(code protocol.ErrCode, msg string) *PktError {
	return &PktError{Code: code, Message: msg}
}

func (p *PktError) OpCode() protocol.OpCode {
	return protocol.OpError
}

// Err converts the packet into the error reported to the caller
func (p *PktError) Err() error {
	return &protocol.PeerError{Code: p.Code, Message: p.Message}
}

func (p *PktError) Marshal() ([]byte, error) {
	size := protocol.HeaderSize + len(p.Message) + 1
	if err := checkSize(size); err != nil {
		return nil, err
	}

	buf := make([]byte, protocol.HeaderSize, size)
	putHeader(buf, protocol.OpError, uint16(p.Code))
	return appendString(buf, p.Message)
}

func UnmarshalError(data []byte) (*PktError, error) {
	if _, err := checkHeader(data, protocol.OpError); err != nil {
		return nil, err
	}

	msg, _, err := readString(data, protocol.HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("error message: %w", err)
	}

	return &PktError{
		Code:    protocol.ErrCode(be.Uint16(data[2:4])),
		Message: msg,
	}, nil
}
