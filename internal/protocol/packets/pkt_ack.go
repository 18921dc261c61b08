package packets

import (
	"github.com/goodieshq/gotftp/internal/protocol"
)

// Acknowledgment of a DATA block, or of a request when Block is 0
type PktAck struct {
	Block uint16
}

const PktAckSize = protocol.HeaderSize

func NewAck(block uint16) *PktAck {
	return &PktAck{Block: block}
}

func (p *PktAck) OpCode() protocol.OpCode {
	return protocol.OpAck
}

func (p *PktAck) Marshal() ([]byte, error) {
	buf := make([]byte, PktAckSize)
	putHeader(buf, protocol.OpAck, p.Block)
	return buf, nil
}

// UnmarshalAck parses an ACK packet, ignoring any trailing bytes
func UnmarshalAck(data []byte) (*PktAck, error) {
	if _, err := checkHeader(data, protocol.OpAck); err != nil {
		return nil, err
	}
	return &PktAck{Block: be.Uint16(data[2:4])}, nil
}
