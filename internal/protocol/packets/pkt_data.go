package packets

import (
	"fmt"

	"github.com/goodieshq/gotftp/internal/protocol"
)

// One block of file content. A payload shorter than BlockSize ends the transfer.
type PktData struct {
	Block   uint16 // 1-based block number
	Payload []byte // At most BlockSize bytes
}

func NewData(block uint16, payload []byte) (*PktData, error) {
	if len(payload) > protocol.BlockSize {
		return nil, fmt.Errorf("%w: %d bytes", protocol.ErrBlockTooLarge, len(payload))
	}
	return &PktData{Block: block, Payload: payload}, nil
}

func (p *PktData) OpCode() protocol.OpCode {
	return protocol.OpData
}

// Final reports whether this is the terminal block of a transfer
func (p *PktData) Final() bool {
	return len(p.Payload) < protocol.BlockSize
}

func (p *PktData) Marshal() ([]byte, error) {
	if len(p.Payload) > protocol.BlockSize {
		return nil, fmt.Errorf("%w: %d bytes", protocol.ErrBlockTooLarge, len(p.Payload))
	}

	buf := make([]byte, protocol.HeaderSize+len(p.Payload))
	putHeader(buf, protocol.OpData, p.Block)
	copy(buf[protocol.HeaderSize:], p.Payload)
	return buf, nil
}

// UnmarshalData parses a DATA packet. The payload is copied out of data.
func UnmarshalData(data []byte) (*PktData, error) {
	if _, err := checkHeader(data, protocol.OpData); err != nil {
		return nil, err
	}

	payload := make([]byte, len(data)-protocol.HeaderSize)
	copy(payload, data[protocol.HeaderSize:])

	return &PktData{
		Block:   be.Uint16(data[2:4]),
		Payload: payload,
	}, nil
}
