package packets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/goodieshq/gotftp/internal/protocol"
)

// Packet is one TFTP message. A value lives for a single datagram.
type Packet interface {
	OpCode() protocol.OpCode
	Marshal() ([]byte, error)
}

var be = binary.BigEndian

// putHeader writes the opcode and the 2-byte field that follows it
func putHeader(buf []byte, op protocol.OpCode, field uint16) {
	be.PutUint16(buf[0:2], uint16(op))
	be.PutUint16(buf[2:4], field)
}

// readString returns the bytes from off up to the next NUL and the offset
// just past that NUL
func readString(data []byte, off int) (string, int, error) {
	if off > len(data) {
		return "", 0, protocol.ErrMissingDelimiter
	}
	i := bytes.IndexByte(data[off:], 0)
	if i < 0 {
		return "", 0, protocol.ErrMissingDelimiter
	}
	return string(data[off : off+i]), off + i + 1, nil
}

// appendString appends s followed by its NUL terminator
func appendString(buf []byte, s string) ([]byte, error) {
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return nil, protocol.ErrInvalidString
	}
	buf = append(buf, s...)
	return append(buf, 0), nil
}

// checkSize rejects encodings that Decode would refuse as oversized
func checkSize(n int) error {
	if n > protocol.MaxPacketSize {
		return fmt.Errorf("%w: %d bytes", protocol.ErrInvalidPacketSize, n)
	}
	return nil
}

// Block returns the block number carried by DATA and ACK packets
func Block(pkt Packet) (uint16, bool) {
	switch p := pkt.(type) {
	case *PktData:
		return p.Block, true
	case *PktAck:
		return p.Block, true
	default:
		return 0, false
	}
}

// Decode parses the first n bytes of a datagram. n must equal len(data).
func Decode(data []byte, n int) (Packet, error) {
	if n != len(data) || n < protocol.HeaderSize || n > protocol.MaxPacketSize {
		return nil, fmt.Errorf("%w: %d bytes", protocol.ErrInvalidPacketSize, n)
	}

	op, err := protocol.ParseOpCode(be.Uint16(data[0:2]))
	if err != nil {
		return nil, err
	}

	switch op {
	case protocol.OpReadRequest, protocol.OpWriteRequest:
		return UnmarshalRequest(data)
	case protocol.OpData:
		return UnmarshalData(data)
	case protocol.OpAck:
		return UnmarshalAck(data)
	case protocol.OpError:
		return UnmarshalError(data)
	default:
		return nil, protocol.ErrInvalidOpCode
	}
}

// checkHeader validates the size bounds and expected opcode of a raw packet
func checkHeader(data []byte, ops ...protocol.OpCode) (protocol.OpCode, error) {
	if len(data) < protocol.HeaderSize || len(data) > protocol.MaxPacketSize {
		return 0, protocol.ErrInvalidPacketSize
	}
	op, err := protocol.ParseOpCode(be.Uint16(data[0:2]))
	if err != nil {
		return 0, err
	}
	for _, want := range ops {
		if op == want {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", protocol.ErrUnexpectedPacket, op)
}

// SendPacket marshals pkt and writes it as a single datagram to addr
func SendPacket(conn net.PacketConn, addr net.Addr, pkt Packet) ([]byte, error) {
	buf, err := pkt.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal packet: %w", err)
	}

	_, err = conn.WriteTo(buf, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to send packet: %w", err)
	}

	return buf, nil
}

// RecvPacket reads one datagram into buf and decodes it. The returned length
// is the raw datagram size, which carries the end-of-transfer signal.
func RecvPacket(conn net.PacketConn, buf []byte) (Packet, int, net.Addr, error) {
	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("failed to receive packet: %w", err)
	}

	pkt, err := Decode(buf[:n], n)
	if err != nil {
		return nil, n, addr, fmt.Errorf("failed to decode packet from %s: %w", addr, err)
	}

	return pkt, n, addr, nil
}
