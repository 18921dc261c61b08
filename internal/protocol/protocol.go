package protocol

import (
	"fmt"
	"time"
)

const (
	Port          uint16 = 0x0045 // Well-known port for read/write requests
	BlockSize            = 512    // Size of a full DATA payload
	HeaderSize           = 4      // Opcode + block number / error code
	MaxPacketSize        = BlockSize + HeaderSize
	MaxBlocks            = 65535 // Block numbers are 16 bits and never wrap
	Mode                 = "octet"

	// Per-operation read/write deadline on a server transfer endpoint
	DefaultTimeout = 12 * time.Second
)

// Packet opcode
type OpCode uint16

const (
	OpReadRequest  OpCode = 1 // Client requests to download a file
	OpWriteRequest OpCode = 2 // Client requests to upload a file
	OpData         OpCode = 3 // One block of file content
	OpAck          OpCode = 4 // Acknowledges a block (or a request with block 0)
	OpError        OpCode = 5 // Terminates the transfer
)

// ParseOpCode converts a raw wire value into an OpCode
func ParseOpCode(v uint16) (OpCode, error) {
	switch OpCode(v) {
	case OpReadRequest, OpWriteRequest, OpData, OpAck, OpError:
		return OpCode(v), nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidOpCode, v)
	}
}

func (o OpCode) String() string {
	switch o {
	case OpReadRequest:
		return "RRQ"
	case OpWriteRequest:
		return "WRQ"
	case OpData:
		return "DATA"
	case OpAck:
		return "ACK"
	case OpError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Error codes carried by ERROR packets
type ErrCode uint16

const (
	ErrCodeNotDefined        ErrCode = 0 // See error message
	ErrCodeFileNotFound      ErrCode = 1
	ErrCodeAccessViolation   ErrCode = 2
	ErrCodeDiskFull          ErrCode = 3
	ErrCodeIllegalOperation  ErrCode = 4
	ErrCodeUnknownTransferID ErrCode = 5
	ErrCodeFileExists        ErrCode = 6
	ErrCodeNoSuchUser        ErrCode = 7
)

// Direction of a transfer, seen from the client
type Direction uint8

const (
	DirectionUpload   Direction = 1 // Client Send, Server Receive
	DirectionDownload Direction = 2 // Client Receive, Server Send
)

func (d Direction) String() string {
	switch d {
	case DirectionUpload:
		return "upload"
	case DirectionDownload:
		return "download"
	default:
		return "unknown"
	}
}

// TransferSize is the number of content bytes moved by a transfer whose last
// block had the given number and payload length.
func TransferSize(finalBlock uint16, finalLen int) uint64 {
	if finalBlock == 0 {
		return 0
	}
	return uint64(finalBlock-1)*BlockSize + uint64(finalLen)
}
