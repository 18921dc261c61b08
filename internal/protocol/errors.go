package protocol

import (
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	// Framing errors, all of them wrap ErrFraming
	ErrFraming           = errors.New("malformed packet")
	ErrInvalidPacketSize = fmt.Errorf("%w: invalid packet size", ErrFraming)
	ErrInvalidOpCode     = fmt.Errorf("%w: invalid opcode", ErrFraming)
	ErrMissingDelimiter  = fmt.Errorf("%w: missing string delimiter", ErrFraming)

	ErrSequence         = errors.New("block number mismatch")
	ErrUnexpectedPacket = errors.New("unexpected packet type")
	ErrUnsupportedMode  = errors.New("unsupported transfer mode")
	ErrBlockTooLarge    = errors.New("data block exceeds block size")
	ErrFileTooLarge     = errors.New("file exceeds maximum block count")
	ErrInvalidString    = errors.New("string field contains a NUL byte")
)

// Message sent to the peer when a block number does not match
const SequenceErrorMessage = "blk != klb"

// SequenceError reports a received block number that is not the expected one
type SequenceError struct {
	Expected uint16
	Got      uint16
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("block number mismatch: expected %d, got %d", e.Expected, e.Got)
}

func (e *SequenceError) Is(target error) bool {
	return target == ErrSequence
}

// PeerError is an ERROR packet received from the other side of a transfer
type PeerError struct {
	Code    ErrCode
	Message string
}

func (e *PeerError) Error() string {
	return fmt.Sprintf("peer error %d: %s", e.Code, e.Message)
}

// IsTimeout reports whether err was caused by an expired socket deadline
func IsTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// IsFraming reports whether err is a packet decoding failure
func IsFraming(err error) bool {
	return errors.Is(err, ErrFraming)
}

// IsPeerError reports whether err came from an ERROR packet sent by the peer
func IsPeerError(err error) bool {
	var pe *PeerError
	return errors.As(err, &pe)
}
