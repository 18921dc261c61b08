package transfer

import (
	"fmt"
	"net"
	"time"

	"github.com/goodieshq/gotftp/internal/protocol"
	"github.com/goodieshq/gotftp/internal/protocol/packets"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// State of the stop-and-wait exchange
type State uint8

const (
	StateAwaitingRequestAck State = iota // Request sent, waiting for ACK 0
	StateSendingBlock                    // Next DATA block is being sent
	StateAwaitingBlockAck                // DATA sent, waiting for its ACK
	StateReceivingBlock                  // Waiting for the next DATA block
	StateDone                            // Final block exchanged
	StateFailed                          // Transfer aborted
)

func (s State) String() string {
	switch s {
	case StateAwaitingRequestAck:
		return "awaiting_request_ack"
	case StateSendingBlock:
		return "sending_block"
	case StateAwaitingBlockAck:
		return "awaiting_block_ack"
	case StateReceivingBlock:
		return "receiving_block"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Session is one side of a single transfer over a datagram endpoint. The
// session does not own conn; whoever opened it closes it.
type Session struct {
	id      ulid.ULID
	conn    net.PacketConn
	peer    net.Addr
	timeout time.Duration
	notify  bool
	state   State
	buf     []byte
	log     zerolog.Logger

	Stats protocol.Stats
}

type SessionOpts struct {
	// Per-operation read/write deadline, zero means block forever
	Timeout time.Duration
	// Send an ERROR packet to the peer before failing on a sequence error
	NotifyPeer bool
	Logger     *zerolog.Logger
}

func NewSession(id ulid.ULID, conn net.PacketConn, peer net.Addr, opts SessionOpts) *Session {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Session{
		id:      id,
		conn:    conn,
		peer:    peer,
		timeout: opts.Timeout,
		notify:  opts.NotifyPeer,
		state:   StateSendingBlock,
		// one spare byte so oversized datagrams are seen as such
		buf: make([]byte, protocol.MaxPacketSize+1),
		log: logger.With().Str("transfer_id", id.String()).Logger(),
	}
}

func (s *Session) ID() ulid.ULID {
	return s.id
}

// Peer is the address the next packet will be sent to
func (s *Session) Peer() net.Addr {
	return s.peer
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) logPacket(dir string, pkt packets.Packet) {
	evt := s.log.Debug().Str("dir", dir).Str("op", pkt.OpCode().String())
	if blk, ok := packets.Block(pkt); ok {
		evt = evt.Uint16("block", blk)
	}
	evt.Str("peer", s.peer.String()).Msg("Packet")
}

// Send writes pkt to the current peer
func (s *Session) Send(pkt packets.Packet) error {
	if s.timeout > 0 {
		s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	}

	if _, err := packets.SendPacket(s.conn, s.peer, pkt); err != nil {
		return err
	}
	s.logPacket("out", pkt)
	return nil
}

// Recv reads the next packet and learns the peer address from its source
func (s *Session) Recv() (packets.Packet, int, error) {
	if s.timeout > 0 {
		s.conn.SetReadDeadline(time.Now().Add(s.timeout))
	}

	pkt, n, addr, err := packets.RecvPacket(s.conn, s.buf)
	if err != nil {
		return nil, n, err
	}
	s.peer = addr
	s.logPacket("in", pkt)
	return pkt, n, nil
}

// Abort sends an ERROR packet to the peer. Delivery is not guaranteed.
func (s *Session) Abort(code protocol.ErrCode, msg string) {
	if err := s.Send(packets.NewError(code, msg)); err != nil {
		s.log.Debug().Err(err).Msg("Failed to send error packet")
	}
}

// fail moves the session into the failed state and returns err unchanged
func (s *Session) fail(err error) error {
	s.state = StateFailed
	return err
}

// mismatch reports a sequence error, telling the peer first when configured
func (s *Session) mismatch(expected, got uint16) error {
	if s.notify {
		s.Abort(protocol.ErrCodeNotDefined, protocol.SequenceErrorMessage)
	}
	return s.fail(&protocol.SequenceError{Expected: expected, Got: got})
}

// unexpected handles any packet that is not the one the state expects
func (s *Session) unexpected(pkt packets.Packet) error {
	if e, ok := pkt.(*packets.PktError); ok {
		return s.fail(e.Err())
	}
	if s.notify {
		s.Abort(protocol.ErrCodeIllegalOperation, "illegal operation")
	}
	return s.fail(fmt.Errorf("%w: %s", protocol.ErrUnexpectedPacket, pkt.OpCode()))
}

// awaitAck blocks until the peer acknowledges block
func (s *Session) awaitAck(block uint16) error {
	pkt, _, err := s.Recv()
	if err != nil {
		return s.fail(err)
	}

	ack, ok := pkt.(*packets.PktAck)
	if !ok {
		return s.unexpected(pkt)
	}
	if ack.Block != block {
		return s.mismatch(block, ack.Block)
	}
	return nil
}

// AwaitRequestAck waits for the ACK 0 that accepts a write request. The
// reply's source becomes the peer for the rest of the transfer.
func (s *Session) AwaitRequestAck() error {
	s.state = StateAwaitingRequestAck
	if err := s.awaitAck(0); err != nil {
		return err
	}
	s.state = StateSendingBlock
	return nil
}
