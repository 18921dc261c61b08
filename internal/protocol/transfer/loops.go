package transfer

import (
	"bytes"
	"fmt"
	"iter"

	"github.com/goodieshq/gotftp/internal/protocol"
	"github.com/goodieshq/gotftp/internal/protocol/packets"
)

// Chunks splits data into numbered blocks starting at 1. The last block is
// always shorter than BlockSize, so data whose length is a multiple of
// BlockSize ends with an empty block.
func Chunks(data []byte) iter.Seq2[uint16, []byte] {
	return func(yield func(uint16, []byte) bool) {
		block := uint16(1)
		for {
			n := min(protocol.BlockSize, len(data))
			if !yield(block, data[:n]) || n < protocol.BlockSize {
				return
			}
			data = data[n:]
			block++
		}
	}
}

// BlockCount is the number of DATA packets needed to send size bytes
func BlockCount(size int) int {
	return size/protocol.BlockSize + 1
}

// SendBlocks streams data to the peer one block at a time, waiting for each
// ACK before sending the next block.
func (s *Session) SendBlocks(data []byte) error {
	if BlockCount(len(data)) > protocol.MaxBlocks {
		return s.fail(fmt.Errorf("%w: %d bytes", protocol.ErrFileTooLarge, len(data)))
	}

	s.Stats.Reset()
	for block, chunk := range Chunks(data) {
		s.state = StateSendingBlock
		pkt, err := packets.NewData(block, chunk)
		if err != nil {
			return s.fail(err)
		}
		if err := s.Send(pkt); err != nil {
			return s.fail(err)
		}
		s.Stats.AddBytesSent(uint64(len(chunk)))

		s.state = StateAwaitingBlockAck
		if err := s.awaitAck(block); err != nil {
			return err
		}
		s.Stats.SetBlock(block, len(chunk))
	}

	s.state = StateDone
	s.log.Debug().Uint16("blocks", s.Stats.GetLastBlock()).Msg("Final block acknowledged")
	return nil
}

// RecvBlocks collects DATA blocks from the peer, acknowledging each, until a
// datagram shorter than MaxPacketSize arrives. It returns the full content.
func (s *Session) RecvBlocks() ([]byte, error) {
	return s.recvBlocksFrom(1)
}

// recvBlocksFrom runs the receive loop expecting first as the next block
func (s *Session) recvBlocksFrom(first uint16) ([]byte, error) {
	var content bytes.Buffer

	s.Stats.Reset()
	for expected := first; ; expected++ {
		s.state = StateReceivingBlock
		pkt, n, err := s.Recv()
		if err != nil {
			return nil, s.fail(err)
		}

		data, ok := pkt.(*packets.PktData)
		if !ok {
			return nil, s.unexpected(pkt)
		}
		if data.Block != expected {
			return nil, s.mismatch(expected, data.Block)
		}

		if err := s.Send(packets.NewAck(expected)); err != nil {
			return nil, s.fail(err)
		}
		content.Write(data.Payload)
		s.Stats.AddBytesRcvd(uint64(len(data.Payload)))
		s.Stats.SetBlock(expected, len(data.Payload))

		if n < protocol.MaxPacketSize {
			break
		}
		if expected == protocol.MaxBlocks {
			return nil, s.fail(fmt.Errorf("%w: more than %d blocks", protocol.ErrFileTooLarge, protocol.MaxBlocks))
		}
	}

	s.state = StateDone
	s.log.Debug().Uint16("blocks", s.Stats.GetLastBlock()).Msg("Final block received")
	return content.Bytes(), nil
}
