package protocol

import "sync/atomic"

// Stats will keep track of blocks and bytes moved during a single transfer
type Stats struct {
	bytesSent  atomic.Uint64
	bytesRcvd  atomic.Uint64
	lastBlock  atomic.Uint32
	lastLength atomic.Uint32
}

func (s *Stats) AddBytesSent(delta uint64) {
	s.bytesSent.Add(delta)
}

func (s *Stats) AddBytesRcvd(delta uint64) {
	s.bytesRcvd.Add(delta)
}

// SetBlock records the most recent block number and its payload length
func (s *Stats) SetBlock(block uint16, length int) {
	s.lastBlock.Store(uint32(block))
	s.lastLength.Store(uint32(length))
}

func (s *Stats) Reset() {
	s.bytesSent.Store(0)
	s.bytesRcvd.Store(0)
	s.lastBlock.Store(0)
	s.lastLength.Store(0)
}

func (s *Stats) GetBytesSent() uint64 {
	return s.bytesSent.Load()
}

func (s *Stats) GetBytesRcvd() uint64 {
	return s.bytesRcvd.Load()
}

func (s *Stats) GetLastBlock() uint16 {
	return uint16(s.lastBlock.Load())
}

// TransferSize is the content size implied by the final block
func (s *Stats) TransferSize() uint64 {
	return TransferSize(s.GetLastBlock(), int(s.lastLength.Load()))
}
