package transfer

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/goodieshq/gotftp/internal/protocol"
	"github.com/goodieshq/gotftp/internal/protocol/packets"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

func listen(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("can't listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func newSession(conn net.PacketConn, peer net.Addr, opts SessionOpts) *Session {
	return NewSession(ulid.Make(), conn, peer, opts)
}

// readPacket is the raw side of a test exchange
func readPacket(t *testing.T, conn net.PacketConn) (packets.Packet, net.Addr) {
	t.Helper()
	buf := make([]byte, protocol.MaxPacketSize)
	conn.SetReadDeadline(time.Now().Add(testTimeout))
	pkt, _, addr, err := packets.RecvPacket(conn, buf)
	require.NoError(t, err)
	return pkt, addr
}

func writePacket(t *testing.T, conn net.PacketConn, addr net.Addr, pkt packets.Packet) {
	t.Helper()
	_, err := packets.SendPacket(conn, addr, pkt)
	require.NoError(t, err)
}

func testContent(size int) []byte {
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i % 251)
	}
	return content
}

func TestChunks(t *testing.T) {
	for _, _case := range []struct {
		Size    int
		Lengths []int
	}{
		{0, []int{0}},
		{1, []int{1}},
		{511, []int{511}},
		{512, []int{512, 0}},
		{1026, []int{512, 512, 2}},
		{1024, []int{512, 512, 0}},
	} {
		var (
			lengths []int
			want    uint16 = 1
		)
		for block, chunk := range Chunks(testContent(_case.Size)) {
			assert.Equal(t, want, block, "size %d", _case.Size)
			lengths = append(lengths, len(chunk))
			want++
		}
		assert.Equal(t, _case.Lengths, lengths, "size %d", _case.Size)
		assert.Equal(t, len(_case.Lengths), BlockCount(_case.Size))
	}
}

func TestSendRecvBlocks(t *testing.T) {
	for _, size := range []int{0, 1, 511, 512, 513, 1024, 1026, 5000} {
		a, b := listen(t), listen(t)
		sender := newSession(a, b.LocalAddr(), SessionOpts{Timeout: testTimeout})
		receiver := newSession(b, a.LocalAddr(), SessionOpts{Timeout: testTimeout})

		content := testContent(size)
		errCh := make(chan error, 1)
		go func() { errCh <- sender.SendBlocks(content) }()

		got, err := receiver.RecvBlocks()
		require.NoError(t, err, "size %d", size)
		require.NoError(t, <-errCh, "size %d", size)

		assert.True(t, bytes.Equal(content, got), "size %d: content mismatch", size)
		assert.Equal(t, StateDone, sender.State())
		assert.Equal(t, StateDone, receiver.State())
		assert.EqualValues(t, BlockCount(size), sender.Stats.GetLastBlock())
		assert.EqualValues(t, BlockCount(size), receiver.Stats.GetLastBlock())
		assert.EqualValues(t, size, receiver.Stats.TransferSize())
		assert.EqualValues(t, size, sender.Stats.GetBytesSent())
		assert.EqualValues(t, size, receiver.Stats.GetBytesRcvd())
	}
}

func TestSendBlocksLearnsPeer(t *testing.T) {
	a, b, c := listen(t), listen(t), listen(t)
	sender := newSession(a, b.LocalAddr(), SessionOpts{Timeout: testTimeout})

	errCh := make(chan error, 1)
	go func() { errCh <- sender.SendBlocks(testContent(600)) }()

	// first block arrives at b, but is acknowledged from c
	pkt, from := readPacket(t, b)
	assert.Equal(t, &packets.PktData{Block: 1, Payload: testContent(600)[:512]}, pkt)
	writePacket(t, c, from, packets.NewAck(1))

	// the second block must follow the acknowledgment to c
	pkt, from = readPacket(t, c)
	blk, _ := packets.Block(pkt)
	assert.EqualValues(t, 2, blk)
	writePacket(t, c, from, packets.NewAck(2))

	require.NoError(t, <-errCh)
	assert.Equal(t, c.LocalAddr().String(), sender.Peer().String())
}

func TestSendBlocksSequenceError(t *testing.T) {
	a, b := listen(t), listen(t)
	sender := newSession(a, b.LocalAddr(), SessionOpts{Timeout: testTimeout, NotifyPeer: true})

	errCh := make(chan error, 1)
	go func() { errCh <- sender.SendBlocks(testContent(100)) }()

	_, from := readPacket(t, b)
	writePacket(t, b, from, packets.NewAck(2))

	err := <-errCh
	require.ErrorIs(t, err, protocol.ErrSequence)
	var seqErr *protocol.SequenceError
	require.ErrorAs(t, err, &seqErr)
	assert.EqualValues(t, 1, seqErr.Expected)
	assert.EqualValues(t, 2, seqErr.Got)
	assert.Equal(t, StateFailed, sender.State())

	// the peer is told why the transfer ended
	pkt, _ := readPacket(t, b)
	assert.Equal(t, packets.NewError(protocol.ErrCodeNotDefined, protocol.SequenceErrorMessage), pkt)
}

func TestRecvBlocksSequenceError(t *testing.T) {
	a, b := listen(t), listen(t)
	receiver := newSession(b, a.LocalAddr(), SessionOpts{Timeout: testTimeout})

	errCh := make(chan error, 1)
	go func() {
		_, err := receiver.RecvBlocks()
		errCh <- err
	}()

	data, err := packets.NewData(2, []byte("skipped a block"))
	require.NoError(t, err)
	writePacket(t, a, b.LocalAddr(), data)

	assert.ErrorIs(t, <-errCh, protocol.ErrSequence)
	assert.Equal(t, StateFailed, receiver.State())
}

func TestRecvBlocksPeerError(t *testing.T) {
	a, b := listen(t), listen(t)
	receiver := newSession(b, a.LocalAddr(), SessionOpts{Timeout: testTimeout})

	errCh := make(chan error, 1)
	go func() {
		_, err := receiver.RecvBlocks()
		errCh <- err
	}()

	writePacket(t, a, b.LocalAddr(), packets.NewError(protocol.ErrCodeFileNotFound, "File not found"))

	err := <-errCh
	require.True(t, protocol.IsPeerError(err))
	var peerErr *protocol.PeerError
	require.ErrorAs(t, err, &peerErr)
	assert.Equal(t, protocol.ErrCodeFileNotFound, peerErr.Code)
	assert.Equal(t, "File not found", peerErr.Message)
}

func TestRecvBlocksTimeout(t *testing.T) {
	a, b := listen(t), listen(t)
	receiver := newSession(b, a.LocalAddr(), SessionOpts{Timeout: 100 * time.Millisecond})

	_, err := receiver.RecvBlocks()
	require.Error(t, err)
	assert.True(t, protocol.IsTimeout(err), "not a timeout: %v", err)
	assert.Equal(t, StateFailed, receiver.State())
}

func TestRecvBlocksFramingError(t *testing.T) {
	a, b := listen(t), listen(t)
	receiver := newSession(b, a.LocalAddr(), SessionOpts{Timeout: testTimeout})

	errCh := make(chan error, 1)
	go func() {
		_, err := receiver.RecvBlocks()
		errCh <- err
	}()

	_, err := a.WriteTo([]byte{0, 9, 0, 1}, b.LocalAddr())
	require.NoError(t, err)

	assert.ErrorIs(t, <-errCh, protocol.ErrFraming)
}

func TestAwaitRequestAck(t *testing.T) {
	a, b := listen(t), listen(t)
	sess := newSession(a, b.LocalAddr(), SessionOpts{Timeout: testTimeout})

	errCh := make(chan error, 1)
	go func() { errCh <- sess.AwaitRequestAck() }()
	writePacket(t, b, a.LocalAddr(), packets.NewAck(1))
	assert.ErrorIs(t, <-errCh, protocol.ErrSequence)

	go func() { errCh <- sess.AwaitRequestAck() }()
	writePacket(t, b, a.LocalAddr(), packets.NewAck(0))
	require.NoError(t, <-errCh)
	assert.Equal(t, StateSendingBlock, sess.State())
}

func TestSendBlocksFileTooLarge(t *testing.T) {
	a, b := listen(t), listen(t)
	sess := newSession(a, b.LocalAddr(), SessionOpts{Timeout: testTimeout})

	err := sess.SendBlocks(make([]byte, protocol.MaxBlocks*protocol.BlockSize))
	assert.ErrorIs(t, err, protocol.ErrFileTooLarge)
}

func TestRecvBlocksFileTooLarge(t *testing.T) {
	a, b := listen(t), listen(t)
	receiver := newSession(b, a.LocalAddr(), SessionOpts{Timeout: testTimeout})

	errCh := make(chan error, 1)
	go func() {
		_, err := receiver.recvBlocksFrom(protocol.MaxBlocks)
		errCh <- err
	}()

	// a full last block means the content needs block 65536
	data, err := packets.NewData(protocol.MaxBlocks, testContent(protocol.BlockSize))
	require.NoError(t, err)
	writePacket(t, a, b.LocalAddr(), data)

	pkt, _ := readPacket(t, a)
	assert.Equal(t, packets.NewAck(protocol.MaxBlocks), pkt)
	assert.ErrorIs(t, <-errCh, protocol.ErrFileTooLarge)
	assert.Equal(t, StateFailed, receiver.State())
}

func TestRecvBlocksLastShortBlock(t *testing.T) {
	a, b := listen(t), listen(t)
	receiver := newSession(b, a.LocalAddr(), SessionOpts{Timeout: testTimeout})

	type result struct {
		content []byte
		err     error
	}
	resCh := make(chan result, 1)
	go func() {
		content, err := receiver.recvBlocksFrom(protocol.MaxBlocks)
		resCh <- result{content, err}
	}()

	data, err := packets.NewData(protocol.MaxBlocks, []byte("tail"))
	require.NoError(t, err)
	writePacket(t, a, b.LocalAddr(), data)

	res := <-resCh
	require.NoError(t, res.err)
	assert.Equal(t, []byte("tail"), res.content)
	assert.Equal(t, StateDone, receiver.State())
}
