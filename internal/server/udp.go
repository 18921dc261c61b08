package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/goodieshq/gotftp/internal/protocol"
	"github.com/goodieshq/gotftp/internal/protocol/packets"
	"github.com/goodieshq/gotftp/internal/protocol/transfer"
	"github.com/goodieshq/gotftp/internal/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ServerUDP struct {
	host          string
	port          uint16
	root          string
	timeout       time.Duration
	maxConcurrent uint32
	slots         chan struct{}
	log           zerolog.Logger
	conn          net.PacketConn
	wg            sync.WaitGroup
}

func NewServerUDP(opts ServerOpts) *ServerUDP {
	opts.Timeout = utils.DefaultIfZero(opts.Timeout, protocol.DefaultTimeout)
	opts.Root = utils.DefaultIfZero(opts.Root, ".")
	opts.MaxConcurrentTransfers = utils.DefaultIfZero(opts.MaxConcurrentTransfers, 1)

	slots := make(chan struct{}, opts.MaxConcurrentTransfers)
	for i := uint32(0); i < opts.MaxConcurrentTransfers; i++ {
		slots <- struct{}{}
	}

	logger := zerolog.Nop()
	if opts.Verbose {
		logger = log.Logger
	}

	return &ServerUDP{
		host:          opts.Host,                                    // server listening host
		port:          utils.DefaultIfNil(opts.Port, protocol.Port), // well-known port
		root:          opts.Root,                                    // file root directory
		timeout:       opts.Timeout,                                 // transfer read/write timeout
		maxConcurrent: opts.MaxConcurrentTransfers,                  // 1 means synchronous handling
		slots:         slots,                                        // semaphore for concurrent transfers
		log:           logger,                                       // no-op unless verbose
	}
}

func (s *ServerUDP) slotAcquire() bool {
	select {
	case <-s.slots:
		return true
	default:
		return false
	}
}

func (s *ServerUDP) slotRelease() {
	s.slots <- struct{}{}
}

// Listen binds the well-known request endpoint
func (s *ServerUDP) Listen() error {
	address := net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port))
	conn, err := net.ListenPacket("udp", address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.conn = conn
	return nil
}

// Addr is the bound request endpoint, nil before Listen
func (s *ServerUDP) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run binds the request endpoint and serves until ctx is cancelled
func (s *ServerUDP) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Serve accepts read and write requests on the bound endpoint. Transfer
// failures are logged and never stop the loop.
func (s *ServerUDP) Serve(ctx context.Context) error {
	if s.conn == nil {
		return errors.New("server is not listening")
	}
	defer s.conn.Close()

	// Shutdown server listener on context cancellation
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()
	defer s.wg.Wait()

	buf := make([]byte, protocol.MaxPacketSize+1)
	for {
		pkt, _, addr, err := packets.RecvPacket(s.conn, buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil // server is shutting down
			}
			s.log.Debug().Err(err).Msg("Discarding datagram")
			continue
		}

		req, ok := pkt.(*packets.PktRequest)
		if !ok {
			s.log.Debug().
				Str("remote_addr", addr.String()).
				Str("op", pkt.OpCode().String()).
				Msg("Ignoring non-request packet")
			continue
		}

		s.dispatch(ctx, req, addr)
	}
}

// dispatch runs the transfer inline, or on its own goroutine when concurrent
// transfers are enabled and a slot is free
func (s *ServerUDP) dispatch(ctx context.Context, req *packets.PktRequest, addr net.Addr) {
	if s.maxConcurrent <= 1 {
		s.handleLogged(ctx, req, addr)
		return
	}

	if !s.slotAcquire() {
		s.log.Warn().Str("remote_addr", addr.String()).Msg("Rejecting request: max concurrent transfers reached")
		_, err := packets.SendPacket(s.conn, addr, packets.NewError(protocol.ErrCodeNotDefined, "server busy"))
		if err != nil {
			s.log.Debug().Err(err).Msg("Failed to send busy error")
		}
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.slotRelease()
		s.handleLogged(ctx, req, addr)
	}()
}

func (s *ServerUDP) handleLogged(ctx context.Context, req *packets.PktRequest, addr net.Addr) {
	if err := s.handle(ctx, req, addr); err != nil {
		s.log.Error().
			Err(err).
			Str("remote_addr", addr.String()).
			Str("file", req.Filename).
			Msg("Transfer handler error")
	}
}

// handle services one request on a fresh ephemeral endpoint
func (s *ServerUDP) handle(ctx context.Context, req *packets.PktRequest, addr net.Addr) error {
	id, err := utils.NewULID()
	if err != nil {
		return fmt.Errorf("failed to generate transfer ID: %w", err)
	}

	conn, err := net.ListenPacket("udp", net.JoinHostPort(s.host, "0"))
	if err != nil {
		return fmt.Errorf("failed to open transfer endpoint: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	logger := s.log.With().Str("remote_addr", addr.String()).Logger()
	sess := transfer.NewSession(id, conn, addr, transfer.SessionOpts{
		Timeout:    s.timeout,
		NotifyPeer: true,
		Logger:     &logger,
	})

	logger.Debug().
		Str("transfer_id", id.String()).
		Str("op", req.Op.String()).
		Str("file", req.Filename).
		Str("mode", req.Mode).
		Str("tid", conn.LocalAddr().String()).
		Msg("Request received")

	if req.Mode != protocol.Mode {
		sess.Abort(protocol.ErrCodeIllegalOperation, "unsupported mode")
		return fmt.Errorf("%w: %q", protocol.ErrUnsupportedMode, req.Mode)
	}

	path := utils.Confine(s.root, req.Filename)
	start := time.Now()

	var dir protocol.Direction
	switch req.Op {
	case protocol.OpReadRequest:
		dir = protocol.DirectionDownload
		err = s.upload(sess, path)
	case protocol.OpWriteRequest:
		dir = protocol.DirectionUpload
		err = s.download(sess, path)
	default:
		return fmt.Errorf("%w: %s", protocol.ErrUnexpectedPacket, req.Op)
	}
	if err != nil {
		return err
	}

	evt := logger.Info().
		Str("transfer_id", id.String()).
		Str("direction", dir.String()).
		Str("file", path).
		Uint64("bytes", sess.Stats.TransferSize()).
		Str("duration", utils.DisplayTime(time.Since(start)))
	if sess.Stats.GetBytesSent() > 0 {
		evt = evt.Str("bytes_sent", utils.DisplayBytes(sess.Stats.GetBytesSent()))
	}
	if sess.Stats.GetBytesRcvd() > 0 {
		evt = evt.Str("bytes_rcvd", utils.DisplayBytes(sess.Stats.GetBytesRcvd()))
	}
	evt.Msg("Transfer complete")
	return nil
}

// upload sends a file to the client. The request itself is the acceptance,
// so no ACK 0 precedes the first block.
func (s *ServerUDP) upload(sess *transfer.Session, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		sess.Abort(errCodeFor(err))
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := sess.SendBlocks(data); err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return nil
}

// download accepts a write request with ACK 0 and stores the received file
func (s *ServerUDP) download(sess *transfer.Session, path string) error {
	if err := sess.Send(packets.NewAck(0)); err != nil {
		return fmt.Errorf("failed to accept write request: %w", err)
	}

	content, err := sess.RecvBlocks()
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}

	path, err = utils.PrepareDestination(path, true)
	if err != nil {
		return fmt.Errorf("failed to prepare destination: %w", err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
