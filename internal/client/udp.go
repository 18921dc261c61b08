package client

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/goodieshq/gotftp/internal/protocol/packets"
	"github.com/goodieshq/gotftp/internal/protocol/transfer"
	"github.com/goodieshq/gotftp/internal/utils"
	"github.com/rs/zerolog/log"
)

type ClientUDP struct {
	server *net.UDPAddr   // well-known request endpoint
	conn   net.PacketConn // ephemeral local endpoint, held until Close
}

// NewClientUDP resolves the server address and binds an ephemeral local
// endpoint. A zero port selects the well-known port.
func NewClientUDP(host string, port uint16) (*ClientUDP, error) {
	if port == 0 {
		port = DEFAULT_PORT
	}

	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	server, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve server address: %w", err)
	}

	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, fmt.Errorf("failed to bind local endpoint: %w", err)
	}

	return &ClientUDP{server: server, conn: conn}, nil
}

func (c *ClientUDP) Close() error {
	return c.conn.Close()
}

// newSession starts a transfer against the well-known port. Cancelling ctx
// expires the read deadline to unblock a pending read; the endpoint stays
// open for the next transfer.
func (c *ClientUDP) newSession(ctx context.Context) (*transfer.Session, func(), error) {
	id, err := utils.NewULID()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate transfer ID: %w", err)
	}

	// clear a deadline left behind by a cancelled transfer
	if err := c.conn.SetDeadline(time.Time{}); err != nil {
		return nil, nil, fmt.Errorf("failed to reset endpoint deadline: %w", err)
	}

	sess := transfer.NewSession(id, c.conn, c.server, transfer.SessionOpts{Logger: &log.Logger})

	expired := make(chan struct{})
	stopFunc := context.AfterFunc(ctx, func() {
		defer close(expired)
		c.conn.SetReadDeadline(time.Now())
	})
	stop := func() {
		if !stopFunc() {
			<-expired
		}
	}
	return sess, stop, nil
}

// wrapErr prefers the context error when the endpoint was closed by cancellation
func wrapErr(ctx context.Context, msg string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", msg, ctx.Err())
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func (c *ClientUDP) Upload(ctx context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read source file: %w", err)
	}

	sess, stop, err := c.newSession(ctx)
	if err != nil {
		return err
	}
	defer stop()

	pktReq, err := packets.NewWriteRequest(dst, DEFAULT_MODE)
	if err != nil {
		return fmt.Errorf("failed to create write request: %w", err)
	}

	if err := sess.Send(pktReq); err != nil {
		return wrapErr(ctx, "failed to send write request", err)
	}
	log.Debug().Str("transfer_id", sess.ID().String()).Str("file", dst).Msg("Write request sent")

	if err := sess.AwaitRequestAck(); err != nil {
		return wrapErr(ctx, "write request rejected", err)
	}

	if err := sess.SendBlocks(data); err != nil {
		return wrapErr(ctx, "upload failed", err)
	}

	log.Info().
		Str("transfer_id", sess.ID().String()).
		Str("src", src).
		Str("dst", dst).
		Str("size", utils.DisplayBytes(sess.Stats.TransferSize())).
		Str("bytes_sent", utils.DisplayBytes(sess.Stats.GetBytesSent())).
		Msg("Upload complete")
	return nil
}

func (c *ClientUDP) Download(ctx context.Context, src, dst string) error {
	sess, stop, err := c.newSession(ctx)
	if err != nil {
		return err
	}
	defer stop()

	pktReq, err := packets.NewReadRequest(src, DEFAULT_MODE)
	if err != nil {
		return fmt.Errorf("failed to create read request: %w", err)
	}

	if err := sess.Send(pktReq); err != nil {
		return wrapErr(ctx, "failed to send read request", err)
	}
	log.Debug().Str("transfer_id", sess.ID().String()).Str("file", src).Msg("Read request sent")

	content, err := sess.RecvBlocks()
	if err != nil {
		return wrapErr(ctx, "download failed", err)
	}

	path, err := utils.PrepareDestination(dst, true)
	if err != nil {
		return fmt.Errorf("failed to prepare destination: %w", err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("failed to write destination file: %w", err)
	}

	log.Info().
		Str("transfer_id", sess.ID().String()).
		Str("src", src).
		Str("dst", path).
		Str("size", utils.DisplayBytes(sess.Stats.TransferSize())).
		Str("bytes_rcvd", utils.DisplayBytes(sess.Stats.GetBytesRcvd())).
		Msg("Download complete")
	return nil
}
