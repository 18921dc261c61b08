package main

import (
	"bytes"
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goodieshq/gotftp/internal/client"
	"github.com/goodieshq/gotftp/internal/utils"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	localSrc  = "target/client/tftp.0.log"
	remoteDst = "target/server/tftp.x.log"
	localDst  = "target/client/tftp.1.log"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// two full blocks of text plus a 2 byte tail
	text := strings.Repeat("1", 512) + "\n" + strings.Repeat("2", 512) + "\n"

	path, err := utils.PrepareDestination(localSrc, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare source path")
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		log.Fatal().Err(err).Msg("Failed to write source file")
	}

	cli, err := client.NewClientUDP("127.0.0.1", client.DEFAULT_PORT)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create client")
	}
	defer cli.Close()

	if err := cli.Upload(ctx, localSrc, remoteDst); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}
	if err := cli.Download(ctx, remoteDst, localDst); err != nil {
		log.Fatal().Err(err).Msg("Download failed")
	}

	sent, err := os.ReadFile(localSrc)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read source file")
	}
	recv, err := os.ReadFile(localDst)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read downloaded file")
	}

	if !bytes.Equal(sent, recv) {
		log.Fatal().Int("sent", len(sent)).Int("recv", len(recv)).Msg("Round trip content mismatch")
	}
	log.Info().Int("bytes", len(recv)).Msg("Round trip verified")
}
