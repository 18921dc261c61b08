package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/goodieshq/gotftp/internal/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.DebugLevel)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := server.OptsFromEnv()
	srv := server.NewServerUDP(opts)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Bool("verbose", opts.Verbose).Msg("Starting TFTP server")
		err := srv.Run(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("TFTP server failed")
		} else {
			log.Info().Msg("TFTP server stopped")
		}
	}()

	<-ctx.Done()
	wg.Wait()
}
