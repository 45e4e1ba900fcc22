// Command echo runs a length-prefix echo server and hammers it with
// concurrent clients.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	netsocket "github.com/loqix/NetworkSocket"
	"github.com/loqix/NetworkSocket/server"
)

func main() {
	var (
		addr     = flag.String("addr", "127.0.0.1:3456", "listen address")
		clients  = flag.Int("clients", 4, "concurrent clients")
		messages = flag.Int("messages", 1000, "messages per client")
	)
	flag.Parse()
	runtime.GOMAXPROCS(runtime.NumCPU())

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	echo := server.HandlerFunc(func(c *netsocket.Conn, pkt netsocket.Packet) {
		if err := c.Send(netsocket.FramedPacket(pkt.Bytes())); err != nil {
			logger.Warn().Err(err).Msg("echo send failed")
		}
	})

	srv, err := server.NewServer(*addr, netsocket.DecodeFrame, echo, &server.Config{
		Logger: &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("server setup failed")
	}
	if err := srv.Start(); err != nil {
		logger.Fatal().Err(err).Msg("server start failed")
	}
	defer srv.Stop()

	start := time.Now()
	var echoed atomic.Int64

	eg := errgroup.Group{}
	for i := 0; i < *clients; i++ {
		id := i
		eg.Go(func() error {
			done := make(chan struct{})
			want := int64(*messages)
			var got atomic.Int64

			conn, err := netsocket.Dial(srv.Addr().String(), netsocket.ConnConfig{
				Decode: netsocket.DecodeFrame,
				OnPacket: func(netsocket.Packet) {
					echoed.Add(1)
					if got.Add(1) == want {
						close(done)
					}
				},
				OnClose: func() {
					logger.Info().Int("client", id).Msg("disconnected")
				},
			})
			if err != nil {
				return err
			}
			defer conn.Close()

			for n := 0; n < *messages; n++ {
				payload := netsocket.FramedPacket(fmt.Sprintf("hello_%d_%d", id, n))
				if err := conn.Send(payload); err != nil {
					return err
				}
			}

			select {
			case <-done:
				return nil
			case <-time.After(30 * time.Second):
				return fmt.Errorf("client %d: timed out waiting for echoes", id)
			}
		})
	}

	if err := eg.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("run failed")
	}
	logger.Info().
		Int64("echoed", echoed.Load()).
		Dur("elapsed", time.Since(start)).
		Msg("finished")
}
