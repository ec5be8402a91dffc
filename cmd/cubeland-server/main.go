// BSD 3-Clause License
//
// Copyright (c) 2020, Sperax
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this
//    list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice,
//    this list of conditions and the following disclaimer in the documentation
//    and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
//    contributors may be used to endorse or promote products derived from
//    this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE
// FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
// DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER
// CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY,
// OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package main

import (
	"code.cloudfoundry.org/bytefmt"
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cubeland/server/broadcast"
	"github.com/cubeland/server/internal/serverlog"
	"github.com/cubeland/server/keycache"
	"github.com/cubeland/server/serverconfig"
	"github.com/cubeland/server/session"
	"github.com/cubeland/server/session/handlers"
	"github.com/cubeland/server/world/memstorage"
)

var log = serverlog.New("main")

func main() {
	app := &cli.App{
		Name:                 "cubeland-server",
		Usage:                "voxel sandbox server network core",
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "start the server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "config",
						Value: "./cubeland.toml",
						Usage: "path to the server configuration file",
					},
					&cli.StringFlag{
						Name:  "log",
						Value: "./cubeland-server.log",
						Usage: "path to the rotated server log file",
					},
				},
				Action: runCommand,
			},
			{
				Name:  "genkey",
				Usage: "generate an ECDSA keypair for a player account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "out",
						Value: "./player.pem",
						Usage: "output path for the PEM-encoded public key",
					},
				},
				Action: genkeyCommand,
			},
		},
		Action: func(c *cli.Context) error {
			cli.ShowAppHelp(c)
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

func runCommand(c *cli.Context) error {
	serverlog.Init(c.String("log"), 64, 5, 28)

	cfg, err := serverconfig.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	printConfigSummary(cfg)

	cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		return fmt.Errorf("load tls keypair: %w", err)
	}
	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		NextProtos:   []string{"cubeland/1.0"},
	}

	keys, err := keycache.New(keycache.Config{
		DBPath:     cfg.KeyCache.DBPath,
		APIBaseURL: cfg.KeyCache.APIBaseURL,
	})
	if err != nil {
		return fmt.Errorf("open key cache: %w", err)
	}
	defer keys.Close()

	storage := memstorage.New()
	defer storage.Close()

	bus := broadcast.New()
	bus.OnDrop = func(k broadcast.Kind, ev broadcast.Event) {
		log.Warningf("dropped broadcast event kind=%d: full subscriber queue", k)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var listener *session.Listener
	listener = session.NewListener(cfg, tlsCfg, bus, serverlog.New("session"), func(s *session.Session) []session.Handler {
		return handlers.NewHandlerSet(ctx, handlers.Deps{
			Storage:                   storage,
			Keys:                      keys,
			Listener:                  listener,
			Bus:                       bus,
			PositionBroadcastInterval: cfg.Proto.PositionBroadcastInterval,
		}, s)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listener.ListenAndServe(gctx) })

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	g.Go(func() error {
		select {
		case <-sigCh:
			log.Info("shutdown signal received")
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	err = g.Wait()

	shutdownCtx := context.Background()
	listener.Shutdown(shutdownCtx)
	if flushErr := storage.FlushDirty(shutdownCtx); flushErr != nil {
		log.Errorf("flush world storage on shutdown: %v", flushErr)
	}
	if err := handlers.PersistWorldTime(shutdownCtx, storage, listener); err != nil {
		log.Errorf("persist world time on shutdown: %v", err)
	}

	return err
}

func genkeyCommand(c *cli.Context) error {
	priv, err := ecdsa.GenerateKey(handlers.Curve, rand.Reader)
	if err != nil {
		return err
	}

	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return err
	}
	block := &pem.Block{Type: "PUBLIC KEY", Bytes: der}

	out, err := os.Create(c.String("out"))
	if err != nil {
		return err
	}
	defer out.Close()

	if err := pem.Encode(out, block); err != nil {
		return err
	}

	log.Infof("wrote public key to %s", c.String("out"))
	return nil
}

func printConfigSummary(cfg *serverconfig.Config) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"setting", "value"})
	table.Append([]string{"listen", fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)})
	table.Append([]string{"backlog", fmt.Sprintf("%d", cfg.Listen.Backlog)})
	table.Append([]string{"tls.protocols", cfg.TLS.Protocols})
	table.Append([]string{"tls.ciphers", cfg.TLS.Ciphers})
	table.Append([]string{"world.chunkSerializerThreads", fmt.Sprintf("%d", cfg.World.ChunkSerializerThreads)})
	table.Append([]string{"world.sourceWorkThreads", fmt.Sprintf("%d", cfg.World.SourceWorkThreads)})
	table.Append([]string{"proto.positionBroadcastInterval", cfg.Proto.PositionBroadcastInterval.String()})
	table.Append([]string{"proto.timeUpdateInterval", cfg.Proto.TimeUpdateInterval.String()})
	table.Append([]string{"proto.secsPerDay", fmt.Sprintf("%.0f", cfg.Proto.SecsPerDay)})
	table.Append([]string{"keycache.dbPath", cfg.KeyCache.DBPath})
	table.Append([]string{"max frame payload", bytefmt.ByteSize(256 * 1024)})
	table.Render()
}
