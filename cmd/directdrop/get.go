package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IamAkshayKaushik/DirectDrop/internal/channel"
	"github.com/IamAkshayKaushik/DirectDrop/internal/config"
	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/internal/sink"
	"github.com/IamAkshayKaushik/DirectDrop/internal/transfer"
	"github.com/IamAkshayKaushik/DirectDrop/internal/ui"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/links"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
)

var errNoFile = errors.New("connection ended before a file was received")

func runGet(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	relayURL := fs.String("relay", "", "relay base URL")
	out := fs.String("out", "", "download directory")
	yes := fs.Bool("yes", false, "start downloading without asking")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("get needs a share link or peer id")
	}
	cfg.WithRelayURL(*relayURL).WithDownloadDir(*out)
	logger.InitFileOnly(cfg.LogFile())

	join, err := links.ParseJoin(fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ch, err := openJoinChannel(ctx, cfg, join)
	if err != nil {
		return err
	}
	defer ch.Close()

	saver := sink.NewSaver(cfg.DownloadDir())
	bar := ui.NewBar(os.Stderr, "receiving")
	var actor *transfer.Actor
	var receiver *transfer.Receiver
	var saveErr error
	saved := false
	receiver = transfer.NewReceiver(ch, transfer.ReceiverHooks{
		OnProgress: bar.Report,
		OnMetadata: func(t models.Transfer) {
			bar.SetLabel("receiving " + t.Filename)
			ui.Info(os.Stderr, "Incoming file: %s (%d chunks)", t.Filename, t.TotalChunks)
			if *yes {
				actor.Do(receiver.Start)
				return
			}
			go confirmStart(ctx, actor, receiver)
		},
		OnFile: func(name string, data []byte) {
			path, err := saver.Save(name, data)
			if err != nil {
				saveErr = err
			} else {
				saved = true
				ui.Success(os.Stdout, "Saved %s (%d bytes)", path, len(data))
			}
			actor.Stop()
		},
		OnReset: func(err error) {
			ui.Warn(os.Stderr, "Transfer reset: %v", err)
		},
	})
	actor = transfer.NewActor(ch, receiver)

	if err := actor.Run(ctx); err != nil {
		return err
	}
	if saveErr != nil {
		return saveErr
	}
	if !saved {
		return errNoFile
	}
	return nil
}

func openJoinChannel(ctx context.Context, cfg *config.Config, join links.Join) (channel.Channel, error) {
	if join.Addr != "" {
		return channel.DialDirect(ctx, join.Addr, cfg.Compress())
	}
	if join.PeerID == links.DirectPeer {
		return nil, fmt.Errorf("direct link without an address")
	}
	return channel.DialRelay(ctx, cfg.RelayURL(), models.RoleJoin, join.PeerID, cfg.Compress())
}

// confirmStart is the interactive "start download" action.
func confirmStart(ctx context.Context, actor *transfer.Actor, receiver *transfer.Receiver) {
	answers := make(chan string, 1)
	go func() {
		fmt.Fprint(os.Stderr, "Start download? [Y/n] ")
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answers <- strings.ToLower(strings.TrimSpace(line))
	}()
	select {
	case <-ctx.Done():
	case a := <-answers:
		if a == "" || a == "y" || a == "yes" {
			actor.Do(receiver.Start)
			return
		}
		ui.Warn(os.Stderr, "Download declined")
		actor.Stop()
	}
}
