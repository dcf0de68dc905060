package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/IamAkshayKaushik/DirectDrop/internal/channel"
	"github.com/IamAkshayKaushik/DirectDrop/internal/config"
	"github.com/IamAkshayKaushik/DirectDrop/internal/models"
	"github.com/IamAkshayKaushik/DirectDrop/internal/source"
	"github.com/IamAkshayKaushik/DirectDrop/internal/stun"
	"github.com/IamAkshayKaushik/DirectDrop/internal/transfer"
	"github.com/IamAkshayKaushik/DirectDrop/internal/ui"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/links"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
)

func runShare(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("share", flag.ContinueOnError)
	relayURL := fs.String("relay", "", "relay base URL")
	direct := fs.String("direct", "", "listen for a direct TCP peer on this address instead of using the relay")
	watch := fs.Bool("watch", false, "reload the file when it changes on disk")
	compress := fs.Bool("compress", false, "lz4-compress chunk payloads")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("share needs exactly one file")
	}
	cfg.WithRelayURL(*relayURL).WithWatch(*watch).WithCompress(*compress)
	logger.InitFileOnly(cfg.LogFile())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := <-source.LoadAsync(ctx, fs.Arg(0), cfg.ChunkSize())
	if res.Err != nil {
		return res.Err
	}
	file := res.File

	ch, link, err := openShareChannel(ctx, cfg, *direct)
	if err != nil {
		return err
	}
	defer ch.Close()

	ui.Success(os.Stdout, "Sharing %s (%d bytes)", file.Name, file.Size)
	ui.Info(os.Stdout, "Share link: %s", link)

	bar := ui.NewBar(os.Stderr, "sending "+file.Name)
	var actor *transfer.Actor
	var pending *source.File
	var sender *transfer.Sender
	// applyPending runs on the actor goroutine, between transfers.
	applyPending := func() {
		if pending == nil {
			return
		}
		if err := sender.Load(pending.Name, pending.Chunks, pending.ChunkSize); err == nil {
			bar.SetLabel("sending " + pending.Name)
			ui.Info(os.Stderr, "Now sharing %s (%d bytes)", pending.Name, pending.Size)
			pending = nil
		}
	}
	sender = transfer.NewSender(ch, file.Name, file.Chunks, file.ChunkSize, transfer.SenderHooks{
		OnProgress: bar.Report,
		OnComplete: func(t models.Transfer) {
			ui.Success(os.Stderr, "Sent %s (%d chunks)", t.Filename, t.TotalChunks)
			applyPending()
		},
		OnReset: func(err error) {
			if err != nil {
				ui.Warn(os.Stderr, "Transfer reset: %v", err)
			} else {
				ui.Warn(os.Stderr, "Receiver disconnected, transfer reset")
			}
			applyPending()
		},
	})
	actor = transfer.NewActor(ch, sender)

	if cfg.Watch() {
		w, err := source.NewWatcher(ctx, file.Path)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		defer w.Stop()
		go reloadOnChange(ctx, w, cfg.ChunkSize(), func(f *source.File) {
			actor.Do(func() error {
				pending = f
				applyPending()
				if pending != nil {
					logger.Log.Info("Reload deferred until the current transfer ends", "filename", f.Name)
				}
				return nil
			})
		})
	}

	err = actor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func openShareChannel(ctx context.Context, cfg *config.Config, direct string) (channel.Channel, string, error) {
	if direct != "" {
		d, err := channel.ListenDirect(ctx, direct, cfg.Compress())
		if err != nil {
			return nil, "", err
		}
		addr := stun.NewClient(cfg.StunServerAddr()).AdvertiseAddr(ctx, d.Addr())
		return d, links.ShareLink(cfg.PublicOrigin(), links.DirectPeer, addr), nil
	}
	r, err := channel.DialRelay(ctx, cfg.RelayURL(), models.RoleShare, "", cfg.Compress())
	if err != nil {
		return nil, "", err
	}
	id, err := r.WaitRegistered(ctx)
	if err != nil {
		r.Close()
		return nil, "", err
	}
	return r, links.ShareLink(cfg.PublicOrigin(), id, ""), nil
}

func reloadOnChange(ctx context.Context, w *source.Watcher, chunkSize int, apply func(*source.File)) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.Events():
			if ev.Type == source.EventRemove {
				ui.Warn(os.Stderr, "Shared file was removed, still serving the loaded copy")
				continue
			}
			f, err := source.Load(ev.Path, chunkSize)
			if err != nil {
				logger.Log.Warn("Failed to reload shared file", "path", ev.Path, "err", err)
				continue
			}
			apply(f)
		}
	}
}
