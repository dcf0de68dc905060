package main

import (
	"flag"

	"github.com/IamAkshayKaushik/DirectDrop/internal/config"
	"github.com/IamAkshayKaushik/DirectDrop/internal/daemon"
	"github.com/IamAkshayKaushik/DirectDrop/pkg/logger"
)

func runRelay(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	port := fs.String("port", "", "listen port")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.WithListenPort(*port)
	logger.Init(cfg.LogFile())

	app := daemon.NewApplication(cfg)
	manager := daemon.NewDaemonManager(cfg, app)
	action := fs.Arg(0)
	if err := manager.Control(action); err != nil {
		logger.Log.Error("Relay command failed", "action", action, "err", err)
		return err
	}
	if action != "" && action != "run" {
		logger.Log.Info("Relay command completed", "action", action)
	}
	return nil
}
