package main

import (
	"fmt"
	"os"

	"github.com/IamAkshayKaushik/DirectDrop/internal/config"
	"github.com/IamAkshayKaushik/DirectDrop/internal/ui"
)

const usage = `Usage:
  directdrop share [--relay URL] [--direct ADDR] [--watch] [--compress] <file>
  directdrop get   [--relay URL] [--out DIR] [--yes] <link|peer-id>
  directdrop relay [--port PORT] [run|install|uninstall|start|stop|restart]`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cfg := config.New()
	var err error
	switch os.Args[1] {
	case "share":
		err = runShare(cfg, os.Args[2:])
	case "get":
		err = runGet(cfg, os.Args[2:])
	case "relay":
		err = runRelay(cfg, os.Args[2:])
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		ui.Error(os.Stderr, "%v", err)
		os.Exit(1)
	}
}
