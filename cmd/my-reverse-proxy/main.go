// Command my-reverse-proxy is the reverse proxy's entry point: locate and
// load the YAML settings file, build the process-wide app.Context, start
// every configured listener, and block until terminated.
//
// Usage:
//
//	my-reverse-proxy [-config /path/to/settings.yaml]
//
// Exit codes: 1 on a configuration error (missing file, bad YAML,
// unresolved reference), 2 if any listen port fails to bind.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"my-reverse-proxy/internal/app"
	"my-reverse-proxy/internal/config"
	"my-reverse-proxy/internal/listener"
	"my-reverse-proxy/internal/settings"
	"my-reverse-proxy/internal/sshpool"
)

func main() {
	configPath := flag.String("config", "", "path to the .my-reverse-proxy settings file")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	settingsPath, err := config.FindSettingsFile(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "my-reverse-proxy:", err)
		os.Exit(1)
	}

	cfg, err := settings.Load(settingsPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "my-reverse-proxy: loading", settingsPath, ":", err)
		os.Exit(1)
	}

	appCtx := app.NewContext(cfg, []byte(cfg.SessionKey))
	appCtx.SetState(app.StateRunning)

	pool := sshpool.NewPool()
	defer pool.Close()

	fabric := listener.NewFabric(appCtx, pool)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := fabric.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "my-reverse-proxy: binding listeners:", err)
		os.Exit(2)
	}

	logrus.Infof("listening on %d port(s)", len(cfg.GetListenPorts()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logrus.Info("shutting down")
	appCtx.SetState(app.StateShuttingDown)
	cancel()
}
