package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	// load the default key store engine
	_ "github.com/ctrliq/hkpd/internal/pkg/pgpdb"

	"github.com/ctrliq/hkpd/internal/pkg/config"
	"github.com/ctrliq/hkpd/internal/pkg/notifier"
	"github.com/ctrliq/hkpd/pkg/hkp"
	"github.com/ctrliq/hkpd/pkg/keystore"
	"github.com/sirupsen/logrus"
)

// set by mage at build time
var version string

func execute(args []string) error {
	configPath := filepath.Join(config.Dir, config.File)
	if len(args) > 0 {
		configPath = args[0]
	}

	cfg, err := config.Parse(configPath)
	if err != nil {
		return fmt.Errorf("while parsing configuration file: %s", err)
	}

	if err := config.CheckServerConfig(&cfg); err != nil {
		return fmt.Errorf("while checking configuration: %s", err)
	}

	store, ok := keystore.GetEngine(cfg.DBEngine)
	if !ok {
		return fmt.Errorf("no key store engine %s", cfg.DBEngine)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		s := <-c
		logrus.WithField("signal", s).Info("Server interrupted by signal")
		cancel()
	}()

	scfg := hkp.Config{
		Addr:          cfg.BindAddr,
		PublicPem:     cfg.Certificate.PublicKeyPath,
		PrivatePem:    cfg.Certificate.PrivateKeyPath,
		Store:         store,
		PushRateLimit: cfg.KeyPushRateLimit,
	}
	if cfg.NotifyImports {
		scfg.Notifier = notifier.New(&cfg.NotifierConfig, cfg.PublicURL, cfg.AdminEmail)
	}

	logrus.WithField("listen", cfg.BindAddr).Info("Server started")

	return hkp.Start(ctx, scfg)
}

func main() {
	if err := execute(os.Args[1:]); err != nil {
		logrus.WithError(err).Fatal("while running server")
	}
}
