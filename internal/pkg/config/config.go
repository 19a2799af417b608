// Copyright (c) 2020-2021, Ctrl IQ, Inc. All rights reserved
// SPDX-License-Identifier: BSD-3-Clause

package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"strconv"

	"github.com/ctrliq/hkpd/internal/pkg/notifier"
	"github.com/ctrliq/hkpd/internal/pkg/pgpdb"
	"github.com/ctrliq/hkpd/pkg/hkp"
	"github.com/ctrliq/hkpd/pkg/keystore"
	"gopkg.in/yaml.v3"
)

const (
	Dir  = "/usr/local/etc/hkpd"
	File = "server.yaml"
)

const (
	bindAddrEnv         = "HKPD_BIND_ADDRESS"
	publicURLEnv        = "HKPD_PUBLIC_URL"
	publicKeyEnv        = "HKPD_PUBLIC_KEY_CERT"
	privateKeyEnv       = "HKPD_PRIVATE_KEY_CERT"
	adminEmailEnv       = "HKPD_ADMIN_EMAIL"
	notifyImportsEnv    = "HKPD_NOTIFY_IMPORTS"
	keyPushRateLimitEnv = "HKPD_KEY_PUSH_RATE_LIMIT"
)

type Certificate struct {
	PublicKeyPath  string `yaml:"public-key"`
	PrivateKeyPath string `yaml:"private-key"`
}

type ServerConfig struct {
	BindAddr   string `yaml:"bind-address"`
	PublicURL  string `yaml:"public-url"`
	AdminEmail string `yaml:"admin-email"`

	Certificate Certificate `yaml:"certificate"`

	NotifierConfig notifier.Config `yaml:"mail"`
	NotifyImports  bool            `yaml:"notify-imports"`

	KeyPushRateLimit hkp.RateLimit `yaml:"key-push-rate-limit"`

	DBEngine string                 `yaml:"db"`
	DBConfig map[string]interface{} `yaml:"db-config"`
}

var DefaultServerConfig ServerConfig = ServerConfig{
	BindAddr:       hkp.DefaultAddr,
	PublicURL:      "hkp://localhost",
	AdminEmail:     "root@localhost",
	NotifierConfig: notifier.DefaultConfig,
	DBEngine:       pgpdb.Name,
}

func Parse(path string) (ServerConfig, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return ServerConfig{}, err
	} else if os.IsNotExist(err) {
		return DefaultServerConfig, nil
	}

	srvConfig := ServerConfig{}
	if err := yaml.Unmarshal(b, &srvConfig); err != nil {
		return ServerConfig{}, err
	}

	if srvConfig.DBEngine == "" {
		srvConfig.DBEngine = pgpdb.Name
	}

	// parse the key store engine configuration
	engine, ok := keystore.GetEngine(srvConfig.DBEngine)
	if !ok {
		return ServerConfig{}, fmt.Errorf("unknown key store engine '%s'", srvConfig.DBEngine)
	}

	b, err = yaml.Marshal(srvConfig.DBConfig)
	if err != nil {
		return ServerConfig{}, err
	}
	if err := yaml.Unmarshal(b, engine.NewConfig()); err != nil {
		return ServerConfig{}, err
	}

	return srvConfig, nil
}

func CheckServerConfig(cfg *ServerConfig) error {
	// environment takes precedence over the configuration file
	env := os.Getenv(bindAddrEnv)
	if env != "" {
		cfg.BindAddr = env
	}
	env = os.Getenv(publicURLEnv)
	if env != "" {
		cfg.PublicURL = env
	}
	env = os.Getenv(publicKeyEnv)
	if env != "" {
		cfg.Certificate.PublicKeyPath = env
	}
	env = os.Getenv(privateKeyEnv)
	if env != "" {
		cfg.Certificate.PrivateKeyPath = env
	}
	env = os.Getenv(adminEmailEnv)
	if env != "" {
		cfg.AdminEmail = env
	}
	env = os.Getenv(notifyImportsEnv)
	if env != "" {
		b, err := strconv.ParseBool(env)
		if err != nil {
			return fmt.Errorf("while parsing %s: %s", notifyImportsEnv, err)
		}
		cfg.NotifyImports = b
	}
	env = os.Getenv(keyPushRateLimitEnv)
	if env != "" {
		cfg.KeyPushRateLimit = hkp.RateLimit(env)
	}

	if cfg.PublicURL == "" {
		return fmt.Errorf("configuration public-url is missing or empty")
	}
	if err := cfg.KeyPushRateLimit.Validate(); err != nil {
		return err
	}
	if cfg.NotifyImports {
		if cfg.AdminEmail == "" {
			return fmt.Errorf("admin email address is missing or empty within configuration")
		}
		if err := notifier.CheckConfig(&cfg.NotifierConfig); err != nil {
			return err
		}
	}

	return nil
}
