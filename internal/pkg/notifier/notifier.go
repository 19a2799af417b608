// Copyright (c) 2020-2021, Ctrl IQ, Inc. All rights reserved
// SPDX-License-Identifier: BSD-3-Clause

// Package notifier sends a mail to the server administrator after a
// successful key submission. Notification is best effort and never
// influences the HTTP response of the submission itself.
package notifier

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const (
	mailSMTPServerEnv   = "HKPD_MAIL_SMTP_SERVER"
	mailSMTPPortEnv     = "HKPD_MAIL_SMTP_PORT"
	mailSMTPUsernameEnv = "HKPD_MAIL_SMTP_USERNAME"
	mailSMTPPasswordEnv = "HKPD_MAIL_SMTP_PASSWORD"
	mailSMTPInsecureEnv = "HKPD_MAIL_SMTP_INSECURE_TLS"
)

type Config struct {
	SMTPServer      string `yaml:"smtp-server"`
	SMTPPort        int    `yaml:"smtp-port"`
	SMTPInsecureTLS bool   `yaml:"smtp-insecure-tls"`
	SMTPUsername    string `yaml:"smtp-username"`
	SMTPPassword    string `yaml:"smtp-password"`
	Email           string `yaml:"email"`
	Subject         string `yaml:"subject"`
	MessageTemplate string `yaml:"message"`
}

var DefaultConfig Config = Config{
	SMTPServer:      "localhost",
	SMTPPort:        25,
	Subject:         DefaultSubject,
	MessageTemplate: DefaultTemplate,
}

type TemplateArgs struct {
	PublicURL    string
	Fingerprints []string
}

var DefaultSubject = "Keys imported"

var DefaultTemplate = `Hello,

The key server {{.PublicURL}} imported the following keys:

{{range .Fingerprints}}{{.}}
{{end}}
---------------------
This message was sent automatically by the public key server {{.PublicURL}}.
`

func CheckConfig(cfg *Config) error {
	env := os.Getenv(mailSMTPServerEnv)
	if env != "" {
		cfg.SMTPServer = env
	}
	env = os.Getenv(mailSMTPPortEnv)
	if env != "" {
		b, err := strconv.ParseUint(env, 10, 16)
		if err != nil {
			return fmt.Errorf("while parsing %s: %s", mailSMTPPortEnv, err)
		}
		cfg.SMTPPort = int(b)
	}
	env = os.Getenv(mailSMTPUsernameEnv)
	if env != "" {
		cfg.SMTPUsername = env
	}
	env = os.Getenv(mailSMTPPasswordEnv)
	if env != "" {
		cfg.SMTPPassword = env
	}
	env = os.Getenv(mailSMTPInsecureEnv)
	if env != "" {
		b, err := strconv.ParseBool(env)
		if err != nil {
			return fmt.Errorf("while parsing %s: %s", mailSMTPInsecureEnv, err)
		}
		cfg.SMTPInsecureTLS = b
	}
	if cfg.SMTPServer == "" {
		return fmt.Errorf("smtp server address within mail configuration is missing or empty")
	}
	return nil
}

// Notifier reports imported keys to the administrator address.
type Notifier struct {
	config    *Config
	publicURL string
	to        string
}

func New(cfg *Config, publicURL, adminEmail string) *Notifier {
	return &Notifier{
		config:    cfg,
		publicURL: publicURL,
		to:        adminEmail,
	}
}

// ImportedKeys implements hkp.Notifier.
func (n *Notifier) ImportedKeys(fingerprints []string) {
	body, err := renderBody(n.config, n.publicURL, fingerprints)
	if err != nil {
		logrus.WithError(err).Error("while rendering import notification")
		return
	}

	subject := n.config.Subject
	if subject == "" {
		subject = DefaultSubject
	}

	msg := NewMessage(n.config.Email, n.to, subject, body)

	if err := Send(n.config, msg); err != nil {
		logrus.WithError(err).Error("while sending import notification")
		return
	}

	logrus.WithField("to", n.to).Info("Import notification sent")
}

func renderBody(cfg *Config, publicURL string, fingerprints []string) (string, error) {
	templateMsg := cfg.MessageTemplate
	if templateMsg == "" {
		templateMsg = DefaultTemplate
	}

	tmpl, err := template.New("message").Parse(templateMsg)
	if err != nil {
		return "", err
	}

	args := &TemplateArgs{
		PublicURL:    publicURL,
		Fingerprints: fingerprints,
	}

	s := new(strings.Builder)
	if err := tmpl.Execute(s, args); err != nil {
		return "", err
	}

	return s.String(), nil
}

func Send(cfg *Config, m ...*gomail.Message) error {
	port := cfg.SMTPPort
	host := cfg.SMTPServer

	if port == 0 {
		port = 587
	}
	if host == "" {
		return fmt.Errorf("a SMTP host server must be specified")
	}

	d := gomail.NewDialer(host, port, cfg.SMTPUsername, cfg.SMTPPassword)
	if (port == 587 || port == 465) && cfg.SMTPInsecureTLS {
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return d.DialAndSend(m...)
}

func NewMessage(from, to, subject, text string) *gomail.Message {
	m := gomail.NewMessage()

	m.SetHeader("From", from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", text)

	return m
}
