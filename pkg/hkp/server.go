// Package hkp implements the server side of the OpenPGP HTTP
// Keyserver Protocol: op dispatch and search normalization for
// /pks/lookup and key submission for /pks/add. All key material
// handling is delegated to a keystore.Store.
package hkp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/ctrliq/hkpd/pkg/keystore"
	"golang.org/x/time/rate"
)

const (
	DefaultAddr = ":11371"
)

const (
	AddRoute    = "/pks/add"
	LookupRoute = "/pks/lookup"
)

const defaultMaxBodyBytes = 1 << 18

// Notifier is told about successful key submissions with the
// fingerprints reported by the store.
type Notifier interface {
	ImportedKeys(fingerprints []string)
}

type Config struct {
	Addr       string
	PublicPem  string
	PrivatePem string

	Store keystore.Engine

	PushRateLimit RateLimit
	Notifier      Notifier
	MaxBodyBytes  int64
}

type hkpHandler struct {
	store        keystore.Store
	notifier     Notifier
	maxBodyBytes int64

	limitMu      sync.Mutex
	usersLimit   map[string]*rate.Limiter
	rateRequests int
	rateMinutes  int
}

func (h *hkpHandler) lookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	// unknown query variables are ignored as required by the HKP
	// draft, Dispatch only ever looks at op and search
	Dispatch(r.URL.Query(), h.store).Write(w)
}

func (h *hkpHandler) add(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.usersLimit != nil && h.pushLimitReached(remoteIP(r)) {
		http.Error(w, "Too many key submissions", http.StatusTooManyRequests)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, ok := r.PostForm["keytext"]; !ok {
		http.Error(w, "Missing required argument: keytext", http.StatusBadRequest)
		return
	}

	resp := Add(r.PostForm, h.store)
	resp.Write(w)

	if h.notifier != nil && resp.Code == http.StatusCreated {
		if i := bytes.IndexByte(resp.Body, '\n'); i >= 0 && i+1 < len(resp.Body) {
			fingerprints := strings.Split(string(resp.Body[i+1:]), "\n")
			go h.notifier.ImportedKeys(fingerprints)
		}
	}
}

// Start runs the HKP server until ctx is cancelled.
func Start(ctx context.Context, cfg Config) error {
	if cfg.Store == nil {
		return fmt.Errorf("no key store specified")
	}

	handler := &hkpHandler{
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		maxBodyBytes: cfg.MaxBodyBytes,
	}
	if handler.maxBodyBytes == 0 {
		handler.maxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.PushRateLimit != "" {
		requests, minutes, err := cfg.PushRateLimit.parse()
		if err != nil {
			return err
		}
		handler.usersLimit = make(map[string]*rate.Limiter)
		handler.rateRequests = requests
		handler.rateMinutes = minutes
	}

	mux := http.NewServeMux()
	mux.HandleFunc(AddRoute, handler.add)
	mux.HandleFunc(LookupRoute, handler.lookup)

	addr := cfg.Addr
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: logRequests(mux),
	}

	if err := cfg.Store.Connect(); err != nil {
		return fmt.Errorf("while connecting to key store: %s", err)
	}

	shutdownCh := make(chan error, 1)
	go func() {
		<-ctx.Done()
		shutdownCh <- srv.Shutdown(context.Background())
	}()

	var err error

	if cfg.PublicPem != "" && cfg.PrivatePem != "" {
		err = srv.ListenAndServeTLS(cfg.PublicPem, cfg.PrivatePem)
	} else {
		err = srv.ListenAndServe()
	}

	if err != http.ErrServerClosed {
		cfg.Store.Disconnect()
		return err
	}

	err = <-shutdownCh

	cfg.Store.Disconnect()

	return err
}
