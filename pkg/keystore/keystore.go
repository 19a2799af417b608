// Copyright (c) 2020-2021, Ctrl IQ, Inc. All rights reserved
// SPDX-License-Identifier: BSD-3-Clause

// Package keystore defines the key store capability consumed by the
// HKP protocol layer. Key parsing, signature verification and
// persistence all belong to the engine behind this interface, the
// protocol layer never touches key material itself.
package keystore

import (
	"errors"
)

// ErrNotFound is returned by LookupExact when no key matches the
// search term.
var ErrNotFound = errors.New("key not found")

// DecodeError reports a submission that could not be interpreted as
// character data at all.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return e.Err.Error() }

func (e *DecodeError) Unwrap() error { return e.Err }

// EngineError reports a submission that was understood but rejected
// by the cryptographic engine.
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string { return e.Err.Error() }

func (e *EngineError) Unwrap() error { return e.Err }

// ImportStatus tells what an import did with one submitted key.
type ImportStatus int

const (
	ImportedNew ImportStatus = iota
	ImportedUnchanged
	ImportedUpdated
)

// Import is the per-key outcome of a submission.
type Import struct {
	Fingerprint string
	Status      ImportStatus
}

// ImportOutcome is the result of a successful submission. Imported
// counts keys new to the store, Imports lists every key the engine
// considered.
type ImportOutcome struct {
	Imported int
	Imports  []Import
}

// Fingerprints returns the identifier of every key considered by the
// import, in submission order.
func (o *ImportOutcome) Fingerprints() []string {
	fps := make([]string, 0, len(o.Imports))
	for _, imp := range o.Imports {
		fps = append(fps, imp.Fingerprint)
	}
	return fps
}

// Record describes one key as known to the store: its identity
// strings and its subkey fingerprints. Engines list the primary key
// fingerprint first in SubkeyFingerprints, gpg style.
type Record struct {
	UIDs               []string
	SubkeyFingerprints []string
}

// Store is the read/write surface the protocol handlers use. Search
// terms are expected in normalized form (uppercase, no 0x prefix).
type Store interface {
	// LookupExact retrieves the key matching term by fingerprint or
	// key id only, never by uid text. Absence is ErrNotFound.
	LookupExact(term string) (*Record, error)

	// ExportArmored returns the ASCII armored export of the key
	// matching term, or no bytes when there is nothing to export.
	ExportArmored(term string) ([]byte, error)

	// ListAll enumerates every key in the store in one finite pass.
	ListAll() ([]*Record, error)

	// ImportArmored submits raw key text to the engine. A failure is
	// either a *DecodeError or a *EngineError.
	ImportArmored(keytext string) (*ImportOutcome, error)
}

type Config interface{}

// Engine is a named store implementation with a lifecycle and its own
// configuration section.
type Engine interface {
	NewConfig() Config

	Connect() error
	Disconnect() error

	Store
}

var engines = make(map[string]Engine)

func RegisterEngine(name string, e Engine) {
	engines[name] = e
}

func GetEngine(name string) (Engine, bool) {
	e, ok := engines[name]
	return e, ok
}
