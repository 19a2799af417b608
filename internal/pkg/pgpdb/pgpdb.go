// Package pgpdb is the default key store engine: OpenPGP key
// material parsed with golang.org/x/crypto/openpgp and persisted as
// JSON records in a buntdb database, in memory or on disk.
package pgpdb

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ctrliq/hkpd/pkg/keystore"
	"github.com/tidwall/buntdb"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
	"golang.org/x/crypto/openpgp/packet"
)

// Name is the engine name used in server configuration.
const Name = "pgpdb"

const (
	keySep    = ":"
	keyPrefix = "key" + keySep

	fpIndex = keyPrefix + "fingerprint"
)

// keyRecord is the stored JSON representation of one key. Subkeys
// starts with the primary key fingerprint, gpg style, so that key id
// searches match the primary key too.
type keyRecord struct {
	Fingerprint string   `json:"fingerprint"`
	Subkeys     []string `json:"subkeys"`
	UIDs        []string `json:"uids"`
	Key         []byte   `json:"key"`
}

type Config struct {
	Dir string `yaml:"dir"`
}

type pgpdb struct {
	db  *buntdb.DB
	cfg Config
}

func (p *pgpdb) NewConfig() keystore.Config {
	return &p.cfg
}

func (p *pgpdb) Connect() error {
	var err error

	if p.cfg.Dir == "" {
		p.db, err = buntdb.Open(":memory:")
	} else {
		p.db, err = buntdb.Open(filepath.Join(p.cfg.Dir, "db"))
	}
	if err != nil {
		return err
	}

	indexes, err := p.db.Indexes()
	if err != nil {
		return err
	}
	for _, index := range indexes {
		if index == fpIndex {
			return nil
		}
	}
	if err := p.db.CreateIndex(fpIndex, keyPrefix+"*", buntdb.IndexJSON("fingerprint")); err != nil {
		return fmt.Errorf("could not create index %s: %s", fpIndex, err)
	}

	return nil
}

func (p *pgpdb) Disconnect() error {
	return p.db.Close()
}

// validTerm accepts hexadecimal key ids (8 or 16 characters) and full
// v4 fingerprints (40 characters).
func validTerm(term string) bool {
	switch len(term) {
	case 8, 16, 40:
	default:
		return false
	}
	_, err := hex.DecodeString(term)
	return err == nil
}

// find returns the first stored record whose primary or subkey
// fingerprint ends with term.
func (p *pgpdb) find(term string) (*keyRecord, error) {
	if !validTerm(term) {
		return nil, keystore.ErrNotFound
	}

	var found *keyRecord
	var recErr error

	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(keyPrefix+"*", func(key, val string) bool {
			r := gjson.GetMany(val, "fingerprint", "subkeys")
			match := strings.HasSuffix(r[0].String(), term)
			if !match {
				for _, sk := range r[1].Array() {
					if strings.HasSuffix(sk.String(), term) {
						match = true
						break
					}
				}
			}
			if !match {
				return true
			}
			kr := new(keyRecord)
			if err := json.Unmarshal([]byte(val), kr); err != nil {
				recErr = err
				return false
			}
			found = kr
			return false
		})
	})
	if err != nil {
		return nil, err
	} else if recErr != nil {
		return nil, recErr
	} else if found == nil {
		return nil, keystore.ErrNotFound
	}

	return found, nil
}

func (p *pgpdb) LookupExact(term string) (*keystore.Record, error) {
	kr, err := p.find(term)
	if err != nil {
		return nil, err
	}
	return &keystore.Record{
		UIDs:               kr.UIDs,
		SubkeyFingerprints: kr.Subkeys,
	}, nil
}

func (p *pgpdb) ExportArmored(term string) ([]byte, error) {
	kr, err := p.find(term)
	if err == keystore.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	e, err := readEntity(kr.Key)
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := armorEntity(buf, e); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (p *pgpdb) ListAll() ([]*keystore.Record, error) {
	var records []*keystore.Record
	var recErr error

	err := p.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend(fpIndex, func(key, val string) bool {
			var kr keyRecord
			if err := json.Unmarshal([]byte(val), &kr); err != nil {
				recErr = err
				return false
			}
			records = append(records, &keystore.Record{
				UIDs:               kr.UIDs,
				SubkeyFingerprints: kr.Subkeys,
			})
			return true
		})
	})
	if err != nil {
		return nil, err
	} else if recErr != nil {
		return nil, recErr
	}

	return records, nil
}

func (p *pgpdb) ImportArmored(keytext string) (*keystore.ImportOutcome, error) {
	if !utf8.ValidString(keytext) {
		return nil, &keystore.DecodeError{Err: fmt.Errorf("submission is not valid UTF-8")}
	}

	el, err := openpgp.ReadArmoredKeyRing(strings.NewReader(keytext))
	if err != nil {
		return nil, &keystore.EngineError{Err: err}
	}

	outcome := new(keystore.ImportOutcome)

	err = p.db.Update(func(tx *buntdb.Tx) error {
		for _, e := range el {
			if e.PrivateKey != nil {
				return &keystore.EngineError{
					Err: fmt.Errorf("private key submitted for %X", e.PrimaryKey.Fingerprint[:]),
				}
			}

			kr, err := newKeyRecord(e)
			if err != nil {
				return &keystore.EngineError{Err: err}
			}
			val, err := json.Marshal(kr)
			if err != nil {
				return err
			}

			status := keystore.ImportedNew
			prev, err := tx.Get(keyPrefix + kr.Fingerprint)
			switch err {
			case buntdb.ErrNotFound:
				outcome.Imported++
			case nil:
				var old keyRecord
				if err := json.Unmarshal([]byte(prev), &old); err != nil {
					return err
				}
				if bytes.Equal(old.Key, kr.Key) {
					status = keystore.ImportedUnchanged
				} else {
					status = keystore.ImportedUpdated
				}
			default:
				return err
			}

			if status != keystore.ImportedUnchanged {
				if _, _, err := tx.Set(keyPrefix+kr.Fingerprint, string(val), nil); err != nil {
					return err
				}
			}

			outcome.Imports = append(outcome.Imports, keystore.Import{
				Fingerprint: kr.Fingerprint,
				Status:      status,
			})
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*keystore.EngineError); ok {
			return nil, err
		}
		return nil, &keystore.EngineError{Err: err}
	}

	return outcome, nil
}

func newKeyRecord(e *openpgp.Entity) (*keyRecord, error) {
	kr := &keyRecord{
		Fingerprint: fmt.Sprintf("%X", e.PrimaryKey.Fingerprint[:]),
	}

	kr.Subkeys = append(kr.Subkeys, kr.Fingerprint)
	for _, sk := range e.Subkeys {
		kr.Subkeys = append(kr.Subkeys, fmt.Sprintf("%X", sk.PublicKey.Fingerprint[:]))
	}

	for _, id := range e.Identities {
		kr.UIDs = append(kr.UIDs, id.Name)
	}

	buf := new(bytes.Buffer)
	if err := e.Serialize(buf); err != nil {
		return nil, err
	}
	kr.Key = buf.Bytes()

	return kr, nil
}

func readEntity(b []byte) (*openpgp.Entity, error) {
	e, err := openpgp.ReadEntity(packet.NewReader(bytes.NewReader(b)))
	if err != nil && err != io.EOF {
		return nil, err
	}
	return e, nil
}

// armorEntity writes the armored ASCII export of e to w.
func armorEntity(w io.Writer, e *openpgp.Entity) error {
	aw, err := armor.Encode(w, openpgp.PublicKeyType, nil)
	if err != nil {
		return err
	}
	if err := e.Serialize(aw); err != nil {
		aw.Close()
		return err
	}
	return aw.Close()
}

func init() {
	keystore.RegisterEngine(Name, new(pgpdb))
}
