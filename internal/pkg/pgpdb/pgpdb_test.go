package pgpdb

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/ctrliq/hkpd/pkg/keystore"
	"golang.org/x/crypto/openpgp"
	"golang.org/x/crypto/openpgp/armor"
)

func connectedEngine(t *testing.T) *pgpdb {
	p := new(pgpdb)
	if err := p.Connect(); err != nil {
		t.Fatalf("unexpected error while connecting: %s", err)
	}
	return p
}

func testEntity(t *testing.T, name, email string) *openpgp.Entity {
	e, err := openpgp.NewEntity(name, "No comment", email, nil)
	if err != nil {
		t.Fatalf("unexpected error while generating pgp key: %s", err)
	}
	return e
}

func armoredString(t *testing.T, e *openpgp.Entity, private bool) string {
	b := new(bytes.Buffer)

	aw, err := armor.Encode(b, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("during armor encoding: %s", err)
	}
	if private {
		if err := e.SerializePrivateWithoutSigning(aw, nil); err != nil {
			t.Fatalf("while serializing private key: %s", err)
		}
	} else {
		if err := e.Serialize(aw); err != nil {
			t.Fatalf("while serializing key: %s", err)
		}
	}
	aw.Close()

	return b.String()
}

func TestImportLookupExport(t *testing.T) {
	p := connectedEngine(t)
	defer p.Disconnect()

	e := testEntity(t, "Test0", "test0@example.com")
	fpr := fmt.Sprintf("%X", e.PrimaryKey.Fingerprint[:])
	armored := armoredString(t, e, false)

	outcome, err := p.ImportArmored(armored)
	if err != nil {
		t.Fatalf("unexpected import error: %s", err)
	}
	if outcome.Imported != 1 {
		t.Errorf("unexpected imported count: got %d instead of 1", outcome.Imported)
	}
	if len(outcome.Imports) != 1 || outcome.Imports[0].Fingerprint != fpr {
		t.Errorf("unexpected import list: %+v", outcome.Imports)
	}
	if outcome.Imports[0].Status != keystore.ImportedNew {
		t.Errorf("unexpected import status: got %d instead of %d", outcome.Imports[0].Status, keystore.ImportedNew)
	}

	// the same submission again imports nothing new
	outcome, err = p.ImportArmored(armored)
	if err != nil {
		t.Fatalf("unexpected import error: %s", err)
	}
	if outcome.Imported != 0 {
		t.Errorf("unexpected imported count: got %d instead of 0", outcome.Imported)
	}
	if outcome.Imports[0].Status != keystore.ImportedUnchanged {
		t.Errorf("unexpected import status: got %d instead of %d", outcome.Imports[0].Status, keystore.ImportedUnchanged)
	}

	// exact lookup by full fingerprint and by key id
	for _, term := range []string{fpr, e.PrimaryKey.KeyIdString()} {
		rec, err := p.LookupExact(term)
		if err != nil {
			t.Fatalf("unexpected lookup error for %q: %s", term, err)
		}
		if len(rec.SubkeyFingerprints) == 0 || rec.SubkeyFingerprints[0] != fpr {
			t.Errorf("primary fingerprint must lead the subkey list: %+v", rec.SubkeyFingerprints)
		}
		if len(rec.UIDs) != 1 {
			t.Errorf("unexpected uid list for %q: %+v", term, rec.UIDs)
		}
	}

	if _, err := p.LookupExact("0000000000000000"); err != keystore.ErrNotFound {
		t.Errorf("unexpected lookup error for null key id: %v", err)
	}
	// uid text never matches an exact lookup
	if _, err := p.LookupExact("TEST0@EXAMPLE.COM"); err != keystore.ErrNotFound {
		t.Errorf("unexpected lookup error for uid term: %v", err)
	}

	exported, err := p.ExportArmored(e.PrimaryKey.KeyIdString())
	if err != nil {
		t.Fatalf("unexpected export error: %s", err)
	}
	if string(exported) != armored {
		t.Errorf("exported armor differs from submitted armor")
	}

	exported, err = p.ExportArmored("0000000000000000")
	if err != nil || exported != nil {
		t.Errorf("unexpected export result for unknown key: %v %v", exported, err)
	}
}

func TestImportErrors(t *testing.T) {
	p := connectedEngine(t)
	defer p.Disconnect()

	var decodeErr *keystore.DecodeError
	if _, err := p.ImportArmored("\xff\xfe"); !errors.As(err, &decodeErr) {
		t.Errorf("unexpected error for invalid utf-8: %v", err)
	}

	var engineErr *keystore.EngineError
	if _, err := p.ImportArmored("this is not a key"); !errors.As(err, &engineErr) {
		t.Errorf("unexpected error for garbage submission: %v", err)
	}

	e := testEntity(t, "Test1", "test1@example.com")
	if _, err := p.ImportArmored(armoredString(t, e, true)); !errors.As(err, &engineErr) {
		t.Errorf("unexpected error for private key submission: %v", err)
	}
}

func TestListAll(t *testing.T) {
	p := connectedEngine(t)
	defer p.Disconnect()

	records, err := p.ListAll()
	if err != nil {
		t.Fatalf("unexpected list error: %s", err)
	} else if len(records) != 0 {
		t.Fatalf("unexpected records in a fresh store: %d", len(records))
	}

	for i := 0; i < 2; i++ {
		e := testEntity(t, fmt.Sprintf("Test%d", i), fmt.Sprintf("test%d@example.com", i))
		if _, err := p.ImportArmored(armoredString(t, e, false)); err != nil {
			t.Fatalf("unexpected import error: %s", err)
		}
	}

	records, err = p.ListAll()
	if err != nil {
		t.Fatalf("unexpected list error: %s", err)
	}
	if len(records) != 2 {
		t.Fatalf("unexpected record count: got %d instead of 2", len(records))
	}
	for _, rec := range records {
		// primary key plus one encryption subkey
		if len(rec.SubkeyFingerprints) != 2 {
			t.Errorf("unexpected subkey fingerprints: %+v", rec.SubkeyFingerprints)
		}
		if len(rec.UIDs) != 1 {
			t.Errorf("unexpected uids: %+v", rec.UIDs)
		}
	}
}

func TestValidTerm(t *testing.T) {
	tests := []struct {
		term string
		want bool
	}{
		{"DEADBEEF", true},
		{"0123456789ABCDEF", true},
		{"0000000000000000000000000000000000000000", true},
		{"", false},
		{"ABC", false},
		{"XYZT", false},
		{"GGGGGGGG", false},
	}

	for _, tt := range tests {
		if got := validTerm(tt.term); got != tt.want {
			t.Errorf("unexpected result for %q: got %v instead of %v", tt.term, got, tt.want)
		}
	}
}
