package hkp

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"

	"github.com/ctrliq/hkpd/pkg/keystore"
)

var testArmored = []byte(`-----BEGIN PGP PUBLIC KEY BLOCK-----

mQENBF+fakekeyfakekeyfakekey
=abcd
-----END PGP PUBLIC KEY BLOCK-----
`)

func testLookupStore() *fakeStore {
	rec := &keystore.Record{
		UIDs:               []string{"Alice Test <alice@example.com>"},
		SubkeyFingerprints: []string{"AAAA1111BBBB2222", "CCCC3333DDDD4444"},
	}
	return &fakeStore{
		exact:   map[string]*keystore.Record{"DEADBEEF": rec},
		armored: map[string][]byte{"DEADBEEF": testArmored},
		records: []*keystore.Record{rec},
	}
}

func TestGetOp(t *testing.T) {
	store := testLookupStore()
	// known to the store but without exportable material
	store.exact["FEEDF00D"] = &keystore.Record{}

	tests := []struct {
		name    string
		query   string
		code    int
		content string
	}{
		{
			name:    "missing search",
			query:   "op=get",
			code:    http.StatusInternalServerError,
			content: "Missing required search parameter",
		},
		{
			name:    "unknown key",
			query:   "op=get&search=0x0BADCAFE",
			code:    http.StatusNotFound,
			content: "No key matching search=0BADCAFE",
		},
		{
			name:    "found key",
			query:   "op=get&search=0xdeadbeef",
			code:    http.StatusOK,
			content: string(testArmored),
		},
		{
			name:    "found without export",
			query:   "op=get&search=0xFEEDF00D",
			code:    http.StatusNotFound,
			content: "No key matching search=FEEDF00D",
		},
	}

	for _, tt := range tests {
		params, _ := url.ParseQuery(tt.query)
		resp := Dispatch(params, store)
		if resp.Code != tt.code {
			t.Errorf("unexpected status for %q: got %d instead of %d", tt.name, resp.Code, tt.code)
		} else if string(resp.Body) != tt.content {
			t.Errorf("unexpected content for %q: got %q instead of %q", tt.name, resp.Body, tt.content)
		}
	}
}

func TestGetOpByteExact(t *testing.T) {
	store := testLookupStore()
	params := url.Values{"search": []string{"0xDEADBEEF"}}

	resp := getOp(params, store)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d instead of %d", resp.Code, http.StatusOK)
	}
	if resp.ContentType != "text/plain" {
		t.Errorf("unexpected content type: got %q instead of %q", resp.ContentType, "text/plain")
	}
	for i := range testArmored {
		if resp.Body[i] != testArmored[i] {
			t.Fatalf("armored block modified at byte %d", i)
		}
	}
	if len(resp.Body) != len(testArmored) {
		t.Fatalf("armored block length changed: got %d instead of %d", len(resp.Body), len(testArmored))
	}
}

func TestIndexOp(t *testing.T) {
	store := testLookupStore()
	bothSubkeys := "AAAA1111BBBB2222\nCCCC3333DDDD4444"

	tests := []struct {
		name    string
		query   string
		code    int
		content string
	}{
		{
			name:    "missing search",
			query:   "op=index",
			code:    http.StatusBadRequest,
			content: "Missing required argument: search",
		},
		{
			name:    "too short",
			query:   "op=index&search=ab",
			code:    http.StatusInternalServerError,
			content: "Search must be at least four characters",
		},
		{
			name:    "too short after prefix strip",
			query:   "op=index&search=0xabc",
			code:    http.StatusInternalServerError,
			content: "Search must be at least four characters",
		},
		{
			name:    "uid match lists all subkeys",
			query:   "op=index&search=alice",
			code:    http.StatusOK,
			content: bothSubkeys,
		},
		{
			name:    "uid match is case insensitive",
			query:   "op=index&search=ALICE",
			code:    http.StatusOK,
			content: bothSubkeys,
		},
		{
			name:    "subkey fingerprint match lists all subkeys",
			query:   "op=index&search=CCCC3333",
			code:    http.StatusOK,
			content: bothSubkeys,
		},
		{
			name:    "no match",
			query:   "op=index&search=nobody",
			code:    http.StatusNotFound,
			content: "No keys matching search request: NOBODY",
		},
	}

	for _, tt := range tests {
		params, _ := url.ParseQuery(tt.query)
		resp := Dispatch(params, store)
		if resp.Code != tt.code {
			t.Errorf("unexpected status for %q: got %d instead of %d", tt.name, resp.Code, tt.code)
		} else if string(resp.Body) != tt.content {
			t.Errorf("unexpected content for %q: got %q instead of %q", tt.name, resp.Body, tt.content)
		}
	}
}

func TestIndexOpStoreFailure(t *testing.T) {
	store := testLookupStore()
	store.listErr = fmt.Errorf("store unavailable")

	params := url.Values{"search": []string{"alice"}}
	resp := indexOp(params, store)
	if resp.Code != http.StatusNotFound {
		t.Errorf("unexpected status: got %d instead of %d", resp.Code, http.StatusNotFound)
	}
}

func TestIndexOpNoDeduplication(t *testing.T) {
	shared := "AAAA1111BBBB2222"
	store := &fakeStore{
		records: []*keystore.Record{
			{UIDs: []string{"Alice <alice@example.com>"}, SubkeyFingerprints: []string{shared}},
			{UIDs: []string{"Alice Backup <alice@example.com>"}, SubkeyFingerprints: []string{shared}},
		},
	}

	params := url.Values{"search": []string{"alice"}}
	resp := indexOp(params, store)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status: got %d instead of %d", resp.Code, http.StatusOK)
	}
	want := shared + "\n" + shared
	if string(resp.Body) != want {
		t.Errorf("unexpected content: got %q instead of %q", resp.Body, want)
	}
}
