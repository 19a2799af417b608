package hkp

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ctrliq/hkpd/pkg/keystore"
)

// getOp serves op=get: exact fingerprint or key id retrieval.
// Free-text matching against uid fields is deliberately not available
// here, only op=index does that. The armored block produced by the
// store is returned untouched: per the HKP draft the BEGIN/END PGP
// PUBLIC KEY BLOCK framing must not be modified.
func getOp(params url.Values, store keystore.Store) Response {
	if _, ok := params["search"]; !ok {
		// 500 kept for wire compatibility with existing HKP
		// servers, even though the error is client caused.
		return textResponse(http.StatusInternalServerError, "Missing required search parameter")
	}
	search := NormalizeSearch(params.Get("search"))

	if _, err := store.LookupExact(search); err != nil {
		return textResponse(http.StatusNotFound, "No key matching search=%s", search)
	}

	armored, err := store.ExportArmored(search)
	if err != nil || len(armored) == 0 {
		return textResponse(http.StatusNotFound, "No key matching search=%s", search)
	}

	return Response{Code: http.StatusOK, ContentType: "text/plain", Body: armored}
}

// indexOp serves op=index: substring search over uids and subkey
// fingerprints. A matching key contributes all of its subkey
// fingerprints to the result, in store enumeration order, without
// de-duplication.
func indexOp(params url.Values, store keystore.Store) Response {
	if _, ok := params["search"]; !ok {
		return textResponse(http.StatusBadRequest, "Missing required argument: search")
	}
	search := NormalizeSearch(params.Get("search"))

	if len(search) < 4 {
		// same compatibility choice as in getOp
		return textResponse(http.StatusInternalServerError, "Search must be at least four characters")
	}

	records, err := store.ListAll()
	if err != nil {
		// a store failure during enumeration is reported as an
		// empty result, there is no retry
		records = nil
	}

	var matches []string
	for _, rec := range records {
		if recordMatches(rec, search) {
			matches = append(matches, rec.SubkeyFingerprints...)
		}
	}

	if len(matches) > 0 {
		return Response{
			Code:        http.StatusOK,
			ContentType: "text/plain",
			Body:        []byte(strings.Join(matches, "\n")),
		}
	}

	return textResponse(http.StatusNotFound, "No keys matching search request: %s", search)
}

func recordMatches(rec *keystore.Record, search string) bool {
	for _, uid := range rec.UIDs {
		if strings.Contains(strings.ToUpper(uid), search) {
			return true
		}
	}
	for _, fp := range rec.SubkeyFingerprints {
		if strings.Contains(fp, search) {
			return true
		}
	}
	return false
}

// vindexOp declines op=vindex, a keyserver is permitted to not serve
// this operation.
func vindexOp(url.Values, keystore.Store) Response {
	return textResponse(http.StatusNotImplemented, "VIndex search not supported by this server.")
}
