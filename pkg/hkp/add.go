package hkp

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/ctrliq/hkpd/pkg/keystore"
)

// Add serves /pks/add key submissions. The transport guarantees the
// request is a POST carrying a keytext form field before this runs.
// Every submission terminates in exactly one of four outcomes:
// decode failure (400), engine rejection (403), import result
// (200 or 201) or unknown failure (404).
func Add(form url.Values, store keystore.Store) Response {
	outcome, err := store.ImportArmored(form.Get("keytext"))

	var decodeErr *keystore.DecodeError
	var engineErr *keystore.EngineError

	switch {
	case errors.As(err, &decodeErr):
		return textResponse(http.StatusBadRequest, "Invalid characters in request: %s", decodeErr)
	case errors.As(err, &engineErr):
		// prefix kept for compatibility with gpgme based keyservers
		return textResponse(http.StatusForbidden, "GPGME: %s", engineErr)
	case err == nil && outcome != nil:
		code := http.StatusOK
		if outcome.Imported > 0 {
			code = http.StatusCreated
		}
		body := "Keys imported:\n" + strings.Join(outcome.Fingerprints(), "\n")
		return Response{Code: code, ContentType: "text/plain", Body: []byte(body)}
	}

	return textResponse(http.StatusNotFound, "No keys were imported due to an unknown error")
}
