package hkp

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/ctrliq/hkpd/pkg/keystore"
)

type opHandler func(params url.Values, store keystore.Store) Response

// lookupOps is the closed set of operations reachable through
// /pks/lookup. Dispatch resolves op names against this map and
// nothing else, so a crafted op value can never reach an unintended
// function.
var lookupOps = map[string]opHandler{
	"get":    getOp,
	"index":  indexOp,
	"vindex": vindexOp,
}

// cleanOp folds the op parameter to lowercase and strips every
// character outside a-z before it is used as a dispatch key.
func cleanOp(raw string) string {
	raw = strings.ToLower(raw)
	op := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] >= 'a' && raw[i] <= 'z' {
			op = append(op, raw[i])
		}
	}
	return string(op)
}

// Dispatch resolves the op parameter of a /pks/lookup request and
// runs the matching operation against the store.
func Dispatch(params url.Values, store keystore.Store) Response {
	op := cleanOp(params.Get("op"))
	if op == "" {
		return textResponse(http.StatusBadRequest, "Missing required argument: op")
	}

	handler, ok := lookupOps[op]
	if !ok {
		return textResponse(http.StatusNotImplemented, "Operation not supported: %s", op)
	}

	return handler(params, store)
}
