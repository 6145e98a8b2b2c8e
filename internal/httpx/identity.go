package httpx

import (
	"net/http"

	"github.com/eightstore/commerce/internal/cart"
)

// Identity arrives pre-validated from the auth layer in front of this
// service; these headers are trusted as-is.
const (
	HeaderUserID    = "X-User-Id"
	HeaderSessionID = "X-Session-Id"
)

func callerIdentity(r *http.Request) (cart.Identity, bool) {
	if uid := r.Header.Get(HeaderUserID); uid != "" {
		return cart.ForUser(uid), true
	}
	if sid := r.Header.Get(HeaderSessionID); sid != "" {
		return cart.ForSession(sid), true
	}
	return cart.Identity{}, false
}

func callerUserID(r *http.Request) (string, bool) {
	uid := r.Header.Get(HeaderUserID)
	return uid, uid != ""
}
