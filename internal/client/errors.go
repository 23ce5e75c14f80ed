package client

import "errors"

// ErrAuth means the credential was rejected by the API. It is never
// retried; a catalog fetch aborts immediately when it appears.
var ErrAuth = errors.New("github: credential rejected")
