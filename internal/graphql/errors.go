package graphql

import (
	"errors"

	"github.com/linkboard/linkboard/internal/storage"
)

// Коды ошибок операций в extensions.code ответа.
const (
	codeUnauthorized     = "UNAUTHORIZED"
	codeForbidden        = "FORBIDDEN"
	codeNotFound         = "NOT_FOUND"
	codeInvalidCursor    = "INVALID_CURSOR"
	codeConflict         = "CONFLICT"
	codeStoreUnavailable = "STORE_UNAVAILABLE"
	codeBadRequest       = "BAD_REQUEST"
	codeInternal         = "INTERNAL"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return codeUnauthorized
	case errors.Is(err, ErrInvalidCursor):
		return codeInvalidCursor
	case errors.Is(err, storage.ErrForbidden):
		return codeForbidden
	case errors.Is(err, storage.ErrNotFound):
		return codeNotFound
	case errors.Is(err, storage.ErrConflict):
		return codeConflict
	case errors.Is(err, storage.ErrTransient):
		return codeStoreUnavailable
	default:
		return codeInternal
	}
}
