package service

import (
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/rewear/rewear/internal/models"
)

// ErrorKindHeader carries the machine-readable error kind on every failed RPC.
const ErrorKindHeader = "Rewear-Error-Kind"

// toConnectError maps a domain error onto a connect status code.
// Internal errors are logged and replaced with a generic message.
func toConnectError(procedure string, err error) *connect.Error {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	kind := models.ErrorKind(err)
	var code connect.Code
	switch kind {
	case "not_found":
		code = connect.CodeNotFound
	case "forbidden":
		code = connect.CodePermissionDenied
	case "validation":
		code = connect.CodeInvalidArgument
	case "conflict":
		code = connect.CodeFailedPrecondition
	default:
		slog.Error(procedure+" failed", "error", err)
		err = errors.New("internal error")
		code = connect.CodeInternal
	}

	cerr = connect.NewError(code, err)
	cerr.Meta().Set(ErrorKindHeader, kind)
	return cerr
}
