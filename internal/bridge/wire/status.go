// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package wire

import (
	"context"
	stderrors "errors"

	errs "timemachine/cli/internal/errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var kindCodes = map[errs.Kind]codes.Code{
	errs.SpawnFailed:    codes.FailedPrecondition,
	errs.NonZeroExit:    codes.Aborted,
	errs.ResponseFormat: codes.DataLoss,
	errs.ProtocolParse:  codes.Internal,
	errs.Canceled:       codes.Canceled,
	errs.Rejected:       codes.PermissionDenied,
	errs.Unavailable:    codes.Unavailable,
}

// ToStatus converts err into a gRPC status error carrying its kind.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.Canceled, err.Error())
	}
	code, ok := kindCodes[errs.KindOf(err)]
	if !ok {
		code = codes.Unknown
	}
	return status.Error(code, message(err))
}

// message drops the kind prefix of an errs.E; the kind travels separately.
func message(err error) string {
	var e *errs.E
	if !stderrors.As(err, &e) {
		return err.Error()
	}
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// FromStatus converts a gRPC error back into an errs.E. Codes that do not
// map to a kind are treated as the remote façade being unavailable.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return errs.Wrap(errs.Unavailable, "bridge call failed", err)
	}
	switch st.Code() {
	case codes.DeadlineExceeded:
		return errs.New(errs.Canceled, st.Message())
	case codes.Unimplemented:
		return errs.New(errs.Rejected, st.Message())
	}
	for kind, code := range kindCodes {
		if code == st.Code() {
			return errs.New(kind, st.Message())
		}
	}
	return errs.New(errs.Unavailable, st.Message())
}
