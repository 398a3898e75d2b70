// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package context

import (
	"context"
	"log/slog"
)

type (
	Context = context.Context
	ctxKey  int
)

var (
	Background  = context.Background
	WithTimeout = context.WithTimeout
	WithCancel  = context.WithCancel
)

const (
	ctxKeyLogger ctxKey = iota
)

// CtxGetLog returns the logger attached to ctx, or the process default if
// none was attached. Workers attach run/job scoped loggers before handing
// the context down to the engine.
func CtxGetLog(ctx context.Context) *slog.Logger {
	if log, ok := ctx.Value(ctxKeyLogger).(*slog.Logger); ok {
		return log
	}
	return slog.Default()
}

func CtxWithLog(ctx context.Context, log *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, log)
}
