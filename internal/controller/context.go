package controller

import (
	"context"

	"github.com/sharetube/party/internal/auth"
)

type contextKey int

const (
	identityCtxKey contextKey = iota
	partyCodeCtxKey
)

func (c controller) getIdentityFromCtx(ctx context.Context) auth.Identity {
	identity, ok := ctx.Value(identityCtxKey).(auth.Identity)
	if !ok {
		return auth.Identity{}
	}

	return identity
}

func (c controller) getPartyCodeFromCtx(ctx context.Context) string {
	code, ok := ctx.Value(partyCodeCtxKey).(string)
	if !ok {
		return ""
	}

	return code
}
