package middleware

import (
	"context"
	"net/http"
	"strings"

	tokengate "github.com/tokengate/tokengate"
)

type subjectContextKey struct{}

// SubjectFromContext returns the authenticated subject set by [Guard].
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey{}).(string)
	return subject, ok
}

// Guard rejects requests without a valid bearer access token and stores the
// token's subject in the request context for downstream handlers.
//
// The bundled auth API does not use it: every one of its endpoints carries
// its own credential in the request body (password, refresh token, or
// single-use token). Guard is for consumers embedding the engine who expose
// protected resource routes of their own.
func Guard(engine *tokengate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			subject, err := engine.ParseAccessToken(tok)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	tok := value[len(bearer):]
	if tok == "" {
		return "", false
	}

	return tok, true
}
