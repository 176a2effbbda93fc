package server

import (
	"encoding/json"
	"net/http"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/web-login/pkg/weblogin"
)

// userinfoHandlerFunc answers with the identity claims of the caller's
// session. Behind the access gate an anonymous caller never reaches it
// unless the gate is configured open, then it answers 401 itself.
func userinfoHandlerFunc() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		auth := weblogin.FromContext(ctx)
		if !auth.IsAuthenticated() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": "unauthorized",
			})

			return
		}

		slogctx.Debug(ctx, "Answering userinfo request", "subject", auth.Claims().Subject())

		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(auth.Claims()); err != nil {
			slogctx.Error(ctx, "Failed to encode userinfo response", "error", err)
		}
	}
}

func pingHandlerFunc() func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		_, _ = w.Write([]byte(`{ "result": "ping" }`))
	}
}
