package auth

import (
	"context"
	"net/http"

	"ms-deals/internal/errs"
	"ms-deals/internal/logger"
	"ms-deals/internal/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Middleware rejects requests without a valid bearer token and stores the subject in the context.
func Middleware(verifier Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("MISSING_TOKEN", r.Method+" "+r.URL.Path)
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse(err.Error(), errs.Reason(errs.ErrMissingIdentity)))
				return
			}

			sub, err := verifier.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("INVALID_TOKEN", err.Error())
				utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("invalid token", errs.Reason(errs.ErrMissingIdentity)))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), sub)))
		})
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Helper to extract user ID in handlers
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}
