package httpx

import "context"

type ctxKey string

const (
	// CtxKeyAccountID holds the authenticated caller's account id.
	CtxKeyAccountID ctxKey = "account_id"
)

// AccountIDFromContext returns the authenticated account id, or "" when the
// request was not authenticated.
func AccountIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CtxKeyAccountID).(string); ok {
		return v
	}
	return ""
}
