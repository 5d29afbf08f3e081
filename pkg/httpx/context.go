package httpx

import "context"

type ctxKey string

const ctxKeyAPIKeyID ctxKey = "api_key_id"

// WithAPIKeyID records which configured API key authenticated the request.
func WithAPIKeyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyAPIKeyID, id)
}

// APIKeyIDFromContext returns the id set by RequireAPIKey.
func APIKeyIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKeyAPIKeyID).(string)
	return id, ok && id != ""
}
