package coreclient

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

type recipeIDKey struct{}

// WithRecipeID tags every core request made with ctx with the rid header.
func WithRecipeID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, recipeIDKey{}, rid)
}

// RecipeIDFromContext returns the recipe id set by WithRecipeID.
func RecipeIDFromContext(ctx context.Context) (string, bool) {
	rid, ok := ctx.Value(recipeIDKey{}).(string)
	return rid, ok && rid != ""
}

func injectTraceparent(ctx context.Context, req *http.Request) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return
	}
	flags := "00"
	if sc.IsSampled() {
		flags = "01"
	}
	req.Header.Set("Traceparent", fmt.Sprintf("00-%s-%s-%s", sc.TraceID(), sc.SpanID(), flags))
}
