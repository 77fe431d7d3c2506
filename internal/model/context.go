package model

import "context"

type learnerKey struct{}

// ContextWithLearner stores the learner id in the request context.
func ContextWithLearner(ctx context.Context, learnerID string) context.Context {
	return context.WithValue(ctx, learnerKey{}, learnerID)
}

// LearnerFromContext retrieves the learner id from context, or "".
func LearnerFromContext(ctx context.Context) string {
	id, _ := ctx.Value(learnerKey{}).(string)
	return id
}
