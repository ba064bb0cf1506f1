package logctx

import (
	"context"
	"testing"

	"github.com/Zhima-Mochi/escrowshop/internal/observability"
	"github.com/stretchr/testify/assert"
)

type recordingLogger struct {
	observability.Logger
	fields []observability.Field
}

func (r *recordingLogger) With(fields ...observability.Field) observability.Logger {
	return &recordingLogger{Logger: r.Logger, fields: append(append([]observability.Field(nil), r.fields...), fields...)}
}

func TestEnrichStacksOnScopedLogger(t *testing.T) {
	base := &recordingLogger{Logger: observability.NopLogger()}

	ctx, first := Enrich(context.Background(), base, observability.F("principal_id", "alice"))
	assert.Equal(t, []observability.Field{observability.F("principal_id", "alice")}, first.(*recordingLogger).fields)

	ctx, second := Enrich(ctx, base, observability.F("use_case", "order.place"))
	assert.Len(t, second.(*recordingLogger).fields, 2)
	assert.Same(t, second, From(ctx))
}

func TestFromOrFallsBack(t *testing.T) {
	fallback := observability.NopLogger()
	assert.Nil(t, From(context.Background()))
	assert.Equal(t, fallback, FromOr(context.Background(), fallback))

	_, logger := Enrich(context.Background(), nil)
	assert.NotNil(t, logger)
}
