package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsHighCardinalityLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("invite_id", "7b0e0c1e-8d43-4f55-9a5e-1f3c39f0c6a1"),
		attribute.String("token_kind", "invite"),
		attribute.String("outcome", "valid"),
	)
	require.Len(t, attrs, 2)
	for _, attr := range attrs {
		assert.NotEqual(t, attribute.Key("invite_id"), attr.Key)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordInviteCreated(context.Background(), "single_male")
	m.RecordInviteTransition(context.Background(), "pending", "revoked")
	m.RecordTokenVerification(context.Background(), "invite", "valid")
	m.RecordEmailFailure(context.Background(), "invite")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "tandem"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordInviteCreated(context.Background(), "single_female")
}
