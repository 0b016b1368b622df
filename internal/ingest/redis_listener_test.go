package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/integrationhub/internal/domain"
)

func TestRedisListenerHandleMessage(t *testing.T) {
	ing, store, ann, in := setup(t)
	l := NewRedisListener(nil, ing, "test", zap.NewNop())

	l.handleMessage(context.Background(), `{"integrationId": 1, "status": "Failure", "responseTime": 50}`)
	l.handleMessage(context.Background(), `not json`)
	l.handleMessage(context.Background(), `{"integrationId": 1, "status": "Bogus"}`)

	n, err := store.CountMetrics(context.Background(), domain.MetricFilter{IntegrationID: in.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []domain.EventKind{domain.EventMetricCreated, domain.EventIntegrationUpdated}, ann.kinds())
}
