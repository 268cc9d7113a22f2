package circulation

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"infobooks/internal/domain"
)

const meterName = "infobooks/circulation"

type metrics struct {
	rented   metric.Int64Counter
	returned metric.Int64Counter
	rejected metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(meterName)

	rented, err := meter.Int64Counter("circulation.loans.rented",
		metric.WithDescription("Books rented"))
	if err != nil {
		return nil, err
	}
	returned, err := meter.Int64Counter("circulation.loans.returned",
		metric.WithDescription("Loans returned"))
	if err != nil {
		return nil, err
	}
	rejected, err := meter.Int64Counter("circulation.requests.rejected",
		metric.WithDescription("Rent and return requests rejected, by reason"))
	if err != nil {
		return nil, err
	}
	return &metrics{rented: rented, returned: returned, rejected: rejected}, nil
}

func (m *metrics) recordRejection(ctx context.Context, operation string, err error) {
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("reason", domain.CodeOf(err)),
	))
}
