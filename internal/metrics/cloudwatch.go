package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-storefront-checkout/internal/aws"
)

// CloudWatch pushes checkout metrics with PutMetricData. Failures are logged and
// dropped.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	nowFunc   func() time.Time
}

// NewCloudWatch publishes metrics under namespace.
func NewCloudWatch(client aws.CloudWatchAPI, namespace string) *CloudWatch {
	return &CloudWatch{client: client, namespace: namespace, nowFunc: time.Now}
}

// Checkout puts one datapoint per metric. Failures are logged, not returned.
func (c *CloudWatch) Checkout(ctx context.Context, outcome string, orders int, elapsed time.Duration) {
	now := c.nowFunc()
	dims := []cwtypes.Dimension{{Name: strPtr("Outcome"), Value: strPtr(outcome)}}
	data := []cwtypes.MetricDatum{
		{
			MetricName: strPtr("CheckoutAttempts"),
			Dimensions: dims,
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitCount,
			Value:      float64Ptr(1),
		},
		{
			MetricName: strPtr("CheckoutLatency"),
			Dimensions: dims,
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitMilliseconds,
			Value:      float64Ptr(float64(elapsed.Milliseconds())),
		},
	}
	if outcome == OutcomePlaced {
		data = append(data, cwtypes.MetricDatum{
			MetricName: strPtr("OrdersCreated"),
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitCount,
			Value:      float64Ptr(float64(orders)),
		})
	}

	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &c.namespace,
		MetricData: data,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("put metric data failed")
	}
}

func strPtr(s string) *string { return &s }

func float64Ptr(f float64) *float64 { return &f }
