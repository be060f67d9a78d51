package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"

	"github.com/imrishuroy/go-storefront-checkout/internal/tracing"
)

const stringAttr = "String"

// Publisher sends messages to one SQS queue.
type Publisher struct {
	SQS      SQSAPI
	QueueURL string
}

// NewPublisher returns a Publisher for queueURL.
func NewPublisher(sqsClient SQSAPI, queueURL string) *Publisher {
	return &Publisher{SQS: sqsClient, QueueURL: queueURL}
}

// Send puts body on the queue. attributes become String message attributes, joined
// by the trace context of ctx so the consumer can continue the trace.
func (p *Publisher) Send(ctx context.Context, body string, attributes map[string]string) error {
	attrs := make(map[string]string, len(attributes)+2)
	for k, v := range attributes {
		attrs[k] = v
	}
	tracing.Inject(ctx, attrs)

	input := &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(p.QueueURL),
		MessageBody: sdkaws.String(body),
	}
	if len(attrs) > 0 {
		input.MessageAttributes = make(map[string]sqstypes.MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			input.MessageAttributes[k] = sqstypes.MessageAttributeValue{
				DataType:    sdkaws.String(stringAttr),
				StringValue: sdkaws.String(v),
			}
		}
	}

	out, err := p.SQS.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	if out.MessageId != nil {
		zerolog.Ctx(ctx).Debug().Str("message_id", *out.MessageId).Msg("message queued")
	}
	return nil
}
