// Package sqsqueue implements the queue transport on top of AWS SQS.
package sqsqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
)

// SQS service limits.
const (
	MaxBatch = 10
	MaxWait  = 20 * time.Second
)

const (
	stringDataType      = "String"
	reasonAttribute     = "deadLetterReason"
	receiveCountAttrKey = string(types.MessageSystemAttributeNameApproximateReceiveCount)
)

// sqsAPI is the subset of the SQS client used by the transport.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(
		ctx context.Context, in *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options),
	) (*sqs.GetQueueAttributesOutput, error)
}

// Options configures a Transport.
type Options struct {
	QueueURL           string
	DeadLetterQueueURL string
	Region             string
	// Endpoint overrides the SQS endpoint (e.g. LocalStack).
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Logger          *slog.Logger

	// Client overrides the SQS client (tests).
	Client sqsAPI
}

// Transport sends and receives job messages through an SQS queue.
type Transport struct {
	client   sqsAPI
	queueURL string
	dlqURL   string
	logger   *slog.Logger
}

var (
	_ core.QueueTransport = (*Transport)(nil)
	_ core.DeadLetterer     = (*Transport)(nil)
	_ core.QueueDepthReader = (*Transport)(nil)
)

// New creates a Transport. Without an injected client the AWS default credential chain is used,
// unless static keys are configured.
func New(ctx context.Context, opts Options) (*Transport, error) {
	if opts.QueueURL == "" {
		return nil, errors.New("sqs queue url is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := opts.Client
	if client == nil {
		c, err := newClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		client = c
	}

	return &Transport{
		client:   client,
		queueURL: opts.QueueURL,
		dlqURL:   opts.DeadLetterQueueURL,
		logger:   logger.With("component", "sqs_transport"),
	}, nil
}

func newClient(ctx context.Context, opts Options) (*sqs.Client, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	}), nil
}

// Send publishes one message and returns the SQS message id.
func (t *Transport) Send(ctx context.Context, req model.SendRequest) (string, error) {
	if len(req.Body) == 0 {
		return "", errors.New("message body is required")
	}
	out, err := t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(t.queueURL),
		MessageBody:       aws.String(string(req.Body)),
		MessageAttributes: toMessageAttributes(req.Attributes),
	})
	if err != nil {
		return "", fmt.Errorf("sqs send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Receive long-polls for up to MaxBatch messages, clamped to the SQS limits.
func (t *Transport) Receive(ctx context.Context, req model.ReceiveRequest) ([]model.QueueMessage, error) {
	batch := req.MaxBatch
	if batch <= 0 || batch > MaxBatch {
		batch = MaxBatch
	}
	wait := min(max(req.Wait, 0), MaxWait)
	maxMessages := int32(batch)              // #nosec G115 - bounded by MaxBatch
	waitSeconds := int32(wait / time.Second) // #nosec G115 - bounded by MaxWait

	out, err := t.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(t.queueURL),
		MaxNumberOfMessages:   maxMessages,
		WaitTimeSeconds:       waitSeconds,
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}

	msgs := make([]model.QueueMessage, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, model.QueueMessage{
			ID:            aws.ToString(m.MessageId),
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          []byte(aws.ToString(m.Body)),
			ReceiveCount:  receiveCount(m.Attributes),
			Attributes:    fromMessageAttributes(m.MessageAttributes),
		})
	}
	return msgs, nil
}

// Delete acknowledges a message by receipt handle.
func (t *Transport) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return errors.New("receipt handle is required")
	}
	_, err := t.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(t.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}

// DeadLetter copies the message to the dead-letter queue, when one is configured, and deletes it.
// Without a dead-letter queue the message is only deleted and the loss is logged.
func (t *Transport) DeadLetter(ctx context.Context, msg model.QueueMessage, reason string) error {
	if t.dlqURL == "" {
		t.logger.WarnContext(ctx, "no dead-letter queue configured, dropping message",
			"message_id", msg.ID,
			"reason", reason)
		return t.Delete(ctx, msg.ReceiptHandle)
	}

	attrs := make(map[string]string, len(msg.Attributes)+1)
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	attrs[reasonAttribute] = reason

	_, err := t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(t.dlqURL),
		MessageBody:       aws.String(string(msg.Body)),
		MessageAttributes: toMessageAttributes(attrs),
	})
	if err != nil {
		return fmt.Errorf("sqs dead-letter send: %w", err)
	}
	return t.Delete(ctx, msg.ReceiptHandle)
}

func toMessageAttributes(attrs map[string]string) map[string]types.MessageAttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String(stringDataType),
			StringValue: aws.String(v),
		}
	}
	return out
}

func fromMessageAttributes(attrs map[string]types.MessageAttributeValue) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		if v.StringValue != nil {
			out[k] = *v.StringValue
		}
	}
	return out
}

func receiveCount(attrs map[string]string) int {
	n, err := strconv.Atoi(attrs[receiveCountAttrKey])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// MessagesInQueue returns the queue's ApproximateNumberOfMessages attribute.
func (t *Transport) MessagesInQueue(ctx context.Context) (int64, error) {
	out, err := t.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(t.queueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return 0, fmt.Errorf("sqs get queue attributes: %w", err)
	}
	raw := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ApproximateNumberOfMessages %q: %w", raw, err)
	}
	return n, nil
}
