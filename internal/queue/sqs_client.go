package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	defaultSQSRegion = "us-east-1"

	AttributeKind       = "kind"
	AttributeDocumentID = "documentId"
	AttributeRequestID  = "requestId"
)

type sqsSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient sends analysis jobs to AWS SQS. On a FIFO queue every job for the
// same primary document shares a message group, so workers receive them in
// submission order.
type SQSClient struct {
	client   sqsSender
	queueURL string
	fifo     bool
}

// NewSQSClient constructs an SQS-backed queue client. An empty region means us-east-1.
func NewSQSClient(ctx context.Context, queueURL, region string) (*SQSClient, error) {
	queueURL = strings.TrimSpace(queueURL)
	if queueURL == "" {
		return nil, fmt.Errorf("RA_SQS_QUEUE_URL is required")
	}
	if strings.TrimSpace(region) == "" {
		region = defaultSQSRegion
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSClient(sqs.NewFromConfig(cfg), queueURL), nil
}

func newSQSClient(sender sqsSender, queueURL string) *SQSClient {
	return &SQSClient{
		client:   sender,
		queueURL: queueURL,
		fifo:     strings.HasSuffix(queueURL, ".fifo"),
	}
}

// Send delivers msg. Kind, primary document and request id are copied into
// message attributes for filtering and tracing without decoding the body.
func (s *SQSClient) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode sqs message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:          aws.String(s.queueURL),
		MessageBody:       aws.String(string(payload)),
		MessageAttributes: messageAttributes(msg),
	}
	if s.fifo {
		input.MessageGroupId = aws.String(msg.PrimaryDocumentID())
		if msg.RequestID != "" {
			input.MessageDeduplicationId = aws.String(msg.Kind + ":" + msg.RequestID)
		}
	}

	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

func messageAttributes(msg Message) map[string]types.MessageAttributeValue {
	attrs := map[string]types.MessageAttributeValue{}
	add := func(name, value string) {
		if value == "" {
			return
		}
		attrs[name] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(value),
		}
	}
	add(AttributeKind, msg.Kind)
	add(AttributeDocumentID, msg.PrimaryDocumentID())
	add(AttributeRequestID, msg.RequestID)
	return attrs
}

var _ Client = (*SQSClient)(nil)
