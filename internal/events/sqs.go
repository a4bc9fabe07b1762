package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI is the part of the SQS client the sink uses
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// MaxSQSMessageBytes is the largest message body SQS accepts
const MaxSQSMessageBytes = 256 * 1024

// SQSSink publishes events to an SQS queue for hosts running elsewhere.
// An inline completion too large for one message is sent as a checkpoint reference.
type SQSSink struct {
	client   SQSAPI
	queueURL string
	maxBody  int
}

// NewSQSSink creates a sink on an existing client
func NewSQSSink(client SQSAPI, queueURL string) *SQSSink {
	return &SQSSink{client: client, queueURL: queueURL, maxBody: MaxSQSMessageBytes}
}

// NewSQSSinkFromEnv loads the default AWS config and creates a sink
func NewSQSSinkFromEnv(ctx context.Context, queueURL string) (*SQSSink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewSQSSink(sqs.NewFromConfig(cfg), queueURL), nil
}

// Emit sends the event as a JSON message body
func (s *SQSSink) Emit(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	// Inline completions stay inline when they fit, since the checkpoint may be stale
	if len(body) > s.maxBody && ev.Kind == KindComplete && ev.ResultsLocation == LocationInline {
		ev.ResultsLocation = LocationCheckpoint
		ev.Records = nil
		if body, err = json.Marshal(ev); err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if _, err := s.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to send event to %s: %w: %w", s.queueURL, ErrUndelivered, err)
	}
	return nil
}
