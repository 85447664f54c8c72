package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ignite/audience-engine/internal/config"
	"github.com/ignite/audience-engine/internal/domain"
)

// sqsAPI is the subset of the SQS client used here.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSQueue sends each job as one SQS message with the JSON job as its body.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
}

// NewSQSQueue builds an SQS client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewSQSQueue(ctx context.Context, cfg config.QueueConfig) (*SQSQueue, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newSQSQueue(sqs.NewFromConfig(awsCfg), cfg.SQSQueueURL), nil
}

func newSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	return &SQSQueue{client: client, queueURL: queueURL}
}

// Enqueue sends job. trigger_type and flow_id are also set as message
// attributes so consumers can filter without decoding the body.
func (q *SQSQueue) Enqueue(ctx context.Context, job domain.TriggerJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal trigger job: %w", err)
	}
	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"trigger_type": {DataType: aws.String("String"), StringValue: aws.String(string(job.TriggerType))},
			"flow_id":      {DataType: aws.String("String"), StringValue: aws.String(job.FlowID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send: %w", err)
	}
	return nil
}
