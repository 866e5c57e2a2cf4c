/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package pubsub

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/sqs"
	log "github.com/massenz/slf4go/logging"

	"github.com/massenz/state-service/api"
)

// SqsPublisher posts every TransitionEvent received on its channel to an SQS queue.
type SqsPublisher struct {
	logger *log.Log
	client *sqs.SQS
	events <-chan api.TransitionEvent
}

// NewSqsPublisher will create a new `Publisher` to send the transition notifications
// received on the `events` channel to SQS.
//
// The `awsUrl` is only needed to connect to a non-AWS endpoint (e.g., LocalStack
// during tests); leave it nil or empty otherwise.
func NewSqsPublisher(events <-chan api.TransitionEvent, awsUrl *string) (*SqsPublisher, error) {
	client, err := getSqsClient(awsUrl)
	if err != nil {
		return nil, err
	}
	return &SqsPublisher{
		logger: log.NewLog("SQS-Pub"),
		client: client,
		events: events,
	}, nil
}

// SetLogLevel allows the SqsPublisher to implement the log.Loggable interface
func (s *SqsPublisher) SetLogLevel(level log.LogLevel) {
	if s == nil {
		fmt.Println("WARN: attempting to set log level on nil Publisher")
		return
	}
	s.logger.Level = level
}

// Publish sends the notifications to the `topic` queue, until the channel is closed.
//
// It fails immediately only if the queue cannot be found; failing to send a
// notification is logged, and the next one is processed.
func (s *SqsPublisher) Publish(topic string) error {
	queueUrl, err := GetQueueUrl(s.client, topic)
	if err != nil {
		s.logger.Error(err.Error())
		return err
	}
	s.logger.Info("SQS Publisher started for topic %s, queue: %s", topic, queueUrl)
	for evt := range s.events {
		delay := int64(0)
		s.logger.Debug("[%s] %s", evt.String(), queueUrl)
		msgResult, err := s.client.SendMessage(&sqs.SendMessageInput{
			DelaySeconds: &delay,
			MessageAttributes: map[string]*sqs.MessageAttributeValue{
				"EventId": {DataType: aws.String("String"), StringValue: aws.String(evt.EventId)},
				"From":    {DataType: aws.String("String"), StringValue: aws.String(evt.From)},
				"To":      {DataType: aws.String("String"), StringValue: aws.String(evt.To)},
			},
			MessageBody: aws.String(evt.String()),
			QueueUrl:    &queueUrl,
		})
		if err != nil {
			s.logger.Error("Cannot publish event (%s): %v", evt.String(), err)
			continue
		}
		s.logger.Debug("Notification successfully posted to SQS: %s", *msgResult.MessageId)
	}
	s.logger.Info("SQS Publisher exiting")
	return nil
}
