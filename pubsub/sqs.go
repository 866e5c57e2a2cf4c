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
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/sqs"
)

// getSqsClient connects to AWS SQS, unless `awsEndpointUrl` is given, in which case
// it connects to that endpoint (e.g., LocalStack) in the region named by `AWS_REGION`.
func getSqsClient(awsEndpointUrl *string) (*sqs.SQS, error) {
	var sess *session.Session
	if awsEndpointUrl == nil || *awsEndpointUrl == "" {
		sess = session.Must(session.NewSessionWithOptions(session.Options{
			SharedConfigState: session.SharedConfigEnable,
		}))
	} else {
		region, found := os.LookupEnv("AWS_REGION")
		if !found {
			return nil, fmt.Errorf("no AWS Region configured, cannot connect to SQS provider at %s",
				*awsEndpointUrl)
		}
		sess = session.Must(session.NewSessionWithOptions(session.Options{
			SharedConfigState: session.SharedConfigEnable,
			Config: aws.Config{
				Endpoint: awsEndpointUrl,
				Region:   &region,
			},
		}))
	}
	return sqs.New(sess), nil
}

// GetQueueUrl retrieves from AWS SQS the URL for the queue, given the topic name
func GetQueueUrl(client *sqs.SQS, topic string) (string, error) {
	out, err := client.GetQueueUrl(&sqs.GetQueueUrlInput{
		QueueName: &topic,
	})
	if err != nil {
		return "", fmt.Errorf("cannot get SQS Queue URL for topic %s: %w", topic, err)
	}
	if out.QueueUrl == nil {
		return "", fmt.Errorf("cannot get SQS Queue URL for topic %s", topic)
	}
	return *out.QueueUrl, nil
}
