/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package pubsub_test

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	. "github.com/JiaYongfei/respect/gomega"
	"github.com/aws/aws-sdk-go/service/sqs"
	log "github.com/massenz/slf4go/logging"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/massenz/state-service/api"
	"github.com/massenz/state-service/pubsub"
)

var _ = Describe("SQS Publisher", func() {

	It("needs a region to connect to a custom endpoint", func() {
		region, found := os.LookupEnv("AWS_REGION")
		Expect(os.Unsetenv("AWS_REGION")).To(Succeed())
		defer func() {
			if found {
				Expect(os.Setenv("AWS_REGION", region)).To(Succeed())
			}
		}()
		endpoint := "http://localhost:4566"
		_, err := pubsub.NewSqsPublisher(make(chan api.TransitionEvent), &endpoint)
		Expect(err).To(HaveOccurred())
	})

	Context("when correctly initialized", func() {
		var (
			testPublisher   *pubsub.SqsPublisher
			notificationsCh chan api.TransitionEvent
		)
		BeforeEach(func() {
			if awsLocal == nil {
				Skip("no LocalStack container available")
			}
			var err error
			notificationsCh = make(chan api.TransitionEvent)
			testPublisher, err = pubsub.NewSqsPublisher(notificationsCh, &awsLocal.Address)
			Expect(err).ToNot(HaveOccurred())
			// Set to DEBUG when diagnosing test failures
			testPublisher.SetLogLevel(log.NONE)
		})

		It("can publish transition notifications", func() {
			evt := api.NewTransitionEvent("state_1", "state_2", time.Now().Truncate(time.Second))
			done := make(chan interface{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				Expect(testPublisher.Publish(getQueueName(notificationsQueue))).To(Succeed())
			}()
			notificationsCh <- *evt
			var res *sqs.Message
			Eventually(func() *sqs.Message {
				res = getSqsMessage(getQueueName(notificationsQueue))
				return res
			}, timeout).ShouldNot(BeNil())

			var sent api.TransitionEvent
			Expect(json.Unmarshal([]byte(*res.Body), &sent)).ToNot(HaveOccurred())
			Expect(sent).To(Respect(api.TransitionEvent{
				EventId: evt.EventId,
				From:    "state_1",
				To:      "state_2",
			}))
			Expect(sent.Timestamp).To(BeTemporally("==", evt.Timestamp))
			Expect(*res.MessageAttributes["To"].StringValue).To(Equal("state_2"))

			close(notificationsCh)
			Eventually(done, timeout).Should(BeClosed())
		})

		It("will terminate gracefully when the notifications channel is closed", func() {
			done := make(chan interface{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				Expect(testPublisher.Publish(getQueueName(notificationsQueue))).To(Succeed())
			}()
			close(notificationsCh)
			Eventually(done, timeout).Should(BeClosed())
		})

		It("keeps using the logger it was created with", func() {
			logger := testPublisher.Logger()
			done := make(chan interface{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				Expect(testPublisher.Publish(getQueueName(notificationsQueue))).To(Succeed())
			}()
			close(notificationsCh)
			Eventually(done, timeout).Should(BeClosed())
			Expect(testPublisher.Logger()).To(BeIdenticalTo(logger))
			Expect(logger.Level).To(Equal(log.NONE))
		})

		It("fails for a queue which does not exist", func() {
			close(notificationsCh)
			Expect(testPublisher.Publish("no-such-queue")).ToNot(Succeed())
		})

		It("will survive an empty event", func() {
			done := make(chan interface{})
			go func() {
				defer GinkgoRecover()
				defer close(done)
				Expect(testPublisher.Publish(getQueueName(notificationsQueue))).To(Succeed())
			}()
			notificationsCh <- api.TransitionEvent{}
			notificationsCh <- *api.NewTransitionEvent("a", "b", time.Now())
			close(notificationsCh)
			Eventually(done, timeout).Should(BeClosed())
			Eventually(func() *sqs.Message {
				return getSqsMessage(getQueueName(notificationsQueue))
			}, timeout).ShouldNot(BeNil())
		})

		It("will send several messages within a reasonable timeframe", func() {
			go func() {
				defer GinkgoRecover()
				Expect(testPublisher.Publish(getQueueName(notificationsQueue))).To(Succeed())
			}()
			for i := range [10]int{} {
				notificationsCh <- *api.NewTransitionEvent(fmt.Sprintf("s-%d", i),
					fmt.Sprintf("s-%d", i+1), time.Now())
			}
			close(notificationsCh)
			received := 0
			Eventually(func() int {
				if getSqsMessage(getQueueName(notificationsQueue)) != nil {
					received++
				}
				return received
			}, 3*timeout).Should(Equal(10))
		})
	})
})
