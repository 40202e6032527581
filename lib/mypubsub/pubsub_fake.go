package mypubsub

import (
	"context"
	"log"
	"os"
	"sync"
)

// fakePubSub keeps published messages in memory for local runs
type fakePubSub struct {
	sync.Mutex
	published map[string][]string
}

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = newFakePubSub
	}
}

func newFakePubSub(c context.Context) (PubSub, func(), error) {
	return &fakePubSub{
		published: map[string][]string{},
	}, func() {}, nil
}

func (ps *fakePubSub) Subscribe(c context.Context, topic string, urlToPostTo string) error {
	return nil
}

func (ps *fakePubSub) CreateTopic(c context.Context, topic string) error {
	return nil
}

func (ps *fakePubSub) Publish(c context.Context, topic string, data string) error {
	ps.Lock()
	defer ps.Unlock()

	ps.published[topic] = append(ps.published[topic], data)
	log.Printf("Published message on topic %s (%d total)", topic, len(ps.published[topic]))

	return nil
}
