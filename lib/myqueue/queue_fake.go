package myqueue

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"os"
	"sync"
	"time"
)

// fakeTaskQueue dispatches tasks to this process after their delay
type fakeTaskQueue struct {
	sync.Mutex
	baseURL string
	client  *http.Client
	pending map[string]*time.Timer
}

func init() {
	if os.Getenv("GOOGLE_CLOUD_PROJECT") == "" {
		New = newFakeQueue
	}
}

func newFakeQueue(c context.Context) (TaskQueuer, func(), error) {
	q := &fakeTaskQueue{
		baseURL: localBaseURL(),
		client:  &http.Client{Timeout: 10 * time.Second},
		pending: map[string]*time.Timer{},
	}
	return q, q.stopAll, nil
}

func localBaseURL() string {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return "http://localhost:" + port
}

func (q *fakeTaskQueue) Enqueue(c context.Context, task Task) error {
	q.Lock()
	defer q.Unlock()

	if _, exists := q.pending[task.UID]; exists {
		log.Printf("task with id %s already exists -> ignore", task.UID)
		return nil
	}

	q.pending[task.UID] = time.AfterFunc(task.Delay, func() {
		q.dispatch(task)
	})

	return nil
}

func (q *fakeTaskQueue) dispatch(task Task) {
	q.Lock()
	delete(q.pending, task.UID)
	q.Unlock()

	req, err := http.NewRequest(http.MethodPut, q.baseURL+task.WebhookURLPath, bytes.NewReader(task.Payload))
	if err != nil {
		log.Printf("error creating request for task %s: %s", task.UID, err)
		return
	}
	resp, err := q.client.Do(req)
	if err != nil {
		log.Printf("error dispatching task %s: %s", task.UID, err)
		return
	}
	defer resp.Body.Close()

	log.Printf("Dispatched task %s -> %d", task.UID, resp.StatusCode)
}

func (q *fakeTaskQueue) stopAll() {
	q.Lock()
	defer q.Unlock()

	for uid, timer := range q.pending {
		timer.Stop()
		delete(q.pending, uid)
	}
}
