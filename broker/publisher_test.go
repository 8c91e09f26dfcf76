package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/streadway/amqp"

	"github.com/Swind/go-conformance-runner/core"
	"github.com/Swind/go-conformance-runner/matcher"
)

type declaredQueue struct {
	name       string
	durable    bool
	autoDelete bool
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   []declaredQueue
	published  []amqp.Publishing
	keys       []string
	declareErr error
	publishErr error
	closed     bool
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declared = append(c.declared, declaredQueue{name: name, durable: durable, autoDelete: autoDelete})
	return amqp.Queue{Name: name}, c.declareErr
}

func (c *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func failedRun() core.TaskRun {
	return core.TaskRun{
		Task: core.Task{
			SequenceID:    7,
			CorrelationID: "c-7",
			Type:          "digit",
			Pattern:       `\d`,
			Input:         "abc",
			Expected:      []matcher.Span{{Start: 0, End: 1}},
		},
		Attempts: []core.Attempt{
			{Index: 0, Outcome: matcher.Failed("mismatch")},
			{Index: 1, Outcome: matcher.Failed("mismatch")},
		},
	}
}

func TestNewResultMessage(t *testing.T) {
	want := ResultMessage{
		CorrelationID: "c-7",
		SequenceID:    7,
		TaskType:      "digit",
		Pattern:       `\d`,
		Input:         "abc",
		Expected:      "(0,1)",
		Actual:        "[]",
		Result:        "Failed",
		Attempts:      2,
		Reason:        "mismatch",
	}
	if diff := cmp.Diff(want, NewResultMessage(failedRun())); diff != "" {
		t.Errorf("NewResultMessage mismatch (-want +got):\n%s", diff)
	}

	passed := core.TaskRun{
		Task: core.Task{Type: "digit", Expected: []matcher.Span{{Start: 1, End: 2}}},
		Attempts: []core.Attempt{{
			Result:  matcher.MatchResult{{Start: 1, End: 2}},
			Outcome: matcher.Passed(),
		}},
	}
	msg := NewResultMessage(passed)
	if msg.Result != "Passed" || msg.Actual != "(1,2)" || msg.Reason != "" {
		t.Errorf("NewResultMessage(passed) = %+v, want Passed with actual (1,2)", msg)
	}
}

// TestResultPublisher_Publish verifies the queue declaration and message encoding
// Given: A publisher over a fake channel
// When: A failed run is published
// Then: The queue is durable and the message is persistent JSON keyed by the queue name
func TestResultPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	publisher, err := NewResultPublisher(ch, "results")
	if err != nil {
		t.Fatalf("NewResultPublisher failed: %v", err)
	}

	if len(ch.declared) != 1 || !ch.declared[0].durable || ch.declared[0].autoDelete {
		t.Fatalf("declared = %+v, want one durable queue", ch.declared)
	}

	if err := publisher.Publish(context.Background(), failedRun()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if len(ch.published) != 1 {
		t.Fatalf("published %d messages, want 1", len(ch.published))
	}

	msg := ch.published[0]
	if ch.keys[0] != "results" {
		t.Errorf("routing key = %q, want results", ch.keys[0])
	}
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" || msg.CorrelationId != "c-7" {
		t.Errorf("publishing = %+v, want persistent JSON with correlation id c-7", msg)
	}

	var body map[string]any
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		t.Fatalf("Unmarshal body failed: %v", err)
	}
	if body["result"] != "Failed" || body["expected"] != "(0,1)" || body["attempts"] != float64(2) {
		t.Errorf("body = %v, want result Failed, expected (0,1), attempts 2", body)
	}

	if err := publisher.Close(); err != nil || !ch.closed {
		t.Errorf("Close() = %v, closed = %v, want nil and true", err, ch.closed)
	}
}

func TestResultPublisher_Errors(t *testing.T) {
	errBroker := errors.New("channel closed")

	if _, err := NewResultPublisher(&fakeChannel{declareErr: errBroker}, "results"); !errors.Is(err, errBroker) {
		t.Errorf("NewResultPublisher err = %v, want wrapped %v", err, errBroker)
	}

	publisher, err := NewResultPublisher(&fakeChannel{publishErr: errBroker}, "results")
	if err != nil {
		t.Fatalf("NewResultPublisher failed: %v", err)
	}
	if err := publisher.Publish(context.Background(), failedRun()); !errors.Is(err, errBroker) {
		t.Errorf("Publish err = %v, want wrapped %v", err, errBroker)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := publisher.Publish(ctx, failedRun()); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish(cancelled) err = %v, want context.Canceled", err)
	}
}
