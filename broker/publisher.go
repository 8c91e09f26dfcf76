// Package broker publishes terminal task runs to an AMQP queue.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"

	"github.com/Swind/go-conformance-runner/core"
	"github.com/Swind/go-conformance-runner/matcher"
)

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// ResultMessage is the JSON body published for each terminal run.
type ResultMessage struct {
	CorrelationID string `json:"correlation_id"`
	SequenceID    int    `json:"sequence_id"`
	TaskType      string `json:"task_type"`
	Pattern       string `json:"pattern"`
	Input         string `json:"input"`
	Expected      string `json:"expected"`
	Actual        string `json:"actual"`
	Result        string `json:"result"`
	Attempts      int    `json:"attempts"`
	Reason        string `json:"reason,omitempty"`
}

// NewResultMessage builds the message for run. Spans use the task file notation.
func NewResultMessage(run core.TaskRun) ResultMessage {
	terminal := run.Terminal()
	result := "Failed"
	if terminal.IsPass() {
		result = "Passed"
	}
	return ResultMessage{
		CorrelationID: run.Task.CorrelationID,
		SequenceID:    run.Task.SequenceID,
		TaskType:      run.Task.Type,
		Pattern:       run.Task.Pattern,
		Input:         run.Task.Input,
		Expected:      matcher.FormatSpans(run.Task.Expected),
		Actual:        matcher.FormatSpans(run.LastResult()),
		Result:        result,
		Attempts:      len(run.Attempts),
		Reason:        terminal.Reason,
	}
}

// ResultPublisher implements core.ResultSink on top of a durable AMQP queue.
type ResultPublisher struct {
	queue      string
	mu         sync.Mutex
	channel    Channel
	connection *amqp.Connection
}

var _ core.ResultSink = (*ResultPublisher)(nil)

// Dial connects to the broker at url and declares queue.
func Dial(url, queue string) (*ResultPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	publisher, err := NewResultPublisher(ch, queue)
	if err != nil {
		conn.Close()
		return nil, err
	}
	publisher.connection = conn
	return publisher, nil
}

// NewResultPublisher declares queue on ch and returns a publisher using it.
func NewResultPublisher(ch Channel, queue string) (*ResultPublisher, error) {
	if _, err := ch.QueueDeclare(
		queue, // queue name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &ResultPublisher{queue: queue, channel: ch}, nil
}

// Publish sends run as a persistent JSON message to the default exchange.
func (p *ResultPublisher) Publish(ctx context.Context, run core.TaskRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(NewResultMessage(run))
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", run.Task.CorrelationID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.Publish(
		"",      // default exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode:  amqp.Persistent,
			ContentType:   "application/json",
			CorrelationId: run.Task.CorrelationID,
			Body:          body,
		})
	if err != nil {
		return fmt.Errorf("publish result %s: %w", run.Task.CorrelationID, err)
	}
	return nil
}

// Close closes the channel and, when the publisher dialed it, the connection.
func (p *ResultPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.Close()
	if p.connection != nil {
		if cerr := p.connection.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
