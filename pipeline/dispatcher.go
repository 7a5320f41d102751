package pipeline

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"

	"rcfeed/enrich"
	"rcfeed/formats"
	"rcfeed/metrics"
	"rcfeed/models"
)

var ErrAtCapacity = errors.New("dispatcher is at capacity")

// Sink receives finished messages.
type Sink interface {
	Save(ctx context.Context, msg *models.Message) (int64, error)
}

// Options configures a Dispatcher.
type Options struct {
	// Client enriches messages. Enrichment is skipped when nil.
	Client enrich.Client
	// Properties requested from the client when a submission names none.
	Properties []string
	// Attempts per message, at least 1.
	Attempts int
	// MaxConcurrent bounds the number of messages in flight.
	MaxConcurrent int
}

// Request is one feed line to dispatch.
type Request struct {
	Raw        string
	Type       string
	Properties []string
	Interested []string
}

// Dispatcher builds messages from feed lines, enriches them and hands them
// to a sink. Each message belongs to a single goroutine from construction to
// storage.
type Dispatcher struct {
	parser *formats.Parser
	sink   Sink
	opts   Options

	semaphore chan struct{}
	wg        sync.WaitGroup
}

func NewDispatcher(parser *formats.Parser, sink Sink, opts Options) *Dispatcher {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.MaxConcurrent < 1 {
		opts.MaxConcurrent = 1
	}
	return &Dispatcher{
		parser:    parser,
		sink:      sink,
		opts:      opts,
		semaphore: make(chan struct{}, opts.MaxConcurrent),
	}
}

// Submit dispatches req in the background. It returns ErrAtCapacity without
// blocking when MaxConcurrent messages are already in flight.
func (d *Dispatcher) Submit(ctx context.Context, req Request) error {
	select {
	case d.semaphore <- struct{}{}:
	default:
		metrics.MessagesRejected.Inc()
		log.Printf("Warning: dispatcher at capacity, rejecting %s message", req.Type)
		return ErrAtCapacity
	}

	d.wg.Add(1)
	go func() {
		defer func() {
			<-d.semaphore
			d.wg.Done()
		}()
		if _, _, err := d.Handle(ctx, req); err != nil {
			log.Printf("Error dispatching %s message: %v", req.Type, err)
		}
	}()
	return nil
}

// Wait blocks until every submitted message has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Handle dispatches req synchronously and returns the stored message and its
// row ID. Parse and enrichment failures are recorded on the message; only a
// storage failure is returned as an error.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (*models.Message, int64, error) {
	msg := d.parser.New(req.Raw, req.Type)
	if len(req.Interested) > 0 {
		msg.SetInterested(req.Interested)
	}

	props := req.Properties
	if len(props) == 0 {
		props = d.opts.Properties
	}
	if !msg.Errored() && d.opts.Client != nil && len(props) > 0 {
		if err := enrich.Retry(ctx, d.opts.Client, msg, props, d.opts.Attempts); err != nil {
			log.Printf("Enrichment of %s message failed, storing with error: %v", msg.Type(), err)
		}
	}

	id, err := d.sink.Save(ctx, msg)
	if err != nil {
		metrics.StoreErrors.Inc()
		return msg, 0, err
	}
	metrics.MessagesDispatched.WithLabelValues(msg.Type(), strconv.FormatBool(msg.Errored())).Inc()
	return msg, id, nil
}
