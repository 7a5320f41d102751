package enrich

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rcfeed/metrics"
	"rcfeed/models"
)

// Error codes recorded on messages whose enrichment failed.
const (
	ErrFetchTimeout  = "fetch-timeout"
	ErrFetchNotFound = "fetch-not-found"
	ErrFetchHTTP     = "fetch-http"
	ErrFetchDecode   = "fetch-decode"
	ErrFetchFailed   = "fetch-failed"
)

// Client resolves the requested properties of a message and writes them onto
// it. Failures are returned, preferably as a *FetchError.
type Client interface {
	Fetch(ctx context.Context, msg *models.Message, properties []string) error
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, msg *models.Message, properties []string) error

func (f ClientFunc) Fetch(ctx context.Context, msg *models.Message, properties []string) error {
	return f(ctx, msg, properties)
}

// FetchError is a failed lookup, recorded on the message as is.
type FetchError struct {
	Code    string
	Message string
	Details any
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Attempt runs one enrichment of msg through client. On success the request
// is resolved; on failure the error is recorded on msg and returned, and msg
// is left with its fetch context so the caller can Cleanup and retry.
func Attempt(ctx context.Context, client Client, msg *models.Message, properties []string) error {
	msg.BeginEnrichment(client, properties)

	start := time.Now()
	err := client.Fetch(ctx, msg, properties)
	metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		fe := asFetchError(ctx, err)
		msg.MarkError(fe.Code, fe.Message, fe.Details)
		metrics.EnrichmentAttempts.WithLabelValues(fe.Code).Inc()
		return fe
	}

	msg.Resolve()
	metrics.EnrichmentAttempts.WithLabelValues("ok").Inc()
	return nil
}

// Retry runs up to attempts enrichments of msg, cleaning up between them.
// Later attempts re-use the property list kept on the message. The last
// failure stays recorded on msg.
func Retry(ctx context.Context, client Client, msg *models.Message, properties []string, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			properties = msg.Properties()
			msg.Cleanup()
		}
		if err = Attempt(ctx, client, msg, properties); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		log.Printf("Enrichment attempt %d/%d for %s message failed: %v", i+1, attempts, msg.Type(), err)
	}
	return err
}

func asFetchError(ctx context.Context, err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &FetchError{Code: ErrFetchTimeout, Message: "client timed out", Details: map[string]any{"cause": err.Error()}}
	}
	return &FetchError{Code: ErrFetchFailed, Message: err.Error(), Details: nil}
}
