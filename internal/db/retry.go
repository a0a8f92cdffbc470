package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/anyhowai/moveout/internal/apperr"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsDuplicateKeyError is a function that checks if an error is a duplicate key error.
type IsDuplicateKeyError func(err error) bool

const DefaultMaxRetries = 3

// Try executes an operation with default retry settings for duplicate key errors.
// It uses DefaultMaxRetries and IsMongoDuplicateKeyError. This exists for
// inserts keyed by a freshly generated SixID: a random collision is resolved
// by regenerating the id inside op and trying again.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoDuplicateKeyError)
}

// WithRetries executes an operation with a retry mechanism for duplicate key errors.
// It attempts the operation up to maxRetries times.
func WithRetries(op Operation, maxRetries int, isDuplicateKey IsDuplicateKeyError) error {
	var err error
	// Loop for initial attempt (attempt = 0) + maxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil // Success
		}

		if attempt == maxRetries {
			break
		}

		if isDuplicateKey(err) {
			time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond) // Simple incremental backoff
		} else {
			return err // Not a duplicate key error, return immediately
		}
	}
	return err // All attempts failed or last attempt failed
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	// Also check for BulkWriteException, which can contain duplicate key errors
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}

// Transient backoff parameters.
const (
	TransientMaxAttempts = 3
	transientBaseDelay   = time.Second
	transientMaxDelay    = 10 * time.Second
)

// TryTransient executes an operation with bounded exponential backoff,
// retrying only transient faults (store timeouts, network failures,
// dependency 5xx). Validation, authorization, conflict and not-found errors
// are returned on the first attempt untouched.
func TryTransient(op Operation) error {
	var err error
	delay := transientBaseDelay
	for attempt := 1; attempt <= TransientMaxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !apperr.IsRetryable(err) || attempt == TransientMaxAttempts {
			return err
		}
		time.Sleep(delay)
		delay *= 2
		if delay > transientMaxDelay {
			delay = transientMaxDelay
		}
	}
	return err
}
