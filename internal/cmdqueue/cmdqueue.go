// Package cmdqueue serializes outbound mutating API calls per logical key so
// rapid consecutive user actions cannot land out of order. Queued-but-not-
// started commands are superseded by newer ones for the same key; a command
// whose network call has begun always runs to completion.
package cmdqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Action performs the actual vendor API call.
type Action func(ctx context.Context) error

// CompletionFunc is invoked after a command finishes, with the command's
// category so the caller can schedule a targeted state re-sync.
type CompletionFunc func(category string, err error)

type command struct {
	id       string
	category string
	action   Action
}

type Queue struct {
	mu         sync.Mutex
	debounce   time.Duration
	onComplete CompletionFunc

	pending     map[string]*command
	dispatching map[string]bool

	baseCtx context.Context
	wg      sync.WaitGroup
}

func New(ctx context.Context, debounce time.Duration, onComplete CompletionFunc) *Queue {
	return &Queue{
		debounce:    debounce,
		onComplete:  onComplete,
		pending:     make(map[string]*command),
		dispatching: make(map[string]bool),
		baseCtx:     ctx,
	}
}

// Enqueue schedules an action for the given key. If a command for the same
// key is already waiting to start, it is dropped in favor of this one
// (last-writer-wins). Returns the command id.
func (q *Queue) Enqueue(key, category string, action Action) string {
	cmd := &command{
		id:       uuid.NewString(),
		category: category,
		action:   action,
	}

	q.mu.Lock()
	if old := q.pending[key]; old != nil {
		log.Debug().
			Str("key", key).
			Str("superseded", old.id).
			Str("command", cmd.id).
			Msg("Superseding pending command")
	}
	q.pending[key] = cmd
	startDispatcher := !q.dispatching[key]
	if startDispatcher {
		q.dispatching[key] = true
	}
	q.mu.Unlock()

	log.Debug().
		Str("key", key).
		Str("category", category).
		Str("command", cmd.id).
		Msg("Command queued")

	if startDispatcher {
		q.wg.Add(1)
		go q.dispatch(key)
	}
	return cmd.id
}

// dispatch drains commands for one key sequentially. The debounce window
// between take-up and execution is what allows superseding.
func (q *Queue) dispatch(key string) {
	defer q.wg.Done()

	for {
		if q.debounce > 0 {
			select {
			case <-time.After(q.debounce):
			case <-q.baseCtx.Done():
			}
		}

		q.mu.Lock()
		cmd := q.pending[key]
		delete(q.pending, key)
		if cmd == nil {
			delete(q.dispatching, key)
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		if q.baseCtx.Err() != nil {
			log.Debug().Str("key", key).Str("command", cmd.id).Msg("Dropping command on shutdown")
			continue
		}

		start := time.Now()
		err := cmd.action(q.baseCtx)
		if err != nil {
			log.Error().
				Err(err).
				Str("key", key).
				Str("category", cmd.category).
				Str("command", cmd.id).
				Msg("Command failed")
		} else {
			log.Info().
				Str("key", key).
				Str("category", cmd.category).
				Str("command", cmd.id).
				Dur("elapsed", time.Since(start)).
				Msg("Command completed")
		}

		if q.onComplete != nil {
			q.onComplete(cmd.category, err)
		}
	}
}

// Wait blocks until all dispatchers have drained. Used on shutdown.
func (q *Queue) Wait() {
	q.wg.Wait()
}
