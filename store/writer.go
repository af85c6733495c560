/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package store

import (
	"slices"
	"sync"

	"github.com/Seednode/kakaroto/game"
)

// Writer saves to an underlying storage in the background. Save returns
// immediately; when a key is saved several times before the background
// write happens, only the latest value is written.
type Writer struct {
	storage game.Storage
	logf    func(format string, args ...any)

	mu       sync.Mutex
	pending  map[string][]byte
	inflight map[string][]byte
	closed   bool

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func NewWriter(storage game.Storage, logf func(format string, args ...any)) *Writer {
	w := &Writer{
		storage: storage,
		logf:    logf,
		pending: make(map[string][]byte),
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go w.run()

	return w
}

func (w *Writer) run() {
	defer close(w.done)

	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.quit:
			w.flush()

			return
		}
	}
}

func (w *Writer) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string][]byte)
	w.inflight = batch
	w.mu.Unlock()

	for key, data := range batch {
		if err := w.storage.Save(key, data); err != nil {
			w.logf("STORE: Unable to save %s: %v", key, err)
		}
	}

	w.mu.Lock()
	w.inflight = nil
	w.mu.Unlock()
}

// Save queues data to be written under key.
func (w *Writer) Save(key string, data []byte) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done

		return w.storage.Save(key, data)
	}
	w.pending[key] = slices.Clone(data)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}

	return nil
}

// Load returns the latest value for key, including writes not yet flushed.
func (w *Writer) Load(key string) ([]byte, error) {
	w.mu.Lock()
	if data, ok := w.pending[key]; ok {
		w.mu.Unlock()

		return slices.Clone(data), nil
	}
	if data, ok := w.inflight[key]; ok {
		w.mu.Unlock()

		return slices.Clone(data), nil
	}
	w.mu.Unlock()

	return w.storage.Load(key)
}

// Close writes everything still queued and stops the background writer.
// Later saves wait for that final flush, then go straight to the
// underlying storage.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()

		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.quit)
	<-w.done
}
