package common

import (
	"sync"
)

// Event holds the callbacks registered for a single named event.
type Event struct {
	callbacks []func(data map[string]interface{})
	mutex     sync.Mutex
}

// AddCallback adds a new callback to the event.
func (e *Event) AddCallback(callback func(data map[string]interface{})) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	e.callbacks = append(e.callbacks, callback)
}

// Fire raises the event and calls all callbacks in registration order.
// Callbacks run on the caller's goroutine.
func (e *Event) Fire(data map[string]interface{}) {
	if e == nil {
		return
	}

	e.mutex.Lock()
	callbacks := make([]func(map[string]interface{}), len(e.callbacks))
	copy(callbacks, e.callbacks)
	e.mutex.Unlock()

	for _, callback := range callbacks {
		callback(data)
	}
}

// Len returns the number of callbacks.
func (e *Event) Len() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return len(e.callbacks)
}
