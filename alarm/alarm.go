// Package alarm holds the queue of pending alarms and renders the
// notifications sent for them.
package alarm

import (
	"time"

	"github.com/ahmetb/go-linq/v3"

	"github.com/younglifestyle/conflate4go/utils"
)

// Record is one alarm raised by the host process.
type Record struct {
	ID                  int
	Open                bool
	RunOnce             bool
	Level               int
	LevelMax            int
	Frequency           time.Duration
	EscalationFrequency time.Duration
	Message             string
}

// Queue is shared between alarm producers and the session loop. Put may be
// called from any goroutine.
type Queue struct {
	deque *utils.Deque[Record]
}

func NewQueue() *Queue {
	return &Queue{deque: utils.NewDeque[Record]()}
}

func (q *Queue) Put(rec Record) { q.deque.Put(rec) }

func (q *Queue) Len() int { return q.deque.Len() }

// Drain empties the queue and returns the records in arrival order.
func (q *Queue) Drain() []Record { return q.deque.Drain() }

// DrainOpen empties the queue and returns only open records along with the
// number of closed records dropped.
func (q *Queue) DrainOpen() ([]Record, int) {
	all := q.Drain()
	var open []Record
	linq.From(all).WhereT(func(r Record) bool { return r.Open }).ToSlice(&open)
	return open, len(all) - len(open)
}
