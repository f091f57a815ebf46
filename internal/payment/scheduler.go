package payment

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Task - отложенная задача, которую можно отменить
type Task interface {
	// Cancel отменяет задачу. false если задача уже выполнена или отменена.
	Cancel() bool
}

// Scheduler откладывает выполнение функции
type Scheduler interface {
	After(d time.Duration, fn func()) Task
}

// TimerScheduler - планировщик на таймерах runtime
type TimerScheduler struct{}

func (TimerScheduler) After(d time.Duration, fn func()) Task {
	return timerTask{time.AfterFunc(d, fn)}
}

type timerTask struct {
	t *time.Timer
}

func (t timerTask) Cancel() bool {
	return t.t.Stop()
}

// ManualScheduler выполняет задачи только по Advance или Flush
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	s    *ManualScheduler
	at   time.Duration
	seq  int
	fn   func()
	done bool
}

func (t *manualTask) Cancel() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	if t.done {
		return false
	}

	t.done = true

	return true
}

func (m *ManualScheduler) After(d time.Duration, fn func()) Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTask{s: m, at: m.now + d, seq: m.seq, fn: fn}
	m.tasks = append(m.tasks, t)

	return t
}

// Advance сдвигает время и выполняет наступившие задачи по порядку
func (m *ManualScheduler) Advance(d time.Duration) int {
	m.mu.Lock()
	m.now += d
	until := m.now
	m.mu.Unlock()

	return m.run(until)
}

// Flush выполняет все отложенные задачи
func (m *ManualScheduler) Flush() int {
	return m.run(time.Duration(math.MaxInt64))
}

// Pending возвращает число невыполненных задач
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.tasks {
		if !t.done {
			n++
		}
	}

	return n
}

func (m *ManualScheduler) run(until time.Duration) int {
	m.mu.Lock()

	var due []*manualTask
	for _, t := range m.tasks {
		if !t.done && t.at <= until {
			t.done = true
			due = append(due, t)
		}
	}

	kept := m.tasks[:0]
	for _, t := range m.tasks {
		if !t.done {
			kept = append(kept, t)
		}
	}
	m.tasks = kept

	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].at != due[j].at {
			return due[i].at < due[j].at
		}
		return due[i].seq < due[j].seq
	})

	for _, t := range due {
		t.fn()
	}

	return len(due)
}
