package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultTaskTimeout = 30 * time.Second

// Task - побочное действие, которое выполняется после записи статуса
type Task struct {
	ID     string
	Name   string
	Fields logrus.Fields
	Run    func(ctx context.Context) error
}

type Dispatcher interface {
	Dispatch(task Task)
}

// QueueDispatcher выполняет задачи в одной фоновой горутине по очереди.
// Ошибки задач только логируются.
type QueueDispatcher struct {
	tasks   chan Task
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	timeout time.Duration
	logger  *logrus.Logger
}

func NewQueueDispatcher(buffer int, logger *logrus.Logger) *QueueDispatcher {
	if logger == nil {
		logger = newLogger()
	}

	d := &QueueDispatcher{
		tasks:   make(chan Task, buffer),
		timeout: defaultTaskTimeout,
		logger:  logger,
	}

	d.wg.Add(1)
	go d.worker()

	return d
}

func (d *QueueDispatcher) Dispatch(task Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}

	d.mu.Lock()
	// После Close очередь закрыта, выполняем на месте
	if d.closed {
		d.mu.Unlock()
		runTask(d.logger, d.timeout, task)
		return
	}

	select {
	case d.tasks <- task:
	default:
		// Очередь полна: отдельная горутина, вызывающий не ждет шлюзы.
		// Close дождется ее через wg.
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			runTask(d.logger, d.timeout, task)
		}()
		d.logger.WithFields(logrus.Fields{
			"task_id": task.ID,
			"task":    task.Name,
		}).Warn("Task queue is full, running task out of order")
	}
	d.mu.Unlock()
}

// Close дожидается выполнения всех задач из очереди
func (d *QueueDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *QueueDispatcher) worker() {
	defer d.wg.Done()
	for task := range d.tasks {
		runTask(d.logger, d.timeout, task)
	}
}

// InlineDispatcher выполняет задачу сразу в вызывающей горутине
type InlineDispatcher struct {
	Logger *logrus.Logger
}

func (d *InlineDispatcher) Dispatch(task Task) {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	logger := d.Logger
	if logger == nil {
		logger = newLogger()
	}
	runTask(logger, defaultTaskTimeout, task)
}

func runTask(logger *logrus.Logger, timeout time.Duration, task Task) {
	entry := logger.WithFields(task.Fields).WithFields(logrus.Fields{
		"task_id": task.ID,
		"task":    task.Name,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return task.Run(ctx)
	}()

	if err != nil {
		entry.WithError(err).WithFields(logrus.Fields{
			"kind": KindOf(err),
			"code": CodeOf(err),
		}).Error("Side effect failed")
		return
	}

	entry.Debug("Side effect completed")
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return logger
}
