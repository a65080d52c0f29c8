package session

import (
	"sync"

	"onboardbridge/internal/logger"
)

// Dispatcher 单 goroutine 串行执行队列，相当于宿主屏幕的主线程。
// 会话状态只在这里被读写。
type Dispatcher struct {
	tasks    chan func()
	stopping chan struct{}
	draining chan struct{}
	done     chan struct{}
	log      logger.Logger

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewDispatcher 创建并启动执行队列
func NewDispatcher(size int, l logger.Logger) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	if l == nil {
		l = logger.NewNop()
	}
	d := &Dispatcher{
		tasks:    make(chan func(), size),
		stopping: make(chan struct{}),
		draining: make(chan struct{}),
		done:     make(chan struct{}),
		log:      l,
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		select {
		case fn := <-d.tasks:
			d.run(fn)
		case <-d.stopping:
			return
		case <-d.draining:
			for {
				select {
				case fn := <-d.tasks:
					d.run(fn)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) run(fn func()) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("执行队列任务异常", "panic", p)
		}
	}()
	fn()
}

// Post 投递任务，已关闭时返回 false
func (d *Dispatcher) Post(fn func()) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.tasks <- fn:
		return true
	case <-d.stopping:
		return false
	case <-d.draining:
		return false
	}
}

// Call 投递任务并等待其完成。不能在本队列的任务中调用，调用方回调因此放在单独的队列上执行
func (d *Dispatcher) Call(fn func()) bool {
	finished := make(chan struct{})
	if !d.Post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-d.done:
		return false
	}
}

// Close 停止队列，未执行的任务被丢弃；可重复调用
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		close(d.stopping)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
	})
}

// Drain 不再接收新任务，已排队的任务执行完后退出；不阻塞，可在队列自身的任务中调用
func (d *Dispatcher) Drain() {
	d.once.Do(func() {
		close(d.draining)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
	})
}

// Done 队列 goroutine 退出后关闭
func (d *Dispatcher) Done() <-chan struct{} { return d.done }
