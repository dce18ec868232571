package exporter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"k8s.io/klog/v2"
)

// -----------------------------
// Job 定义
// -----------------------------
type Job struct {
	SessionID  string
	EnqueuedAt time.Time
	RetryCount int
	MaxRetries int
	Timeout    time.Duration
}

// Executor 执行单个会话的导出
type Executor interface {
	Export(ctx context.Context, sessionID string) error
}

var (
	ErrPoolStopped = errors.New("export pool is stopped")
	ErrQueueFull   = errors.New("export queue is full")
)

const (
	defaultQueueSize  = 256
	defaultJobTimeout = 2 * time.Minute
	maxBackoff        = time.Minute
)

// PoolOptions 协程池参数
type PoolOptions struct {
	Workers    int
	MaxRetries int
	QueueSize  int
	// Backoff 首次重试等待时间，之后按 2 的幂增长
	Backoff time.Duration
}

// Pool 导出任务协程池
// 同一会话同时只会有一个任务在队列或执行中
type Pool struct {
	queue *jobQueue
	pool  *ants.Pool

	executor   Executor
	maxRetries int
	backoff    time.Duration

	ctx          context.Context
	cancel       context.CancelFunc
	stopOnce     sync.Once
	dispatchDone chan struct{}

	inflight   map[string]struct{}
	inflightMu sync.Mutex
	stopped    bool
	wg         sync.WaitGroup
}

// NewPool 创建导出协程池，调用 Start 后开始分发
func NewPool(opts PoolOptions, executor Executor) (*Pool, error) {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}

	pool, err := ants.NewPool(opts.Workers,
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(5*time.Minute),
	)
	if err != nil {
		klog.Errorf("[Exporter] ants pool 初始化失败: %v", err)
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		queue:        newJobQueue(opts.QueueSize),
		pool:         pool,
		executor:     executor,
		maxRetries:   opts.MaxRetries,
		backoff:      opts.Backoff,
		ctx:          ctx,
		cancel:       cancel,
		dispatchDone: make(chan struct{}),
		inflight:     make(map[string]struct{}),
	}, nil
}

// Start 启动分发循环
func (p *Pool) Start() {
	go p.dispatchLoop()
}

// Stop 停止接收新任务，等待队列与执行中的任务完成
func (p *Pool) Stop(timeout time.Duration) {
	p.stopOnce.Do(func() {
		klog.V(6).Infof("[Exporter] 正在停止导出协程池: queued=%d, running=%d", p.queue.Len(), p.pool.Running())

		p.inflightMu.Lock()
		p.stopped = true
		p.inflightMu.Unlock()

		p.queue.Close()
		select {
		case <-p.dispatchDone:
		case <-time.After(timeout):
			klog.Warningf("[Exporter] 等待队列分发超时: remaining=%d", p.queue.Len())
		}

		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			klog.Warningf("[Exporter] 等待导出任务超时，取消剩余任务")
		}
		p.cancel()
		<-done

		if err := p.pool.ReleaseTimeout(timeout); err != nil {
			klog.Warningf("[Exporter] 释放协程池超时: %v", err)
		}
		klog.V(6).Infof("[Exporter] 导出协程池已停止")
	})
}

// Enqueue 提交会话导出
// 会话已在队列或执行中时直接返回 nil
func (p *Pool) Enqueue(sessionID string) error {
	p.inflightMu.Lock()
	if p.stopped {
		p.inflightMu.Unlock()
		return ErrPoolStopped
	}
	if _, ok := p.inflight[sessionID]; ok {
		p.inflightMu.Unlock()
		klog.V(6).Infof("[Exporter] 会话已在导出队列中: sessionID=%s", sessionID)
		return nil
	}
	p.inflight[sessionID] = struct{}{}
	p.wg.Add(1)
	p.inflightMu.Unlock()

	job := &Job{
		SessionID:  sessionID,
		EnqueuedAt: time.Now(),
		MaxRetries: p.maxRetries,
		Timeout:    defaultJobTimeout,
	}
	if err := p.queue.Enqueue(job); err != nil {
		p.finish(job)
		if errors.Is(err, ErrQueueFull) {
			klog.Warningf("[Exporter] 导出队列已满: sessionID=%s", sessionID)
		}
		return err
	}
	klog.V(6).Infof("[Exporter] 导出任务入队: sessionID=%s", sessionID)
	return nil
}

func (p *Pool) done(sessionID string) {
	p.inflightMu.Lock()
	delete(p.inflight, sessionID)
	p.inflightMu.Unlock()
}

func (p *Pool) dispatchLoop() {
	defer close(p.dispatchDone)
	for {
		job, ok := p.queue.Dequeue()
		if !ok {
			return
		}
		if err := p.pool.Submit(func() {
			p.executeJob(job)
		}); err != nil {
			klog.Errorf("[Exporter] 提交任务到协程池失败: sessionID=%s, err=%v", job.SessionID, err)
			p.finish(job)
		}
	}
}

func (p *Pool) finish(job *Job) {
	p.done(job.SessionID)
	p.wg.Done()
}

// executeJob 统一控制重试，退避按 2 的幂增长
func (p *Pool) executeJob(job *Job) {
	defer p.finish(job)
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("[Exporter] 导出任务 panic: sessionID=%s, err=%v", job.SessionID, r)
		}
	}()

	klog.V(6).Infof("[Exporter] 开始导出: sessionID=%s, waited=%v", job.SessionID, time.Since(job.EnqueuedAt))
	for i := job.RetryCount; i < job.MaxRetries; i++ {
		job.RetryCount = i

		ctx, cancel := context.WithTimeout(p.ctx, job.Timeout)
		err := p.executor.Export(ctx, job.SessionID)
		cancel()
		if err == nil {
			klog.V(6).Infof("[Exporter] 导出完成: sessionID=%s, attempts=%d", job.SessionID, i+1)
			return
		}
		if i+1 >= job.MaxRetries {
			klog.Errorf("[Exporter] 导出失败且超过重试上限: sessionID=%s, err=%v", job.SessionID, err)
			return
		}

		backoff := p.backoff << i
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		klog.Warningf("[Exporter] 导出失败，稍后重试: sessionID=%s, retry=%d/%d, err=%v, backoff=%v",
			job.SessionID, i+1, job.MaxRetries, err, backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-p.ctx.Done():
			timer.Stop()
			klog.Warningf("[Exporter] 导出任务被取消: sessionID=%s", job.SessionID)
			return
		case <-timer.C:
		}
	}
}

// QueueStatus 队列状态
type QueueStatus struct {
	QueueLength   int `json:"queue_length"`
	ActiveWorkers int `json:"active_workers"`
}

func (p *Pool) Status() QueueStatus {
	return QueueStatus{
		QueueLength:   p.queue.Len(),
		ActiveWorkers: p.pool.Running(),
	}
}

// -----------------------------
// jobQueue 有界队列，满时拒绝新任务
// -----------------------------
type jobQueue struct {
	maxSize int
	items   []*Job
	mutex   sync.Mutex
	cond    *sync.Cond
	closed  bool
}

func newJobQueue(maxSize int) *jobQueue {
	q := &jobQueue{
		maxSize: maxSize,
		items:   make([]*Job, 0, maxSize),
	}
	q.cond = sync.NewCond(&q.mutex)
	return q
}

func (q *jobQueue) Enqueue(job *Job) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return ErrPoolStopped
	}
	if q.maxSize > 0 && len(q.items) >= q.maxSize {
		return ErrQueueFull
	}
	q.items = append(q.items, job)
	q.cond.Signal()
	return nil
}

// Dequeue 阻塞直到有任务；队列关闭且为空时返回 false
func (q *jobQueue) Dequeue() (*Job, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	job := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return job, true
}

func (q *jobQueue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.items)
}

func (q *jobQueue) Close() {
	q.mutex.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mutex.Unlock()
}
