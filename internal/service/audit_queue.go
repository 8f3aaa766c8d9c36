package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/void-feed/pkg/logger"
)

// AuditSink 接收已提交删除的审计请求；实现不得阻塞删除流程，也不返回错误
type AuditSink interface {
	Record(ctx context.Context, postID, deletedBy string)
}

// DeletionRecorder 写删除审计的一方（通常是 RemoteFeedGateway）
type DeletionRecorder interface {
	RecordDeletion(ctx context.Context, postID, deletedBy string) error
}

// SyncAudit 在调用方 goroutine 内直接写审计，失败只记日志
type SyncAudit struct{ Recorder DeletionRecorder }

func (a SyncAudit) Record(ctx context.Context, postID, deletedBy string) {
	if err := a.Recorder.RecordDeletion(ctx, postID, deletedBy); err != nil {
		logAuditError(&AuditError{PostID: postID, Err: err})
	}
}

func logAuditError(err *AuditError) {
	logger.Warn("deletion audit failed", zap.String("post", err.PostID), zap.Error(err.Err))
}

type auditJob struct {
	postID    string
	deletedBy string
	enqAt     time.Time
}

// AuditQueue 本地异步审计写入器：删除提交后入队，worker 落库
type AuditQueue struct {
	recorder  DeletionRecorder
	ch        chan auditJob
	timeout   time.Duration
	metricsCh chan time.Duration
}

func NewAuditQueue(recorder DeletionRecorder, queueSize int, timeout time.Duration) *AuditQueue {
	if queueSize <= 0 {
		queueSize = 1024
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AuditQueue{recorder: recorder, ch: make(chan auditJob, queueSize), timeout: timeout, metricsCh: make(chan time.Duration, 4096)}
}

// Start 启动 worker；停止函数会先让 worker 排空队列，最多等到 ctx 结束。
func (q *AuditQueue) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case job := <-q.ch:
					q.handle(job)
				case <-stopCh:
					// 排空剩余任务
					for {
						select {
						case job := <-q.ch:
							q.handle(job)
						default:
							return
						}
					}
				}
			}
		}()
	}
	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() { close(stopCh) })
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			logger.Warn("audit queue stopped before draining", zap.Int("remaining", len(q.ch)))
			return ctx.Err()
		}
	}
}

func (q *AuditQueue) handle(job auditJob) {
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()
	if err := q.recorder.RecordDeletion(ctx, job.postID, job.deletedBy); err != nil {
		logAuditError(&AuditError{PostID: job.postID, Err: err})
	}
	select {
	case q.metricsCh <- time.Since(job.enqAt):
	default:
	}
}

// Record 入队；队列满时丢弃并告警
func (q *AuditQueue) Record(_ context.Context, postID, deletedBy string) {
	select {
	case q.ch <- auditJob{postID: postID, deletedBy: deletedBy, enqAt: time.Now()}:
	default:
		logger.Warn("audit queue full, drop deletion record", zap.String("post", postID), zap.String("user", deletedBy))
	}
}

// Metrics 每处理一条发送一次入队到落库的耗时
func (q *AuditQueue) Metrics() <-chan time.Duration { return q.metricsCh }

// QueueLen 当前队列长度（采样值）
func (q *AuditQueue) QueueLen() int { return len(q.ch) }
