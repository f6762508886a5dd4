package engine

import (
	"context"
	"image"
	"sync"
	"time"

	"clickweaver.com/clickweaver-go/internal/capture"
	"clickweaver.com/clickweaver-go/internal/logging"
)

// Processor is the per-frame scenario-processing collaborator. It is opaque
// to the engine beyond this contract. Implementations must not retain the
// frame beyond the synchronous Process call.
type Processor interface {
	Process(frame *image.RGBA) error
	Close()
}

// idleFramePause is how long a cycle sleeps when no frame is available,
// so an empty source doesn't spin the executor hot.
const idleFramePause = time.Millisecond

// processingTask is the single outstanding unit of work representing "the
// next frame is being awaited/processed". At most one exists at any time.
// Each cycle re-submits itself onto the serial executor, so capture-once
// jobs and restarts interleave between cycles while no two cycles ever
// overlap.
type processingTask struct {
	ctx    context.Context
	cancel context.CancelFunc

	done     chan struct{}
	doneOnce sync.Once

	session   *capture.Session
	processor Processor
	executor  *serialExecutor
	logger    *logging.Logger
}

// startProcessingTask launches the frame processing loop on the executor
func startProcessingTask(executor *serialExecutor, session *capture.Session, processor Processor, logger *logging.Logger) *processingTask {
	ctx, cancel := context.WithCancel(context.Background())
	t := &processingTask{
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		session:   session,
		processor: processor,
		executor:  executor,
		logger:    logger,
	}

	if !executor.Submit(t.cycle) {
		t.finish()
	}
	return t
}

// cycle acquires the latest frame, hands it to the processor, and re-submits
// itself unless cancellation was requested
func (t *processingTask) cycle() {
	if t.ctx.Err() != nil {
		t.finish()
		return
	}

	handle, ok := t.session.AcquireLatest()
	if ok {
		t.processFrame(handle)
	} else {
		// No frame yet: skip this cycle silently
		time.Sleep(idleFramePause)
	}

	if t.ctx.Err() != nil {
		t.finish()
		return
	}

	if !t.executor.Submit(t.cycle) {
		t.finish()
	}
}

func (t *processingTask) processFrame(handle *capture.FrameHandle) {
	// The handle must be released on every exit path, including a processor
	// panic, or the device blocks on its reused buffer.
	defer handle.Release()

	if err := t.processor.Process(handle.Image()); err != nil {
		t.logger.Error("frame processing failed", err)
	}
}

// cancelAndJoin requests cancellation and waits until the loop has fully
// completed, guaranteeing no frame is mid-flight against a released
// collaborator
func (t *processingTask) cancelAndJoin() {
	t.cancel()
	<-t.done
}

func (t *processingTask) finish() {
	t.doneOnce.Do(func() { close(t.done) })
}
