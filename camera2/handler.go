package camera2

import "sync"

// Handler is a single goroutine execution context. Tasks posted to a
// Handler run one at a time, in order, on the same goroutine.
type Handler struct {
	name     string
	tasks    chan func()
	quit     chan struct{}
	done     chan struct{}
	quitOnce sync.Once
}

// NewHandler starts a handler goroutine.
func NewHandler(name string) *Handler {
	h := &Handler{
		name:  name,
		tasks: make(chan func(), 64),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Handler) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			return
		case fn := <-h.tasks:
			fn()
		}
	}
}

// Name returns the handler name.
func (h *Handler) Name() string { return h.name }

// Post queues fn. It returns false if the handler has quit.
func (h *Handler) Post(fn func()) bool {
	select {
	case <-h.quit:
		return false
	default:
	}
	select {
	case <-h.quit:
		return false
	case h.tasks <- fn:
		return true
	}
}

// Invoke runs fn on the handler and waits for it to return.
// It must not be called from the handler's own goroutine.
func (h *Handler) Invoke(fn func()) bool {
	ran := make(chan struct{})
	if !h.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-h.done:
		// Quit raced with the task; it may not have run.
		select {
		case <-ran:
			return true
		default:
			return false
		}
	}
}

// Quit stops the handler. Queued tasks that have not started are dropped.
func (h *Handler) Quit() {
	h.quitOnce.Do(func() { close(h.quit) })
}

// Done is closed once the handler goroutine has exited.
func (h *Handler) Done() <-chan struct{} { return h.done }
