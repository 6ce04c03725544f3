package shipdesk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Registry holds tools and executes them with timeout, semaphore, and optional panic recovery.
// Tools are described to the model in registration order.
type Registry struct {
	tools       map[string]Tool // wrapped with middlewares, used by Execute
	rawTools    map[string]Tool // unwrapped, used by Use() to re-apply middlewares from scratch
	order       []string
	sem         chan struct{}
	opts        registryOptions
	done        chan struct{}
	running     sync.WaitGroup
	mu          sync.RWMutex
	middlewares []Middleware
}

// NewRegistry creates a Registry with the given options.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := registryOptions{
		timeout:        5 * time.Second,
		maxConcurrency: 10,
		recoverPanics:  true,
	}
	for _, opt := range opts {
		opt(&o)
	}
	var sem chan struct{}
	if o.maxConcurrency > 0 {
		sem = make(chan struct{}, o.maxConcurrency)
	}
	return &Registry{
		tools:    make(map[string]Tool),
		rawTools: make(map[string]Tool),
		sem:      sem,
		opts:     o,
		done:     make(chan struct{}),
	}
}

// Register adds a tool. Stored middlewares (see Use) are applied to the tool before registration.
// Registering a name that already exists returns a *DuplicateToolError and leaves the registry unchanged.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.New("shipdesk: nil tool")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.rawTools[name]; exists {
		return &DuplicateToolError{Name: name}
	}
	r.rawTools[name] = t
	r.order = append(r.order, name)
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		t = r.middlewares[i](t)
	}
	r.tools[name] = t
	return nil
}

// MustRegister is Register for wiring code that cannot recover from a duplicate name.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Descriptors returns the model-facing description of every tool in registration order.
// The result is rebuilt on each call; the caller may keep or modify it.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, Describe(r.tools[name]))
	}
	return out
}

// GetAllTools returns all registered tools in registration order (after middlewares are applied).
func (r *Registry) GetAllTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// GetTool returns the tool with the given name (after middlewares are applied), or (nil, false) if not found.
func (r *Registry) GetTool(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Execute runs one tool call. It never panics and never returns a raw handler error:
// an unregistered name yields *UnknownToolError, and any handler failure (including a
// recovered panic or a timeout) yields *ToolExecutionError whose Cause is a ClientError
// or SystemError. The after-execution hook (WithOnAfterExecute) is always invoked.
func (r *Registry) Execute(ctx context.Context, call ToolCall) (res ToolResult) {
	res.CallID = call.ID
	res.ToolName = call.ToolName

	r.mu.RLock()
	select {
	case <-r.done:
		r.mu.RUnlock()
		res.Error = &ToolExecutionError{Tool: call.ToolName, Cause: ErrShutdown}
		return res
	default:
	}
	tool, ok := r.tools[call.ToolName]
	if !ok {
		r.mu.RUnlock()
		res.Error = &UnknownToolError{Name: call.ToolName}
		return res
	}
	r.running.Add(1)
	r.mu.RUnlock()
	defer r.running.Done()

	if tm, ok := tool.(ToolMetadata); ok && tm.IsMutating() {
		// Writes run to completion once started.
		ctx = context.WithoutCancel(ctx)
	}

	if err := r.acquireSemaphore(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrTimeout
		}
		res.Error = &ToolExecutionError{Tool: call.ToolName, Cause: err}
		return res
	}
	defer r.releaseSemaphore()

	timeout := r.opts.timeout
	if tm, ok := tool.(ToolMetadata); ok && tm.Timeout() > 0 {
		timeout = tm.Timeout()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	// Recover defer is registered after onAfter so it runs first on panic and sets res.Error before the hook runs.
	defer func() {
		if r.opts.onAfter != nil {
			r.opts.onAfter(ctx, call, res, time.Since(start))
		}
	}()
	if r.opts.recoverPanics {
		defer func() {
			if p := recover(); p != nil {
				res.Result = nil
				res.Error = &ToolExecutionError{
					Tool:  call.ToolName,
					Cause: &SystemError{Err: &panicError{p: p}},
				}
			}
		}()
	}

	if r.opts.onBefore != nil {
		r.opts.onBefore(ctx, call)
	}

	out, err := tool.Execute(ctx, call.Args)
	if err != nil {
		res.Error = &ToolExecutionError{Tool: call.ToolName, Cause: normalizeCause(err)}
		return res
	}
	if !json.Valid(out) {
		res.Error = &ToolExecutionError{
			Tool:  call.ToolName,
			Cause: &SystemError{Err: errors.New("tool returned invalid JSON")},
		}
		return res
	}
	res.Result = out
	return res
}

// normalizeCause maps deadlines to ErrTimeout, keeps client and system errors as they are,
// and hides everything else behind a SystemError.
func normalizeCause(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTimeout):
		return ErrTimeout
	case IsClientError(err), IsSystemError(err):
		return err
	default:
		return &SystemError{Err: err}
	}
}

func (r *Registry) acquireSemaphore(ctx context.Context) error {
	if r.sem == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case r.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) releaseSemaphore() {
	if r.sem != nil {
		<-r.sem
	}
}

// Shutdown closes the registry for new calls and waits for in-flight executions or ctx to cancel.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	select {
	case <-r.done:
		r.mu.Unlock()
		return nil
	default:
		close(r.done)
	}
	r.mu.Unlock()
	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// panicError wraps a recovered panic value for SystemError; used by Registry and WithRecovery middleware.
type panicError struct{ p any }

func (e *panicError) Error() string {
	return "panic: " + fmt.Sprint(e.p)
}
