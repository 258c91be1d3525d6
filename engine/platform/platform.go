package platform

import (
	"runtime"
	"sync"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/vortex/engine/core"
)

var startTime float64 = 0

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Platform owns the GLFW session and the native windows created on it. All
// window creation and event pumping happens on the goroutine that called
// Startup.
type Platform struct {
	windows []*Window
}

// Window wraps a native window. GLFW callbacks run during PumpMessages on
// the main thread and append to the pending event list; PollEvents drains
// the list into the engine's event queue from whichever goroutine drives
// the frame loop.
type Window struct {
	Handle *glfw.Window

	mutex   sync.Mutex
	pending []core.EventContext
	closed  bool

	width  uint32
	height uint32
}

func New() (*Platform, error) {
	return &Platform{}, nil
}

func (p *Platform) Startup() error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}
	startTime = glfw.GetTime()
	return nil
}

func (p *Platform) Shutdown() error {
	for _, w := range p.windows {
		w.Handle.Destroy()
	}
	p.windows = nil
	glfw.Terminate()
	return nil
}

// NewWindow creates a native window without a client API, as Vulkan needs.
func (p *Platform) NewWindow(title string, x, y uint32, width, height uint32) (*Window, error) {
	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	handle, err := glfw.CreateWindow(int(width), int(height), title, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		return nil, err
	}

	w := &Window{
		Handle: handle,
		width:  width,
		height: height,
	}

	handle.SetCloseCallback(w.closeCallback)
	handle.SetKeyCallback(w.keyCallback)
	handle.SetMouseButtonCallback(w.mouseButtonCallback)
	handle.SetCursorPosCallback(w.cursorPosCallback)
	handle.SetScrollCallback(w.scrollCallback)
	handle.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	handle.SetPos(int(x), int(y))
	handle.Show()

	p.windows = append(p.windows, w)
	return w, nil
}

// PumpMessages runs the GLFW event callbacks. Main thread only.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

// PollEvents drains the window's pending events into the queue, returning
// true when at least one event was delivered. A close request is delivered
// after the pending events, so the last frame's input still reaches the
// handlers before the quit.
func (w *Window) PollEvents(events *core.EventQueue) bool {
	w.mutex.Lock()
	pending := w.pending
	w.pending = nil
	closed := w.closed
	w.mutex.Unlock()

	for _, event := range pending {
		events.Push(event)
	}
	if closed {
		events.Push(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
		return true
	}
	return len(pending) > 0
}

// FramebufferSize returns the last size reported by the windowing system.
func (w *Window) FramebufferSize() (uint32, uint32) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.width, w.height
}

func (w *Window) Visible() bool {
	return w.Handle.GetAttrib(glfw.Visible) == glfw.True
}

func (w *Window) ShouldClose() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.closed
}

// RequiredInstanceExtensions lists the instance extensions Vulkan surface
// creation needs on this platform.
func (w *Window) RequiredInstanceExtensions() []string {
	return w.Handle.GetRequiredInstanceExtensions()
}

func (w *Window) push(event core.EventContext) {
	w.mutex.Lock()
	w.pending = append(w.pending, event)
	w.mutex.Unlock()
}

func (w *Window) closeCallback(handle *glfw.Window) {
	w.mutex.Lock()
	w.closed = true
	w.mutex.Unlock()
}

func (w *Window) keyCallback(handle *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
}

func (w *Window) mouseButtonCallback(handle *glfw.Window, button glfw.MouseButton, action glfw.Action, mods glfw.ModifierKey) {
}

func (w *Window) cursorPosCallback(handle *glfw.Window, xpos, ypos float64) {}

func (w *Window) scrollCallback(handle *glfw.Window, xoff, yoff float64) {}

func (w *Window) framebufferSizeCallback(handle *glfw.Window, width, height int) {
	w.mutex.Lock()
	w.width = uint32(width)
	w.height = uint32(height)
	w.mutex.Unlock()

	w.push(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.SystemEvent{WindowWidth: uint32(width), WindowHeight: uint32(height)},
	})
}
