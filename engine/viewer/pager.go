package viewer

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/vortex/engine/core"
	"github.com/spaghettifunk/vortex/engine/systems"
)

// PagedLoadFunc loads one paged resource. It runs on a pager worker with the
// compile context the viewer wired in during Compile.
type PagedLoadFunc func(ctx *CompileContext) error

type pagedEntry struct {
	id        string
	path      string
	load      PagedLoadFunc
	lastFrame uint64
}

// DatabasePager streams paged scene resources in and out of memory across
// frames. The viewer assigns its CompileTraversal during Compile and starts
// it once all direct transfers have completed; UpdateSceneGraph merges
// finished loads back into the scene once per frame.
type DatabasePager struct {
	// CompileTraversal is assigned by Viewer.Compile before Start.
	CompileTraversal *CompileTraversal

	jobs    *systems.JobSystem
	watcher *fsnotify.Watcher
	root    string

	mutex     sync.Mutex
	started   bool
	completed []*pagedEntry
	active    map[string]*pagedEntry
	done      chan struct{}
}

// NewDatabasePager creates a pager with the given worker count. When root is
// non-empty the directory is watched and changed files trigger a reload of
// the matching resource.
func NewDatabasePager(root string, numWorkers int) (*DatabasePager, error) {
	jobs, err := systems.NewJobSystem(numWorkers, numWorkers*4)
	if err != nil {
		return nil, err
	}

	p := &DatabasePager{
		jobs:   jobs,
		root:   root,
		active: make(map[string]*pagedEntry),
		done:   make(chan struct{}),
	}

	if root != "" {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, err
		}
		if err := watcher.Add(root); err != nil {
			return nil, err
		}
		p.watcher = watcher
	}

	return p, nil
}

// Start begins the pager's background activity. The viewer calls it from
// Compile, after every direct transfer has been dispatched and waited upon.
// Starting twice is a no-op so a pager may be shared by several tasks.
func (p *DatabasePager) Start() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.started {
		return nil
	}
	if p.CompileTraversal == nil {
		return fmt.Errorf("database pager started without a compile traversal")
	}
	p.started = true

	if p.watcher != nil {
		go p.watch()
	}
	core.LogInfo("database pager started (root %q)", p.root)
	return nil
}

// RequestLoad schedules a paged resource load on a worker. The load receives
// the pager's compile context; the result is merged into the scene by the
// next UpdateSceneGraph.
func (p *DatabasePager) RequestLoad(path string, load PagedLoadFunc) {
	entry := &pagedEntry{
		id:   core.IdentifierAcquire(),
		path: path,
		load: load,
	}

	p.mutex.Lock()
	p.active[path] = entry
	traversal := p.CompileTraversal
	p.mutex.Unlock()

	p.jobs.AddWorkNonBlocking(systems.JobTask{
		ID: entry.id,
		OnStart: func(interface{}, chan<- interface{}) error {
			if traversal == nil {
				return fmt.Errorf("paged load %s requested before compile", entry.path)
			}
			return entry.load(traversal.Context)
		},
		OnComplete: func(<-chan interface{}) {
			p.mutex.Lock()
			p.completed = append(p.completed, entry)
			p.mutex.Unlock()
		},
		OnFailure: func(<-chan interface{}) {
			p.mutex.Lock()
			delete(p.active, entry.path)
			p.mutex.Unlock()
		},
	})
}

// UpdateSceneGraph merges completed loads into the scene graph. Called once
// per frame by the viewer, on the frame-driving goroutine.
func (p *DatabasePager) UpdateSceneGraph(frame core.FrameStamp) {
	p.mutex.Lock()
	completed := p.completed
	p.completed = nil
	for _, entry := range completed {
		entry.lastFrame = frame.FrameIndex
	}
	p.mutex.Unlock()

	for _, entry := range completed {
		core.LogDebug("merged paged resource %s at frame %d", entry.path, frame.FrameIndex)
	}
}

// Shutdown stops the watcher and drains the worker pool.
func (p *DatabasePager) Shutdown() error {
	p.mutex.Lock()
	started := p.started
	p.started = false
	p.mutex.Unlock()

	if started {
		close(p.done)
	}
	if p.watcher != nil {
		if err := p.watcher.Close(); err != nil {
			return err
		}
	}
	return p.jobs.Shutdown()
}

func (p *DatabasePager) watch() {
	for {
		select {
		case <-p.done:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			p.mutex.Lock()
			entry := p.active[event.Name]
			p.mutex.Unlock()
			if entry != nil {
				core.LogDebug("paged resource %s changed on disk, reloading", event.Name)
				p.RequestLoad(entry.path, entry.load)
			}
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			core.LogWarn("database pager watcher: %s", err.Error())
		}
	}
}
