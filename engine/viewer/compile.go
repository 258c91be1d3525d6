package viewer

import (
	"sync"

	vk "github.com/goki/vulkan"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/vortex/engine/core"
)

// GraphVisitor is implemented by the two compile-time traversals: descriptor
// statistics collection and resource compilation.
type GraphVisitor interface {
	Apply(resource Resource)
}

// Resource is a GPU-side object referenced by a command graph: a descriptor,
// an image or a buffer. Resources are realized exactly once, by the compile
// step, before any frame is recorded.
type Resource interface {
	// CollectStats contributes the resource's descriptor usage.
	CollectStats(stats *DescriptorStats)
	// Compile realizes the resource against the device's compile context and
	// may enqueue upload commands on it.
	Compile(ctx *CompileContext) error
}

// DescriptorStats accumulates descriptor usage across every command graph of
// one device, sizing that device's descriptor pool.
type DescriptorStats struct {
	Counts  map[vk.DescriptorType]uint32
	NumSets uint32
	MaxSlot uint32
}

func (s *DescriptorStats) AddDescriptor(descriptorType vk.DescriptorType, count uint32) {
	if s.Counts == nil {
		s.Counts = make(map[vk.DescriptorType]uint32)
	}
	s.Counts[descriptorType] += count
}

func (s *DescriptorStats) AddSet() {
	s.NumSets++
}

func (s *DescriptorStats) ObserveSlot(slot uint32) {
	if slot > s.MaxSlot {
		s.MaxSlot = slot
	}
}

// PoolSizes returns the accumulated counts as descriptor pool sizes, ordered
// by descriptor type for determinism.
func (s *DescriptorStats) PoolSizes() []vk.DescriptorPoolSize {
	types := make([]vk.DescriptorType, 0, len(s.Counts))
	for t := range s.Counts {
		types = append(types, t)
	}
	slices.Sort(types)

	sizes := make([]vk.DescriptorPoolSize, 0, len(types))
	for _, t := range types {
		sizes = append(sizes, vk.DescriptorPoolSize{
			Type:            t,
			DescriptorCount: s.Counts[t],
		})
	}
	return sizes
}

// CollectDescriptorStats walks command graphs gathering descriptor usage.
type CollectDescriptorStats struct {
	Stats DescriptorStats
}

func (c *CollectDescriptorStats) Apply(resource Resource) {
	resource.CollectStats(&c.Stats)
}

// TransferCommand is one pending data upload recorded during compilation and
// dispatched to the device's graphics queue afterwards.
type TransferCommand func(queue Queue) error

// CompileContext carries the per-device resources the compile step realizes
// GPU objects against. One context exists per device; it serializes resource
// realization before steady-state rendering begins.
type CompileContext struct {
	Device         Device
	CommandPool    CommandPool
	GraphicsQueue  Queue
	DescriptorPool DescriptorPool

	mu        sync.Mutex
	transfers []TransferCommand
}

// EnqueueTransfer records an upload to run when the context dispatches.
func (ctx *CompileContext) EnqueueTransfer(cmd TransferCommand) {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	ctx.transfers = append(ctx.transfers, cmd)
}

// Dispatch runs every pending transfer command against the graphics queue.
func (ctx *CompileContext) Dispatch() error {
	ctx.mu.Lock()
	transfers := ctx.transfers
	ctx.transfers = nil
	ctx.mu.Unlock()

	for _, cmd := range transfers {
		if err := cmd(ctx.GraphicsQueue); err != nil {
			return err
		}
	}
	return nil
}

// WaitForCompletion blocks until all dispatched transfers have finished on
// the device.
func (ctx *CompileContext) WaitForCompletion() error {
	if ctx.GraphicsQueue == nil {
		return nil
	}
	return ctx.GraphicsQueue.WaitIdle()
}

// CompileTraversal realizes every resource it visits against its context.
type CompileTraversal struct {
	Context *CompileContext

	err error
}

func (c *CompileTraversal) Apply(resource Resource) {
	if err := resource.Compile(c.Context); err != nil {
		core.LogError("failed to compile resource: %s", err.Error())
		if c.err == nil {
			c.err = err
		}
	}
}

// Err returns the first error observed while compiling resources.
func (c *CompileTraversal) Err() error {
	return c.err
}

type deviceResources struct {
	device  Device
	stats   *CollectDescriptorStats
	compile *CompileTraversal
}

// Compile prepares every GPU-side resource referenced by the tasks' command
// graphs, once, before any frame is recorded: descriptor usage is collected
// per device, each device gets one descriptor pool, one command pool and a
// graphics queue, every graph is compiled, pending uploads are dispatched and
// waited upon, and finally any database pagers are started. Calling Compile
// with no tasks is a no-op.
func (v *Viewer) Compile() error {
	if len(v.RecordAndSubmitTasks) == 0 {
		return nil
	}

	// Gather descriptor statistics per device.
	resourceMap := make(map[Device]*deviceResources)
	ordered := make([]*deviceResources, 0)
	resourcesFor := func(device Device) *deviceResources {
		res, ok := resourceMap[device]
		if !ok {
			res = &deviceResources{device: device, stats: &CollectDescriptorStats{}}
			resourceMap[device] = res
			ordered = append(ordered, res)
		}
		return res
	}

	for _, task := range v.RecordAndSubmitTasks {
		for _, cg := range task.CommandGraphs {
			cg.Accept(resourcesFor(cg.Device).stats)
		}
	}

	// Allocate the compile context for each device.
	for _, res := range ordered {
		ctx := &CompileContext{Device: res.device}
		res.compile = &CompileTraversal{Context: ctx}

		if res.device == nil {
			// Caller error: graphs without a device never produce GPU work,
			// but compilation must not crash on them.
			continue
		}

		queueFamily, err := res.device.QueueFamily(vk.QueueGraphicsBit)
		if err != nil {
			return err
		}
		if ctx.CommandPool, err = res.device.NewCommandPool(queueFamily); err != nil {
			return err
		}
		if ctx.GraphicsQueue, err = res.device.Queue(queueFamily); err != nil {
			return err
		}

		stats := &res.stats.Stats
		if len(stats.Counts) > 0 {
			if ctx.DescriptorPool, err = res.device.NewDescriptorPool(stats.NumSets, stats.PoolSizes()); err != nil {
				return err
			}
		}
	}

	// Realize the GPU objects.
	for _, task := range v.RecordAndSubmitTasks {
		for _, cg := range task.CommandGraphs {
			res := resourcesFor(cg.Device)
			cg.MaxSlot = res.stats.Stats.MaxSlot
			cg.Accept(res.compile)
		}

		if task.Pager != nil && len(task.CommandGraphs) > 0 {
			// The first device in the task's command-graph order hosts the
			// pager's compile context. Known limitation carried over from the
			// original design: with several devices the pager only compiles
			// against the first one.
			task.Pager.CompileTraversal = resourcesFor(task.CommandGraphs[0].Device).compile
		}
	}

	for _, res := range ordered {
		if err := res.compile.Err(); err != nil {
			return err
		}
	}

	// Dispatch the recorded uploads, then wait for all of them.
	for _, res := range ordered {
		if err := res.compile.Context.Dispatch(); err != nil {
			return err
		}
	}
	for _, res := range ordered {
		if err := res.compile.Context.WaitForCompletion(); err != nil {
			return err
		}
	}

	// Start the database pagers only after every direct transfer completed.
	for _, task := range v.RecordAndSubmitTasks {
		if task.Pager != nil {
			if err := task.Pager.Start(); err != nil {
				return err
			}
		}
	}

	return nil
}
