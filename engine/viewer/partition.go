package viewer

import (
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/vortex/engine/core"
)

// deviceQueueFamily is the grouping key for command graphs: graphs sharing a
// device, queue family and present family form one submission pipeline.
// Devices are ordered by the ordinal of their first appearance in the input
// list so the grouping is deterministic for a given input.
type deviceQueueFamily struct {
	device        Device
	deviceOrdinal int
	queueFamily   int
	presentFamily int
}

func compareDeviceQueueFamily(a, b deviceQueueFamily) int {
	if a.deviceOrdinal != b.deviceOrdinal {
		return a.deviceOrdinal - b.deviceOrdinal
	}
	if a.queueFamily != b.queueFamily {
		return a.queueFamily - b.queueFamily
	}
	return a.presentFamily - b.presentFamily
}

// AssignRecordAndSubmitTaskAndPresentations partitions the command graphs
// into RecordAndSubmitTasks, one per (device, queue family, present family)
// group, and creates a Presentation for every group that presents. Groups
// with a negative present family carry off-screen or compute work and get no
// presentation counterpart.
//
// A graph with a nil device is a caller error; it is still grouped (under the
// nil device) and produces a task that never submits valid GPU work.
func (v *Viewer) AssignRecordAndSubmitTaskAndPresentations(commandGraphs []*CommandGraph, pager *DatabasePager) error {
	groups := make(map[deviceQueueFamily][]*CommandGraph)
	ordinals := make(map[Device]int)

	for _, cg := range commandGraphs {
		ordinal, known := ordinals[cg.Device]
		if !known {
			ordinal = len(ordinals)
			ordinals[cg.Device] = ordinal
		}
		key := deviceQueueFamily{
			device:        cg.Device,
			deviceOrdinal: ordinal,
			queueFamily:   cg.QueueFamily,
			presentFamily: cg.PresentFamily,
		}
		groups[key] = append(groups[key], cg)
	}

	keys := make([]deviceQueueFamily, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, compareDeviceQueueFamily)

	for _, key := range keys {
		graphs := groups[key]

		task := NewRecordAndSubmitTask(key.device)
		task.CommandGraphs = graphs
		task.Pager = pager

		if key.device != nil {
			queue, err := key.device.Queue(key.queueFamily)
			if err != nil {
				return err
			}
			task.Queue = queue
		}

		if key.presentFamily >= 0 {
			// Collect the distinct windows of this group, first-seen order.
			windows := make([]Window, 0, len(graphs))
			seen := make(map[Window]bool)
			for _, cg := range graphs {
				if cg.Window == nil || seen[cg.Window] {
					continue
				}
				seen[cg.Window] = true
				windows = append(windows, cg.Window)
			}

			presentation := &Presentation{Windows: windows}
			task.Windows = windows

			if key.device != nil {
				renderFinished, err := key.device.NewSemaphore()
				if err != nil {
					return err
				}
				task.SignalSemaphores = append(task.SignalSemaphores, renderFinished)
				presentation.WaitSemaphores = append(presentation.WaitSemaphores, renderFinished)

				presentQueue, err := key.device.Queue(key.presentFamily)
				if err != nil {
					return err
				}
				presentation.Queue = presentQueue
			}

			v.Presentations = append(v.Presentations, presentation)
		}

		v.RecordAndSubmitTasks = append(v.RecordAndSubmitTasks, task)
		core.LogDebug("assigned task with %d command graphs (queue family %d, present family %d)",
			len(graphs), key.queueFamily, key.presentFamily)
	}

	return nil
}
