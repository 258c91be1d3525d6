package viewer

// Presentation owns one present queue and the windows whose swapchains are
// presented once the paired task's submission has signalled its semaphore.
// One Presentation may serve several windows sharing a queue family.
type Presentation struct {
	Queue          Queue
	Windows        []Window
	WaitSemaphores []Semaphore
}

// Present queues every window's current swapchain image for presentation.
func (p *Presentation) Present() error {
	if p.Queue == nil {
		return nil
	}
	return p.Queue.Present(p.Windows, p.WaitSemaphores)
}
