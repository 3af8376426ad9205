package kernel

import "github.com/rice-cs422/goyalnix/proc"

// Tick advances the simulated clock by one interrupt.
// It resolves any delay/wait/pipe_read condition that has become true, then
// preempts the currently running process in favor of the next ready one.
// Lock and condition-variable waiters are never touched here: they are
// woken directly by Release, CvarSignal, and CvarBroadcast instead.
func (k *Kernel) Tick() {
	k.acquireCPU()

	for _, p := range k.blocked.Snapshot() {
		switch p.Block.Kind {
		case proc.BlockDelay:
			p.Block.Ticks--
			if p.Block.Ticks <= 0 {
				k.moveToReady(p, &k.blocked)
			}
		case proc.BlockWait:
			for _, child := range p.Children {
				if k.defunct.Contains(child) {
					k.moveToReady(p, &k.blocked)
					break
				}
			}
		case proc.BlockPipeRead:
			if pi, ok := k.pipes[p.Block.PipeID]; ok && pi.available() > 0 {
				k.moveToReady(p, &k.blocked)
			}
		}
	}

	current := k.running
	if current != k.idle {
		k.ready.PushHead(current)
	}
	successor := k.findReadyPCB()
	k.ready.Remove(successor)

	if successor == current {
		k.releaseCPU()
		return
	}
	k.dispatchTo(successor)
}
