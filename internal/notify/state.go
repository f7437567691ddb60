package notify

// State represents the lifecycle state of a Worker.
type State string

// Worker states.
const (
	StateIdle     State = "idle"     // No goroutine, queue may be reset
	StateRunning  State = "running"  // Service loop active
	StateStopping State = "stopping" // Stop requested, waiting for the loop to exit
)
