// Package acquisition runs acquisition sequences for one camera.
//
// A Controller owns the notification queue and worker that sit between the
// camera's ring buffer and the host pipeline. Each sequence follows the same
// cycle:
//
//	info, err := ctrl.StartSequence() // resize, reset queue, start worker
//	...                               // camera calls ctrl.HandleFrame per frame
//	summary, err := ctrl.StopSequence()
//
// The queue capacity is derived from the ring buffer slot count so that a
// queued frame is evicted before the camera can overwrite its slot. Slot
// count changes made while a sequence runs take effect at the next start.
package acquisition
