package dlq

import (
	"strconv"

	"fieldlog/pkg/sinks/remote"
)

// remoteDelegate adapts a Queue into remote.Delegate: a batch that
// exhausts its retries lands in the dead-letter file instead of only
// being logged, giving a caller a way to replay what the HTTP endpoint
// sink gave up on.
type remoteDelegate struct {
	queue *Queue
	next  remote.Delegate
}

// RemoteDelegate wraps next (or remote.NoopDelegate{} if nil) so every
// Dropped batch is also persisted to queue.
func RemoteDelegate(queue *Queue, next remote.Delegate) remote.Delegate {
	if next == nil {
		next = remote.NoopDelegate{}
	}
	return &remoteDelegate{queue: queue, next: next}
}

func (d *remoteDelegate) Sent(count int) { d.next.Sent(count) }

func (d *remoteDelegate) Dropped(count int, lastErr error) {
	reason := "dropped after exhausting retries"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	d.queue.Add("remote", reason, []byte(reasonPayload(count)))
	d.next.Dropped(count, lastErr)
}

func (d *remoteDelegate) DidFailWithError(err error) { d.next.DidFailWithError(err) }

func reasonPayload(count int) string {
	if count == 1 {
		return "1 event dropped"
	}
	return strconv.Itoa(count) + " events dropped"
}
