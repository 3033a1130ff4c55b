package mqtt

import "go.uber.org/zap"

// offlineQueue holds publishes made while the broker is unreachable, oldest
// first, up to limit messages. When full the oldest message is dropped. A
// retained message replaces any queued retained message on the same topic,
// since the broker only keeps the last one. Callers synchronize.
type offlineQueue struct {
	limit   int
	msgs    []Message
	dropped int
	log     *zap.Logger
}

func newOfflineQueue(limit int, log *zap.Logger) *offlineQueue {
	if limit < 1 {
		limit = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &offlineQueue{limit: limit, log: log}
}

func (q *offlineQueue) push(m Message) {
	if m.Retained {
		for i, old := range q.msgs {
			if old.Retained && old.Topic == m.Topic {
				q.msgs = append(q.msgs[:i], q.msgs[i+1:]...)
				break
			}
		}
	}
	if len(q.msgs) == q.limit {
		if q.dropped == 0 {
			q.log.Warn("offline queue full, dropping oldest", zap.Int("limit", q.limit))
		}
		q.dropped++
		n := copy(q.msgs, q.msgs[1:])
		q.msgs = q.msgs[:n]
	}
	q.msgs = append(q.msgs, m)
}

// drain empties the queue. It returns the messages in publish order and the
// number dropped since the previous drain.
func (q *offlineQueue) drain() ([]Message, int) {
	msgs, dropped := q.msgs, q.dropped
	q.msgs, q.dropped = nil, 0
	return msgs, dropped
}

func (q *offlineQueue) len() int { return len(q.msgs) }
