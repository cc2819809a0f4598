package mqtt

import "log"

// queued is a serialized message waiting for the broker.
type queued struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while the broker is unreachable. It is a
// bounded FIFO that drops the oldest entry when full. A retained message
// replaces any earlier retained message on the same topic, since the broker
// would only keep the last one anyway. Callers synchronize.
type outbox struct {
	msgs    []queued
	limit   int
	dropped uint64
	warned  bool
}

func newOutbox(limit int) *outbox {
	return &outbox{limit: limit}
}

func (o *outbox) push(m queued) {
	if m.retained {
		for i := range o.msgs {
			if o.msgs[i].retained && o.msgs[i].topic == m.topic {
				o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
				break
			}
		}
	}
	if len(o.msgs) == o.limit {
		if !o.warned {
			log.Printf("mqtt: outbox full (%d messages), dropping oldest", o.limit)
			o.warned = true
		}
		o.msgs = o.msgs[1:]
		o.dropped++
	}
	o.msgs = append(o.msgs, m)
}

// drain returns the queued messages oldest first and empties the outbox.
func (o *outbox) drain() []queued {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = nil
	o.warned = false
	return out
}

func (o *outbox) len() int { return len(o.msgs) }
