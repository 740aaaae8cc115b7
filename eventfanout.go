package consoleshell

import (
	"pkt.systems/consoleshell/core"
	"pkt.systems/consoleshell/schema"
)

type stateFanout struct {
	sinks []core.StateSink
}

func (f stateFanout) OnState(event schema.StateEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnState(event)
	}
}

// joinSinks returns nil, the only sink, or a fan-out over all of them.
func joinSinks(sinks ...core.StateSink) core.StateSink {
	live := make([]core.StateSink, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			live = append(live, sink)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	default:
		return stateFanout{sinks: live}
	}
}
