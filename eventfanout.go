package fileclassifier

import (
	"pkt.systems/fileclassifier/core"
	"pkt.systems/fileclassifier/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnLedgerEvent(event schema.LedgerEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnLedgerEvent(event)
	}
}
