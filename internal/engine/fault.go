package engine

import "log"

// Fault is a controller error kind. Every fault ends with the heater off.
type Fault int

const (
	FaultACLoss       Fault = iota // no zero-cross edge before the watchdog deadline
	FaultTipProtocol               // tip check requested outside its sampling window
	FaultTipAmbiguous              // tip check average between the two thresholds
	FaultDeviation                 // a sample in the burst is out of tolerance
	FaultUnknownState              // state machine held an unmapped state
	FaultSampler                   // ADC burst could not be started

	faultKinds
)

func (f Fault) String() string {
	switch f {
	case FaultACLoss:
		return "ac_loss"
	case FaultTipProtocol:
		return "tip_protocol"
	case FaultTipAmbiguous:
		return "tip_ambiguous"
	case FaultDeviation:
		return "sample_deviation"
	case FaultUnknownState:
		return "unknown_state"
	case FaultSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// RecordFault counts a fault. The first occurrence of each kind is logged,
// then every hundredth.
func (e *Engine) RecordFault(f Fault) {
	if f < 0 || f >= faultKinds {
		return
	}
	n := e.faults[f].Add(1)
	if n == 1 || n%100 == 0 {
		log.Printf("engine: fault %s (count %d)", f, n)
	}
}

// Faults lists every fault kind in declaration order.
func Faults() []Fault {
	out := make([]Fault, 0, faultKinds)
	for f := Fault(0); f < faultKinds; f++ {
		out = append(out, f)
	}
	return out
}
