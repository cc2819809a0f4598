package engine

// TipState is the tip presence classification.
type TipState int32

const (
	TipNotChecked TipState = iota
	TipDetected
	TipNotDetected
	TipCheckError
)

func (t TipState) String() string {
	switch t {
	case TipNotChecked:
		return "not_checked"
	case TipDetected:
		return "detected"
	case TipNotDetected:
		return "not_detected"
	case TipCheckError:
		return "check_error"
	default:
		return "unknown"
	}
}

type checkState int32

const (
	checkIdle     checkState = iota
	checkArmed               // check line driven, waiting for the burst
	checkSampling            // burst complete, classification pending
)

// ClassifyTip maps a tip-check burst average to a tip state. With the check
// line driven high an empty socket saturates the amplifier.
func ClassifyTip(avg, noTipMin, tipMax int) TipState {
	switch {
	case avg > noTipMin:
		return TipNotDetected
	case avg < tipMax:
		return TipDetected
	default:
		return TipCheckError
	}
}

// CheckTip classifies the average of a tip-check burst. Outside the sampling
// window of a tip check it drives the heater off and returns TipCheckError.
// The protocol flag is always left idle.
func (e *Engine) CheckTip(avg int) TipState {
	defer e.check.Store(int32(checkIdle))
	e.tipChecks.Add(1)

	if checkState(e.check.Load()) != checkSampling {
		e.RecordFault(FaultTipProtocol)
		e.ErrorHandler()
		return TipCheckError
	}

	tip := ClassifyTip(avg, e.params.NoTipMin, e.params.TipMax)
	if tip == TipCheckError {
		e.RecordFault(FaultTipAmbiguous)
		e.ErrorHandler()
	}
	return tip
}

// armTipCheck raises the tip-check flag. A check still armed from an earlier
// read phase is a protocol violation.
func (e *Engine) armTipCheck() {
	if !e.check.CompareAndSwap(int32(checkIdle), int32(checkArmed)) {
		e.RecordFault(FaultTipProtocol)
		e.ErrorHandler()
		e.check.Store(int32(checkArmed))
	}
}
