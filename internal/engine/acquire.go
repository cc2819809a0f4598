package engine

// ErrorTemp is reported as the tip temperature after an invalid burst.
const ErrorTemp = 999

// SampleBuffer holds one ADC burst.
type SampleBuffer []uint16

// Average returns the integer mean of the buffer, or 0 when empty.
func (b SampleBuffer) Average() int {
	if len(b) == 0 {
		return 0
	}
	var sum int
	for _, v := range b {
		sum += int(v)
	}
	return sum / len(b)
}

// Deviates reports whether any sample lies outside [avg-tol, avg+tol].
func (b SampleBuffer) Deviates(avg, tol int) bool {
	for _, v := range b {
		if int(v) > avg+tol || int(v) < avg-tol {
			return true
		}
	}
	return false
}

// Acquisition is the result of one completed burst.
type Acquisition struct {
	Average     int
	Temperature int
	Valid       bool
	TipCheck    bool // burst was taken with the check line driven
	Tip         TipState
}

// Temperature converts a burst average to degrees Celsius.
func (p Params) Temperature(avg int) int {
	return avg*p.GainNum/p.GainDen + p.Offset
}

// maxBurstWaits is how many read phases a burst may stay outstanding before
// it is abandoned and a new one started.
const maxBurstWaits = 4

func (e *Engine) startBurst() {
	if e.sampling {
		switch {
		case e.burstDone.Load() == e.burstSeq:
			// Finished, but the completion event never reached the queue.
			e.recovered.Add(1)
			e.onBurstComplete(e.burstSeq)
		case e.burstWaits < maxBurstWaits:
			e.burstWaits++
			e.RecordFault(FaultSampler)
			return
		default:
			// A late completion carries an old sequence number and is ignored.
			e.sampling = false
			e.RecordFault(FaultSampler)
		}
	}

	e.burstSeq++
	seq := e.burstSeq
	e.burstWaits = 0
	e.sampling = true
	e.burstCheck = checkState(e.check.Load()) == checkArmed
	err := e.hw.ADC.StartBurst(e.buf, func() {
		e.burstDone.Store(seq)
		e.Post(Event{Kind: BurstComplete, Burst: seq})
	})
	if err != nil {
		e.sampling = false
		e.RecordFault(FaultSampler)
	}
}

// onBurstComplete consumes the outstanding burst. seq 0 completes whatever
// burst is outstanding.
func (e *Engine) onBurstComplete(seq uint64) {
	if !e.sampling || (seq != 0 && seq != e.burstSeq) {
		e.stale.Add(1)
		return
	}
	e.sampling = false
	e.bursts.Add(1)

	avg := e.buf.Average()
	acq := &Acquisition{
		Average:     avg,
		Temperature: e.TipTemp(),
		Tip:         e.TipState(),
	}

	switch {
	case e.burstCheck && checkState(e.check.Load()) == checkArmed:
		e.check.Store(int32(checkSampling))
		e.lineErr("check", e.hw.Check.SetFloatingInput())
		tip := e.CheckTip(avg)
		e.tipState.Store(int32(tip))
		acq.TipCheck = true
		acq.Tip = tip
		acq.Valid = tip != TipCheckError

	case e.TipState() == TipDetected:
		temp := e.params.Temperature(avg)
		if e.buf.Deviates(avg, e.params.MaxDeviation) {
			e.tipTemp.Store(ErrorTemp)
			e.RecordFault(FaultDeviation)
			e.ErrorHandler()
			acq.Temperature = ErrorTemp
			acq.Tip = TipCheckError
			break
		}
		e.tipTemp.Store(int32(temp))
		acq.Temperature = temp
		acq.Valid = true
		e.applyPowerLaw(temp)
	}

	e.powerBar.Store(e.onPeriods.Load())
	e.last.Store(acq)
}
