package engine

// OnPeriods returns how many half-cycles the heater conducts before the next
// read. It is 0 once temp is within deadband of target, otherwise the error
// in tens of degrees clamped to [1, maxOn].
func OnPeriods(temp, target, maxOn, deadband int) int {
	if temp+deadband >= target {
		return 0
	}
	n := (target - temp) / 10
	if n < 1 {
		n = 1
	}
	if n > maxOn {
		n = maxOn
	}
	return n
}

// EffectiveTarget caps the target at standbyTemp while in standby.
func EffectiveTarget(set, standbyTemp int, standby bool) int {
	if standby && set > standbyTemp {
		return standbyTemp
	}
	return set
}

func (e *Engine) applyPowerLaw(temp int) {
	mode := e.CurrentMode()
	if mode != ModeOn && mode != ModeStandby {
		return
	}
	target := EffectiveTarget(e.SetTemp(), e.params.StandbyTemp, mode == ModeStandby)
	e.onPeriods.Store(int32(OnPeriods(temp, target, e.params.MaxOnPeriods, e.params.Deadband)))
}
