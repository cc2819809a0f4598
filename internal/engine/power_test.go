package engine

import "testing"

func TestOnPeriods(t *testing.T) {
	tests := []struct {
		name         string
		temp, target int
		want         int
	}{
		{"far below target", 250, 300, 4},
		{"within deadband", 298, 300, 0},
		{"exactly deadband below", 297, 300, 0},
		{"just outside deadband", 296, 300, 1},
		{"twenty below", 280, 300, 2},
		{"above target", 320, 300, 0},
		{"cold start", 25, 300, 4},
		{"error temp", ErrorTemp, 300, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OnPeriods(tt.temp, tt.target, 4, 3); got != tt.want {
				t.Errorf("OnPeriods(%d, %d) = %d, want %d", tt.temp, tt.target, got, tt.want)
			}
		})
	}
}

func TestOnPeriodsBounds(t *testing.T) {
	const maxOn = 4
	for target := 30; target <= 400; target += 5 {
		for temp := -50; temp <= 1000; temp++ {
			got := OnPeriods(temp, target, maxOn, 3)
			if got < 0 || got > maxOn {
				t.Fatalf("OnPeriods(%d, %d) = %d out of range", temp, target, got)
			}
			if (got == 0) != (temp >= target-3) {
				t.Fatalf("OnPeriods(%d, %d) = %d: zero iff temp >= target-3", temp, target, got)
			}
		}
	}
}

func TestEffectiveTarget(t *testing.T) {
	tests := []struct {
		set     int
		standby bool
		want    int
	}{
		{300, true, 50},
		{300, false, 300},
		{40, true, 40},
		{50, true, 50},
	}
	for _, tt := range tests {
		if got := EffectiveTarget(tt.set, 50, tt.standby); got != tt.want {
			t.Errorf("EffectiveTarget(%d, 50, %v) = %d, want %d", tt.set, tt.standby, got, tt.want)
		}
	}
}

func TestClassifyTipTotal(t *testing.T) {
	for avg := 0; avg <= 4095; avg++ {
		got := ClassifyTip(avg, 4000, 3800)
		var want TipState
		switch {
		case avg > 4000:
			want = TipNotDetected
		case avg < 3800:
			want = TipDetected
		default:
			want = TipCheckError
		}
		if got != want {
			t.Fatalf("ClassifyTip(%d) = %s, want %s", avg, got, want)
		}
	}
}

func TestSampleBuffer(t *testing.T) {
	uniform := make(SampleBuffer, 50)
	for i := range uniform {
		uniform[i] = 3000
	}
	if avg := uniform.Average(); avg != 3000 {
		t.Errorf("expected average 3000, got %d", avg)
	}
	if uniform.Deviates(uniform.Average(), 0) {
		t.Error("uniform buffer must never deviate")
	}

	b := SampleBuffer{100, 300}
	if avg := b.Average(); avg != 200 {
		t.Errorf("expected average 200, got %d", avg)
	}
	if b.Deviates(200, 100) {
		t.Error("samples at the tolerance edge are within tolerance")
	}
	if !b.Deviates(200, 99) {
		t.Error("expected deviation outside tolerance")
	}

	if (SampleBuffer{}).Average() != 0 {
		t.Error("empty buffer average should be 0")
	}
}
