// Package display renders station status on a small monochrome panel.
package display

import "sync"

// Message is a full-screen notice shown instead of the live values.
type Message int

const (
	MsgInsertTip Message = iota
	MsgTipCheckError
	MsgACNotDetected
	MsgOverheating
	MsgUnknown
)

// Text returns the message as shown on the panel.
func (m Message) Text() string {
	switch m {
	case MsgInsertTip:
		return "Insert tip"
	case MsgTipCheckError:
		return "Tip check error"
	case MsgACNotDetected:
		return "AC not detected"
	case MsgOverheating:
		return "! Overheating !"
	default:
		return "Unknown error"
	}
}

// Live holds the values refreshed on the default screen.
type Live struct {
	SetTemp int
	TipTemp int
	Power   float64 // 0..1
	State   string
}

// Surface is the display as seen by the state machine.
type Surface interface {
	DrawSplash(ambient int, version string)
	DrawDefault()
	UpdateLive(v Live)
	ShowMessage(m Message)
}

// Call is one recorded Surface call.
type Call struct {
	Op      string // "splash", "default", "live" or "message"
	Live    Live
	Message Message
	Ambient int
}

// Recorder is a Surface that records calls for tests.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *Recorder) DrawSplash(ambient int, version string) {
	r.add(Call{Op: "splash", Ambient: ambient})
}

func (r *Recorder) DrawDefault()          { r.add(Call{Op: "default"}) }
func (r *Recorder) UpdateLive(v Live)     { r.add(Call{Op: "live", Live: v}) }
func (r *Recorder) ShowMessage(m Message) { r.add(Call{Op: "message", Message: m}) }

// Calls returns all recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Last returns the most recent call with the given op.
func (r *Recorder) Last(op string) (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.calls) - 1; i >= 0; i-- {
		if r.calls[i].Op == op {
			return r.calls[i], true
		}
	}
	return Call{}, false
}

// Count returns how many calls with the given op were recorded.
func (r *Recorder) Count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset discards recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// Nop is a Surface for stations built without a panel.
type Nop struct{}

func (Nop) DrawSplash(int, string) {}
func (Nop) DrawDefault()           {}
func (Nop) UpdateLive(Live)        {}
func (Nop) ShowMessage(Message)    {}
