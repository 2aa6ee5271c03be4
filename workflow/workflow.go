// Package workflow sequences one recording from microphone capture
// through remote extraction to user review. The machine is pure: every
// transition returns the next state plus the side-effecting commands the
// driver must run, so the whole lifecycle is unit-testable without a
// device or a network.
package workflow

import (
	"time"

	"voicefit/gateway"
	"voicefit/store"
)

type Phase int

const (
	// PhaseIdle: nothing in flight, ready to start.
	PhaseIdle Phase = iota
	// PhaseStarting: microphone permission/open pending. The capture
	// either comes up (-> Recording) or fails (-> Error) without ever
	// entering Recording.
	PhaseStarting
	PhaseRecording
	PhaseProcessing
	PhaseReview
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStarting:
		return "starting"
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	case PhaseReview:
		return "review"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// State is the whole workflow condition. Draft is non-nil only in
// Review; ErrMsg is non-empty only in Error.
type State struct {
	Phase  Phase
	Draft  *store.Draft
	ErrMsg string
}

func Initial() State {
	return State{Phase: PhaseIdle}
}

// Events.

type Event interface{ isEvent() }

type Start struct{}
type CaptureStarted struct{}
type CaptureFailed struct{ Err error }
type Stop struct{}
type ExtractionSucceeded struct{ Result gateway.Extraction }
type ExtractionFailed struct{ Err error }
type Save struct{}
type Discard struct{}
type Retry struct{}

func (Start) isEvent()               {}
func (CaptureStarted) isEvent()      {}
func (CaptureFailed) isEvent()       {}
func (Stop) isEvent()                {}
func (ExtractionSucceeded) isEvent() {}
func (ExtractionFailed) isEvent()    {}
func (Save) isEvent()                {}
func (Discard) isEvent()             {}
func (Retry) isEvent()               {}

// Commands for the driver.

type Command interface{ isCommand() }

type StartCapture struct{}
type StopCapture struct{}
type RunExtraction struct{}
type PersistDraft struct{ Draft store.Draft }
type NavigateHistory struct{}

func (StartCapture) isCommand()    {}
func (StopCapture) isCommand()     {}
func (RunExtraction) isCommand()   {}
func (PersistDraft) isCommand()    {}
func (NavigateHistory) isCommand() {}

const (
	permissionErrMsg = "Could not access microphone. Please ensure permissions are granted."
	recordingErrMsg  = "Recording stopped unexpectedly. Please try again."
	processingErrMsg = "Failed to process audio. Please try again."
)

// Machine holds the clock so save-time date defaulting is testable.
type Machine struct {
	Now func() time.Time
}

func New() *Machine {
	return &Machine{Now: time.Now}
}

// Next applies one event. Events that do not apply in the current phase
// are ignored: the state comes back unchanged with no commands, which
// also enforces the single-recording invariant (Start is only honored
// in Idle).
func (m *Machine) Next(s State, ev Event) (State, []Command) {
	switch ev := ev.(type) {
	case Start:
		if s.Phase != PhaseIdle {
			return s, nil
		}
		return State{Phase: PhaseStarting}, []Command{StartCapture{}}

	case CaptureStarted:
		if s.Phase != PhaseStarting {
			return s, nil
		}
		return State{Phase: PhaseRecording}, nil

	case CaptureFailed:
		switch s.Phase {
		case PhaseStarting:
			return State{Phase: PhaseError, ErrMsg: permissionErrMsg}, nil
		case PhaseRecording:
			// Device died mid-recording; the partial audio is discarded.
			return State{Phase: PhaseError, ErrMsg: recordingErrMsg}, []Command{StopCapture{}}
		}
		return s, nil

	case Stop:
		if s.Phase != PhaseRecording {
			return s, nil
		}
		return State{Phase: PhaseProcessing}, []Command{StopCapture{}, RunExtraction{}}

	case ExtractionSucceeded:
		if s.Phase != PhaseProcessing {
			return s, nil
		}
		draft := draftFromExtraction(ev.Result)
		return State{Phase: PhaseReview, Draft: &draft}, nil

	case ExtractionFailed:
		if s.Phase != PhaseProcessing {
			return s, nil
		}
		return State{Phase: PhaseError, ErrMsg: processingErrMsg}, nil

	case Save:
		if s.Phase != PhaseReview || s.Draft == nil {
			return s, nil
		}
		draft := *s.Draft
		if draft.Date == "" {
			// Date defaulting lives here, not in the gateway's
			// instruction text.
			draft.Date = m.Now().Format("2006-01-02")
		}
		return State{Phase: PhaseIdle}, []Command{PersistDraft{Draft: draft}, NavigateHistory{}}

	case Discard:
		// Review: drop the draft. Error: dismiss the message.
		if s.Phase != PhaseReview && s.Phase != PhaseError {
			return s, nil
		}
		return State{Phase: PhaseIdle}, nil

	case Retry:
		if s.Phase != PhaseError {
			return s, nil
		}
		return State{Phase: PhaseIdle}, nil
	}

	return s, nil
}

func draftFromExtraction(ex gateway.Extraction) store.Draft {
	exercises := ex.Exercises
	if exercises == nil {
		exercises = []store.Exercise{}
	}
	return store.Draft{
		Date:             ex.Date,
		Exercises:        exercises,
		RawTranscription: ex.RawTranscription,
		Notes:            ex.Notes,
	}
}
