package workflow

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicefit/gateway"
	"voicefit/store"
)

func fixedMachine() *Machine {
	return &Machine{Now: func() time.Time {
		return time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC)
	}}
}

// drive applies events in order, returning the final state and every
// command emitted along the way.
func drive(t *testing.T, m *Machine, s State, events ...Event) (State, []Command) {
	t.Helper()
	var all []Command
	for _, ev := range events {
		var cmds []Command
		s, cmds = m.Next(s, ev)
		all = append(all, cmds...)
	}
	return s, all
}

func TestHappyPathToReview(t *testing.T) {
	m := fixedMachine()

	s, cmds := m.Next(Initial(), Start{})
	assert.Equal(t, PhaseStarting, s.Phase)
	assert.Equal(t, []Command{StartCapture{}}, cmds)

	s, cmds = m.Next(s, CaptureStarted{})
	assert.Equal(t, PhaseRecording, s.Phase)
	assert.Empty(t, cmds)

	s, cmds = m.Next(s, Stop{})
	assert.Equal(t, PhaseProcessing, s.Phase)
	assert.Equal(t, []Command{StopCapture{}, RunExtraction{}}, cmds)

	result := gateway.Extraction{
		Exercises:        []store.Exercise{{Name: "Bench Press", Sets: store.IntPtr(5), Reps: store.IntPtr(10)}},
		RawTranscription: "five sets of ten on bench",
	}
	s, cmds = m.Next(s, ExtractionSucceeded{Result: result})
	assert.Equal(t, PhaseReview, s.Phase)
	assert.Empty(t, cmds)
	require.NotNil(t, s.Draft)
	assert.Equal(t, "five sets of ten on bench", s.Draft.RawTranscription)
	require.Len(t, s.Draft.Exercises, 1)
	assert.Equal(t, "Bench Press", s.Draft.Exercises[0].Name)
}

func TestSaveDefaultsDate(t *testing.T) {
	m := fixedMachine()
	s, _ := drive(t, m, Initial(),
		Start{}, CaptureStarted{}, Stop{},
		ExtractionSucceeded{Result: gateway.Extraction{RawTranscription: "x"}},
	)

	s, cmds := m.Next(s, Save{})
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Nil(t, s.Draft)
	require.Len(t, cmds, 2)
	persist, ok := cmds[0].(PersistDraft)
	require.True(t, ok)
	assert.Equal(t, "2026-08-29", persist.Draft.Date)
	assert.Equal(t, NavigateHistory{}, cmds[1])
}

func TestSaveKeepsSpokenDate(t *testing.T) {
	m := fixedMachine()
	s, _ := drive(t, m, Initial(),
		Start{}, CaptureStarted{}, Stop{},
		ExtractionSucceeded{Result: gateway.Extraction{Date: "2026-08-01", RawTranscription: "x"}},
	)

	_, cmds := m.Next(s, Save{})
	require.Len(t, cmds, 2)
	assert.Equal(t, "2026-08-01", cmds[0].(PersistDraft).Draft.Date)
}

func TestDiscardClearsDraftWithoutPersist(t *testing.T) {
	m := fixedMachine()
	s, _ := drive(t, m, Initial(),
		Start{}, CaptureStarted{}, Stop{},
		ExtractionSucceeded{Result: gateway.Extraction{RawTranscription: "x"}},
	)

	s, cmds := m.Next(s, Discard{})
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Nil(t, s.Draft)
	assert.Empty(t, cmds)
}

func TestCaptureFailureFromStarting(t *testing.T) {
	m := fixedMachine()
	s, _ := m.Next(Initial(), Start{})

	s, cmds := m.Next(s, CaptureFailed{Err: errors.New("permission denied")})
	assert.Equal(t, PhaseError, s.Phase)
	assert.Contains(t, s.ErrMsg, "microphone")
	assert.Empty(t, cmds)

	s, cmds = m.Next(s, Retry{})
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Empty(t, s.ErrMsg)
	assert.Empty(t, cmds)
}

func TestCaptureFailureMidRecording(t *testing.T) {
	m := fixedMachine()
	s, _ := drive(t, m, Initial(), Start{}, CaptureStarted{})
	require.Equal(t, PhaseRecording, s.Phase)

	s, cmds := m.Next(s, CaptureFailed{Err: errors.New("device gone")})
	assert.Equal(t, PhaseError, s.Phase)
	// Mid-recording failure is not a permission problem.
	assert.NotContains(t, s.ErrMsg, "permissions")
	assert.Contains(t, s.ErrMsg, "Recording")
	assert.Equal(t, []Command{StopCapture{}}, cmds)
}

func TestDiscardDismissesError(t *testing.T) {
	m := fixedMachine()
	s, _ := drive(t, m, Initial(), Start{}, CaptureStarted{}, Stop{},
		ExtractionFailed{Err: errors.New("timeout")})
	require.Equal(t, PhaseError, s.Phase)

	s, cmds := m.Next(s, Discard{})
	assert.Equal(t, PhaseIdle, s.Phase)
	assert.Empty(t, s.ErrMsg)
	assert.Empty(t, cmds)
}

func TestExtractionFailure(t *testing.T) {
	m := fixedMachine()
	s, _ := drive(t, m, Initial(), Start{}, CaptureStarted{}, Stop{})

	s, cmds := m.Next(s, ExtractionFailed{Err: gateway.ErrMissingTranscription})
	assert.Equal(t, PhaseError, s.Phase)
	assert.NotEmpty(t, s.ErrMsg)
	assert.Nil(t, s.Draft)
	assert.Empty(t, cmds)
}

func TestStartIgnoredWhileActive(t *testing.T) {
	m := fixedMachine()
	s, _ := drive(t, m, Initial(), Start{}, CaptureStarted{})
	require.Equal(t, PhaseRecording, s.Phase)

	// Single recording in flight: a second Start is a no-op.
	next, cmds := m.Next(s, Start{})
	assert.Equal(t, s, next)
	assert.Empty(t, cmds)
}

func TestStaleEventsIgnored(t *testing.T) {
	m := fixedMachine()

	for _, ev := range []Event{Stop{}, Save{}, Discard{}, Retry{}, CaptureStarted{},
		ExtractionSucceeded{}, ExtractionFailed{}} {
		next, cmds := m.Next(Initial(), ev)
		assert.Equal(t, Initial(), next, "event %T should be ignored in Idle", ev)
		assert.Empty(t, cmds)
	}
}

func TestNilExercisesNormalizedInDraft(t *testing.T) {
	m := fixedMachine()
	s, _ := drive(t, m, Initial(), Start{}, CaptureStarted{}, Stop{},
		ExtractionSucceeded{Result: gateway.Extraction{RawTranscription: "nothing today"}},
	)

	require.NotNil(t, s.Draft)
	assert.NotNil(t, s.Draft.Exercises)
	assert.Empty(t, s.Draft.Exercises)
}
