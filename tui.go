package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"voicefit/analytics"
	"voicefit/beep"
	"voicefit/capture"
	"voicefit/gateway"
	"voicefit/store"
	"voicefit/workflow"
)

type view int

const (
	viewDashboard view = iota
	viewRecord
	viewHistory
)

// viewFromName maps a --view flag value; anything unknown lands on the
// dashboard.
func viewFromName(name string) view {
	switch strings.ToLower(name) {
	case "record":
		return viewRecord
	case "history":
		return viewHistory
	default:
		return viewDashboard
	}
}

func (v view) String() string {
	switch v {
	case viewRecord:
		return "Record"
	case viewHistory:
		return "History"
	default:
		return "Dashboard"
	}
}

// TUI message types
type frameMsg time.Time
type captureStartedMsg struct{ events <-chan capture.Event }
type captureFailedMsg struct{ err error }
type captureEventMsg struct {
	ev     capture.Event
	events <-chan capture.Event
}
type captureClosedMsg struct{}
type extractionMsg struct {
	result gateway.Extraction
	speech bool
	err    error
}
type statusClearMsg struct{ seq int }

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	tabActive     = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Background(lipgloss.Color("63")).Padding(0, 1)
	tabInactive   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Padding(0, 1)
	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	standbyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	meterHotStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	barStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	cardStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 2)
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
)

type appModel struct {
	machine *workflow.Machine
	wf      workflow.State

	ctrl *capture.Controller
	ext  gateway.Extractor
	st   *store.Store

	view     view
	sessions []store.WorkoutSession

	// record view
	frame        int
	elapsed      time.Duration
	level        float64
	noVoiceTicks int
	speechHeard  bool
	copied       bool

	// history view
	cursor   int
	expanded int

	status    string
	statusSeq int

	width, height int
}

func newAppModel(initial view, ctrl *capture.Controller, ext gateway.Extractor, st *store.Store) appModel {
	return appModel{
		machine:  workflow.New(),
		wf:       workflow.Initial(),
		ctrl:     ctrl,
		ext:      ext,
		st:       st,
		view:     initial,
		sessions: st.List(),
		expanded: -1,
	}
}

// NewProgram builds the Bubble Tea program for the interactive app.
func NewProgram(initial view, ctrl *capture.Controller, ext gateway.Extractor, st *store.Store) *tea.Program {
	return tea.NewProgram(newAppModel(initial, ctrl, ext, st), tea.WithAltScreen())
}

func frameTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

func (m appModel) Init() tea.Cmd {
	return frameTick()
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		m.frame++
		return m, frameTick()

	case captureStartedMsg:
		beep.PlayStart()
		m.elapsed = 0
		m.level = 0
		m.noVoiceTicks = 0
		cmd := m.applyEvent(workflow.CaptureStarted{})
		return m, tea.Batch(cmd, waitForCapture(msg.events))

	case captureFailedMsg:
		beep.PlayError()
		cmd := m.applyEvent(workflow.CaptureFailed{Err: msg.err})
		return m, cmd

	case captureEventMsg:
		switch ev := msg.ev.(type) {
		case capture.Level:
			m.level = m.level*0.6 + ev.RMS*0.4
		case capture.Tick:
			m.elapsed = ev.Elapsed
			if ev.Voice {
				m.noVoiceTicks = 0
			} else {
				m.noVoiceTicks++
			}
		case capture.Err:
			return m, tea.Batch(m.setStatus("warning: audio encoding error, see diagnostics log"), waitForCapture(msg.events))
		}
		return m, waitForCapture(msg.events)

	case captureClosedMsg:
		m.level = 0

	case extractionMsg:
		if msg.err != nil {
			beep.PlayError()
			cmd := m.applyEvent(workflow.ExtractionFailed{Err: msg.err})
			return m, cmd
		}
		m.copied = false
		m.speechHeard = msg.speech
		cmd := m.applyEvent(workflow.ExtractionSucceeded{Result: msg.result})
		return m, cmd

	case statusClearMsg:
		if msg.seq == m.statusSeq {
			m.status = ""
		}
	}
	return m, nil
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		m.view = (m.view + 1) % 3
		return m, nil
	case "1":
		m.view = viewDashboard
		return m, nil
	case "2":
		m.view = viewRecord
		return m, nil
	case "3":
		m.view = viewHistory
		return m, nil
	}

	switch m.view {
	case viewRecord:
		return m.handleRecordKey(msg)
	case viewHistory:
		return m.handleHistoryKey(msg)
	}
	return m, nil
}

func (m appModel) handleRecordKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "r":
		switch m.wf.Phase {
		case workflow.PhaseIdle:
			cmd := m.applyEvent(workflow.Start{})
			return m, cmd
		case workflow.PhaseRecording:
			cmd := m.applyEvent(workflow.Stop{})
			return m, cmd
		}
	case "s":
		cmd := m.applyEvent(workflow.Save{})
		return m, cmd
	case "d":
		cmd := m.applyEvent(workflow.Discard{})
		return m, cmd
	case "enter":
		cmd := m.applyEvent(workflow.Retry{})
		return m, cmd
	case "c":
		if m.wf.Phase == workflow.PhaseReview && m.wf.Draft != nil {
			if err := clipboard.WriteAll(m.wf.Draft.RawTranscription); err == nil {
				m.copied = true
			}
		}
	}
	return m, nil
}

func (m appModel) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.sessions)-1 {
			m.cursor++
		}
	case "enter":
		if len(m.sessions) == 0 {
			break
		}
		if m.expanded == m.cursor {
			m.expanded = -1
		} else {
			m.expanded = m.cursor
		}
	case "c":
		if m.cursor < len(m.sessions) {
			if err := clipboard.WriteAll(m.sessions[m.cursor].RawTranscription); err == nil {
				cmd := m.setStatus("transcription copied")
				return m, cmd
			}
		}
	case "x":
		if m.cursor >= len(m.sessions) {
			break
		}
		id := m.sessions[m.cursor].ID
		var cmd tea.Cmd
		if err := m.st.Delete(id); err != nil {
			cmd = m.setStatus("warning: session removed but write failed")
		} else {
			cmd = m.setStatus("session deleted")
		}
		m.sessions = m.st.List()
		if m.cursor >= len(m.sessions) && m.cursor > 0 {
			m.cursor--
		}
		m.expanded = -1
		return m, cmd
	}
	return m, nil
}

// applyEvent advances the workflow machine and turns the commands it
// emits into Bubble Tea commands.
func (m *appModel) applyEvent(ev workflow.Event) tea.Cmd {
	next, cmds := m.machine.Next(m.wf, ev)
	m.wf = next

	var stopOnly, extract bool
	var batch []tea.Cmd
	for _, c := range cmds {
		switch c := c.(type) {
		case workflow.StartCapture:
			batch = append(batch, m.startCapture())
		case workflow.StopCapture:
			stopOnly = true
		case workflow.RunExtraction:
			extract = true
		case workflow.PersistDraft:
			batch = append(batch, m.persist(c.Draft))
		case workflow.NavigateHistory:
			m.view = viewHistory
			m.cursor = 0
			m.expanded = -1
		}
	}
	if extract {
		// the stop and the extraction share one command so the encoded
		// audio can flow straight into the extractor
		batch = append(batch, m.stopAndExtract())
	} else if stopOnly {
		batch = append(batch, m.stopCapture())
	}
	return tea.Batch(batch...)
}

func (m *appModel) startCapture() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		events, err := ctrl.Start()
		if err != nil {
			return captureFailedMsg{err: err}
		}
		return captureStartedMsg{events: events}
	}
}

func (m *appModel) stopCapture() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		ctrl.Stop()
		return captureClosedMsg{}
	}
}

func (m *appModel) stopAndExtract() tea.Cmd {
	ctrl, ext := m.ctrl, m.ext
	return func() tea.Msg {
		res, err := ctrl.Stop()
		beep.PlayEnd()
		if err != nil {
			return extractionMsg{err: err}
		}
		result, err := ext.Extract(context.Background(), res.Audio, res.MIMEType)
		return extractionMsg{result: result, speech: res.SpeechDetected, err: err}
	}
}

func (m *appModel) persist(d store.Draft) tea.Cmd {
	var cmd tea.Cmd
	if _, err := m.st.Add(d); err != nil {
		cmd = m.setStatus("warning: session kept in memory, writing the file failed")
	} else {
		beep.PlaySaved()
		cmd = m.setStatus("session saved")
	}
	m.sessions = m.st.List()
	return cmd
}

func (m *appModel) setStatus(s string) tea.Cmd {
	m.status = s
	m.statusSeq++
	seq := m.statusSeq
	return tea.Tick(4*time.Second, func(time.Time) tea.Msg {
		return statusClearMsg{seq: seq}
	})
}

func waitForCapture(events <-chan capture.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return captureClosedMsg{}
		}
		return captureEventMsg{ev: ev, events: events}
	}
}

func (m appModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var body string
	switch m.view {
	case viewRecord:
		body = m.renderRecord()
	case viewHistory:
		body = m.renderHistory()
	default:
		body = m.renderDashboard()
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body = lipgloss.NewStyle().Width(m.width).Height(bodyHeight).Padding(0, 1).Render(body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m appModel) renderHeader() string {
	title := titleStyle.Render("voicefit")
	var tabs []string
	for i, v := range []view{viewDashboard, viewRecord, viewHistory} {
		label := fmt.Sprintf("%d %s", i+1, v)
		if v == m.view {
			tabs = append(tabs, tabActive.Render(label))
		} else {
			tabs = append(tabs, tabInactive.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, title, "  ", strings.Join(tabs, " ")) + "\n"
}

func (m appModel) renderFooter() string {
	var keys string
	switch m.view {
	case viewRecord:
		switch m.wf.Phase {
		case workflow.PhaseRecording:
			keys = helpKeyStyle.Render("r") + helpStyle.Render(" stop")
		case workflow.PhaseReview:
			keys = helpKeyStyle.Render("s") + helpStyle.Render(" save  ") +
				helpKeyStyle.Render("d") + helpStyle.Render(" discard  ") +
				helpKeyStyle.Render("c") + helpStyle.Render(" copy")
		case workflow.PhaseError:
			keys = helpKeyStyle.Render("enter") + helpStyle.Render(" retry  ") +
				helpKeyStyle.Render("d") + helpStyle.Render(" dismiss")
		default:
			keys = helpKeyStyle.Render("r") + helpStyle.Render(" record")
		}
	case viewHistory:
		keys = helpKeyStyle.Render("enter") + helpStyle.Render(" expand  ") +
			helpKeyStyle.Render("x") + helpStyle.Render(" delete  ") +
			helpKeyStyle.Render("c") + helpStyle.Render(" copy")
	default:
		keys = helpKeyStyle.Render("2") + helpStyle.Render(" record a workout")
	}
	keys += helpStyle.Render("  tab views  q quit")

	status := ""
	if m.status != "" {
		if strings.HasPrefix(m.status, "warning:") {
			status = errStyle.Render(m.status)
		} else {
			status = okStyle.Render(m.status)
		}
	}
	line := keys
	if status != "" {
		line = status + "  " + keys
	}
	return lipgloss.NewStyle().Width(m.width).Padding(0, 1).Render(line)
}

func (m appModel) renderDashboard() string {
	total := len(m.sessions)
	week := analytics.RecentCount(m.sessions, time.Now())

	cards := lipgloss.JoinHorizontal(lipgloss.Top,
		cardStyle.Render(fmt.Sprintf("%s\n%s", labelStyle.Render("Total sessions"), titleStyle.Render(fmt.Sprintf("%d", total)))),
		" ",
		cardStyle.Render(fmt.Sprintf("%s\n%s", labelStyle.Render("This week"), titleStyle.Render(fmt.Sprintf("%d", week)))),
	)

	var b strings.Builder
	b.WriteString(cards + "\n\n")

	trend := analytics.VolumeTrend(m.sessions)
	b.WriteString(labelStyle.Render("Workout volume (last 7 sessions)") + "\n")
	if len(trend) == 0 {
		b.WriteString(dimStyle.Render("  no sessions yet") + "\n")
	} else {
		maxVol := 0
		for _, p := range trend {
			if p.Volume > maxVol {
				maxVol = p.Volume
			}
		}
		for _, p := range trend {
			b.WriteString(fmt.Sprintf("  %s %s %d\n", dimStyle.Render(shortDate(p.Date)), barStyle.Render(bar(p.Volume, maxVol, 24)), p.Volume))
		}
	}
	b.WriteString("\n")

	top := analytics.TopExercises(m.sessions, 5)
	b.WriteString(labelStyle.Render("Top exercises") + "\n")
	if len(top) == 0 {
		b.WriteString(dimStyle.Render("  no exercises logged yet") + "\n")
	} else {
		nameW := 0
		for _, e := range top {
			if len(e.Name) > nameW {
				nameW = len(e.Name)
			}
		}
		maxCount := top[0].Count
		for _, e := range top {
			b.WriteString(fmt.Sprintf("  %-*s %s %d\n", nameW, e.Name, barStyle.Render(bar(e.Count, maxCount, 24)), e.Count))
		}
	}
	return b.String()
}

func (m appModel) renderRecord() string {
	var b strings.Builder

	switch m.wf.Phase {
	case workflow.PhaseIdle:
		b.WriteString(standbyStyle.Render("○ STANDBY") + "\n\n")
		b.WriteString(dimStyle.Render("Press r and describe your workout out loud.") + "\n")
		b.WriteString(dimStyle.Render("e.g. \"three sets of ten push ups and a 20 minute run\"") + "\n")

	case workflow.PhaseStarting:
		b.WriteString(standbyStyle.Render("… starting microphone") + "\n")

	case workflow.PhaseRecording:
		b.WriteString(recStyle.Render(fmt.Sprintf("● REC %ds", int(m.elapsed.Seconds()))) + "\n\n")
		b.WriteString(m.renderMeter(40) + "\n")
		if m.noVoiceTicks >= 3 {
			b.WriteString(errStyle.Render("⚠ no voice detected") + "\n")
		}

	case workflow.PhaseProcessing:
		dots := strings.Repeat(".", m.frame/8%4)
		b.WriteString(standbyStyle.Render("analyzing your workout"+dots) + "\n")

	case workflow.PhaseReview:
		b.WriteString(m.renderReview())

	case workflow.PhaseError:
		b.WriteString(errStyle.Render(m.wf.ErrMsg) + "\n")
	}
	return b.String()
}

func (m appModel) renderReview() string {
	d := m.wf.Draft
	if d == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Review session") + "\n\n")

	if !m.speechHeard {
		b.WriteString(errStyle.Render("⚠ little or no speech was heard in this recording") + "\n\n")
	}

	date := d.Date
	if date == "" {
		date = "today"
	}
	b.WriteString(labelStyle.Render("Date: ") + date + "\n\n")

	if len(d.Exercises) == 0 {
		b.WriteString(dimStyle.Render("No exercises recognized.") + "\n")
	} else {
		for _, ex := range d.Exercises {
			b.WriteString("  • " + fmtExercise(ex) + "\n")
		}
	}
	b.WriteString("\n" + labelStyle.Render("Heard:") + "\n")
	for _, line := range wrapText(d.RawTranscription, max(20, m.width-6)) {
		b.WriteString("  " + textStyle.Render(line) + "\n")
	}
	if m.copied {
		b.WriteString("  " + okStyle.Render("[✓ copied]") + "\n")
	}
	if d.Notes != "" {
		b.WriteString("\n" + labelStyle.Render("Notes: ") + d.Notes + "\n")
	}
	return b.String()
}

func (m appModel) renderHistory() string {
	if len(m.sessions) == 0 {
		return dimStyle.Render("No sessions saved yet. Press 2 to record one.")
	}

	var b strings.Builder
	for i, s := range m.sessions {
		marker := "  "
		line := fmt.Sprintf("%s  %d exercise(s)  %s", s.Date, len(s.Exercises), truncate(s.RawTranscription, 40))
		if i == m.cursor {
			marker = cursorStyle.Render("> ")
			line = cursorStyle.Render(line)
		} else {
			line = labelStyle.Render(line)
		}
		b.WriteString(marker + line + "\n")

		if i == m.expanded {
			for _, ex := range s.Exercises {
				b.WriteString("      • " + fmtExercise(ex) + "\n")
			}
			for _, l := range wrapText(s.RawTranscription, max(20, m.width-8)) {
				b.WriteString("      " + textStyle.Render(l) + "\n")
			}
			if s.Notes != "" {
				b.WriteString("      " + dimStyle.Render("notes: "+s.Notes) + "\n")
			}
		}
	}
	return b.String()
}

func (m appModel) renderMeter(width int) string {
	level := m.level * 3 // full scale is rare with speech
	if level > 1 {
		level = 1
	}
	filled := int(level * float64(width))
	var b strings.Builder
	for i := 0; i < width; i++ {
		switch {
		case i >= filled:
			b.WriteString(dimStyle.Render("░"))
		case i > width*3/4:
			b.WriteString(meterHotStyle.Render("█"))
		default:
			b.WriteString(meterOnStyle.Render("█"))
		}
	}
	return b.String()
}

func fmtExercise(ex store.Exercise) string {
	parts := []string{ex.Name}
	if ex.Sets != nil {
		parts = append(parts, fmt.Sprintf("%d sets", *ex.Sets))
	}
	if ex.Reps != nil {
		parts = append(parts, fmt.Sprintf("%d reps", *ex.Reps))
	}
	if ex.Weight != nil {
		parts = append(parts, fmt.Sprintf("%g kg", *ex.Weight))
	}
	if ex.DurationMin != nil {
		parts = append(parts, fmt.Sprintf("%g min", *ex.DurationMin))
	}
	return strings.Join(parts, " · ")
}

func bar(value, maxValue, width int) string {
	if maxValue <= 0 || value <= 0 {
		return ""
	}
	n := value * width / maxValue
	if n == 0 {
		n = 1
	}
	return strings.Repeat("█", n)
}

func shortDate(date string) string {
	if len(date) == 10 {
		return date[5:]
	}
	return date
}

// truncate and wrapText cut on rune boundaries; transcriptions are
// frequently non-ASCII.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	runes := []rune(text)
	var lines []string
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, string(runes[:splitAt]))
		runes = runes[splitAt:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return lines
}
