package tui

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"reviewgate/internal/model"
	"reviewgate/internal/review"
)

// NewTokenURL opens GitHub's token form with the scope needed to post statuses.
const NewTokenURL = "https://github.com/settings/tokens/new?scopes=repo:status&description=Manual%20Artifact%20Review%20Status"

// — state ———————————————————————————————————————————————————————————————————

type appState int

const (
	stateNormal appState = iota
	stateDescription
)

// — styles ——————————————————————————————————————————————————————————————————

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	dimStyle  = lipgloss.NewStyle().Faint(true)
	boldStyle = lipgloss.NewStyle().Bold(true)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	helpStyle = lipgloss.NewStyle().
			Faint(true).
			PaddingLeft(2)

	labelStyle = lipgloss.NewStyle().Faint(true)

	bodyStyle = lipgloss.NewStyle().Padding(1, 2)

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("205")).
			Padding(1, 3).
			Width(64)
)

// — spinner —————————————————————————————————————————————————————————————————

var spinnerFrames = []string{"|", "/", "-", "\\"}

type tickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// — messages ————————————————————————————————————————————————————————————————

// changedMsg reports that the review model changed.
type changedMsg struct{}

type opDoneMsg struct {
	op  string
	err error
}

type flashMsg struct {
	text string
	err  error
}

// — model ———————————————————————————————————————————————————————————————————

// Options configure the TUI.
type Options struct {
	// GlamourStyle is a glamour standard style name ("dark", "light",
	// "notty", ...) used for the review message.
	GlamourStyle string
}

// Model is the bubbletea view of a review session.
type Model struct {
	ctx         context.Context
	review      *review.Model
	changes     <-chan struct{}
	unsubscribe func()
	snap        review.Snapshot
	opts        Options

	width  int
	height int

	state        appState
	tokenInput   textinput.Model
	descInput    textinput.Model
	inputErr     string
	err          error
	flash        string
	message      string
	spinnerFrame int
}

// New returns a TUI bound to r. Operations run with ctx.
func New(ctx context.Context, r *review.Model, opts Options) Model {
	if opts.GlamourStyle == "" {
		opts.GlamourStyle = "notty"
	}

	ti := textinput.New()
	ti.Placeholder = "Your GitHub token"
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '•'
	ti.CharLimit = 255

	di := textinput.New()
	di.Placeholder = "e.g. header overlaps the nav on mobile"
	di.CharLimit = 1024

	changes, unsubscribe := r.Subscribe()

	m := Model{
		ctx:         ctx,
		review:      r,
		changes:     changes,
		unsubscribe: unsubscribe,
		snap:        r.Snapshot(),
		opts:        opts,
		tokenInput:  ti,
		descInput:   di,
	}
	m.message = renderMessage(r.Config().ReviewMessage, opts.GlamourStyle, 80)
	if m.snap.TokenDialogOpen {
		m.tokenInput.Focus()
	}
	return m
}

// — commands ————————————————————————————————————————————————————————————————

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// quit ends the review subscription and stops the program.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.unsubscribe()
	return m, tea.Quit
}

func refreshCmd(ctx context.Context, r *review.Model) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: "refresh", err: r.Refresh(ctx)}
	}
}

func setStatusCmd(ctx context.Context, r *review.Model, kind model.Kind) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: "set " + kind.String(), err: r.SetStatus(ctx, kind)}
	}
}

func setCredentialCmd(ctx context.Context, r *review.Model, token *string) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: "token", err: r.SetCredential(ctx, token)}
	}
}

func openURLCmd(url string) tea.Cmd {
	return func() tea.Msg {
		var cmd *exec.Cmd
		switch runtime.GOOS {
		case "darwin":
			cmd = exec.Command("open", url)
		case "windows":
			cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
		default:
			cmd = exec.Command("xdg-open", url)
		}
		if err := cmd.Run(); err != nil {
			return flashMsg{err: fmt.Errorf("open %s: %w", url, err)}
		}
		return flashMsg{text: "opened in browser"}
	}
}

func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		if err := clipboard.WriteAll(text); err != nil {
			return flashMsg{err: fmt.Errorf("copy to clipboard: %w", err)}
		}
		return flashMsg{text: "copied to clipboard"}
	}
}

// renderMessage renders the review message as markdown, falling back to
// the raw text.
func renderMessage(text, style string, width int) string {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.Trim(out, "\n")
}

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForChange(m.changes),
		refreshCmd(m.ctx, m.review),
		tickCmd(),
		textinput.Blink,
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.snap = m.review.Snapshot()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.message = renderMessage(m.review.Config().ReviewMessage, m.opts.GlamourStyle, m.width-4)
		return m, nil

	case tickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, tickCmd()

	case changedMsg:
		if m.snap.TokenDialogOpen && !m.tokenInput.Focused() {
			m.tokenInput.Focus()
		}
		return m, waitForChange(m.changes)

	case opDoneMsg:
		m.err = msg.err
		if msg.err == nil {
			m.flash = ""
		}
		return m, nil

	case flashMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.flash = msg.text
		return m, nil
	}

	switch {
	case m.snap.TokenDialogOpen:
		return m.updateToken(msg)
	case m.state == stateDescription:
		return m.updateDescription(msg)
	default:
		return m.updateNormal(msg)
	}
}

func (m Model) updateNormal(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	cfg := m.review.Config()
	switch key.String() {
	case "ctrl+c", "q":
		return m.quit()
	case "r":
		return m, refreshCmd(m.ctx, m.review)
	case "a":
		return m, setStatusCmd(m.ctx, m.review, model.KindAccepted)
	case "x":
		return m, setStatusCmd(m.ctx, m.review, model.KindRejected)
	case "p":
		return m, setStatusCmd(m.ctx, m.review, model.KindPending)
	case "e":
		m.state = stateDescription
		m.inputErr = ""
		m.descInput.SetValue(m.snap.Description())
		m.descInput.CursorEnd()
		m.descInput.Focus()
		return m, textinput.Blink
	case "t":
		m.inputErr = ""
		m.tokenInput.Reset()
		m.tokenInput.Focus()
		m.review.OpenTokenDialog()
		m.snap = m.review.Snapshot()
		return m, textinput.Blink
	case "L":
		return m, setCredentialCmd(m.ctx, m.review, nil)
	case "o":
		return m, openURLCmd(cfg.SubjectURL)
	case "y":
		return m, copyCmd(cfg.SubjectURL)
	}
	return m, nil
}

func (m Model) updateToken(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.tokenInput.Focused() {
		m.tokenInput.Focus()
	}
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			return m.quit()
		case "esc":
			if !m.review.CloseTokenDialog() {
				m.inputErr = "a token is required to post statuses"
				return m, nil
			}
			m.inputErr = ""
			m.tokenInput.Reset()
			m.tokenInput.Blur()
			m.snap = m.review.Snapshot()
			return m, nil
		case "ctrl+o":
			return m, openURLCmd(NewTokenURL)
		case "enter":
			token := strings.TrimSpace(m.tokenInput.Value())
			if token == "" {
				m.inputErr = "token cannot be empty"
				return m, nil
			}
			m.inputErr = ""
			m.tokenInput.Reset()
			m.tokenInput.Blur()
			return m, setCredentialCmd(m.ctx, m.review, &token)
		}
	}
	var cmd tea.Cmd
	m.tokenInput, cmd = m.tokenInput.Update(msg)
	return m, cmd
}

func (m Model) updateDescription(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			return m.quit()
		case "esc":
			m.state = stateNormal
			m.descInput.Blur()
			return m, nil
		case "enter":
			m.review.SetDescriptionDraft(m.descInput.Value())
			m.snap = m.review.Snapshot()
			m.state = stateNormal
			m.descInput.Blur()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.descInput, cmd = m.descInput.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	base := lipgloss.JoinVertical(lipgloss.Left, m.renderBody(), m.renderHelp())

	switch {
	case m.snap.TokenDialogOpen:
		return m.renderTokenModal()
	case m.state == stateDescription:
		return m.renderDescriptionModal()
	}
	return base
}

// — layout helpers ——————————————————————————————————————————————————————————

func (m Model) renderBody() string {
	cfg := m.review.Config()

	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Artifact review") + "  " +
		dimStyle.Render(fmt.Sprintf("%s/%s@%s", cfg.Owner, cfg.Repo, shortSHA(cfg.CommitSHA))) + "\n\n")
	b.WriteString(m.message + "\n\n")
	b.WriteString(row("Subject  ", cfg.SubjectURL))
	b.WriteString(row("Context  ", cfg.Context))
	b.WriteString(dimStyle.Render(strings.Repeat("─", max(m.width-4, 1))) + "\n\n")
	b.WriteString(m.renderStatus())

	if m.err != nil {
		b.WriteString("\n" + errStyle.Render("Error: "+m.err.Error()) + "\n")
	} else if m.flash != "" {
		b.WriteString("\n" + okStyle.Render(m.flash) + "\n")
	}
	return bodyStyle.Render(b.String())
}

func (m Model) renderStatus() string {
	row := func(lbl, val string) string {
		return labelStyle.Render(lbl) + val + "\n"
	}

	switch m.snap.Remote.Phase {
	case model.PhaseNoData:
		return dimStyle.Render("No token — press t to enter one") + "\n"
	case model.PhaseLoading:
		return warnStyle.Render(spinnerFrames[m.spinnerFrame]+" Loading status…") + "\n"
	}

	st := m.snap.Remote.Status
	var b strings.Builder
	b.WriteString(row("Status   ", stateLabel(st.State)))

	desc := m.snap.Description()
	if desc == "" {
		desc = dimStyle.Render("—")
	}
	if m.snap.Draft != nil {
		desc += " " + warnStyle.Render("(edited)")
	}
	b.WriteString(row("Message  ", desc))

	target := st.TargetURL
	if target == "" {
		target = dimStyle.Render("—")
	}
	b.WriteString(row("Target   ", target))
	return b.String()
}

func stateLabel(s model.State) string {
	switch s {
	case model.StateSuccess:
		return okStyle.Render("✅ accepted")
	case model.StateError:
		return errStyle.Render("❌ rejected")
	case model.StateFailure:
		return errStyle.Render("❌ failed")
	case model.StatePending:
		return warnStyle.Render("⏳ pending")
	default:
		return dimStyle.Render("— no status")
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func (m Model) renderHelp() string {
	var text string
	switch {
	case m.snap.TokenDialogOpen:
		text = "Enter save   Ctrl+O create token   Esc cancel"
	case m.state == stateDescription:
		text = "Enter keep   Esc discard"
	default:
		text = "a accept   x reject   p pending   e edit message   o open   y copy   r refresh   t token   L forget token   q quit"
	}
	sep := dimStyle.Render(strings.Repeat("─", m.width))
	return sep + "\n" + helpStyle.Render(text)
}

func (m Model) renderTokenModal() string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("GitHub Token") + "\n\n")
	b.WriteString("Please enter a personal access token\n")
	b.WriteString(m.tokenInput.View() + "\n")
	if m.inputErr != "" {
		b.WriteString("\n" + errStyle.Render(m.inputErr) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errStyle.Render(m.err.Error()) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Needs the repo:status scope · Ctrl+O creates a new token"))

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}

func (m Model) renderDescriptionModal() string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("Status Message") + "\n\n")
	b.WriteString(dimStyle.Render(m.review.Config().Context) + "\n\n")
	b.WriteString(m.descInput.View() + "\n")
	if m.inputErr != "" {
		b.WriteString("\n" + errStyle.Render(m.inputErr) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Sent with the next accept · reject · pending"))

	modal := modalStyle.Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal,
		lipgloss.WithWhitespaceBackground(lipgloss.Color("0")),
	)
}
