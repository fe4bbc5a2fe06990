package ui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/murmur/internal/api"
	"github.com/five82/murmur/internal/validate"
)

// promptKind identifies what the input line is collecting.
type promptKind int

const (
	promptNone promptKind = iota
	promptCompose
	promptComment
	promptEdit
	promptFindUser
	promptBio
	promptLoginUser
	promptLoginPassword
	promptOTP
	promptRegisterUser
	promptRegisterEmail
	promptRegisterPassword
	promptRegisterConfirm
	promptSetupCode
)

var promptLabels = map[promptKind]string{
	promptCompose:          "New post",
	promptComment:          "Comment",
	promptEdit:             "Edit",
	promptFindUser:         "Username",
	promptBio:              "Bio",
	promptLoginUser:        "Username",
	promptLoginPassword:    "Password",
	promptOTP:              "Code",
	promptRegisterUser:     "Choose a username",
	promptRegisterEmail:    "Email",
	promptRegisterPassword: "Password",
	promptRegisterConfirm:  "Confirm password",
	promptSetupCode:        "Authenticator code",
}

// prompt is the single-line input shown in the footer. Multi-step forms
// keep earlier answers in fields.
type prompt struct {
	kind   promptKind
	input  textinput.Model
	postID string
	fields map[promptKind]string
}

func (p prompt) active() bool {
	return p.kind != promptNone
}

func secret(kind promptKind) bool {
	switch kind {
	case promptLoginPassword, promptRegisterPassword, promptRegisterConfirm:
		return true
	}
	return false
}

// openPrompt shows the input line for kind, prefilled with value.
func (m *Model) openPrompt(kind promptKind, postID, value string) tea.Cmd {
	ti := textinput.New()
	ti.Prompt = promptLabels[kind] + ": "
	ti.Width = m.width - 4
	if secret(kind) {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	ti.SetValue(value)
	ti.CursorEnd()

	m.prompt.kind = kind
	m.prompt.postID = postID
	m.prompt.input = ti
	if m.prompt.fields == nil {
		m.prompt.fields = make(map[promptKind]string)
	}
	return m.prompt.input.Focus()
}

func (m *Model) closePrompt() {
	m.prompt.kind = promptNone
	m.prompt.postID = ""
	m.prompt.input.Blur()
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit
	case key.Matches(msg, m.keys.Escape):
		if m.prompt.kind == promptSetupCode {
			m.status = "Two-factor setup postponed."
		}
		m.closePrompt()
		m.prompt.fields = make(map[promptKind]string)
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		return m.submitPrompt()
	}
	var cmd tea.Cmd
	m.prompt.input, cmd = m.prompt.input.Update(msg)
	return m, cmd
}

// submitPrompt acts on the entered value. Multi-step forms advance to their
// next field; everything else runs as a command.
func (m Model) submitPrompt() (tea.Model, tea.Cmd) {
	kind, postID := m.prompt.kind, m.prompt.postID
	value := m.prompt.input.Value()
	fields := m.prompt.fields
	m.closePrompt()

	switch kind {
	case promptCompose:
		compose := m.compose
		return m, func() tea.Msg { return actionMsg{err: compose.Submit(value)} }

	case promptComment:
		detail := m.detail
		if detail == nil {
			return m, nil
		}
		return m, func() tea.Msg {
			_, err := detail.AddComment(value)
			return actionMsg{err: err}
		}

	case promptEdit:
		a := m.actions()
		if a == nil {
			return m, nil
		}
		return m, func() tea.Msg { return actionMsg{err: a.Edit(postID, value)} }

	case promptFindUser:
		return m, m.openUser(value)

	case promptBio:
		return m, m.bioCmd(value)

	case promptLoginUser:
		fields[promptLoginUser] = value
		return m, m.openPrompt(promptLoginPassword, "", "")

	case promptLoginPassword:
		form := validate.Login{Username: fields[promptLoginUser], Password: value}
		clear(fields)
		return m, m.signInCmd(form)

	case promptOTP:
		return m, m.verifyCmd(value)

	case promptRegisterUser:
		fields[promptRegisterUser] = value
		return m, m.openPrompt(promptRegisterEmail, "", "")

	case promptRegisterEmail:
		fields[promptRegisterEmail] = value
		return m, m.openPrompt(promptRegisterPassword, "", "")

	case promptRegisterPassword:
		fields[promptRegisterPassword] = value
		return m, m.openPrompt(promptRegisterConfirm, "", "")

	case promptRegisterConfirm:
		form := validate.Register{
			Username:        fields[promptRegisterUser],
			Email:           fields[promptRegisterEmail],
			Password:        fields[promptRegisterPassword],
			ConfirmPassword: value,
		}
		clear(fields)
		return m, m.registerCmd(form)

	case promptSetupCode:
		return m, m.confirmSetupCmd(value)
	}
	return m, nil
}

// sessionMsg reports the outcome of a session command.
type sessionMsg struct {
	status string
	err    error
	// next reopens the input line, for example to ask for a code.
	next promptKind
	// changed is set when the signed-in identity changed.
	changed bool
}

func (m Model) handleSession(msg sessionMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.err != nil:
		m.status = sessionError(msg.err)
	case msg.status != "":
		m.status = msg.status
	}

	var cmds []tea.Cmd
	if msg.changed {
		m.resetScreens()
		cmds = append(cmds, m.loadCmd(ViewFeed))
	}
	if msg.next != promptNone {
		cmds = append(cmds, m.openPrompt(msg.next, "", ""))
	}
	return m, tea.Batch(cmds...)
}

func sessionError(err error) string {
	if ve, ok := validate.AsError(err); ok {
		return ve.Error()
	}
	if api.IsUnauthorized(err) {
		return "Invalid credentials."
	}
	return api.Message(err)
}

func (m Model) signInCmd(form validate.Login) tea.Cmd {
	s, ctx := m.session, m.ctx
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		result, err := s.SignIn(ctx, form)
		if err != nil {
			return sessionMsg{err: err}
		}
		if result.RequiresOTP {
			return sessionMsg{status: "Enter the code from your authenticator app.", next: promptOTP}
		}
		return signedInMsg(s.Identity())
	}
}

func (m Model) verifyCmd(code string) tea.Cmd {
	s, ctx := m.session, m.ctx
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		if err := s.VerifySecondFactor(ctx, code); err != nil {
			if _, ok := validate.AsError(err); ok || api.IsUnauthorized(err) {
				return sessionMsg{err: err, next: promptOTP}
			}
			return sessionMsg{err: err}
		}
		return signedInMsg(s.Identity())
	}
}

func (m Model) registerCmd(form validate.Register) tea.Cmd {
	s, ctx, logger := m.session, m.ctx, m.logger
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		if err := s.Register(ctx, form); err != nil {
			return sessionMsg{err: err}
		}
		setup, ok := s.PendingSetup()
		if !ok {
			return signedInMsg(s.Identity())
		}
		logger.Info("two-factor setup started", "uri", setup.URI)
		return sessionMsg{
			status:  "Add this key to your authenticator: " + setup.Secret,
			next:    promptSetupCode,
			changed: true,
		}
	}
}

func (m Model) confirmSetupCmd(code string) tea.Cmd {
	s := m.session
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		if err := s.ConfirmSetup(code); err != nil {
			return sessionMsg{err: err, next: promptSetupCode}
		}
		if err := s.CompleteSetup(); err != nil {
			return sessionMsg{err: err}
		}
		return sessionMsg{status: "Two-factor authentication is ready."}
	}
}

func (m Model) logoutCmd() tea.Cmd {
	s, ctx := m.session, m.ctx
	if s == nil || !s.IsAuthenticated() {
		return nil
	}
	return func() tea.Msg {
		if err := s.Logout(ctx); err != nil {
			return sessionMsg{err: err, changed: true}
		}
		return sessionMsg{status: "Logged out.", changed: true}
	}
}

func (m Model) bioCmd(bio string) tea.Cmd {
	s, ctx := m.session, m.ctx
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		if err := s.UpdateBio(ctx, bio); err != nil {
			return sessionMsg{err: err}
		}
		return sessionMsg{status: "Bio updated."}
	}
}

func signedInMsg(user api.User, ok bool) sessionMsg {
	if !ok {
		return sessionMsg{status: "Signed in.", changed: true}
	}
	return sessionMsg{status: "Signed in as @" + user.Username + ".", changed: true}
}
