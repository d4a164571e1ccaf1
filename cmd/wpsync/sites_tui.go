package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/wpsync/wpsync/internal/config"
)

// Form field indexes. Order is the order the user walks through them.
const (
	fieldName = iota
	fieldLocalPath
	fieldRepoPath
	fieldHost
	fieldPort
	fieldUser
	fieldRemotePath
	fieldSiteURL
	fieldScopes
	fieldCount
)

const (
	txtFormTitle  = "New site"
	txtFormHelp   = "'Enter' next field · 'Shift+Tab' previous · 'Esc'/'Ctrl+C' abort"
	txtFormSubmit = "Press 'Enter' to save the site."
)

var (
	formTitleStyle  = cyan.Bold(true)
	formLabelStyle  = lightGray
	formFocusStyle  = green
	formHelpStyle   = gray
	formErrorStyle  = red
	formAccentStyle = gray
)

type formField struct {
	label    string
	input    textinput.Model
	optional bool
}

// siteFormModel walks the user through one site profile, field by
// field. Values land back in the profile passed to runSiteForm.
type siteFormModel struct {
	fields    [fieldCount]formField
	focus     int
	errorText string
	submitted bool
}

func newSiteFormModel(site *config.SiteProfile) siteFormModel {
	mk := func(label, placeholder, value string, optional bool) formField {
		in := textinput.New()
		in.Placeholder = placeholder
		in.SetValue(value)
		in.CharLimit = 256
		in.Width = 48
		in.PromptStyle = formFocusStyle
		in.PlaceholderStyle = formAccentStyle
		return formField{label: label, input: in, optional: optional}
	}

	port := ""
	if site.Remote.Port != 0 {
		port = strconv.Itoa(site.Remote.Port)
	}

	m := siteFormModel{}
	m.fields[fieldName] = mk("Site name", "my-site", site.Name, false)
	m.fields[fieldLocalPath] = mk("Local tree root", "~/sites/my-site", site.LocalPath, false)
	m.fields[fieldRepoPath] = mk("Git repository root (blank: the local root)", "", site.RepoPath, true)
	m.fields[fieldHost] = mk("Remote host", "example.com", site.Remote.Host, false)
	m.fields[fieldPort] = mk("Remote port (blank: 22)", "22", port, true)
	m.fields[fieldUser] = mk("Remote user", "deploy", site.Remote.User, false)
	m.fields[fieldRemotePath] = mk("Remote tree root", "/var/www/my-site", site.Remote.Path, false)
	m.fields[fieldSiteURL] = mk("Public site URL (blank: none)", "https://example.com", site.SiteURL, true)
	m.fields[fieldScopes] = mk("Pull scope paths, comma separated (blank: none)",
		"wp-content/uploads", strings.Join(site.PullScopePaths, ", "), true)
	m.fields[m.focus].input.Focus()
	return m
}

func (m siteFormModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m siteFormModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit

	case tea.KeyShiftTab, tea.KeyUp:
		if m.focus > 0 {
			m.errorText = ""
			return m.setFocus(m.focus - 1)
		}
		return m, nil

	case tea.KeyTab, tea.KeyDown:
		if m.focus < fieldCount-1 {
			m.errorText = ""
			return m.setFocus(m.focus + 1)
		}
		return m, nil

	case tea.KeyEnter:
		return m.advance()
	}

	m.errorText = ""
	var cmd tea.Cmd
	m.fields[m.focus].input, cmd = m.fields[m.focus].input.Update(msg)
	return m, cmd
}

// advance validates the focused field and moves on, submitting from
// the last one.
func (m siteFormModel) advance() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.fields[m.focus].input.Value())
	if value == "" && !m.fields[m.focus].optional {
		m.errorText = "this field is required"
		return m, nil
	}
	if m.focus == fieldPort && value != "" {
		if _, err := strconv.Atoi(value); err != nil {
			m.errorText = "the port must be a number"
			return m, nil
		}
	}

	if m.focus == fieldCount-1 {
		m.submitted = true
		return m, tea.Quit
	}
	return m.setFocus(m.focus + 1)
}

func (m siteFormModel) setFocus(i int) (tea.Model, tea.Cmd) {
	m.fields[m.focus].input.Blur()
	m.focus = i
	m.fields[m.focus].input.Focus()
	return m, textinput.Blink
}

func (m siteFormModel) View() string {
	var b strings.Builder
	b.WriteString(formTitleStyle.Render(txtFormTitle) + "\n\n")

	for i := range m.fields {
		label := formLabelStyle.Render(m.fields[i].label)
		if i == m.focus {
			label = formFocusStyle.Render(m.fields[i].label)
		}
		b.WriteString(label + "\n")
		b.WriteString(m.fields[i].input.View() + "\n")
	}

	if m.errorText != "" {
		b.WriteString("\n" + formErrorStyle.Render(m.errorText) + "\n")
	}
	if m.focus == fieldCount-1 {
		b.WriteString("\n" + formAccentStyle.Render(txtFormSubmit) + "\n")
	}
	b.WriteString("\n" + formHelpStyle.Render(txtFormHelp) + "\n")
	return b.String()
}

func (m siteFormModel) value(i int) string {
	return strings.TrimSpace(m.fields[i].input.Value())
}

// runSiteForm shows the interactive site form, pre-filled from the
// profile, and writes the answers back. Returns false when the user
// aborted instead of submitting.
func runSiteForm(site *config.SiteProfile) (bool, error) {
	final, err := tea.NewProgram(newSiteFormModel(site)).Run()
	if err != nil {
		return false, fmt.Errorf("site form: %w", err)
	}

	m, ok := final.(siteFormModel)
	if !ok || !m.submitted {
		return false, nil
	}

	site.Name = m.value(fieldName)
	site.LocalPath = m.value(fieldLocalPath)
	site.RepoPath = m.value(fieldRepoPath)
	site.Remote.Scheme = config.SchemeSFTP
	site.Remote.Host = m.value(fieldHost)
	site.Remote.User = m.value(fieldUser)
	site.Remote.Path = m.value(fieldRemotePath)
	site.SiteURL = m.value(fieldSiteURL)

	site.Remote.Port = 0
	if port := m.value(fieldPort); port != "" {
		site.Remote.Port, _ = strconv.Atoi(port)
	}

	site.PullScopePaths = nil
	for _, scope := range strings.Split(m.value(fieldScopes), ",") {
		if scope = strings.TrimSpace(scope); scope != "" {
			site.PullScopePaths = append(site.PullScopePaths, scope)
		}
	}
	return true, nil
}
