package main

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/mastermechanic/mmserver/client"
	"github.com/mastermechanic/mmserver/models"
	"github.com/mastermechanic/mmserver/rag"
	"github.com/muesli/reflow/wordwrap"
)

type ChatCommand struct {
	ServerURL string `help:"The URL of the MasterMechanic server." env:"MM_SERVER_URL" default:"http://localhost:9020"`
	Source    string `help:"The source reported to the server." default:"cli"`
}

func (c ChatCommand) Run(ctx context.Context) (err error) {
	mmc := client.New(c.ServerURL).WithSource(c.Source)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	toLLM := make(chan string)
	fromLLM := make(chan []rag.Turn)
	errs := make(chan error)

	go func() {
		var req models.ChatPostRequest
		for {
			var text string
			select {
			case text = <-toLLM:
			case <-ctx.Done():
				return
			}
			req.Messages = append(req.Messages, newTurn(rag.RoleUser, text))
			publish(ctx, fromLLM, slices.Clone(req.Messages))

			answer := newTurn(rag.RoleAssistant, "")
			buf := new(bytes.Buffer)
			f := func(ctx context.Context, chunk []byte) error {
				if _, err := buf.Write(chunk); err != nil {
					return err
				}
				answer.Content = buf.String()
				publish(ctx, fromLLM, append(slices.Clone(req.Messages), answer))
				return nil
			}
			sinceIndex, err := mmc.ChatPost(ctx, req, f)
			if err != nil {
				publish(ctx, errs, err)
				// Drop the unanswered question so it can be asked again.
				req.Messages = req.Messages[:len(req.Messages)-1]
				continue
			}
			req.SinceIndex = sinceIndex
			req.Messages = append(req.Messages, answer)
		}
	}()

	p := tea.NewProgram(newModel(ctx, toLLM, fromLLM, errs))
	if _, err = p.Run(); err != nil {
		return err
	}
	return nil
}

func publish[T any](ctx context.Context, ch chan<- T, v T) {
	select {
	case ch <- v:
	case <-ctx.Done():
	}
}

func newTurn(role rag.Role, content string) rag.Turn {
	return rag.Turn{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Dracula color scheme.
var (
	Background  = lipgloss.Color("#282a36")
	CurrentLine = lipgloss.Color("#44475a")
	Cyan        = lipgloss.Color("#8be9fd")
	Pink        = lipgloss.Color("#ff79c6")
	Purple      = lipgloss.Color("#bd93f9")
	Red         = lipgloss.Color("#ff5555")
)

var headerStyle = lipgloss.NewStyle().Background(CurrentLine).Foreground(Purple).Bold(true).Margin(1).Padding(1, 2)

const header = "🔧 MasterMechanic\n\nDescribe the equipment and the symptoms."

var errorStyle = lipgloss.NewStyle().Foreground(Red).Margin(0, 1)

type model struct {
	viewport viewport.Model
	textarea textarea.Model
	turns    []rag.Turn
	err      error
	ctx      context.Context

	toLLM   chan string
	fromLLM chan []rag.Turn
	errors  chan error
}

func newModel(ctx context.Context, toLLM chan string, fromLLM chan []rag.Turn, errors chan error) model {
	ta := textarea.New()
	ta.Placeholder = "Send a message..."
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 2000

	ta.SetHeight(3)

	// Remove cursor line styling.
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent(headerStyle.Render(header))

	ta.KeyMap.InsertNewline.SetEnabled(false)

	return model{
		ctx:      ctx,
		textarea: ta,
		viewport: vp,
		fromLLM:  fromLLM,
		toLLM:    toLLM,
		errors:   errors,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		m.subscribeToFromLLM(),
		m.subscribeToErrors(),
	)
}

func (m model) subscribeToFromLLM() tea.Cmd {
	return func() tea.Msg {
		select {
		case x := <-m.fromLLM:
			return x
		case <-m.ctx.Done():
			return nil
		}
	}
}

func (m model) subscribeToErrors() tea.Cmd {
	return func() tea.Msg {
		select {
		case x := <-m.errors:
			return x
		case <-m.ctx.Done():
			return nil
		}
	}
}

var roleToStyle = map[rag.Role]lipgloss.Style{
	rag.RoleUser:      lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Pink),
	rag.RoleAssistant: lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Cyan),
}

var roleToIcon = map[rag.Role]string{
	rag.RoleUser:      "🧰",
	rag.RoleAssistant: "🔧",
}

func formatTurn(t rag.Turn, width int) string {
	style, ok := roleToStyle[t.Role]
	if !ok {
		return t.Content
	}
	icon, ok := roleToIcon[t.Role]
	if !ok {
		icon = "🤷"
	}
	wrapped := wordwrap.String(strings.TrimSpace(icon+" "+t.Content), width)
	return style.Render(wrapped)
}

func (m model) render() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(header))
	sb.WriteString("\n")
	width := max(m.viewport.Width-6, 20)
	for _, t := range m.turns {
		sb.WriteString(formatTurn(t, width))
		sb.WriteString("\n")
	}
	if m.err != nil {
		sb.WriteString(errorStyle.Render("error: " + m.err.Error()))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case error:
		m.err = msg
		m.viewport.SetContent(m.render())
		m.viewport.GotoBottom()
		return m, m.subscribeToErrors()
	case []rag.Turn:
		m.turns = msg
		m.err = nil
		m.viewport.SetContent(m.render())
		m.viewport.GotoBottom()
		return m, m.subscribeToFromLLM()
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.textarea.Height() - 3
		m.textarea.SetWidth(msg.Width)
		m.viewport.SetContent(m.render())
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			v := strings.TrimSpace(m.textarea.Value())
			if v == "" {
				// Don't send empty messages.
				return m, nil
			}
			m.textarea.Reset()
			return m, m.send(v)
		default:
			// Send all other keypresses to the textarea.
			var cmd tea.Cmd
			m.textarea, cmd = m.textarea.Update(msg)
			return m, cmd
		}

	case cursor.BlinkMsg:
		// Textarea should also process cursor blinks.
		var cmd tea.Cmd
		m.textarea, cmd = m.textarea.Update(msg)
		return m, cmd

	default:
		return m, nil
	}
}

// send hands the message to the chat goroutine without blocking the UI loop.
func (m model) send(text string) tea.Cmd {
	return func() tea.Msg {
		select {
		case m.toLLM <- text:
		case <-m.ctx.Done():
		}
		return nil
	}
}

func (m model) View() string {
	return fmt.Sprintf("%s\n\n%s",
		m.viewport.View(),
		m.textarea.View(),
	) + "\n\n"
}
