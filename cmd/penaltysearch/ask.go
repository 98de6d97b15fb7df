package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/a-h/penaltysearch/client"
	"github.com/a-h/penaltysearch/models"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

type AskCommand struct {
	ServerURL    string `help:"The URL of the penalty search server." env:"PENALTYSEARCH_URL" default:"http://localhost:9020"`
	ServerAPIKey string `help:"The API key for the penalty search server." env:"PENALTYSEARCH_API_KEY" default:""`
	LogLevel     string `help:"The log level to use." env:"LOG_LEVEL" default:"info"`
}

func (c AskCommand) Run(ctx context.Context) (err error) {
	psc := client.New(c.ServerURL, c.ServerAPIKey)
	if err = psc.Health(ctx); err != nil {
		return fmt.Errorf("server is not available: %w", err)
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(80))
	if err != nil {
		return fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	p := tea.NewProgram(newModel(ctx, psc, renderer), tea.WithContext(ctx))
	if _, err = p.Run(); err != nil {
		return err
	}
	return nil
}

// Dracula color scheme.
var (
	Background  = lipgloss.Color("#282a36")
	CurrentLine = lipgloss.Color("#44475a")
	Comment     = lipgloss.Color("#6272a4")
	Pink        = lipgloss.Color("#ff79c6")
	Purple      = lipgloss.Color("#bd93f9")
	Red         = lipgloss.Color("#ff5555")
	Yellow      = lipgloss.Color("#f1fa8c")
)

var headerStyle = lipgloss.NewStyle().Background(CurrentLine).Foreground(Purple).Bold(true).Margin(1).Padding(1)

const header = "⚖️  金管會裁罰案件查詢系統\n\n輸入問題後按 Enter 查詢，Esc 離開。"

var (
	questionStyle = lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Pink)
	pendingStyle  = lipgloss.NewStyle().Margin(1).MarginBottom(0).Foreground(Comment)
	warningStyle  = lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Yellow)
	errorStyle    = lipgloss.NewStyle().Padding(1).Margin(1).MarginBottom(0).Background(Background).Foreground(Red)
)

type exchange struct {
	question string
	response *models.QueryPostResponse
	err      error
}

// answerMsg is sent when the server responds to the question at index.
type answerMsg struct {
	index    int
	response models.QueryPostResponse
	err      error
}

type querier interface {
	QueryPost(ctx context.Context, req models.QueryPostRequest) (models.QueryPostResponse, error)
}

type model struct {
	viewport viewport.Model
	textarea textarea.Model
	ctx      context.Context
	client   querier
	renderer *glamour.TermRenderer

	exchanges []exchange
}

func newModel(ctx context.Context, client querier, renderer *glamour.TermRenderer) model {
	ta := textarea.New()
	ta.Placeholder = "例如：2024年有哪些銀行因為洗錢防制被裁罰？"
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = models.MaxQueryLength

	ta.SetHeight(3)

	// Remove cursor line styling
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()

	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)
	vp.SetContent(headerStyle.Render(header))

	ta.KeyMap.InsertNewline.SetEnabled(false)

	return model{
		ctx:      ctx,
		textarea: ta,
		viewport: vp,
		client:   client,
		renderer: renderer,
	}
}

func (m model) Init() tea.Cmd {
	return textarea.Blink
}

func (m model) ask(index int, question string) tea.Cmd {
	return func() tea.Msg {
		resp, err := m.client.QueryPost(m.ctx, models.QueryPostRequest{Text: question})
		return answerMsg{index: index, response: resp, err: err}
	}
}

func (m model) formatExchange(e exchange) string {
	var sb strings.Builder
	sb.WriteString(questionStyle.Render(wordwrap.String("🥷 "+e.question, 80)))
	sb.WriteString("\n")
	switch {
	case e.err != nil:
		sb.WriteString(errorStyle.Render(wordwrap.String("❌ 查詢失敗："+e.err.Error(), 80)))
	case e.response == nil:
		sb.WriteString(pendingStyle.Render("🔍 查詢中..."))
	case e.response.Fallback:
		sb.WriteString(warningStyle.Render(wordwrap.String("⚠️ "+e.response.Message, 80)))
	default:
		rendered, err := m.renderer.Render(formatResponse(*e.response))
		if err != nil {
			rendered = formatResponse(*e.response)
		}
		sb.WriteString(rendered)
	}
	return sb.String()
}

func (m model) render() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render(header))
	sb.WriteString("\n")
	for _, e := range m.exchanges {
		sb.WriteString(m.formatExchange(e))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case answerMsg:
		if msg.index < len(m.exchanges) {
			if msg.err != nil {
				m.exchanges[msg.index].err = msg.err
			} else {
				m.exchanges[msg.index].response = &msg.response
			}
		}
		m.viewport.SetContent(m.render())
		m.viewport.GotoBottom()
		return m, nil
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - m.textarea.Height() - 3
		m.textarea.SetWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			return m, tea.Quit
		case "enter":
			v := strings.TrimSpace(m.textarea.Value())
			if v == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.exchanges = append(m.exchanges, exchange{question: v})
			m.viewport.SetContent(m.render())
			m.viewport.GotoBottom()
			return m, m.ask(len(m.exchanges)-1, v)
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
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

func (m model) View() string {
	return fmt.Sprintf("%s\n\n%s",
		m.viewport.View(),
		m.textarea.View(),
	) + "\n\n"
}
