package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// AdaptiveProgress renders stream consumption progress in both TTY and
// non-TTY environments. In a TTY it runs a live spinner with counters; piped
// output degrades to timestamped lines.
type AdaptiveProgress struct {
	isTTY     bool
	renderer  *lipgloss.Renderer
	program   *tea.Program
	model     adaptiveModel
	output    io.Writer
	startTime time.Time
}

// adaptiveModel is the TUI model for stream progress
type adaptiveModel struct {
	spinner   spinner.Model
	message   string
	details   string
	processed int
	total     int
	chunks    int
	done      bool
	err       error
	startTime time.Time
}

// StreamStats summarizes a consumed stream for the final display
type StreamStats struct {
	StreamID         string
	Files            int
	FilesWithMatches int
	Matches          int
	Chunks           int
	Status           string
}

// NewAdaptiveProgress creates a new adaptive progress indicator
func NewAdaptiveProgress(output io.Writer) *AdaptiveProgress {
	isTTY := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

	ap := &AdaptiveProgress{
		isTTY:     isTTY,
		renderer:  lipgloss.NewRenderer(output),
		output:    output,
		startTime: time.Now(),
	}

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ap.renderer.NewStyle().Foreground(lipgloss.AdaptiveColor{
		Light: "#8B5CF6",
		Dark:  "#A78BFA",
	})

	ap.model = adaptiveModel{
		spinner:   s,
		startTime: time.Now(),
	}

	return ap
}

// Start begins the progress indication
func (ap *AdaptiveProgress) Start(message string) {
	ap.model.message = message

	if ap.isTTY {
		ap.program = tea.NewProgram(&ap.model, tea.WithOutput(ap.output))
		go func() {
			if _, err := ap.program.Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Progress UI error: %v\n", err)
			}
		}()
		// Give TUI time to initialize
		time.Sleep(50 * time.Millisecond)
	} else {
		ap.logProgress(message)
	}
}

// UpdateStream reports processed/total work units and the chunk count
func (ap *AdaptiveProgress) UpdateStream(processed, total, chunks int, details string) {
	if ap.isTTY && ap.program != nil {
		ap.program.Send(streamMsg{processed: processed, total: total, chunks: chunks, details: details})
		return
	}
	if total > 0 {
		ap.logProgress(fmt.Sprintf("%d/%d files, chunk %d - %s", processed, total, chunks, details))
	}
}

// SuccessWithStats completes with success and shows the stream summary
func (ap *AdaptiveProgress) SuccessWithStats(message string, stats StreamStats) {
	duration := time.Since(ap.startTime)
	successMsg := fmt.Sprintf("%s (%.2fs)", message, duration.Seconds())

	if ap.isTTY && ap.program != nil {
		ap.program.Send(doneMsg{message: successMsg})
		ap.program.Quit()
		time.Sleep(100 * time.Millisecond) // Let TUI finish
	} else {
		ap.logProgress(successMsg)
	}
	ap.displayStats(stats, duration)
}

// Error completes with error
func (ap *AdaptiveProgress) Error(err error) {
	duration := time.Since(ap.startTime)
	errorMsg := fmt.Sprintf("Failed after %.2fs: %v", duration.Seconds(), err)

	if ap.isTTY && ap.program != nil {
		ap.program.Send(doneMsg{message: errorMsg, err: err})
		ap.program.Quit()
		time.Sleep(100 * time.Millisecond)
	} else {
		ap.logProgress(errorMsg)
	}
}

// displayStats renders the final stream summary box
func (ap *AdaptiveProgress) displayStats(stats StreamStats, duration time.Duration) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#F9FAFB"})

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}).
		Width(20)

	valueStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"})

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#374151"}).
		Padding(1, 2).
		MarginTop(1)

	var content strings.Builder
	content.WriteString(titleStyle.Render("Search Results"))
	content.WriteString("\n\n")

	content.WriteString(labelStyle.Render("Stream ID:"))
	content.WriteString(" " + valueStyle.Render(stats.StreamID) + "\n")

	content.WriteString(labelStyle.Render("Status:"))
	content.WriteString(" " + valueStyle.Render(stats.Status) + "\n")

	content.WriteString(labelStyle.Render("Duration:"))
	content.WriteString(" " + valueStyle.Render(fmt.Sprintf("%.2fs", duration.Seconds())) + "\n\n")

	content.WriteString(labelStyle.Render("Files Searched:"))
	content.WriteString(" " + valueStyle.Render(fmt.Sprintf("%d", stats.Files)) + "\n")

	content.WriteString(labelStyle.Render("Files With Matches:"))
	content.WriteString(" " + valueStyle.Render(fmt.Sprintf("%d", stats.FilesWithMatches)) + "\n")

	content.WriteString(labelStyle.Render("Total Matches:"))
	content.WriteString(" " + valueStyle.Render(fmt.Sprintf("%d", stats.Matches)) + "\n")

	content.WriteString(labelStyle.Render("Chunks Delivered:"))
	content.WriteString(" " + valueStyle.Render(fmt.Sprintf("%d", stats.Chunks)) + "\n")

	if duration.Seconds() > 0 && stats.Files > 0 {
		rate := float64(stats.Files) / duration.Seconds()
		content.WriteString("\n")
		content.WriteString(labelStyle.Render("Files per Second:"))
		content.WriteString(" " + valueStyle.Render(fmt.Sprintf("%.1f", rate)) + "\n")
	}

	fmt.Fprintf(ap.output, "%s\n", boxStyle.Render(content.String()))
}

// logProgress outputs progress to non-TTY terminals
func (ap *AdaptiveProgress) logProgress(message string) {
	timestamp := time.Now().Format("15:04:05")
	fmt.Fprintf(ap.output, "[%s] %s\n", timestamp, message)
}

// Messages for the TUI
type streamMsg struct {
	processed int
	total     int
	chunks    int
	details   string
}

type doneMsg struct {
	message string
	err     error
}

// Bubbletea Model Implementation
func (m *adaptiveModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *adaptiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case streamMsg:
		m.processed = msg.processed
		m.total = msg.total
		m.chunks = msg.chunks
		m.details = msg.details
		return m, nil

	case doneMsg:
		m.done = true
		m.message = msg.message
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *adaptiveModel) View() string {
	if m.done {
		var style lipgloss.Style
		if m.err != nil {
			style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{
				Light: "#DC2626",
				Dark:  "#F87171",
			})
		} else {
			style = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{
				Light: "#059669",
				Dark:  "#10B981",
			})
		}
		return style.Render(m.message)
	}

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{
		Light: "#1F2937",
		Dark:  "#F9FAFB",
	})
	detailsStyle := lipgloss.NewStyle().Faint(true).Foreground(lipgloss.AdaptiveColor{
		Light: "#9CA3AF",
		Dark:  "#6B7280",
	})

	var parts []string
	parts = append(parts, m.spinner.View()+" "+titleStyle.Render(m.message))

	if m.total > 0 {
		percent := m.processed * 100 / m.total
		parts = append(parts, detailsStyle.Render(
			fmt.Sprintf("  %d/%d files (%d%%), %d chunks", m.processed, m.total, percent, m.chunks),
		))
	}
	if m.details != "" {
		parts = append(parts, detailsStyle.Render("  "+m.details))
	}

	elapsed := time.Since(m.startTime)
	parts = append(parts, detailsStyle.Render(fmt.Sprintf("  Elapsed: %.1fs", elapsed.Seconds())))

	return strings.Join(parts, "\n")
}
