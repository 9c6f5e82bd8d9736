package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

// HelpTheme is the palette used by styled help output.
type HelpTheme struct {
	Blue   lipgloss.Color
	Cyan   lipgloss.Color
	Orange lipgloss.Color
	Violet lipgloss.Color
	Muted  lipgloss.Style
	Italic lipgloss.Style
}

// DefaultHelpTheme uses ANSI colors so it follows the terminal's palette.
var DefaultHelpTheme = &HelpTheme{
	Blue:   lipgloss.Color("12"),
	Cyan:   lipgloss.Color("14"),
	Orange: lipgloss.Color("214"),
	Violet: lipgloss.Color("13"),
	Muted:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	Italic: lipgloss.NewStyle().Italic(true),
}

const (
	maxWidth = 60
	minWidth = 40
)

// getTerminalWidth returns the terminal width capped at maxWidth.
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < minWidth || width > maxWidth {
		return maxWidth
	}
	return width
}

// wrapText wraps text to width, preserving existing line breaks.
func wrapText(text string, width int) string {
	if width <= 0 {
		width = maxWidth
	}
	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		if len(paragraph) <= width {
			lines = append(lines, paragraph)
			continue
		}
		var line string
		for _, word := range strings.Fields(paragraph) {
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// SetStyledHelp applies lore styling to a command's help output.
func SetStyledHelp(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
}

// ApplyStyledHelpRecursive applies styled help to cmd and all its
// subcommands and silences cobra's usage dump; errors are reported by the
// ErrorHandler instead. Call it after every subcommand has been added.
func ApplyStyledHelpRecursive(cmd *cobra.Command) {
	cmd.SetHelpFunc(styledHelpFunc)
	cmd.SetUsageFunc(func(*cobra.Command) error { return nil })
	for _, sub := range cmd.Commands() {
		ApplyStyledHelpRecursive(sub)
	}
}

// splitExamples separates a trailing "Examples:" block from a long description.
func splitExamples(long string) (description, examples string) {
	for _, marker := range []string{"\nExamples:\n", "\nExample:\n"} {
		if idx := strings.Index(long, marker); idx != -1 {
			return strings.TrimSpace(long[:idx]), strings.TrimSpace(long[idx+len(marker):])
		}
	}
	return long, ""
}

func styledHelpFunc(cmd *cobra.Command, args []string) {
	t := DefaultHelpTheme
	out := cmd.OutOrStdout()
	section := lipgloss.NewStyle().Italic(true).Foreground(t.Orange)
	heading := func(name string) { fmt.Fprintln(out, "\n "+section.Render(name)) }
	width := getTerminalWidth() - 2

	title := lipgloss.NewStyle().Bold(true).Foreground(t.Orange)
	fmt.Fprintln(out, " "+title.Render(strings.ToUpper(cmd.CommandPath())))

	description, examples := cmd.Short, ""
	if cmd.Long != "" {
		description, examples = splitExamples(cmd.Long)
	}
	if cmd.Short != "" {
		writeIndented(out, wrapText(cmd.Short, width), t.Italic)
	}
	if description != "" && description != cmd.Short {
		fmt.Fprintln(out)
		writeIndented(out, wrapText(description, width), lipgloss.NewStyle())
	}

	if cmd.Runnable() || cmd.HasSubCommands() {
		heading("USAGE")
		if cmd.Runnable() {
			fmt.Fprintf(out, " %s\n", cmd.UseLine())
		}
		if cmd.HasSubCommands() {
			fmt.Fprintf(out, " %s [command]\n", cmd.CommandPath())
		}
	}

	if cmd.HasAvailableSubCommands() {
		heading("COMMANDS")
		writeCommands(out, cmd, lipgloss.NewStyle().Bold(true).Foreground(t.Blue))
	}

	var flags []*pflag.Flag
	cmd.LocalFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Hidden {
			flags = append(flags, f)
		}
	})
	if len(flags) > 0 {
		if cmd.HasAvailableSubCommands() {
			names := make([]string, 0, len(flags))
			for _, f := range flags {
				names = append(names, strings.TrimSpace(formatFlagName(f)))
			}
			fmt.Fprintln(out, "\n "+t.Muted.Render("Flags: "+strings.Join(names, ", ")))
		} else {
			heading("FLAGS")
			writeFlags(out, t, flags)
		}
	}

	if cmd.Example != "" {
		examples = cmd.Example
	}
	if examples != "" {
		heading("EXAMPLES")
		writeExamples(out, t, examples, cmd.Root().Name())
	}

	if cmd.HasSubCommands() {
		fmt.Fprintf(out, "\n Use \"%s [command] --help\" for more information.\n", cmd.CommandPath())
	}
}

func writeIndented(out io.Writer, text string, style lipgloss.Style) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintln(out, " "+style.Render(line))
	}
}

func writeCommands(out io.Writer, cmd *cobra.Command, name lipgloss.Style) {
	width := 0
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() && len(sub.Name()) > width {
			width = len(sub.Name())
		}
	}
	for _, sub := range cmd.Commands() {
		if !sub.IsAvailableCommand() {
			continue
		}
		pad := strings.Repeat(" ", width-len(sub.Name()))
		fmt.Fprintf(out, " %s%s  %s\n", name.Render(sub.Name()), pad, sub.Short)
	}
}

func writeFlags(out io.Writer, t *HelpTheme, flags []*pflag.Flag) {
	name := lipgloss.NewStyle().Foreground(t.Violet)
	width := 0
	for _, f := range flags {
		if n := len(formatFlagName(f)); n > width {
			width = n
		}
	}
	for _, f := range flags {
		label := formatFlagName(f)
		usage, choices := parseChoices(f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "[]" {
			usage += t.Muted.Render(fmt.Sprintf(" (default: %s)", f.DefValue))
		}
		fmt.Fprintf(out, " %s%s  %s\n", name.Render(label), strings.Repeat(" ", width-len(label)), usage)
		for _, choice := range choices {
			fmt.Fprintf(out, " %s  %s\n", strings.Repeat(" ", width+3), t.Muted.Render("• "+choice))
		}
	}
}

// writeExamples mutes comment lines and colors the program name,
// subcommand and flags of command lines.
func writeExamples(out io.Writer, t *HelpTheme, examples, program string) {
	styles := []lipgloss.Style{
		lipgloss.NewStyle().Foreground(t.Cyan),
		lipgloss.NewStyle().Foreground(t.Blue),
	}
	flag := lipgloss.NewStyle().Foreground(t.Violet)

	for _, line := range strings.Split(examples, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			fmt.Fprintln(out)
		case strings.HasPrefix(line, "#"):
			fmt.Fprintln(out, " "+t.Muted.Render(line))
		default:
			words := strings.Fields(line)
			for i, word := range words {
				switch {
				case strings.HasPrefix(word, "-"):
					words[i] = flag.Render(word)
				case i == 0 && word == program:
					words[i] = styles[0].Render(word)
				case i == 1:
					words[i] = styles[1].Render(word)
				}
			}
			fmt.Fprintln(out, "   "+strings.Join(words, " "))
		}
	}
}

// formatFlagName returns "-f, --flag", or "--flag" padded to line up.
func formatFlagName(f *pflag.Flag) string {
	if f.Shorthand != "" {
		return fmt.Sprintf("-%s, --%s", f.Shorthand, f.Name)
	}
	return "    --" + f.Name
}

// parseChoices splits a usage string of the form "Label: a, b, or c (note)"
// into "Label: (note)" and its choices. Usage strings with fewer than three
// choices are returned unchanged.
func parseChoices(usage string) (string, []string) {
	colon := strings.Index(usage, ": ")
	if colon == -1 {
		return usage, nil
	}
	list, suffix := usage[colon+2:], ""
	if end := strings.Index(list, " ("); end != -1 {
		list, suffix = list[:end], list[end:]
	}
	parts := strings.Split(list, ", ")
	if len(parts) < 3 {
		return usage, nil
	}
	for i, p := range parts {
		parts[i] = strings.TrimSpace(strings.TrimPrefix(p, "or "))
	}
	return usage[:colon+1] + suffix, parts
}
