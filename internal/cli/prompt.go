// Package cli holds interactive terminal helpers shared by commands.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Prompter asks questions on Out and reads answers from In.
type Prompter struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// NewPrompter returns a Prompter over in and out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{In: in, Out: out}
}

func (p *Prompter) readLine() (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	response, err := p.reader.ReadString('\n')
	if err != nil && !(err == io.EOF && response != "") {
		return "", fmt.Errorf("reading response: %w", err)
	}
	return strings.TrimSpace(strings.ToLower(response)), nil
}

// Confirm asks a yes/no question with the given default.
// Returns true for yes, false for no.
func (p *Prompter) Confirm(prompt string, defaultYes bool) (bool, error) {
	suffix := "[y/N]"
	if defaultYes {
		suffix = "[Y/n]"
	}

	fmt.Fprintf(p.Out, "%s %s ", prompt, suffix)

	response, err := p.readLine()
	if err != nil {
		return false, err
	}

	if response == "" {
		return defaultYes, nil
	}

	return response == "y" || response == "yes", nil
}

// SelectOption represents an option in a selection list.
type SelectOption struct {
	Value string // The value to return if selected
	Label string // The display label
}

// Select displays a numbered list and asks the user to select an option.
// Returns the selected option's Value, or empty string if cancelled.
func (p *Prompter) Select(prompt string, options []SelectOption) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided")
	}

	fmt.Fprintln(p.Out, prompt)
	fmt.Fprintln(p.Out)

	for i, opt := range options {
		fmt.Fprintf(p.Out, "  %d) %s\n", i+1, opt.Label)
	}

	fmt.Fprintln(p.Out)
	fmt.Fprint(p.Out, "Enter number (or 'q' to cancel): ")

	response, err := p.readLine()
	if err != nil {
		return "", err
	}

	if response == "" || response == "q" || response == "quit" || response == "cancel" {
		return "", nil
	}

	num, err := strconv.Atoi(response)
	if err != nil || num < 1 || num > len(options) {
		return "", fmt.Errorf("invalid selection: %s", response)
	}

	return options[num-1].Value, nil
}
