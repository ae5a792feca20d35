package executor

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter asks the operator yes/no questions in interactive mode.
type Prompter interface {
	// Confirm asks the question and returns the operator's answer.
	Confirm(question string) (bool, error)
}

// TerminalPrompter reads answers from an input stream (normally stdin).
type TerminalPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewTerminalPrompter creates a prompter over the given streams.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Confirm prints the question and reads a y/n answer. Anything other
// than an explicit yes is a no.
func (p *TerminalPrompter) Confirm(question string) (bool, error) {
	if _, err := fmt.Fprintf(p.out, "%s [y/N]: ", question); err != nil {
		return false, err
	}

	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// ScriptedPrompter returns pre-recorded answers, for tests.
type ScriptedPrompter struct {
	answers []bool
	next    int
}

// NewScriptedPrompter creates a prompter that replays answers in order.
func NewScriptedPrompter(answers ...bool) *ScriptedPrompter {
	return &ScriptedPrompter{answers: answers}
}

// Confirm returns the next scripted answer, defaulting to no when the
// script runs out.
func (p *ScriptedPrompter) Confirm(question string) (bool, error) {
	if p.next >= len(p.answers) {
		return false, nil
	}
	answer := p.answers[p.next]
	p.next++
	return answer, nil
}
