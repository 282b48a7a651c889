// Package feedback collects the end-of-session feedback record through an
// interactive prompt flow.
package feedback

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ormasoftchile/remex/pkg/model"
)

// ErrAborted is returned when the operator cancels the prompt flow.
var ErrAborted = fmt.Errorf("feedback aborted")

// Collector runs the prompt flow.
type Collector struct {
	output io.Writer
	rl     *readline.Instance
}

// New creates a collector writing prompts and echo to output.
func New(output io.Writer) (*Collector, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "cancel",
	})
	if err != nil {
		return nil, fmt.Errorf("init readline: %w", err)
	}
	return &Collector{output: output, rl: rl}, nil
}

// Close releases the terminal.
func (c *Collector) Close() error { return c.rl.Close() }

// Collect walks the operator through the feedback questions. Returns
// ErrAborted on ^C or EOF at any prompt.
func (c *Collector) Collect(sess model.ExecutionSession) (model.Feedback, error) {
	var fb model.Feedback

	fmt.Fprintf(c.output, "Session %s finished — %s\n\n", sess.ID, sess.RunbookTitle)

	ok, err := c.askYesNo("Did the runbook run successfully?")
	if err != nil {
		return fb, err
	}
	fb.WasSuccessful = ok

	resolved, err := c.askYesNo("Is the underlying issue resolved?")
	if err != nil {
		return fb, err
	}
	fb.IssueResolved = resolved

	rating, err := c.askRating("Rate this runbook (1-5)")
	if err != nil {
		return fb, err
	}
	fb.Rating = rating

	text, err := c.askText("Any comments? (empty to skip)")
	if err != nil {
		return fb, err
	}
	fb.FeedbackText = text

	suggestions, err := c.askText("Suggested improvements? (empty to skip)")
	if err != nil {
		return fb, err
	}
	fb.Suggestions = suggestions

	return fb, nil
}

func (c *Collector) askText(question string) (string, error) {
	c.rl.SetPrompt(question + " ")
	line, err := c.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt || err == io.EOF {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *Collector) askYesNo(question string) (bool, error) {
	for {
		line, err := c.askText(question + " [y/n]")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(c.output, "Please answer y or n.")
	}
}

func (c *Collector) askRating(question string) (int, error) {
	for {
		line, err := c.askText(question)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= 5 {
			return n, nil
		}
		fmt.Fprintln(c.output, "Please enter a number from 1 to 5.")
	}
}
