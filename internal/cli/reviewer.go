package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Veraticus/wantnot/internal/model"
)

// ErrInputClosed is returned when input ends before a choice is made.
var ErrInputClosed = errors.New("input closed")

// Reviewer walks the user through batch suggestions one at a time.
type Reviewer struct {
	writer io.Writer
	lines  chan string
	errs   chan error
}

// NewReviewer creates a reviewer reading choices from reader.
func NewReviewer(reader io.Reader, writer io.Writer) *Reviewer {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	r := &Reviewer{
		writer: writer,
		lines:  make(chan string),
		errs:   make(chan error, 1),
	}
	go r.scan(reader)
	return r
}

// scan feeds lines to readLine so a pending read can be abandoned on
// cancellation.
func (r *Reviewer) scan(reader io.Reader) {
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		r.lines <- scanner.Text()
	}
	err := scanner.Err()
	if err == nil {
		err = ErrInputClosed
	}
	r.errs <- err
}

func (r *Reviewer) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line := <-r.lines:
		return strings.TrimSpace(line), nil
	case err := <-r.errs:
		return "", err
	}
}

func (r *Reviewer) promptChoice(ctx context.Context, prompt string, validChoices ...string) (string, error) {
	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := r.readLine(ctx)
		if err != nil {
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(r.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			return "", fmt.Errorf("failed to write error: %w", err)
		}
	}
}

// Review asks about each suggestion and returns the accepted ones. names
// maps transaction IDs to display names. Choosing "r" accepts the rest
// without asking; "q" stops and returns what was accepted so far.
func (r *Reviewer) Review(ctx context.Context, suggestions []model.Suggestion, names map[string]string) ([]model.Suggestion, error) {
	accepted := make([]model.Suggestion, 0, len(suggestions))

	for i, s := range suggestions {
		name := names[s.TransactionID]
		if name == "" {
			name = s.TransactionID
		}
		content := fmt.Sprintf("%s\n%s %s  %s\n",
			BoldStyle.Render(name),
			MethodIcon(s.Method),
			s.CategoryName,
			FormatConfidence(s.Confidence))
		if _, err := fmt.Fprintln(r.writer, RenderBox(fmt.Sprintf("Suggestion %d of %d", i+1, len(suggestions)), content)); err != nil {
			return accepted, fmt.Errorf("failed to write suggestion: %w", err)
		}

		choice, err := r.promptChoice(ctx, "[a]ccept  [s]kip  accept [r]est  [q]uit", "a", "s", "r", "q")
		if err != nil {
			return accepted, err
		}

		switch choice {
		case "a":
			accepted = append(accepted, s)
		case "r":
			return append(accepted, suggestions[i:]...), nil
		case "q":
			return accepted, nil
		}
	}
	return accepted, nil
}

// Confirm asks a yes/no question. Anything but y/yes is a no.
func (r *Reviewer) Confirm(ctx context.Context, question string) (bool, error) {
	if _, err := fmt.Fprint(r.writer, FormatPrompt(question+" [y/N]")); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}
	answer, err := r.readLine(ctx)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}
