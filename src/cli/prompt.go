// Package cli is the interactive front end: it asks for a schema variant, a
// record count and whether to run the queries, then prints the timings.
package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"schemabench/src/bench"
	"schemabench/src/directors"
	"schemabench/src/helpers"
)

// ErrInvalidInput is reported for input that is not a number or is out of
// range. The prompt reports it and asks again.
var ErrInvalidInput = errors.New("invalid input")

const (
	promptOption  = "> "
	promptCount   = "Insert the number of documents to create: "
	promptQueries = "Run the four queries? [Y/n]: "
)

// LineReader is the part of *readline.Instance the prompt uses.
type LineReader interface {
	Readline() (string, error)
	SetPrompt(prompt string)
	Close() error
}

// BenchmarkRunner executes one benchmark run per menu selection.
type BenchmarkRunner interface {
	Choices() []directors.VariantChoice
	Run(ctx context.Context, choice, n int, runQueries bool) (*bench.Report, error)
}

type Prompt struct {
	reader LineReader
	runner BenchmarkRunner
	out    io.Writer
}

func NewPrompt(reader LineReader, runner BenchmarkRunner, out io.Writer) *Prompt {
	return &Prompt{reader: reader, runner: runner, out: out}
}

// Run loops over the menu until the user picks 0, input ends, or ctx is
// cancelled. Invalid input and record counts the variants reject are
// reported and do not end the loop; store failures do.
func (p *Prompt) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		choice, err := p.readOption()
		if err != nil {
			retry, err := p.recoverInput(err)
			if retry {
				continue
			}
			return err
		}
		if choice == 0 {
			fmt.Fprintln(p.out, "Exiting ...")
			return nil
		}

		n, err := p.readInt(promptCount, 1, math.MaxInt32)
		if err != nil {
			retry, err := p.recoverInput(err)
			if retry {
				continue
			}
			return err
		}

		runQueries, err := p.readYesNo(promptQueries)
		if err != nil {
			retry, err := p.recoverInput(err)
			if retry {
				continue
			}
			return err
		}

		if err := p.execute(ctx, choice, n, runQueries); err != nil {
			return err
		}
	}
}

func (p *Prompt) execute(ctx context.Context, choice, n int, runQueries bool) error {
	report, err := p.runner.Run(ctx, choice, n, runQueries)
	if report != nil {
		for _, m := range report.Measurements {
			if werr := bench.WriteMeasurement(p.out, m); werr != nil {
				return errors.Wrap(werr, "writing measurement")
			}
		}
	}
	if err != nil {
		if errors.Is(err, directors.ErrInvalidCount) || errors.Is(err, directors.ErrUnknownVariant) {
			p.reportError(errors.Wrap(ErrInvalidInput, err.Error()))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "running benchmark")
	}

	if runQueries {
		if err := report.Render(p.out); err != nil {
			return errors.Wrap(err, "writing report")
		}
	}
	return nil
}

// recoverInput decides what a read error means for the loop. Invalid input
// is reported and the menu starts over. End of input and interrupts end the
// loop cleanly. Anything else is a reader failure.
func (p *Prompt) recoverInput(err error) (retry bool, _ error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		p.reportError(err)
		return true, nil
	case errors.Is(err, io.EOF), errors.Is(err, readline.ErrInterrupt):
		fmt.Fprintln(p.out, "Exiting ...")
		return false, nil
	default:
		return false, errors.Wrap(err, "reading line")
	}
}

func (p *Prompt) reportError(err error) {
	fmt.Fprintf(p.out, "Error: %v\n", err)
}

func (p *Prompt) printMenu() {
	var b strings.Builder
	b.WriteString("\nChoose the option you want to execute:\n")
	b.WriteString("\t 0 - Exit\n")
	for _, choice := range p.runner.Choices() {
		fmt.Fprintf(&b, "\t %d - %s\n", choice.Number, choice.Name)
	}
	io.WriteString(p.out, b.String())
}

func (p *Prompt) readOption() (int, error) {
	p.printMenu()
	choices := p.runner.Choices()
	highest := 0
	for _, c := range choices {
		if c.Number > highest {
			highest = c.Number
		}
	}
	return p.readInt(promptOption, 0, highest)
}

// readInt reads an integer in [lo, hi]. It returns -1 together with any error.
func (p *Prompt) readInt(prompt string, lo, hi int) (int, error) {
	line, err := p.readLine(prompt)
	if err != nil {
		return -1, err
	}
	value, convErr := strconv.Atoi(line)
	if convErr != nil {
		return -1, errors.Wrapf(ErrInvalidInput, "%q is not a number", line)
	}
	if value < lo || value > hi {
		return -1, errors.Wrapf(ErrInvalidInput, "%d is out of range [%d, %d]", value, lo, hi)
	}
	return value, nil
}

func (p *Prompt) readYesNo(prompt string) (bool, error) {
	line, err := p.readLine(prompt)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "", "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return false, errors.Wrapf(ErrInvalidInput, "%q is not y or n", line)
	}
}

func (p *Prompt) readLine(prompt string) (string, error) {
	p.reader.SetPrompt(prompt)
	line, err := p.reader.Readline()
	if err != nil {
		return "", err
	}
	return helpers.StripQuotes(line), nil
}
