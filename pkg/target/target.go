package target

import (
	"errors"
	"fmt"
	"strings"
)

const (
	sepInputs  = ":"
	sepCommand = "--"
)

var (
	// ErrNoArguments is returned when the argument vector is empty.
	ErrNoArguments = errors.New("no arguments")

	// ErrNoOutputs is returned when a rule group has no output tokens.
	ErrNoOutputs = errors.New("no outputs")

	// ErrUnexpectedSeparator is returned when ":" or "--" appears somewhere
	// the grammar does not allow it.
	ErrUnexpectedSeparator = errors.New("unexpected separator")
)

// Target is one parsed rule group: the outputs to check, the inputs that can
// invalidate them, and an optional command to run when they do.
type Target struct {
	Outputs []string
	Inputs  []string
	Command []string
}

func (t *Target) String() string {
	parts := []string{strings.Join(t.Outputs, " ")}
	if len(t.Inputs) > 0 {
		parts = append(parts, sepInputs, strings.Join(t.Inputs, " "))
	}
	if len(t.Command) > 0 {
		parts = append(parts, sepCommand, strings.Join(t.Command, " "))
	}

	return strings.Join(parts, " ")
}

type section int

const (
	inOutputs section = iota
	inInputs
	inCommand
)

// Parse splits the positional arguments into an ordered sequence of rule
// groups. The grammar is a repetition of:
//
//	OUTPUTS (':' INPUTS)? ('--' COMMAND)?
//
// where ":" and "--" are literal argument tokens. Within a command section, a
// second "--" terminates the command and starts the next group's outputs; a
// ":" there is an ordinary command token. Every group needs at least one
// output, while inputs and command are each optional.
func Parse(args []string) ([]*Target, error) {
	if len(args) == 0 {
		return nil, ErrNoArguments
	}

	var (
		targets []*Target
		cur     = &Target{}
		state   = inOutputs
	)

	flush := func() error {
		if len(cur.Outputs) == 0 {
			return ErrNoOutputs
		}

		targets = append(targets, cur)
		cur = &Target{}
		state = inOutputs

		return nil
	}

	for i, arg := range args {
		switch {
		case state == inOutputs && (arg == sepInputs || arg == sepCommand):
			if len(cur.Outputs) == 0 {
				return nil, fmt.Errorf("%w: %q at argument %d", ErrUnexpectedSeparator, arg, i+1)
			}
			if arg == sepInputs {
				state = inInputs
			} else {
				state = inCommand
			}

		case state == inInputs && arg == sepCommand:
			state = inCommand

		case state == inInputs && arg == sepInputs:
			return nil, fmt.Errorf("%w: %q at argument %d", ErrUnexpectedSeparator, arg, i+1)

		case state == inCommand && arg == sepCommand:
			// Second "--": close this group, the next tokens are outputs.
			if err := flush(); err != nil {
				return nil, err
			}

		default:
			switch state {
			case inOutputs:
				cur.Outputs = append(cur.Outputs, arg)
			case inInputs:
				cur.Inputs = append(cur.Inputs, arg)
			case inCommand:
				cur.Command = append(cur.Command, arg)
			}
		}
	}

	if err := flush(); err != nil {
		return nil, err
	}

	return targets, nil
}
