package console

import (
	"errors"
	"fmt"
	"strings"
)

// ParseCommand parses a command argument. A command is a single key,
// optionally followed by '=' and input that is sent after the key and
// terminated by a carriage return, for example "l=ff8800".
func ParseCommand(arg string) (byte, string, error) {
	switch {
	case arg == "":
		return 0, "", errors.New("empty command")
	case len(arg) == 1:
		return arg[0], "", nil
	case arg[1] != '=':
		return 0, "", fmt.Errorf("invalid command '%s': expected a single key or key=input", arg)
	}

	input := arg[2:]
	if strings.ContainsAny(input, "\r\n") {
		return 0, "", fmt.Errorf("invalid command '%s': input must be a single line", arg)
	}
	return arg[0], input + "\r", nil
}
