package packets

import (
	"fmt"
	"strings"
)

// Arg is a single key/value argument of a command.
type Arg struct {
	Key   string
	Value string
}

// Command is a named command with an ordered argument list. On the wire it
// is the text `name key=value key2=value2` with keys and values escaped.
type Command struct {
	Name string
	Args []Arg
}

func (*Command) packetData() {}

// NewCommand creates a command without arguments.
func NewCommand(name string) *Command {
	return &Command{Name: name}
}

// Push appends an argument.
func (c *Command) Push(key, value string) *Command {
	c.Args = append(c.Args, Arg{Key: key, Value: value})
	return c
}

// Get returns the value of the first argument named key.
func (c *Command) Get(key string) (string, bool) {
	for _, a := range c.Args {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// Validate reports a command whose text would not parse back into the
// same command. Names and keys must not contain '=', keys must not be
// empty, and a nameless command must not start with a key without value.
func (c *Command) Validate() error {
	if strings.Contains(c.Name, "=") {
		return fmt.Errorf("%w: command name %q contains '='", ErrInvalidPayload, c.Name)
	}
	for i, a := range c.Args {
		if a.Key == "" {
			return fmt.Errorf("%w: empty argument key", ErrInvalidPayload)
		}
		if strings.Contains(a.Key, "=") {
			return fmt.Errorf("%w: argument key %q contains '='", ErrInvalidPayload, a.Key)
		}
		if i == 0 && c.Name == "" && a.Value == "" {
			return fmt.Errorf("%w: leading argument %q without value reads as a name", ErrInvalidPayload, a.Key)
		}
	}
	return nil
}

// String returns the wire text of the command.
func (c *Command) String() string {
	var b strings.Builder
	b.WriteString(Escape(c.Name))
	for _, a := range c.Args {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(Escape(a.Key))
		if a.Value != "" {
			b.WriteByte('=')
			b.WriteString(Escape(a.Value))
		}
	}
	return b.String()
}

// ParseCommand parses the wire text of a command. A leading token without
// '=' is the command name; every other token is an argument.
func ParseCommand(s string) (*Command, error) {
	cmd := &Command{}
	for i, tok := range strings.Split(s, " ") {
		if tok == "" {
			continue
		}
		key, value, hasValue := strings.Cut(tok, "=")
		if i == 0 && !hasValue {
			name, err := Unescape(tok)
			if err != nil {
				return nil, err
			}
			cmd.Name = name
			continue
		}
		k, err := Unescape(key)
		if err != nil {
			return nil, err
		}
		if k == "" {
			return nil, fmt.Errorf("%w: empty argument key in %q", ErrInvalidPayload, tok)
		}
		v, err := Unescape(value)
		if err != nil {
			return nil, err
		}
		cmd.Args = append(cmd.Args, Arg{Key: k, Value: v})
	}
	return cmd, nil
}

var escaper = strings.NewReplacer(
	`\`, `\\`,
	`/`, `\/`,
	` `, `\s`,
	`|`, `\p`,
	"\a", `\a`,
	"\b", `\b`,
	"\f", `\f`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
	"\v", `\v`,
)

// Escape applies the command text escaping.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape.
func Unescape(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", fmt.Errorf("%w: dangling escape in %q", ErrInvalidPayload, s)
		}
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case '/':
			b.WriteByte('/')
		case 's':
			b.WriteByte(' ')
		case 'p':
			b.WriteByte('|')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'v':
			b.WriteByte('\v')
		default:
			return "", fmt.Errorf("%w: unknown escape \\%c in %q", ErrInvalidPayload, s[i], s)
		}
	}
	return b.String(), nil
}
