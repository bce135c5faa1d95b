package stalker

import (
	"strings"
	"unicode"
)

// Kind identifies a chat command.
type Kind int

const (
	CommandUnknown Kind = iota
	CommandStart
	CommandAdd
	CommandRemove
	CommandList
)

func (k Kind) String() string {
	switch k {
	case CommandStart:
		return "start"
	case CommandAdd:
		return "add"
	case CommandRemove:
		return "remove"
	case CommandList:
		return "list"
	}
	return "unknown"
}

// Command is a parsed chat message. Address and Alias are empty when the
// user left them out; the service replies with the matching usage error.
type Command struct {
	Kind    Kind
	Address string
	Alias   string
}

var commandKinds = map[string]Kind{
	"start":  CommandStart,
	"add":    CommandAdd,
	"remove": CommandRemove,
	"list":   CommandList,
}

// ParseCommand turns "/add 0x.. alias" style text into a Command.
// "/add@my_bot" is accepted. The alias of /add is the rest of the line after
// the address, so it may contain spaces.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return Command{Kind: CommandUnknown}
	}

	name, rest := text[1:], ""
	if i := strings.IndexFunc(name, unicode.IsSpace); i >= 0 {
		name, rest = name[:i], name[i:]
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	kind, ok := commandKinds[strings.ToLower(name)]
	if !ok {
		return Command{Kind: CommandUnknown}
	}
	rest = strings.TrimSpace(rest)

	cmd := Command{Kind: kind}
	switch kind {
	case CommandAdd:
		fields := strings.Fields(rest)
		if len(fields) > 0 {
			cmd.Address = fields[0]
		}
		if len(fields) > 1 {
			cmd.Alias = strings.Join(fields[1:], " ")
		}
	case CommandRemove:
		cmd.Alias = strings.Join(strings.Fields(rest), " ")
	}
	return cmd
}
