package stalker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"arb-stalker/internal/model"
)

// DefaultTxURLPrefix links notifications to Arbiscan.
const DefaultTxURLPrefix = "https://arbiscan.io/tx/"

// MaxMessageLength is the Bot API limit for the text of one message.
const MaxMessageLength = 4096

const (
	helpMessage = "You can control me by sending these commands:\n\n" +
		"    /add address alias - add new address to stalk\n" +
		"    /remove alias - remove address\n" +
		"    /list  - get the current addresses\n"

	noTargetsMessage      = "No targets registered"
	addedMessage          = "Address added successfully"
	missingAddressOrAlias = "Missing address or alias"
	removedMessage        = "Address removed successfully"
	missingAliasMessage   = "Missing alias"
	genericFailureMessage = "Something went wrong, please try again later"
	aliasInUseFormat      = "Alias %s is already in use"
	unknownAliasFormat    = "No target with alias %s"
	notificationFormat    = "New transaction from %s: %s%s"
)

func formatTargets(targets []model.Target) string {
	var b strings.Builder
	b.WriteString("Targets:\n\n")
	for _, t := range targets {
		fmt.Fprintf(&b, "%s => %s\n", t.Alias, t.Address)
	}
	return b.String()
}

// FormatNotification renders the message sent for one transaction of a target.
func FormatNotification(txURLPrefix, alias, hash string) string {
	return fmt.Sprintf(notificationFormat, alias, txURLPrefix, hash)
}

// splitMessage cuts text into parts of at most limit characters, breaking
// after a newline where it can.
func splitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if curLen > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			curLen = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if curLen+n > limit {
			flush()
		}
		// a single line over the limit is cut hard
		for n > limit {
			runes := []rune(line)
			parts = append(parts, string(runes[:limit]))
			line = string(runes[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen += n
	}
	flush()
	return parts
}
