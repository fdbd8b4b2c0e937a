package gateway

import (
	"regexp"
	"strings"

	"github.com/dwizi/hass-bridge/internal/dispatcher"
	"github.com/dwizi/hass-bridge/internal/names"
)

type Kind int

const (
	KindIgnore Kind = iota
	KindUsage
	KindListAliases
	KindAddAlias
	KindDeleteAlias
	KindListGroups
	KindShowGroup
	KindSetGroup
	KindAppendGroup
	KindDeleteGroup
	KindReload
	KindSwitch
)

// Scope is the admin area a command belongs to. It selects the denial
// message for unauthorized issuers.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeAliases
	ScopeGroups
	ScopeReload
)

type Command struct {
	Kind     Kind
	Scope    Scope
	Name     string
	EntityID string
	Members  []string
	Action   dispatcher.Action
	Phrase   string
	// Usage is the literal reply for KindUsage.
	Usage string
}

const (
	aliasAddUsage = "Usage: `!alias add \"Pretty Name\" entity_id`"
	aliasDelUsage = "Usage: `!alias del \"Pretty Name\"`"
	aliasUsage    = "Usage:\n- `!alias list`\n- `!alias add \"Pretty Name\" entity_id`\n- `!alias del \"Pretty Name\"`"

	groupShowUsage = "Usage: `!group show \"Group Name\"`"
	groupDelUsage  = "Usage: `!group del \"Group Name\"`"
	groupNoMembers = "ℹ️ Provide one or more members (entity_ids or alias names)."
	groupUsage     = "Usage:\n" +
		"- `!group list`\n" +
		"- `!group show \"Group Name\"`\n" +
		"- `!group set  \"Group Name\" <members...>`\n" +
		"- `!group add  \"Group Name\" <members...>`\n" +
		"- `!group del  \"Group Name\"`"
)

var switchPattern = regexp.MustCompile(`^(turn on|turn off)\s+(.+)`)

// Parse classifies one chat line. Keywords and subcommands match
// case-insensitively as whole words; names and members keep their case.
func Parse(text string) Command {
	content := strings.TrimSpace(text)
	lower := strings.ToLower(content)

	if tail, ok := cutKeyword(content, "!alias"); ok {
		return parseAlias(tail)
	}
	if tail, ok := cutKeyword(content, "!group"); ok {
		return parseGroup(tail)
	}
	if lower == "!reload" {
		return Command{Kind: KindReload, Scope: ScopeReload}
	}
	if match := switchPattern.FindStringSubmatch(lower); match != nil {
		phrase := strings.TrimSpace(match[2])
		if phrase != "" {
			return Command{Kind: KindSwitch, Action: dispatcher.Action(match[1]), Phrase: phrase}
		}
	}
	return Command{Kind: KindIgnore}
}

func parseAlias(tail string) Command {
	usage := func(text string) Command {
		return Command{Kind: KindUsage, Scope: ScopeAliases, Usage: text}
	}
	sub, args := splitSubcommand(tail)
	switch sub {
	case "", "list":
		return Command{Kind: KindListAliases, Scope: ScopeAliases}
	case "add":
		name, rest, _ := names.ParseNameArgument(args)
		fields := strings.Fields(rest)
		if name == "" || len(fields) == 0 {
			return usage(aliasAddUsage)
		}
		return Command{Kind: KindAddAlias, Scope: ScopeAliases, Name: name, EntityID: fields[0]}
	case "del":
		name, _, _ := names.ParseNameArgument(args)
		if name == "" {
			return usage(aliasDelUsage)
		}
		return Command{Kind: KindDeleteAlias, Scope: ScopeAliases, Name: name}
	default:
		return usage(aliasUsage)
	}
}

func parseGroup(tail string) Command {
	usage := func(text string) Command {
		return Command{Kind: KindUsage, Scope: ScopeGroups, Usage: text}
	}
	sub, args := splitSubcommand(tail)
	switch sub {
	case "", "list":
		return Command{Kind: KindListGroups, Scope: ScopeGroups}
	case "show":
		name, _, _ := names.ParseNameArgument(args)
		if name == "" {
			return usage(groupShowUsage)
		}
		return Command{Kind: KindShowGroup, Scope: ScopeGroups, Name: name}
	case "set", "add":
		name, rest, _ := names.ParseNameArgument(args)
		if name == "" {
			return usage("Usage: `!group " + sub + " \"Group Name\" <members...>`")
		}
		members := names.SplitMembers(rest)
		if len(members) == 0 {
			return usage(groupNoMembers)
		}
		kind := KindSetGroup
		if sub == "add" {
			kind = KindAppendGroup
		}
		return Command{Kind: kind, Scope: ScopeGroups, Name: name, Members: members}
	case "del":
		name, _, _ := names.ParseNameArgument(args)
		if name == "" {
			return usage(groupDelUsage)
		}
		return Command{Kind: KindDeleteGroup, Scope: ScopeGroups, Name: name}
	default:
		return usage(groupUsage)
	}
}

// cutKeyword reports whether content is keyword alone or keyword followed by
// whitespace, returning the remainder.
func cutKeyword(content, keyword string) (string, bool) {
	if len(content) < len(keyword) || !strings.EqualFold(content[:len(keyword)], keyword) {
		return "", false
	}
	rest := content[len(keyword):]
	if rest == "" {
		return "", true
	}
	if rest[0] != ' ' && rest[0] != '\t' && rest[0] != '\n' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func splitSubcommand(tail string) (string, string) {
	fields := strings.Fields(tail)
	if len(fields) == 0 {
		return "", ""
	}
	sub := strings.ToLower(fields[0])
	return sub, strings.TrimSpace(tail[len(fields[0]):])
}
