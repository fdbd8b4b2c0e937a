package gateway

import (
	"fmt"
	"strings"

	"github.com/dwizi/hass-bridge/internal/directory"
)

func (s *Service) listAliases() string {
	aliases := s.directory.Aliases()
	if len(aliases) == 0 {
		return "📘 No aliases saved."
	}
	lines := []string{"**Aliases**:"}
	for _, alias := range aliases {
		lines = append(lines, fmt.Sprintf("- `%s` → `%s`", alias.Name, alias.EntityID))
	}
	return strings.Join(lines, "\n")
}

func (s *Service) addAlias(command Command) string {
	alias, err := s.directory.UpsertAlias(command.Name, command.EntityID)
	if alias.Name == "" {
		return aliasAddUsage
	}
	return withSaveWarning(fmt.Sprintf("✅ Alias saved: `%s` → `%s`", alias.Name, alias.EntityID), err)
}

func (s *Service) deleteAlias(command Command) string {
	deleted, err := s.directory.DeleteAlias(command.Name)
	if !deleted {
		return "ℹ️ Alias not found."
	}
	return withSaveWarning("✅ Alias removed.", err)
}

func (s *Service) listGroups() string {
	groups := s.directory.Groups()
	if len(groups) == 0 {
		return "📗 No groups saved."
	}
	lines := []string{"**Groups**:"}
	for _, group := range groups {
		lines = append(lines, fmt.Sprintf("- `%s` → %s", group.Name, formatMembers(group.Members)))
	}
	return strings.Join(lines, "\n")
}

func (s *Service) showGroup(command Command) string {
	group, ok := s.directory.LookupGroup(command.Name)
	if !ok {
		return "ℹ️ Group not found."
	}
	return fmt.Sprintf("**%s** → %s", group.Name, formatMembers(group.Members))
}

func (s *Service) writeGroup(command Command) string {
	var (
		group directory.Group
		err   error
	)
	verb := "set"
	if command.Kind == KindAppendGroup {
		verb = "updated"
		group, err = s.directory.AppendGroup(command.Name, command.Members)
	} else {
		group, err = s.directory.SetGroup(command.Name, command.Members)
	}
	if group.Name == "" {
		return groupNoMembers
	}
	// The confirmation echoes the name as typed and the count just supplied.
	return withSaveWarning(fmt.Sprintf("✅ Group `%s` %s with %d member(s).", command.Name, verb, len(command.Members)), err)
}

func (s *Service) deleteGroup(command Command) string {
	deleted, err := s.directory.DeleteGroup(command.Name)
	if !deleted {
		return "ℹ️ Group not found."
	}
	return withSaveWarning("✅ Group removed.", err)
}

func formatMembers(members []string) string {
	quoted := make([]string, 0, len(members))
	for _, member := range members {
		quoted = append(quoted, "`"+member+"`")
	}
	return strings.Join(quoted, ", ")
}

// withSaveWarning appends a notice when the change is live but the directory
// file could not be written.
func withSaveWarning(text string, err error) string {
	if err == nil {
		return text
	}
	return text + fmt.Sprintf("\n⚠️ Could not write directory file: `%v`", err)
}
