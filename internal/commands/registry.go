package commands

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Section groups commands in help output.
type Section int

const (
	SectionTasks Section = iota
	SectionSync
	SectionAccount
	SectionMisc
)

var sectionTitles = map[Section]string{
	SectionTasks:   "Tasks",
	SectionSync:    "Sync",
	SectionAccount: "Google Tasks",
	SectionMisc:    "Other",
}

func (s Section) String() string {
	if t, ok := sectionTitles[s]; ok {
		return t
	}
	return fmt.Sprintf("Section(%d)", int(s))
}

type entry struct {
	cmd     Command
	section Section
}

// Registry maps command names and aliases to commands. Lookup is
// case-insensitive.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry  // primary name
	aliases map[string]string // alias -> primary name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]entry),
		aliases: make(map[string]string),
	}
}

// Register adds c under section. It fails if the name or any alias
// collides with a command already registered.
func (r *Registry) Register(section Section, c Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(c.Name())
	if name == "" {
		return fmt.Errorf("command has no name")
	}
	if r.takenLocked(name) {
		return fmt.Errorf("command already registered: %s", name)
	}
	for _, alias := range c.Aliases() {
		alias = strings.ToLower(alias)
		if alias == name || r.takenLocked(alias) {
			return fmt.Errorf("command alias already registered: %s", alias)
		}
	}

	r.entries[name] = entry{cmd: c, section: section}
	for _, alias := range c.Aliases() {
		r.aliases[strings.ToLower(alias)] = name
	}
	return nil
}

func (r *Registry) takenLocked(key string) bool {
	if _, ok := r.entries[key]; ok {
		return true
	}
	_, ok := r.aliases[key]
	return ok
}

// Find looks up a command by name or alias.
func (r *Registry) Find(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := strings.ToLower(name)
	if primary, ok := r.aliases[key]; ok {
		key = primary
	}
	e, ok := r.entries[key]
	return e.cmd, ok
}

// All returns every command ordered by section, then name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := r.sortedLocked()
	result := make([]Command, len(sorted))
	for i, e := range sorted {
		result[i] = e.cmd
	}
	return result
}

// Sections returns commands grouped by section, in section order. Empty
// sections are omitted.
func (r *Registry) Sections() []Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var groups []Group
	for _, e := range r.sortedLocked() {
		if n := len(groups); n == 0 || groups[n-1].Section != e.section {
			groups = append(groups, Group{Section: e.section})
		}
		last := &groups[len(groups)-1]
		last.Commands = append(last.Commands, e.cmd)
	}
	return groups
}

func (r *Registry) sortedLocked() []entry {
	list := make([]entry, 0, len(r.entries))
	for _, e := range r.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].section != list[j].section {
			return list[i].section < list[j].section
		}
		return list[i].cmd.Name() < list[j].cmd.Name()
	})
	return list
}

// Group is one help section.
type Group struct {
	Section  Section
	Commands []Command
}

// DefaultRegistry is the global command registry.
var DefaultRegistry = NewRegistry()

// Register adds a command to the default registry.
func Register(section Section, c Command) {
	if err := DefaultRegistry.Register(section, c); err != nil {
		panic(err)
	}
}
