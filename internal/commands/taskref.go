package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"tasksync/internal/service"
)

// MinIDPrefix is the shortest id prefix accepted as a task reference.
const MinIDPrefix = 4

// TaskRef represents a parsed task reference.
type TaskRef struct {
	Num int    // 1-based display number, 0 if ID is set
	ID  string // full task id or id prefix
}

// ErrTaskRefRequired indicates no task reference was provided.
var ErrTaskRefRequired = errors.New("task reference required")

// ParseTaskRef parses the first arg as a task reference and returns the
// remaining args.
//
// Parsing rules:
// 1. All digits → 1-based number in display order
// 2. Otherwise → task id, or a unique id prefix of at least MinIDPrefix chars
func ParseTaskRef(args []string) (TaskRef, []string, error) {
	if len(args) == 0 {
		return TaskRef{}, nil, ErrTaskRefRequired
	}

	arg := strings.TrimSpace(args[0])
	if arg == "" {
		return TaskRef{}, nil, ErrTaskRefRequired
	}

	if isAllDigits(arg) {
		num, err := strconv.Atoi(arg)
		if err != nil || num < 1 {
			return TaskRef{}, nil, fmt.Errorf("%w: task number out of range: %s", service.ErrInvalidArgument, arg)
		}
		return TaskRef{Num: num}, args[1:], nil
	}

	return TaskRef{ID: arg}, args[1:], nil
}

// isAllDigits returns true if s consists only of ASCII digits and is non-empty.
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Resolve finds the referenced task in a snapshot.
func (r TaskRef) Resolve(snap service.Snapshot) (service.Task, error) {
	if r.ID == "" {
		if r.Num < 1 || r.Num > len(snap.Items) {
			return service.Task{}, fmt.Errorf("%w: task number out of range: %d", service.ErrNotFound, r.Num)
		}
		return snap.Items[r.Num-1], nil
	}

	if t, ok := snap.Find(r.ID); ok {
		return t, nil
	}
	if len(r.ID) < MinIDPrefix {
		return service.Task{}, fmt.Errorf("%w: task not found: %s", service.ErrNotFound, r.ID)
	}

	var matches []service.Task
	for _, t := range snap.Items {
		if strings.HasPrefix(t.ID, r.ID) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return service.Task{}, fmt.Errorf("%w: task not found: %s", service.ErrNotFound, r.ID)
	case 1:
		return matches[0], nil
	default:
		return service.Task{}, fmt.Errorf("%w: ambiguous task id: %s", service.ErrInvalidArgument, r.ID)
	}
}

// resolveTask parses the first arg and looks it up in the current list.
// It returns the task and the remaining args.
func resolveTask(ctx context.Context, svc service.Service, args []string) (service.Task, []string, error) {
	ref, rest, err := ParseTaskRef(args)
	if err != nil {
		return service.Task{}, nil, err
	}
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		return service.Task{}, nil, err
	}
	task, err := ref.Resolve(snap)
	if err != nil {
		return service.Task{}, nil, err
	}
	return task, rest, nil
}
