package googletasks

import (
	"context"
	"fmt"
	"strings"

	"tasksync/internal/service"
)

// Source is the read side of a Google Tasks account.
type Source interface {
	ResolveList(ctx context.Context, name string) (TaskList, error)
	OpenTasks(ctx context.Context, listID string) ([]RemoteTask, error)
}

// Result summarises an import.
type Result struct {
	List     string
	Added    int
	Skipped  int
	Untitled int
}

// Import adds every open task of the named Google list to dst, grouped under
// the list title. Tasks whose text already exists in the same group are
// skipped, so importing twice is harmless.
func Import(ctx context.Context, src Source, dst service.Service, listName string) (Result, error) {
	list, err := src.ResolveList(ctx, listName)
	if err != nil {
		return Result{}, err
	}
	remote, err := src.OpenTasks(ctx, list.ID)
	if err != nil {
		return Result{}, err
	}

	snap, err := dst.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	existing := make(map[string]bool, len(snap.Items))
	for _, t := range snap.Items {
		existing[key(t.GroupName(), t.Text)] = true
	}

	res := Result{List: list.Title}
	for _, rt := range remote {
		text := strings.TrimSpace(rt.Title)
		if text == "" {
			res.Untitled++
			continue
		}
		k := key(list.Title, text)
		if existing[k] {
			res.Skipped++
			continue
		}
		if err := dst.Add(ctx, text, list.Title); err != nil {
			return res, fmt.Errorf("add %q: %w", text, err)
		}
		existing[k] = true
		res.Added++
	}
	return res, nil
}

func key(group, text string) string {
	return group + "\x00" + text
}
