package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tasksync/internal/cli"
	"tasksync/internal/commands"
	"tasksync/internal/config"
	"tasksync/internal/exitcode"
	"tasksync/internal/service"
	"tasksync/internal/testutil"
)

// testFactory creates a service factory that returns the given FakeService.
func testFactory(svc *testutil.FakeService) cli.ServiceFactory {
	return func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		return svc, nil
	}
}

// run dispatches args with an isolated config directory.
func run(t *testing.T, factory cli.ServiceFactory, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	t.Setenv("TASKSYNC_SERVER", "")
	t.Setenv("TASKSYNC_TOKEN", "")

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)
	var outBuf, errBuf bytes.Buffer
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		args = append(args, "--config", t.TempDir())
	}
	code = dispatcher.Run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	_, stderr, code := run(t, testFactory(testutil.NewFakeService()), "unknowncmd")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	_, stderr, code := run(t, testFactory(testutil.NewFakeService()), "--quiet")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	stdout, stderr, code := run(t, testFactory(svc), "help")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected empty stderr, got %q", stderr)
	}
	if !strings.HasPrefix(stdout, "Usage:\n") {
		t.Errorf("expected usage text, got %q", stdout)
	}
	if len(svc.Calls) != 0 {
		t.Errorf("help must not touch the backend, got %v", svc.Calls)
	}
}

func TestDispatcher_HelpAlias(t *testing.T) {
	stdout, _, code := run(t, testFactory(testutil.NewFakeService()), "help", "ls")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "tasksync list") {
		t.Errorf("expected list usage, got %q", stdout)
	}
}

func TestDispatcher_VersionCommand(t *testing.T) {
	stdout, _, code := run(t, testFactory(testutil.NewFakeService()), "version")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "tasksync 0.1.0\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	_, stderr, code := run(t, testFactory(testutil.NewFakeService()), "help", "--bogus")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: --bogus\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_InvalidFormat(t *testing.T) {
	svc := testutil.NewFakeService()
	_, stderr, code := run(t, testFactory(svc), "list", "--format", "xml")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "xml") {
		t.Errorf("expected format error, got %q", stderr)
	}
	if len(svc.Calls) != 0 {
		t.Errorf("expected no calls, got %v", svc.Calls)
	}
}

func TestDispatcher_CommandFlagsAfterArgs(t *testing.T) {
	svc := testutil.NewFakeService()
	stdout, stderr, code := run(t, testFactory(svc), "add", "Buy milk", "-g", "errands")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}
	tasks := svc.Tasks()
	if len(tasks) != 1 || tasks[0].Text != "Buy milk" || tasks[0].GroupName() != "errands" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
}

func TestDispatcher_FactoryError(t *testing.T) {
	factory := func(ctx context.Context, cfg *config.Config) (service.Service, error) {
		return nil, fmt.Errorf("%w: bad token", service.ErrUnauthorized)
	}
	_, stderr, code := run(t, factory, "list")

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.HasPrefix(stderr, "error: ") {
		t.Errorf("expected error output, got %q", stderr)
	}
}

func TestDispatcher_FileSelectsLocalBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")

	_, stderr, code := run(t, nil, "add", "Buy milk", "--file", path, "-q")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (stderr %q)", exitcode.Success, code, stderr)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected mirror file: %v", err)
	}
	if !strings.Contains(string(data), `"text": "Buy milk"`) {
		t.Errorf("expected task in mirror, got %s", data)
	}

	stdout, _, code := run(t, nil, "list", "--file", path)
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "[ ] Buy milk") {
		t.Errorf("expected listed task, got %q", stdout)
	}
}
