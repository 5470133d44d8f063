// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package guest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bureau-foundation/scmtunnel/lib/clock"
	"github.com/bureau-foundation/scmtunnel/lib/codec"
	"github.com/bureau-foundation/scmtunnel/lib/host"
	"github.com/bureau-foundation/scmtunnel/lib/scm"
	"github.com/bureau-foundation/scmtunnel/lib/testutil"
	"github.com/bureau-foundation/scmtunnel/lib/tunnel"
	"github.com/bureau-foundation/scmtunnel/lib/vpath"
	"github.com/bureau-foundation/scmtunnel/lib/workspace"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// recordingRunner stands in for git on the host. It records what it
// was asked to run and returns a canned result.
type recordingRunner struct {
	mu        sync.Mutex
	options   scm.Options
	arguments []scm.Argument

	result scm.Result
	err    error
}

func (r *recordingRunner) Run(_ context.Context, options scm.Options, arguments []scm.Argument) (scm.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options = options
	r.arguments = arguments
	return r.result, r.err
}

func (r *recordingRunner) respond(result scm.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = result
	r.err = err
}

func (r *recordingRunner) last() (scm.Options, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.options, scm.Argv(r.arguments)
}

type existsFunc func(ctx context.Context, repoPath, fileName string, ensureCase bool) (bool, error)

func (f existsFunc) Exists(ctx context.Context, repoPath, fileName string, ensureCase bool) (bool, error) {
	return f(ctx, repoPath, fileName, ensureCase)
}

// countingCaller counts calls per action before forwarding them.
type countingCaller struct {
	next  tunnel.Caller
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingCaller) Call(ctx context.Context, action string, request, result any) error {
	c.mu.Lock()
	if c.calls == nil {
		c.calls = make(map[string]int)
	}
	c.calls[action]++
	c.mu.Unlock()
	return c.next.Call(ctx, action, request, result)
}

func (c *countingCaller) count(action string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[action]
}

type fixture struct {
	runner  *recordingRunner
	caller  *countingCaller
	session *Session
}

var testFolders = workspace.StaticFolders{
	{Index: 0, Path: "/home/a"},
	{Index: 1, Path: "/home/a/sub"},
	{Index: 2, Path: "/srv/b"},
}

// startHost serves a host service over a Unix socket and returns a
// guest session connected to it.
func startHost(t *testing.T, folders workspace.FolderSource, repositories workspace.RepositorySource, files workspace.ExistenceChecker) *fixture {
	t.Helper()
	runner := &recordingRunner{}
	f := serveHost(t, runner, folders, repositories, files)
	f.runner = runner
	return f
}

// serveHost is startHost with a caller-supplied runner. The returned
// fixture has no recordingRunner.
func serveHost(t *testing.T, runner scm.Runner, folders workspace.FolderSource, repositories workspace.RepositorySource, files workspace.ExistenceChecker) *fixture {
	t.Helper()
	if repositories == nil {
		repositories = workspace.StaticRepositories{}
	}
	if files == nil {
		files = existsFunc(func(context.Context, string, string, bool) (bool, error) { return false, nil })
	}
	service, err := host.NewService(host.Config{
		Runner:               runner,
		Repositories:         repositories,
		Files:                files,
		Folders:              folders,
		Logger:               testLogger(),
		CompressionThreshold: 512,
		TextCompression:      codec.CompressionZstd,
		BinaryCompression:    codec.CompressionLZ4,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	server := tunnel.NewServer(testLogger())
	service.Register(server)

	socketPath := testutil.SocketPath(t)
	listener, err := tunnel.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		testutil.RequireReceive(t, done, 5*time.Second, "host shutdown")
	})

	caller := &countingCaller{next: tunnel.NewClient("unix", socketPath, testLogger(), clock.Real())}
	return &fixture{
		caller:  caller,
		session: NewSession(caller, testLogger()),
	}
}

func TestEnsureMappedBuildsOnce(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)
	ctx := context.Background()

	first, err := f.session.EnsureMapped(ctx)
	if err != nil {
		t.Fatalf("EnsureMapped: %v", err)
	}
	second, err := f.session.EnsureMapped(ctx)
	if err != nil {
		t.Fatalf("EnsureMapped: %v", err)
	}
	if first != second {
		t.Error("second EnsureMapped built a new table")
	}
	if calls := f.caller.count(tunnel.ActionWorkspacePaths); calls != 1 {
		t.Errorf("workspace-paths called %d times, want 1", calls)
	}
	if first.Len() != len(testFolders) {
		t.Errorf("table has %d entries, want %d", first.Len(), len(testFolders))
	}
	if shared, ok := first.ToShared("/home/a/sub"); !ok || shared != "/~1" {
		t.Errorf("ToShared(/home/a/sub) = %q, %v; want /~1, true", shared, ok)
	}
}

func TestEnsureMappedZeroFolders(t *testing.T) {
	f := startHost(t, workspace.StaticFolders{}, nil, nil)
	f.runner.respond(scm.Result{Output: []byte("/home/a/file.txt\n")}, nil)

	table, err := f.session.EnsureMapped(context.Background())
	if err != nil {
		t.Fatalf("EnsureMapped: %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("table has %d entries, want 0", table.Len())
	}

	result, err := f.session.RunCommand(context.Background(), scm.Options{}, scm.ParseArguments([]string{"ls-files"}))
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if result.Text() != "/home/a/file.txt\n" {
		t.Errorf("output = %q, want unchanged", result.Text())
	}
}

func TestEnsureMappedConcurrent(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.session.EnsureMapped(context.Background()); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()
	if failures.Load() != 0 {
		t.Fatalf("%d concurrent EnsureMapped calls failed", failures.Load())
	}

	table, err := f.session.EnsureMapped(context.Background())
	if err != nil {
		t.Fatalf("EnsureMapped: %v", err)
	}
	if local, ok := table.ToLocal("/~2"); !ok || local != "/srv/b" {
		t.Errorf("ToLocal(/~2) = %q, %v; want /srv/b, true", local, ok)
	}
}

func TestRunCommandRewritesBothDirections(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)
	f.runner.respond(scm.Result{Output: []byte("M /home/a/sub/file.txt\nM /srv/b/main.go\n?? /opt/other\n")}, nil)

	result, err := f.session.RunCommand(context.Background(),
		scm.Options{Cwd: "/~2"},
		scm.ParseArguments([]string{"status", "--porcelain", "--", "/~1/file.txt", "/~2/main.go"}),
	)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}

	options, argv := f.runner.last()
	if options.Cwd != "/srv/b" {
		t.Errorf("host cwd = %q, want /srv/b", options.Cwd)
	}
	wantArgv := []string{"status", "--porcelain", "--", "/home/a/sub/file.txt", "/srv/b/main.go"}
	if !reflect.DeepEqual(argv, wantArgv) {
		t.Errorf("host argv = %q, want %q", argv, wantArgv)
	}

	want := "M /~1/file.txt\nM /~2/main.go\n?? /opt/other\n"
	if result.Text() != want {
		t.Errorf("output = %q, want %q", result.Text(), want)
	}
	if result.Binary {
		t.Error("text result flagged binary")
	}
}

func TestRunCommandLeavesFlagsAlone(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)

	// Before the separator a token that looks like a virtual path is
	// an opaque flag value.
	_, err := f.session.RunCommand(context.Background(), scm.Options{},
		scm.ParseArguments([]string{"log", "/~0", "--format=/~2", "--", "/~0/x"}),
	)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	_, argv := f.runner.last()
	want := []string{"log", "/~0", "--format=/~2", "--", "/home/a/x"}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("host argv = %q, want %q", argv, want)
	}
}

func TestRunCommandStripsLeadingSeparatorAtRootAlias(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)

	_, err := f.session.RunCommand(context.Background(),
		scm.Options{Cwd: "/~0"},
		scm.ParseArguments([]string{"diff", "--", "/home/a/sub/file.txt", `\docs\readme.md`, "relative.txt"}),
	)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	options, argv := f.runner.last()
	if options.Cwd != "/home/a" {
		t.Errorf("host cwd = %q, want /home/a", options.Cwd)
	}
	want := []string{"diff", "--", "home/a/sub/file.txt", `docs\readme.md`, "relative.txt"}
	if !reflect.DeepEqual(argv, want) {
		t.Errorf("host argv = %q, want %q", argv, want)
	}
}

func TestRunCommandNoStripOutsideRootAlias(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)

	_, err := f.session.RunCommand(context.Background(),
		scm.Options{Cwd: "/~1"},
		scm.ParseArguments([]string{"diff", "--", "/~1/file.txt"}),
	)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	_, argv := f.runner.last()
	if want := []string{"diff", "--", "/home/a/sub/file.txt"}; !reflect.DeepEqual(argv, want) {
		t.Errorf("host argv = %q, want %q", argv, want)
	}
}

func TestRunCommandBinaryOutputUntouched(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)
	// Contains a known real path, and is large enough to be compressed.
	blob := []byte(strings.Repeat("\x00/home/a/sub/file.txt\xff", 64))
	f.runner.respond(scm.Result{Output: blob, Binary: true}, nil)

	result, err := f.session.RunCommand(context.Background(), scm.Options{Cwd: "/~0"},
		scm.ParseArguments([]string{"cat-file", "blob", "HEAD:file.txt"}),
	)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if !result.Binary {
		t.Error("binary result not flagged")
	}
	if string(result.Output) != string(blob) {
		t.Error("binary output was modified")
	}
}

func TestRunCommandRewritesLegacyEncodedText(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	git := func(args ...string) {
		t.Helper()
		command := exec.Command("git", append([]string{"-C", dir}, args...)...)
		command.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=Test", "GIT_AUTHOR_EMAIL=test@test.local",
			"GIT_COMMITTER_NAME=Test", "GIT_COMMITTER_EMAIL=test@test.local",
		)
		if output, err := command.CombinedOutput(); err != nil {
			t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
		}
	}
	git("init", "-q", "-b", "main")
	// Latin-1 "café" makes the content invalid UTF-8.
	content := "caf\xe9 " + filepath.Join(dir, "notes.txt") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(content), 0o644); err != nil {
		t.Fatalf("write notes.txt: %v", err)
	}
	git("add", "notes.txt")
	git("commit", "-q", "-m", "initial")

	f := serveHost(t, scm.NewGitRunner(""), workspace.StaticFolders{{Index: 0, Path: dir}}, nil, nil)
	result, err := f.session.RunCommand(context.Background(), scm.Options{Cwd: "/~0"},
		scm.ParseArguments([]string{"show", "HEAD:notes.txt"}),
	)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if result.Binary {
		t.Error("text output flagged binary")
	}
	if want := "caf\xe9 /~0/notes.txt\n"; result.Text() != want {
		t.Errorf("output = %q, want %q", result.Text(), want)
	}
}

func TestRunCommandCompressedTextIsRewritten(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)
	line := "diff --git a/home/a/x b/home/a/x\n+++ /srv/b/y\n"
	f.runner.respond(scm.Result{Output: []byte(strings.Repeat(line, 100))}, nil)

	result, err := f.session.RunCommand(context.Background(), scm.Options{}, scm.ParseArguments([]string{"diff"}))
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	want := strings.Repeat("diff --git a/home/a/x b/home/a/x\n+++ /~2/y\n", 100)
	if result.Text() != want {
		t.Errorf("output not rewritten as expected; first line %q", strings.SplitN(result.Text(), "\n", 2)[0])
	}
}

func TestRunCommandCwdMissPassesThrough(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)

	_, err := f.session.RunCommand(context.Background(),
		scm.Options{Cwd: "/not/mapped/path"},
		scm.ParseArguments([]string{"status", "--", "/not/mapped/path/file"}),
	)
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	options, argv := f.runner.last()
	if options.Cwd != "/not/mapped/path" {
		t.Errorf("host cwd = %q, want it unchanged", options.Cwd)
	}
	if argv[2] != "/not/mapped/path/file" {
		t.Errorf("path argument = %q, want it unchanged", argv[2])
	}

	table, err := f.session.EnsureMapped(context.Background())
	if err != nil {
		t.Fatalf("EnsureMapped: %v", err)
	}
	if table.Misses() != 1 {
		t.Errorf("Misses() = %d, want 1", table.Misses())
	}
}

func TestRunCommandRemoteError(t *testing.T) {
	f := startHost(t, testFolders, nil, nil)
	f.runner.respond(scm.Result{}, &scm.ExitError{Command: "git", Args: []string{"log"}, ExitCode: 128, Stderr: "fatal: bad revision"})

	_, err := f.session.RunCommand(context.Background(), scm.Options{}, scm.ParseArguments([]string{"log"}))
	var remote *tunnel.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("error = %v, want *tunnel.RemoteError", err)
	}
	if remote.Action != tunnel.ActionRunCommand {
		t.Errorf("Action = %q, want %q", remote.Action, tunnel.ActionRunCommand)
	}
	if !strings.Contains(remote.Message, "fatal: bad revision") {
		t.Errorf("Message = %q, want the host's stderr", remote.Message)
	}
}

func TestServiceUnavailable(t *testing.T) {
	socketPath := testutil.SocketPath(t)
	client := tunnel.NewClient("unix", socketPath, testLogger(), clock.Real())
	session := NewSession(client, testLogger())

	_, err := session.RunCommand(context.Background(), scm.Options{}, scm.ParseArguments([]string{"status"}))
	if !errors.Is(err, tunnel.ErrServiceUnavailable) {
		t.Fatalf("error = %v, want ErrServiceUnavailable", err)
	}
}

func TestRepositoriesInFolder(t *testing.T) {
	repositories := workspace.StaticRepositories{
		{Path: "/home/a", IsRoot: true},
		{Path: "/home/ab/x"},
		{Path: "/home/a/lib", IsClosed: true},
	}
	f := startHost(t, workspace.StaticFolders{{Index: 0, Path: "/home/a"}, {Index: 1, Path: "/home/ab"}}, repositories, nil)

	var changed []string
	handles, err := f.session.RepositoriesInFolder(context.Background(), vpath.SharedURI("/~0"), func(repository *Repository) {
		changed = append(changed, repository.Path)
	})
	if err != nil {
		t.Fatalf("RepositoriesInFolder: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("got %d repositories, want 2: %+v", len(handles), handles)
	}
	if handles[0].Path != "/~0" || !handles[0].IsRoot || handles[0].FolderURI != "share:///~0" {
		t.Errorf("first handle = %+v", handles[0])
	}
	if handles[1].Path != "/~0/lib" || !handles[1].IsClosed || handles[1].FolderURI != "share:///~0" {
		t.Errorf("second handle = %+v", handles[1])
	}

	handles[1].NotifyChanged()
	handles[0].NotifyChanged()
	if want := []string{"/~0/lib", "/~0"}; !reflect.DeepEqual(changed, want) {
		t.Errorf("change notifications = %v, want %v", changed, want)
	}
}

func TestRepositoryNotifyChangedWithoutCallback(t *testing.T) {
	repository := newRepository(tunnel.RepositoryDescriptor{Path: "/~0"}, nil)
	repository.NotifyChanged()
}

func TestFileExistsRewritesVirtualRepoPath(t *testing.T) {
	var mu sync.Mutex
	var asked []string
	files := existsFunc(func(_ context.Context, repoPath, fileName string, ensureCase bool) (bool, error) {
		mu.Lock()
		asked = append(asked, repoPath)
		mu.Unlock()
		return repoPath == "/srv/b" && fileName == "go.mod" && ensureCase, nil
	})
	f := startHost(t, testFolders, nil, files)

	exists, err := f.session.FileExists(context.Background(), "/~2", "go.mod", tunnel.FileExistsOptions{EnsureCase: true})
	if err != nil {
		t.Fatalf("FileExists: %v", err)
	}
	if !exists {
		t.Error("FileExists(/~2, go.mod) = false, want true")
	}

	if _, err := f.session.FileExists(context.Background(), "/opt/elsewhere", "go.mod", tunnel.FileExistsOptions{}); err != nil {
		t.Fatalf("FileExists: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if want := []string{"/srv/b", "/opt/elsewhere"}; !reflect.DeepEqual(asked, want) {
		t.Errorf("host asked about %v, want %v", asked, want)
	}
}

func TestSetAvailable(t *testing.T) {
	session := NewSession(nil, testLogger())
	session.SetAvailable(true)
	if !session.Available() {
		t.Error("SetAvailable(true) not recorded")
	}
	session.SetAvailable(false)
	if session.Available() {
		t.Error("SetAvailable(false) not recorded")
	}
}
