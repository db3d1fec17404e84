package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gobeaver/cloudvfs"
	"github.com/gobeaver/cloudvfs/driver/memory"
)

const testConn = "DefaultEndpointsProtocol=https;AccountName=acct;AccountKey=a2V5;EndpointSuffix=core.windows.net"

type testApp struct {
	*App
	store  *memory.Store
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newTestApp(t *testing.T, stdin string) *testApp {
	t.Helper()
	store := memory.New()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	app := &App{
		In:     strings.NewReader(stdin),
		Out:    out,
		ErrOut: errOut,
		NewSession: func(ctx context.Context, prompter cloudvfs.ConnectionPrompter) (*cloudvfs.Session, error) {
			return cloudvfs.New(store, cloudvfs.WithPrompter(prompter)), nil
		},
	}
	return &testApp{App: app, store: store, out: out, errOut: errOut}
}

func (a *testApp) run(args ...string) int {
	a.out.Reset()
	a.errOut.Reset()
	return a.Run(context.Background(), args)
}

func TestVersion(t *testing.T) {
	app := newTestApp(t, "")
	app.NewSession = func(context.Context, cloudvfs.ConnectionPrompter) (*cloudvfs.Session, error) {
		return nil, errors.New("session must not be created")
	}

	if code := app.run("version"); code != 0 {
		t.Fatalf("exit code = %d, stderr = %s", code, app.errOut)
	}
	if got := app.out.String(); got != "cloudvfs version dev\n" {
		t.Errorf("output = %q", got)
	}
}

func TestConnectAndList(t *testing.T) {
	app := newTestApp(t, "")
	app.store.CreateContainer("acct", "docs")

	if code := app.run("connect", testConn); code != 0 {
		t.Fatalf("connect exit code = %d, stderr = %s", code, app.errOut)
	}
	if got := app.out.String(); got != "connected acct\n" {
		t.Errorf("connect output = %q", got)
	}

	if code := app.run("ls"); code != 0 {
		t.Fatalf("ls exit code = %d", code)
	}
	if got := app.out.String(); got != "acct/\nConnect to Azure\n" {
		t.Errorf("ls output = %q", got)
	}

	if code := app.run("ls", "/acct"); code != 0 {
		t.Fatalf("ls exit code = %d", code)
	}
	if got := app.out.String(); got != "docs/\n" {
		t.Errorf("ls /acct output = %q", got)
	}
}

func TestConnectOptions(t *testing.T) {
	t.Run("lists options", func(t *testing.T) {
		app := newTestApp(t, "")
		if code := app.run("connect"); code != 0 {
			t.Fatalf("exit code = %d", code)
		}
		lines := strings.Split(strings.TrimSpace(app.out.String()), "\n")
		if len(lines) != len(cloudvfs.ConnectOptions) {
			t.Fatalf("got %d lines, want %d", len(lines), len(cloudvfs.ConnectOptions))
		}
		if lines[0] != "1. "+cloudvfs.ConnectOptions[0].Label {
			t.Errorf("first line = %q", lines[0])
		}
	})

	t.Run("prompts on stdin", func(t *testing.T) {
		app := newTestApp(t, "https://acct.blob.core.windows.net/?sv=2022-11-02&sig=abc\n")
		if code := app.run("connect", "--option", "2"); code != 0 {
			t.Fatalf("exit code = %d, stderr = %s", code, app.errOut)
		}
		if got := app.out.String(); got != "connected acct(SAS)\n" {
			t.Errorf("output = %q", got)
		}
		if !strings.Contains(app.errOut.String(), cloudvfs.ConnectOptions[1].Prompt) {
			t.Errorf("prompt not shown, stderr = %q", app.errOut)
		}
	})

	t.Run("empty input cancels", func(t *testing.T) {
		app := newTestApp(t, "\n")
		code := app.run("connect", "--option", "1")
		if code != int(cloudvfs.CodeUserAbort) {
			t.Errorf("exit code = %d, want %d", code, cloudvfs.CodeUserAbort)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		app := newTestApp(t, "")
		if code := app.run("connect", "--option", "9"); code != 64 {
			t.Errorf("exit code = %d, want 64", code)
		}
	})
}

func TestTransfers(t *testing.T) {
	app := newTestApp(t, "")
	app.store.CreateContainer("acct", "docs")
	if code := app.run("connect", testConn); code != 0 {
		t.Fatalf("connect exit code = %d", code)
	}

	dir := t.TempDir()
	local := filepath.Join(dir, "report.txt")
	if err := os.WriteFile(local, []byte("quarterly numbers"), 0o644); err != nil {
		t.Fatal(err)
	}

	if code := app.run("put", local, "/acct/docs/reports/report.txt"); code != 0 {
		t.Fatalf("put exit code = %d, stderr = %s", code, app.errOut)
	}
	if !strings.Contains(app.errOut.String(), "100%") {
		t.Errorf("expected progress on stderr, got %q", app.errOut)
	}

	if code := app.run("put", local, "/acct/docs/reports/report.txt"); code != int(cloudvfs.CodeFileExists) {
		t.Errorf("second put exit code = %d, want %d", code, cloudvfs.CodeFileExists)
	}

	if code := app.run("-q", "cp", "/acct/docs/reports/report.txt", "/acct/docs/copy.txt"); code != 0 {
		t.Fatalf("cp exit code = %d, stderr = %s", code, app.errOut)
	}
	if app.errOut.Len() != 0 {
		t.Errorf("quiet run wrote %q", app.errOut)
	}

	downloaded := filepath.Join(dir, "copy.txt")
	if code := app.run("get", "/acct/docs/copy.txt", downloaded, "--move"); code != 0 {
		t.Fatalf("get exit code = %d, stderr = %s", code, app.errOut)
	}
	data, err := os.ReadFile(downloaded)
	if err != nil || string(data) != "quarterly numbers" {
		t.Errorf("downloaded %q, %v", data, err)
	}
	if _, ok := app.store.BlobContent("acct", "docs", "copy.txt"); ok {
		t.Error("--move must delete the blob")
	}

	if code := app.run("ls", "-l", "/acct/docs/reports"); code != 0 {
		t.Fatalf("ls exit code = %d", code)
	}
	if !strings.Contains(app.out.String(), "report.txt") || !strings.HasPrefix(app.out.String(), "- ") {
		t.Errorf("ls -l output = %q", app.out)
	}

	if code := app.run("--read-only", "rm", "/acct/docs/reports/report.txt"); code != int(cloudvfs.CodeUnsupported) {
		t.Errorf("read-only rm exit code = %d, want %d", code, cloudvfs.CodeUnsupported)
	}
	if !strings.Contains(app.errOut.String(), "read-only") {
		t.Errorf("read-only error = %q", app.errOut)
	}

	if code := app.run("rm", "/acct/docs/reports/report.txt"); code != 0 {
		t.Fatalf("rm exit code = %d", code)
	}
	if got := app.out.String(); got != "/acct/docs/reports/report.txt: deleted\n" {
		t.Errorf("rm output = %q", got)
	}
}

func TestStatAndSum(t *testing.T) {
	app := newTestApp(t, "")
	app.store.PutBlob("acct", "docs", "a.txt", []byte("hello"))
	if code := app.run("connect", testConn); code != 0 {
		t.Fatalf("connect exit code = %d", code)
	}

	if code := app.run("stat", "/acct/docs/a.txt"); code != 0 {
		t.Fatalf("stat exit code = %d, stderr = %s", code, app.errOut)
	}
	if !strings.Contains(app.out.String(), "Size") {
		t.Errorf("stat output = %q", app.out)
	}

	if code := app.run("sum", "-a", "md5", "/acct/docs/a.txt"); code != 0 {
		t.Fatalf("sum exit code = %d", code)
	}
	const md5Hello = "5d41402abc4b2a76b9719d911017c592"
	if got := app.out.String(); got != md5Hello+"  /acct/docs/a.txt\n" {
		t.Errorf("sum output = %q", got)
	}

	if code := app.run("sum", "-a", "md5", "--verify", md5Hello, "/acct/docs/a.txt"); code != 0 {
		t.Errorf("verify exit code = %d", code)
	}
}

func TestExitCodes(t *testing.T) {
	app := newTestApp(t, "")

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing argument", []string{"get", "/a/b/c"}, 64},
		{"unknown flag", []string{"ls", "--bogus"}, 64},
		{"unknown connection", []string{"disconnect", "nope"}, int(cloudvfs.CodeFileNotFound)},
		{"container mkdir", []string{"mkdir", "/acct/docs"}, int(cloudvfs.CodeUnsupported)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := app.run(tt.args...); code != tt.want {
				t.Errorf("exit code = %d, want %d (stderr %q)", code, tt.want, app.errOut)
			}
			if !strings.HasPrefix(app.errOut.String(), "Error: ") {
				t.Errorf("expected error on stderr, got %q", app.errOut)
			}
		})
	}
}

func TestCopyIntegrityFailure(t *testing.T) {
	app := newTestApp(t, "")
	app.store.PutBlob("acct", "docs", "a.txt", []byte("hello"))
	app.store.DropCopies(true)
	if code := app.run("connect", testConn); code != 0 {
		t.Fatalf("connect exit code = %d", code)
	}

	if code := app.run("cp", "/acct/docs/a.txt", "/acct/docs/b.txt"); code != exitIntegrity {
		t.Errorf("exit code = %d, want %d", code, exitIntegrity)
	}
	if !strings.Contains(app.errOut.String(), "FATAL: ") {
		t.Errorf("expected a fatal report on stderr, got %q", app.errOut)
	}
	if cloudvfs.ResultCodeOf(cloudvfs.ErrCopyIntegrity) == cloudvfs.CodeOK {
		t.Error("integrity failure must not map to OK")
	}
}

func TestLinePrompter(t *testing.T) {
	var out bytes.Buffer
	p := &linePrompter{in: strings.NewReader("  first  \nsecond"), out: &out}

	got, ok, err := p.PromptConnection(context.Background(), "Title:", "template")
	if err != nil || !ok || got != "first" {
		t.Errorf("first prompt = %q, %v, %v", got, ok, err)
	}
	got, ok, err = p.PromptConnection(context.Background(), "Title:", "template")
	if err != nil || !ok || got != "second" {
		t.Errorf("second prompt = %q, %v, %v", got, ok, err)
	}
	_, ok, err = p.PromptConnection(context.Background(), "Title:", "template")
	if err != nil || ok {
		t.Errorf("exhausted input should cancel, got %v, %v", ok, err)
	}
	if !strings.HasPrefix(out.String(), "Title:\n  template\n> ") {
		t.Errorf("prompt output = %q", out.String())
	}
}
