package injection

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

type fakeBackend struct {
	name        string
	unavailable error
	injectErr   error
	got         []string
}

func (f *fakeBackend) Name() string     { return f.name }
func (f *fakeBackend) Available() error { return f.unavailable }

func (f *fakeBackend) Inject(ctx context.Context, text string, timeout time.Duration) error {
	f.got = append(f.got, text)
	return f.injectErr
}

func TestNewInjector(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{"default", DefaultConfig(), ""},
		{"both", Config{Backends: []string{"wtype", "clipboard"}}, ""},
		{"empty", Config{}, "no injection backends"},
		{"unknown", Config{Backends: []string{"ydotool"}}, "unsupported injection backend: ydotool"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewInjector(tt.config)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("NewInjector() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewInjector() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestInject(t *testing.T) {
	tests := []struct {
		name     string
		backends []*fakeBackend
		text     string
		wantUsed string
		wantErr  bool
	}{
		{
			name:     "first works",
			backends: []*fakeBackend{{name: "a"}, {name: "b"}},
			text:     "美品のTシャツです。",
			wantUsed: "a",
		},
		{
			name:     "falls back when unavailable",
			backends: []*fakeBackend{{name: "a", unavailable: errors.New("missing")}, {name: "b"}},
			text:     "text",
			wantUsed: "b",
		},
		{
			name:     "falls back when injection fails",
			backends: []*fakeBackend{{name: "a", injectErr: errors.New("boom")}, {name: "b"}},
			text:     "text",
			wantUsed: "b",
		},
		{
			name:     "all fail",
			backends: []*fakeBackend{{name: "a", injectErr: errors.New("boom")}, {name: "b", unavailable: errors.New("missing")}},
			text:     "text",
			wantErr:  true,
		},
		{
			name:     "empty text",
			backends: []*fakeBackend{{name: "a"}},
			text:     "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			available := make(map[string]Backend)
			var names []string
			for _, b := range tt.backends {
				available[b.name] = b
				names = append(names, b.name)
			}
			inj, err := newInjector(Config{Backends: names, Timeout: time.Second}, available)
			if err != nil {
				t.Fatal(err)
			}

			used, err := inj.Inject(context.Background(), tt.text)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Inject() error = %v, wantErr %v", err, tt.wantErr)
			}
			if used != tt.wantUsed {
				t.Errorf("Inject() used %q, want %q", used, tt.wantUsed)
			}
			if tt.wantUsed != "" {
				for _, b := range tt.backends {
					if b.name == tt.wantUsed && (len(b.got) != 1 || b.got[0] != tt.text) {
						t.Errorf("backend %s got %v", b.name, b.got)
					}
				}
			}
		})
	}
}

func TestInjectEmptyTextSentinel(t *testing.T) {
	inj, _ := newInjector(Config{Backends: []string{"a"}}, map[string]Backend{"a": &fakeBackend{name: "a"}})
	if _, err := inj.Inject(context.Background(), ""); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Inject(\"\") error = %v, want ErrEmptyText", err)
	}
}

func TestClipboardBackend(t *testing.T) {
	var written string
	b := &clipboardBackend{write: func(s string) error {
		written = s
		return nil
	}}
	if err := b.Inject(context.Background(), "サイズはLです。", time.Second); err != nil {
		t.Fatalf("Inject() error = %v", err)
	}
	if written != "サイズはLです。" {
		t.Errorf("written = %q", written)
	}

	b.write = func(string) error { return errors.New("no display") }
	if err := b.Inject(context.Background(), "x", time.Second); err == nil {
		t.Error("write failure should be returned")
	}
}

func TestClipboardBackendTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	b := &clipboardBackend{write: func(string) error {
		<-release
		return nil
	}}
	if err := b.Inject(context.Background(), "x", 20*time.Millisecond); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Inject() error = %v, want deadline exceeded", err)
	}
}

func TestWtypeBackendArgs(t *testing.T) {
	var gotArgs []string
	b := &wtypeBackend{command: func(ctx context.Context, name string, args ...string) *exec.Cmd {
		gotArgs = append([]string{name}, args...)
		return exec.CommandContext(ctx, "true")
	}}

	if err := b.Inject(context.Background(), "-5% OFF", time.Second); err != nil {
		t.Skipf("true not runnable here: %v", err)
	}
	want := []string{"wtype", "--", "-5% OFF"}
	if strings.Join(gotArgs, "|") != strings.Join(want, "|") {
		t.Errorf("args = %v, want %v", gotArgs, want)
	}
}
