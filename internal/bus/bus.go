// Package bus is the control channel between the CLI and the daemon: a unix
// socket under the user cache dir carrying one request line and one
// response line per connection.
package bus

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const SockName = "control.sock"
const PidName = "thinkaloud.pid"
const ProtoVer = "1.0"

// Commands understood by the daemon.
const (
	CmdLoad     = "load"     // arg: text to edit
	CmdCorrect  = "correct"  // edit -> correction
	CmdEdit     = "edit"     // correction -> edit
	CmdStatus   = "status"   // STATUS <session json>
	CmdHistory  = "history"  // HISTORY <entries json>
	CmdComplete = "complete" // finish the task, STATUS <session json>
	CmdSession  = "session"  // arg: session identifier
	CmdVersion  = "version"
	CmdQuit     = "quit"
)

// Response kinds.
const (
	KindOK      = "OK"
	KindErr     = "ERR"
	KindStatus  = "STATUS"
	KindHistory = "HISTORY"
)

var ErrMalformed = errors.New("malformed line")

const dialTimeout = 2 * time.Second

type Request struct {
	Cmd string
	Arg string
}

// Encode renders the request as one line; the argument is Go-quoted so it
// may contain newlines.
func (r Request) Encode() string {
	if r.Arg == "" {
		return r.Cmd + "\n"
	}
	return r.Cmd + " " + strconv.Quote(r.Arg) + "\n"
}

func ParseRequest(line string) (Request, error) {
	line = strings.TrimRight(line, "\r\n")
	cmd, rest, hasArg := strings.Cut(line, " ")
	if cmd == "" {
		return Request{}, fmt.Errorf("%w: empty command", ErrMalformed)
	}
	req := Request{Cmd: cmd}
	if hasArg {
		arg, err := strconv.Unquote(rest)
		if err != nil {
			return Request{}, fmt.Errorf("%w: argument: %v", ErrMalformed, err)
		}
		req.Arg = arg
	}
	return req, nil
}

type Response struct {
	Kind string
	Body string
}

func (r Response) Encode() string {
	body := strings.ReplaceAll(r.Body, "\n", " ")
	if body == "" {
		return r.Kind + "\n"
	}
	return r.Kind + " " + body + "\n"
}

// Err returns the daemon's error as a Go error, or nil.
func (r Response) Err() error {
	if r.Kind != KindErr {
		return nil
	}
	return errors.New(r.Body)
}

func ParseResponse(line string) (Response, error) {
	line = strings.TrimRight(line, "\r\n")
	kind, body, _ := strings.Cut(line, " ")
	switch kind {
	case KindOK, KindErr, KindStatus, KindHistory:
		return Response{Kind: kind, Body: body}, nil
	default:
		return Response{}, fmt.Errorf("%w: %q", ErrMalformed, line)
	}
}

// ~/.cache/thinkaloud/control.sock
func SockPath() (string, error) {
	return getSockPath()
}

// ~/.cache/thinkaloud/thinkaloud.pid
func PidPath() (string, error) {
	return getPidPath()
}

func getSockPath() (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SockName), nil
}

func getPidPath() (string, error) {
	dir, err := cacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, PidName), nil
}

func cacheDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "thinkaloud"), nil
}

type socketManager struct {
	path string
}

func (s *socketManager) listen() (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return nil, err
	}
	_ = os.Remove(s.path) // stale socket from last run
	return net.Listen("unix", s.path)
}

func (s *socketManager) dial() (net.Conn, error) {
	return net.DialTimeout("unix", s.path, dialTimeout)
}

func (s *socketManager) send(req Request) (Response, error) {
	c, err := s.dial()
	if err != nil {
		return Response{}, err
	}
	defer c.Close()

	if _, err := c.Write([]byte(req.Encode())); err != nil {
		return Response{}, err
	}

	line, err := bufio.NewReader(c).ReadString('\n')
	if err != nil {
		return Response{}, err
	}
	return ParseResponse(line)
}

func defaultSocket() (*socketManager, error) {
	sp, err := getSockPath()
	if err != nil {
		return nil, err
	}
	return &socketManager{path: sp}, nil
}

func Listen() (net.Listener, error) {
	s, err := defaultSocket()
	if err != nil {
		return nil, err
	}
	return s.listen()
}

func Dial() (net.Conn, error) {
	s, err := defaultSocket()
	if err != nil {
		return nil, err
	}
	return s.dial()
}

// SendCommand sends one request to the running daemon.
func SendCommand(cmd, arg string) (Response, error) {
	s, err := defaultSocket()
	if err != nil {
		return Response{}, err
	}
	return s.send(Request{Cmd: cmd, Arg: arg})
}

type pidManager struct {
	path string
}

func (p *pidManager) create() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0o600)
}

func (p *pidManager) remove() error {
	return os.Remove(p.path)
}

// checkExisting fails when the pid file names a live process. Stale or
// unreadable pid files are removed.
func (p *pidManager) checkExisting() error {
	pidData, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil || !p.isProcessAlive(pid) {
		_ = os.Remove(p.path)
		return nil
	}

	return fmt.Errorf("daemon already running with PID %d", pid)
}

func (p *pidManager) isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func defaultPid() (*pidManager, error) {
	pp, err := getPidPath()
	if err != nil {
		return nil, err
	}
	return &pidManager{path: pp}, nil
}

func CheckExistingDaemon() error {
	p, err := defaultPid()
	if err != nil {
		return err
	}
	return p.checkExisting()
}

func CreatePidFile() error {
	p, err := defaultPid()
	if err != nil {
		return err
	}
	return p.create()
}

func RemovePidFile() error {
	p, err := defaultPid()
	if err != nil {
		return err
	}
	return p.remove()
}
