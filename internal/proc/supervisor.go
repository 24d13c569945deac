// Package proc supervises llama-server subprocesses: one per launched model,
// with captured output, health-probed startup, and graceful termination.
package proc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"llamadeskd/internal/argcodec"
	"llamadeskd/pkg/types"
)

// maxOutputLines bounds the in-memory log ring per process.
const maxOutputLines = 2000

// killGrace is how long SIGTERM gets before SIGKILL.
const killGrace = 3 * time.Second

// LaunchSpec describes one launch request.
type LaunchSpec struct {
	// BinPath is the llama-server executable.
	BinPath   string
	ModelPath string
	ModelName string
	Host      string
	// DefaultPort is used when CustomArgs does not carry --port. The actual
	// port may be bumped forward when the requested one is taken.
	DefaultPort int
	CustomArgs  string
}

// Process is one managed llama-server instance.
type Process struct {
	mu sync.Mutex

	id        string
	modelPath string
	modelName string
	host      string
	port      int
	command   []string
	createdAt time.Time

	status     types.ProcessStatus
	output     []string
	firstLine  int // absolute index of output[0], advances as the ring drops lines
	returnCode *int

	cmd  *exec.Cmd
	done chan struct{}
}

func (p *Process) snapshotLocked() types.ProcessInfo {
	return types.ProcessInfo{
		ID:        p.id,
		ModelPath: p.modelPath,
		ModelName: p.modelName,
		Host:      p.host,
		Port:      p.port,
		Command:   append([]string(nil), p.command...),
		Status:    p.status,
		CreatedAt: p.createdAt.Unix(),
	}
}

// Info returns a snapshot of the process.
func (p *Process) Info() types.ProcessInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Process) appendLine(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = append(p.output, line)
	if over := len(p.output) - maxOutputLines; over > 0 {
		p.output = p.output[over:]
		p.firstLine += over
	}
}

// Supervisor owns the set of managed processes.
type Supervisor struct {
	mu     sync.Mutex
	procs  map[string]*Process
	log    zerolog.Logger
	client *http.Client
}

// NewSupervisor returns an empty supervisor.
func NewSupervisor(log zerolog.Logger) *Supervisor {
	return &Supervisor{
		procs:  make(map[string]*Process),
		log:    log,
		client: &http.Client{Timeout: 2 * time.Second},
	}
}

// Launch starts a llama-server for spec and begins background health probing.
// The returned result reports the resolved host/port; the process status flips
// from starting to running once the server answers its health endpoint.
func (s *Supervisor) Launch(spec LaunchSpec) (types.LaunchResult, error) {
	if strings.TrimSpace(spec.ModelPath) == "" {
		return types.LaunchResult{}, fmt.Errorf("model path is empty")
	}
	name := spec.ModelName
	if name == "" {
		name = filepath.Base(spec.ModelPath)
	}
	host := spec.Host
	if host == "" {
		host = "127.0.0.1"
	}

	custom := argcodec.Tokenize(spec.CustomArgs)
	port := PortFromArgs(custom, spec.DefaultPort)
	port = findAvailablePort(host, port)

	args := buildArgs(spec.ModelPath, host, port, custom)
	cmd := exec.Command(spec.BinPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return types.LaunchResult{}, err
	}
	cmd.Stderr = cmd.Stdout

	p := &Process{
		id:        uuid.NewString(),
		modelPath: spec.ModelPath,
		modelName: name,
		host:      host,
		port:      port,
		command:   append([]string{spec.BinPath}, args...),
		createdAt: time.Now(),
		status:    types.StatusStarting,
		done:      make(chan struct{}),
		cmd:       cmd,
	}
	if err := cmd.Start(); err != nil {
		return types.LaunchResult{}, fmt.Errorf("start llama-server: %w", err)
	}
	s.log.Info().Str("process_id", p.id).Str("model", name).Int("port", port).Int("pid", cmd.Process.Pid).Msg("launch")

	s.mu.Lock()
	s.procs[p.id] = p
	s.mu.Unlock()

	pumpDone := make(chan struct{})
	go func() {
		s.pumpOutput(p, stdout)
		close(pumpDone)
	}()
	go s.waitProcess(p, pumpDone)
	go s.probeReady(p)

	return types.LaunchResult{
		Success:    true,
		ProcessID:  p.id,
		ServerHost: host,
		ServerPort: port,
		ModelName:  name,
		Message:    fmt.Sprintf("launching %s on %s:%d", name, host, port),
	}, nil
}

func (s *Supervisor) pumpOutput(p *Process, r interface{ Read([]byte) (int, error) }) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		p.appendLine(sc.Text())
	}
}

// waitProcess reaps the subprocess. It waits for the output pump first; Wait
// closes the stdout pipe, and calling it early can drop buffered output.
func (s *Supervisor) waitProcess(p *Process, pumpDone <-chan struct{}) {
	<-pumpDone
	err := p.cmd.Wait()
	code := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		code = exitErr.ExitCode()
	} else if err != nil {
		code = -1
	}
	p.mu.Lock()
	p.returnCode = &code
	if code == 0 {
		p.status = types.StatusStopped
	} else {
		p.status = types.StatusFailed
	}
	p.mu.Unlock()
	close(p.done)
	s.log.Info().Str("process_id", p.id).Int("code", code).Msg("exit")
}

// probeReady polls the server health endpoint until it answers, the process
// exits, or the startup deadline passes.
func (s *Supervisor) probeReady(p *Process) {
	deadline := time.Now().Add(120 * time.Second)
	url := fmt.Sprintf("http://%s:%d/health", p.host, p.port)
	for time.Now().Before(deadline) {
		select {
		case <-p.done:
			return
		case <-time.After(500 * time.Millisecond):
		}
		resp, err := s.client.Get(url)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			p.mu.Lock()
			if p.status == types.StatusStarting {
				p.status = types.StatusRunning
			}
			p.mu.Unlock()
			s.log.Info().Str("process_id", p.id).Msg("ready")
			return
		}
	}
}

// Get returns the process with the given id.
func (s *Supervisor) Get(id string) (*Process, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.procs[id]
	return p, ok
}

// List returns snapshots of all managed processes, newest first.
func (s *Supervisor) List() []types.ProcessInfo {
	s.mu.Lock()
	procs := make([]*Process, 0, len(s.procs))
	for _, p := range s.procs {
		procs = append(procs, p)
	}
	s.mu.Unlock()
	out := make([]types.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		out = append(out, p.Info())
	}
	return out
}

// OutputSince returns log lines at and after cursor (an absolute line index)
// together with the cursor for the next call. A cursor older than the ring
// resumes from the oldest retained line.
func (s *Supervisor) OutputSince(id string, cursor int) (types.ProcessOutput, error) {
	p, ok := s.Get(id)
	if !ok {
		return types.ProcessOutput{}, errProcessNotFound(id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	start := cursor - p.firstLine
	if start < 0 {
		start = 0
	}
	var lines []string
	if start < len(p.output) {
		lines = append(lines, p.output[start:]...)
	}
	running := p.status == types.StatusStarting || p.status == types.StatusRunning
	return types.ProcessOutput{
		Output:     lines,
		NextCursor: p.firstLine + len(p.output),
		IsRunning:  running,
		ReturnCode: p.returnCode,
	}, nil
}

// Kill terminates a process: SIGTERM first, SIGKILL after a grace period. The
// entry stays listed with its final status until Remove.
func (s *Supervisor) Kill(id string) error {
	p, ok := s.Get(id)
	if !ok {
		return errProcessNotFound(id)
	}
	p.mu.Lock()
	cmd := p.cmd
	p.mu.Unlock()
	if cmd.Process == nil {
		return nil
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(killGrace):
		_ = cmd.Process.Kill()
		<-p.done
	}
	p.mu.Lock()
	p.status = types.StatusStopped
	p.mu.Unlock()
	return nil
}

// Remove drops a terminated process from the table. Running processes are
// killed first.
func (s *Supervisor) Remove(id string) error {
	if err := s.Kill(id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.procs, id)
	s.mu.Unlock()
	return nil
}

// StopAll terminates every managed process. Best effort, used on shutdown.
func (s *Supervisor) StopAll(ctx context.Context) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.procs))
	for id := range s.procs {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		_ = s.Kill(id)
	}
}

// buildArgs assembles the llama-server argv: model, host and resolved port
// first, then the user's custom args with any --port occurrence stripped so
// the resolved port wins.
func buildArgs(modelPath, host string, port int, custom []string) []string {
	args := []string{"-m", modelPath, "--host", host, "--port", fmt.Sprint(port)}
	for i := 0; i < len(custom); i++ {
		tok := custom[i]
		if tok == "--port" {
			if i+1 < len(custom) && !strings.HasPrefix(custom[i+1], "-") {
				i++
			}
			continue
		}
		if strings.HasPrefix(tok, "--port=") {
			continue
		}
		args = append(args, tok)
	}
	return args
}

// PortFromArgs extracts a --port value from tokenized custom args, handling
// both "--port 1234" and "--port=1234". Unparseable or absent values fall
// back to defaultPort.
func PortFromArgs(toks []string, defaultPort int) int {
	for i, tok := range toks {
		if tok == "--port" && i+1 < len(toks) {
			if p, ok := parsePort(toks[i+1]); ok {
				return p
			}
		}
		if v, found := strings.CutPrefix(tok, "--port="); found {
			if p, ok := parsePort(v); ok {
				return p
			}
		}
	}
	return defaultPort
}

func parsePort(s string) (int, bool) {
	var p int
	if _, err := fmt.Sscanf(s, "%d", &p); err != nil {
		return 0, false
	}
	if p < 1 || p > 65535 {
		return 0, false
	}
	return p, true
}

// findAvailablePort probes forward from start for a bindable port, giving up
// after ten and returning start unchanged (the server will then surface the
// bind failure in its log, matching the desktop app's behavior).
func findAvailablePort(host string, start int) int {
	for p := start; p < start+10; p++ {
		l, err := net.Listen("tcp", fmt.Sprintf("%s:%d", host, p))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p
	}
	return start
}
