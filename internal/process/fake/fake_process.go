// Package fake provides deterministic Process and Spawner doubles for
// supervisor and orchestrator tests.
package fake

import (
	"context"
	"sync"

	"github.com/soundline/meetbot/bot"
)

// Process is a scripted bot.Process. Tests drive it with Emit and Exit.
type Process struct {
	// ExitOnLeave makes the process exit cleanly when it receives a leave
	// command, simulating a cooperative bot binary.
	ExitOnLeave bool

	// SendErr, when set, is returned by every Send call.
	SendErr error

	mu       sync.Mutex
	commands []bot.Command
	exited   bool
	exit     bot.ExitStatus

	messages chan bot.Message
	done     chan struct{}
}

// NewProcess creates an idle fake process.
func NewProcess() *Process {
	return &Process{
		messages: make(chan bot.Message, 64),
		done:     make(chan struct{}),
	}
}

// Send records the command. With ExitOnLeave set, a leave command triggers a
// clean exit.
func (p *Process) Send(cmd bot.Command) error {
	p.mu.Lock()
	if p.exited {
		p.mu.Unlock()
		return bot.ErrProcessClosed
	}
	p.commands = append(p.commands, cmd)
	exitOnLeave := p.ExitOnLeave
	p.mu.Unlock()

	if p.SendErr != nil {
		return p.SendErr
	}
	if _, ok := cmd.(bot.LeaveCommand); ok && exitOnLeave {
		p.Exit(0)
	}
	return nil
}

func (p *Process) Messages() <-chan bot.Message { return p.messages }

func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) ExitStatus() bot.ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit
}

// Kill terminates the fake process with the killed marker.
func (p *Process) Kill() error {
	p.exitWith(bot.ExitStatus{Code: -1, Killed: true})
	return nil
}

// Emit pushes one inbound message, as if the process wrote it to stdout.
// The lock keeps the send ordered against a concurrent Exit.
func (p *Process) Emit(msg bot.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	p.messages <- msg
}

// Exit ends the process with the given exit code.
func (p *Process) Exit(code int) {
	p.exitWith(bot.ExitStatus{Code: code})
}

// Killed reports whether the process was forcibly terminated.
func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit.Killed
}

// Commands returns a copy of everything sent to the process.
func (p *Process) Commands() []bot.Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]bot.Command, len(p.commands))
	copy(out, p.commands)
	return out
}

// LeaveReceived reports whether a leave command arrived.
func (p *Process) LeaveReceived() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.commands {
		if _, ok := c.(bot.LeaveCommand); ok {
			return true
		}
	}
	return false
}

func (p *Process) exitWith(status bot.ExitStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return
	}
	p.exited = true
	p.exit = status
	close(p.messages)
	close(p.done)
}

// Spawner is a scripted bot.Spawner. Every spawn creates a fresh Process;
// OnSpawn lets a test program its behavior before the supervisor sees it.
type Spawner struct {
	// Err, when set, fails every spawn.
	Err error

	// OnSpawn runs synchronously for each new process.
	OnSpawn func(*Process)

	mu      sync.Mutex
	spawned []*Process
	params  []bot.StartParams
}

// Spawn implements bot.Spawner.
func (s *Spawner) Spawn(_ context.Context, params bot.StartParams) (bot.Process, error) {
	s.mu.Lock()
	s.params = append(s.params, params)
	err := s.Err
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p := NewProcess()
	if s.OnSpawn != nil {
		s.OnSpawn(p)
	}

	s.mu.Lock()
	s.spawned = append(s.spawned, p)
	s.mu.Unlock()
	return p, nil
}

// Calls returns how many spawns were attempted.
func (s *Spawner) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.params)
}

// Params returns the nth spawn's start parameters.
func (s *Spawner) Params(n int) bot.StartParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params[n]
}

// Spawned returns the nth spawned process.
func (s *Spawner) Spawned(n int) *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned[n]
}
