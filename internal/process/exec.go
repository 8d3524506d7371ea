package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/soundline/meetbot/bot"
)

// maxLineBytes bounds one stdout line; audio envelopes carry base64 PCM.
const maxLineBytes = 4 << 20

// SpawnerConfig describes how to launch the platform SDK bot binary.
type SpawnerConfig struct {
	Binary string
	Args   []string
	Logger *slog.Logger
}

// NewSpawner returns a Spawner that execs the bot binary and speaks JSON
// lines over its stdin/stdout.
func NewSpawner(cfg SpawnerConfig) bot.Spawner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, params bot.StartParams) (bot.Process, error) {
		if cfg.Binary == "" {
			return nil, fmt.Errorf("bot binary not configured")
		}

		cmd := exec.Command(cfg.Binary, cfg.Args...)

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}

		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", cfg.Binary, err)
		}

		p := &execProcess{
			cmd:      cmd,
			stdin:    stdin,
			messages: make(chan bot.Message, 64),
			done:     make(chan struct{}),
			logger:   logger.With(slog.String("bot_id", params.BotID)),
		}

		go p.logStderr(stderr)
		go p.run(stdout)

		return p, nil
	}
}

// execProcess wraps one running bot binary.
type execProcess struct {
	cmd    *exec.Cmd
	logger *slog.Logger

	writeMu sync.Mutex
	stdin   io.WriteCloser

	messages chan bot.Message
	done     chan struct{}

	mu     sync.Mutex
	killed bool
	exit   bot.ExitStatus
}

func (p *execProcess) Send(cmd bot.Command) error {
	data, err := bot.EncodeCommand(cmd)
	if err != nil {
		return err
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	select {
	case <-p.done:
		return bot.ErrProcessClosed
	default:
	}
	if _, err := p.stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write command: %w", err)
	}
	return nil
}

func (p *execProcess) Messages() <-chan bot.Message { return p.messages }

func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) ExitStatus() bot.ExitStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exit
}

func (p *execProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	return p.cmd.Process.Kill()
}

// run reads stdout until EOF, then reaps the process. Reading must finish
// before Wait since Wait closes the pipes.
func (p *execProcess) run(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := bot.DecodeMessage(line)
		if err != nil {
			p.logger.Warn("undecodable process output", slog.String("error", err.Error()))
			continue
		}
		p.messages <- msg
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("process stdout read failed", slog.String("error", err.Error()))
	}
	close(p.messages)

	err := p.cmd.Wait()

	p.mu.Lock()
	p.exit = bot.ExitStatus{Code: exitCode(err), Killed: p.killed}
	p.mu.Unlock()

	close(p.done)
}

func (p *execProcess) logStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		p.logger.Debug("bot process stderr", slog.String("line", scanner.Text()))
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}
