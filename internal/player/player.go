// Package player hands downloaded songs to ffplay.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"siren/internal/config"
	"siren/internal/logging"
	"siren/internal/services"
)

var commandContext = exec.CommandContext

// Option configures a Player.
type Option func(*Player)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(p *Player) {
		if binary = strings.TrimSpace(binary); binary != "" {
			p.binary = binary
		}
	}
}

// WithLoop controls whether playback repeats until the player is closed.
func WithLoop(loop bool) Option {
	return func(p *Player) {
		p.loop = loop
	}
}

// WithLogger sets the logger for playback events.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) {
		p.logger = logger
	}
}

// WithOutput forwards the player's stdout and stderr to w.
func WithOutput(w io.Writer) Option {
	return func(p *Player) {
		p.output = w
	}
}

// Player wraps the ffplay command line.
type Player struct {
	binary string
	loop   bool
	output io.Writer
	logger *slog.Logger
}

// New constructs a looping ffplay player.
func New(opts ...Option) *Player {
	p := &Player{binary: "ffplay", loop: true}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	p.logger = logging.NewComponentLogger(p.logger, "player")
	return p
}

// FromConfig builds a player from cfg.Player.
func FromConfig(cfg *config.Config, opts ...Option) *Player {
	base := []Option{WithBinary(cfg.Player.Binary), WithLoop(cfg.Player.Loop)}
	return New(append(base, opts...)...)
}

// Binary returns the command the player runs.
func (p *Player) Binary() string { return p.binary }

// Args returns the arguments used to play path.
func (p *Player) Args(path string) []string {
	if p.loop {
		return []string{path, "-loop", "0"}
	}
	return []string{path, "-autoexit"}
}

// Command builds the command that plays path.
func (p *Player) Command(ctx context.Context, path string) *exec.Cmd {
	cmd := commandContext(ctx, p.binary, p.Args(path)...) //nolint:gosec
	if p.output != nil {
		cmd.Stdout = p.output
		cmd.Stderr = p.output
	}
	return cmd
}

// Play runs the player on path and waits for it to exit.
func (p *Player) Play(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return services.Wrap(services.ErrValidation, "player", "play", "file unavailable", err)
	}
	p.logger.InfoContext(ctx, "playing", logging.String("path", path), logging.String("binary", p.binary))
	if err := p.Command(ctx, path).Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrExternalTool, "player", p.binary, fmt.Sprintf("play %s", path), err)
	}
	return nil
}

// PlayAll starts one player per path and waits for all of them.
func (p *Player) PlayAll(ctx context.Context, paths []string) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, path := range paths {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Play(ctx, path); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
