package speech

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Player plays an audio file to completion. Canceling ctx stops playback.
type Player interface {
	Play(ctx context.Context, path string) error
}

// CommandPlayer hands the file path to an external player as its last argument.
type CommandPlayer struct {
	Args []string
}

func NewCommandPlayer(args []string) *CommandPlayer {
	return &CommandPlayer{Args: args}
}

func (p *CommandPlayer) Play(ctx context.Context, path string) error {
	if len(p.Args) == 0 {
		return errors.New("player: no command configured")
	}

	args := append(append([]string{}, p.Args[1:]...), path)
	out, err := exec.CommandContext(ctx, p.Args[0], args...).CombinedOutput()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err != nil {
		if len(out) > 0 {
			return fmt.Errorf("player: %w: %s", err, out)
		}
		return fmt.Errorf("player: %w", err)
	}
	return nil
}
