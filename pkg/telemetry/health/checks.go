package health

import (
	"context"
	"errors"
	"fmt"

	"drivelogic-hq/reasoner/pkg/compiler"
)

// Pinger is satisfied by result stores that can verify their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RuleBaseCheck fails while no compiled rule base is loaded or when the
// loaded one compiled no rules at all while rules were given.
func RuleBaseCheck(current func() *compiler.Compiled) CheckFunc {
	return func(context.Context) error {
		c := current()
		if c == nil {
			return errors.New("no rule base loaded")
		}
		s := c.Stats()
		if s.Rules > 0 && s.Compiled == 0 {
			return fmt.Errorf("all %d rules were excluded during compilation", s.Rules)
		}
		return nil
	}
}

// StoreCheck pings the result store.
func StoreCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("result store unreachable: %w", err)
		}
		return nil
	}
}
