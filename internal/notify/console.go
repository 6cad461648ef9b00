package notify

import (
	"context"
	"fmt"
	"io"
	"os"

	"bank-terminal-go/internal/models"

	"go.uber.org/zap"
)

// ConsoleDispatcher prints codes to a terminal instead of sending an SMS.
type ConsoleDispatcher struct {
	out io.Writer
}

func NewConsoleDispatcher(out io.Writer) *ConsoleDispatcher {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleDispatcher{out: out}
}

func (c *ConsoleDispatcher) Dispatch(_ context.Context, d models.ChallengeDelivery) error {
	minutes := int(d.ExpiresAt.Sub(d.IssuedAt).Minutes())
	_, err := fmt.Fprintf(c.out, "[SMS to %s] Your verification code is %s. Valid for %d minutes.\n",
		MaskDestination(d.Destination), d.Code, minutes)
	if err != nil {
		return fmt.Errorf("console delivery failed: %w", err)
	}

	zap.L().Info("Challenge delivered to console",
		zap.String("account", d.AccountNumber),
		zap.String("handle", d.Handle))
	return nil
}

// MaskDestination hides all but the last four characters.
func MaskDestination(dest string) string {
	if len(dest) <= 4 {
		return dest
	}
	masked := make([]byte, len(dest))
	for i := range dest {
		if i < len(dest)-4 {
			masked[i] = '*'
		} else {
			masked[i] = dest[i]
		}
	}
	return string(masked)
}
