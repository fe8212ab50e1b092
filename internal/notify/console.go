package notify

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Console writes notifications to a stream, stdout in production.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Send(ctx context.Context, title, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == "" {
		_, err := fmt.Fprintf(c.w, "%s\n\n", title)
		return err
	}
	_, err := fmt.Fprintf(c.w, "%s\n%s\n\n", title, text)
	return err
}
