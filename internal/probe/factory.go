package probe

import (
	"fmt"
	"io"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/watchdog/internal/config"
)

// Options are the process-wide probe defaults.
type Options struct {
	HTTPTimeout   time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// ForCheck builds the checker for one configured check. The check timeout,
// when set, overrides the HTTP client timeout.
func ForCheck(c config.Check, opts Options) (Checker, error) {
	timeout := opts.HTTPTimeout
	if c.Timeout > 0 {
		timeout = c.Timeout.Std()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	switch c.Type {
	case config.CheckWeb:
		var chk Checker = &RetryChecker{
			Inner:    NewHTTPChecker(timeout),
			Attempts: opts.RetryAttempts,
			Backoff:  opts.RetryBackoff,
		}
		if c.DNS {
			chk = NewMultiChecker(NewDNSChecker(), chk)
		}
		return chk, nil
	case config.CheckDNS:
		return NewDNSChecker(), nil
	case config.CheckSQL:
		return NewSQLChecker(c.Driver, c.DSN, c.Query, c.Expect), nil
	default:
		return nil, fmt.Errorf("unknown check type %q", c.Type)
	}
}

// CloseAll closes every checker holding resources.
func CloseAll(checkers map[string]Checker) error {
	var err error
	for _, c := range checkers {
		if cl, ok := c.(io.Closer); ok {
			err = multierr.Append(err, cl.Close())
		}
	}
	return err
}
