package domain

import "time"

// Result is one evaluation outcome produced by a probe.
type Result struct {
	Date       time.Time           `json:"date"`
	Type       string              `json:"type"`
	Label      string              `json:"label"`
	Identifier string              `json:"identifier"`
	Success    bool                `json:"success"`
	ResultMsg  string              `json:"result_msg"`
	Payload    any                 `json:"result,omitempty"`
	TimeTaken  time.Duration       `json:"time_taken"`
	Alert      *AlertConfiguration `json:"alert,omitempty"`

	// Skipped marks a check that was not executed this cycle. It carries no
	// information about health.
	Skipped bool `json:"skipped,omitempty"`
	// MonitorFailure marks a result produced because the probe itself failed
	// to run, as opposed to the probed system failing.
	MonitorFailure bool `json:"monitor_failure,omitempty"`
	// ConfigError marks a placeholder reporting a configuration problem.
	ConfigError bool `json:"config_error,omitempty"`
	// Unlogged marks a failure whose log row could not be written. The
	// digest counts it as one retained occurrence of its key.
	Unlogged bool `json:"-"`
}

func (r Result) Key() UniqueKey {
	return UniqueKey{Type: r.Type, Label: r.Label, Identifier: r.Identifier}
}

// IsDigestable reports whether the result can raise an alert on any channel.
func (r Result) IsDigestable() bool {
	return r.Alert.HasChannels()
}

// MarkUnlogged flags every failing, non-skipped result as having no log row.
func MarkUnlogged(results []Result) {
	for i := range results {
		if !results[i].Success && !results[i].Skipped {
			results[i].Unlogged = true
		}
	}
}

// NewSkippedResult builds the placeholder for a check that did not run.
func NewSkippedResult(key UniqueKey, at time.Time, alert *AlertConfiguration) Result {
	return Result{
		Date:       at,
		Type:       key.Type,
		Label:      key.Label,
		Identifier: key.Identifier,
		Success:    true,
		ResultMsg:  "skipped",
		Alert:      alert,
		Skipped:    true,
	}
}

// NewConfigErrorResult reports a configuration problem through the regular
// alerting path.
func NewConfigErrorResult(identifier, msg string, at time.Time, alert *AlertConfiguration) Result {
	return Result{
		Date:        at,
		Type:        "watchdog",
		Label:       "config",
		Identifier:  identifier,
		Success:     false,
		ResultMsg:   msg,
		Alert:       alert,
		ConfigError: true,
	}
}
