package protocol

import "time"

// CommandResult records the outcome of one executed command. Failures are
// values here, not errors: batch execution keeps going past a failed command.
type CommandResult struct {
	Success        bool          `json:"success"`
	RawResponse    string        `json:"raw_response,omitempty"`
	BlocksAffected *int64        `json:"blocks_affected,omitempty"`
	ParsedValue    string        `json:"parsed_value,omitempty"`
	ErrKind        string        `json:"error,omitempty"`
	ErrDetail      string        `json:"error_detail,omitempty"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

type CommandFailure struct {
	Command string `json:"command"`
	Error   string `json:"error"`
}

// ExecutionReport aggregates a script's results.
type ExecutionReport struct {
	RunID               string           `json:"run_id"`
	Success             bool             `json:"success"`
	CommandsExecuted    int              `json:"commands_executed"`
	BlocksAffectedTotal int64            `json:"blocks_affected_total"`
	Failures            []CommandFailure `json:"failures,omitempty"`
	ElapsedTotal        time.Duration    `json:"elapsed_total_ns"`
	Results             []CommandResult  `json:"results,omitempty"`
}
