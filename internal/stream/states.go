package stream

import "fmt"

type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateLive         State = "live"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// Status is the user-visible snapshot of one feed's connection lifecycle.
type Status struct {
	Symbol     string `json:"symbol"`
	Interval   string `json:"interval"`
	State      State  `json:"state"`
	Label      string `json:"label"`
	Retries    int    `json:"retries"`
	MaxRetries int    `json:"max_retries"`
	LastError  string `json:"last_error,omitempty"`
}

func label(s State, retries, maxRetries int, historyStarted, historyDone bool, terminalErr bool) string {
	switch s {
	case StateIdle:
		if historyStarted && !historyDone {
			return "Loading historical data"
		}
		return "Initializing"
	case StateConnecting:
		return "Connecting to live feed"
	case StateLive:
		return "Live"
	case StateReconnecting:
		return fmt.Sprintf("Reconnecting (%d/%d)", retries, maxRetries)
	case StateDisconnected:
		if terminalErr {
			return "Connection error"
		}
		return "Disconnected"
	}
	return string(s)
}
