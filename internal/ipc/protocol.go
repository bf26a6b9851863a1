package ipc

// Commands understood by a running listener.
const (
	CommandStatus = "status"
	CommandStop   = "stop"
	CommandReset  = "reset"
	CommandReload = "reload"
)

type Request struct {
	Command string `json:"command"`
}

// Stats are the listener's counters since start.
type Stats struct {
	Fragments int64            `json:"fragments"`
	Matches   int64            `json:"matches"`
	Outcomes  map[string]int64 `json:"outcomes,omitempty"`
}

type Response struct {
	OK        bool   `json:"ok"`
	State     string `json:"state,omitempty"`
	Recording string `json:"recording,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Stats     *Stats `json:"stats,omitempty"`
}
