package indexer

// State is a stage of the index pipeline
type State int

const (
	StateIdle State = iota
	StateScanning
	StateParsing
	StateEmbedding
	StateStoring
	StateComplete
)

var stateNames = [...]string{"idle", "scanning", "parsing", "embedding", "storing", "complete"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON output
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
