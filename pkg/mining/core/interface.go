package core

// Engine defines the interface that all cycle-finding implementations must follow
type Engine interface {
	// Name returns the human-readable name of the engine
	Name() string

	// Mine derives the graph for header and searches it for a cycle of
	// len(sol) edges. On success the nonces are written to sol and found is
	// true. A clean miss returns (false, nil); any other failure is reported
	// through err and must not be conflated with a miss.
	Mine(header []byte, sol []uint32) (found bool, err error)

	// GetCapabilities returns the capabilities and performance characteristics
	GetCapabilities() *Capabilities

	// Close releases any resources held by the engine
	Close() error
}

// Capabilities describes the capabilities of an engine
type Capabilities struct {
	// Name of the engine
	Name string `json:"name"`

	// Capability tag the engine was built for (e.g. "simple_16")
	Tag string `json:"tag"`

	// Filesystem path the engine was loaded from, empty for built-in engines
	Path string `json:"path,omitempty"`

	// Whether the engine runs inside this process without external code
	InProcess bool `json:"in_process"`

	// Whether this engine is recommended for production use
	ProductionReady bool `json:"production_ready"`

	// Number of nonces in a solution
	ProofSize int `json:"proof_size"`

	// Worker threads the engine was configured with
	ThreadCount uint32 `json:"thread_count"`

	// Approximate graph memory in bytes
	MemoryBytes uint64 `json:"memory_bytes,omitempty"`

	// Reason for unavailability (if applicable)
	Reason string `json:"reason,omitempty"`
}

// WorkerConfig is the configuration shape handed to an engine constructor.
// It is built once per worker and never changed after the engine exists.
type WorkerConfig struct {
	// Path of the selected engine; built-in engines use a "builtin:" prefix
	EnginePath string `json:"engine_path"`

	// Threads the engine may use for its search
	ThreadCount uint32 `json:"thread_count"`

	// Trimming rounds; 0 lets the engine choose its own schedule
	TrimRounds uint32 `json:"trim_rounds"`

	// Problem instance the engine must be built for
	Params CycleParameters `json:"params"`
}

// BuiltinPath returns the EnginePath used for engines compiled into the binary
func BuiltinPath(kind string) string {
	return "builtin:" + kind
}
