package types

// Model describes a GGUF model file discovered in the models directory.
type Model struct {
	// Absolute path to the model file on disk. Doubles as the stable identifier.
	// example: /home/user/.llamadesk/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/.llamadesk/models/TinyLlama.Q4_K_M.gguf"`
	// File name without directory.
	// example: TinyLlama.Q4_K_M.gguf
	Name string `json:"name" example:"TinyLlama.Q4_K_M.gguf"`
	// Model name from GGUF metadata (general.name), if present.
	// example: TinyLlama
	ModelName string `json:"model_name,omitempty" example:"TinyLlama"`
	// Architecture from GGUF metadata (general.architecture), if present.
	// example: llama
	Architecture string `json:"architecture,omitempty" example:"llama"`
	// Quantization variant inferred from the file name.
	// example: Q4_K_M
	Quantization string `json:"quantization,omitempty" example:"Q4_K_M"`
	// File size in gigabytes.
	// example: 0.67
	SizeGB float64 `json:"size_gb" example:"0.67"`
	// File modification time, unix seconds.
	// example: 1700000000
	Date int64 `json:"date" example:"1700000000"`
}

// SystemStats is a point-in-time host resource snapshot polled by the
// desktop taskbar. Memory figures are gigabytes; usages are percentages.
type SystemStats struct {
	CPUUsage         float64 `json:"cpu_usage"`
	MemoryTotalGB    float64 `json:"memory_total_gb"`
	MemoryUsedGB     float64 `json:"memory_used_gb"`
	GPUName          string  `json:"gpu_name"`
	GPUUsage         float64 `json:"gpu_usage"`
	GPUMemoryTotalGB float64 `json:"gpu_memory_total_gb"`
	GPUMemoryUsedGB  float64 `json:"gpu_memory_used_gb"`
	// Snapshot time, unix seconds.
	Timestamp int64 `json:"timestamp"`
}

// ProcessStatus is the lifecycle state of a managed llama-server process.
type ProcessStatus string

const (
	StatusStarting ProcessStatus = "starting"
	StatusRunning  ProcessStatus = "running"
	StatusStopped  ProcessStatus = "stopped"
	StatusFailed   ProcessStatus = "failed"
)

// ProcessInfo is a snapshot of a managed llama-server process.
type ProcessInfo struct {
	ID        string        `json:"id"`
	ModelPath string        `json:"model_path"`
	ModelName string        `json:"model_name"`
	Host      string        `json:"host"`
	Port      int           `json:"port"`
	Command   []string      `json:"command"`
	Status    ProcessStatus `json:"status"`
	CreatedAt int64         `json:"created_at"`
}

// ProcessOutput is an incremental slice of process log lines.
type ProcessOutput struct {
	Output     []string `json:"output"`
	NextCursor int      `json:"next_cursor"`
	IsRunning  bool     `json:"is_running"`
	ReturnCode *int     `json:"return_code,omitempty"`
}

// LaunchResult reports the outcome of a launch request.
type LaunchResult struct {
	Success    bool   `json:"success"`
	ProcessID  string `json:"process_id"`
	ServerHost string `json:"server_host"`
	ServerPort int    `json:"server_port"`
	ModelName  string `json:"model_name"`
	Message    string `json:"message"`
}

// ChatMessage is a single message in a chat transcript. Timestamp (unix
// milliseconds) doubles as the message identifier within its chat.
type ChatMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	// GenerationStats is attached only to assistant messages produced by a
	// generation, never to loaded or system messages.
	GenerationStats *GenerationStats `json:"generationStats,omitempty"`
}

// GenerationStats holds derived timing and throughput metrics for a completed
// (or cancelled) generation. Field names match the persisted UI session blobs.
type GenerationStats struct {
	TokensPerSecond         float64 `json:"tokensPerSecond"`
	TotalTokens             int     `json:"totalTokens"`
	TimeToFirstTokenSeconds float64 `json:"timeToFirstTokenSeconds"`
	StopReason              string  `json:"stopReason"`
}
