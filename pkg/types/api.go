package types

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of discovered models.
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// SettingState is the per-setting slice of the structured settings view.
type SettingState struct {
	// Whether the setting is present in the argument string.
	// example: true
	Enabled bool `json:"enabled" example:"true"`
	// Current value. Empty for pure flags and for enabled-without-value.
	// example: 4096
	Value string `json:"value,omitempty" example:"4096"`
}

// ModelSettingsResponse is returned by GET /models/settings.
type ModelSettingsResponse struct {
	// Raw custom argument string, exactly as persisted.
	// example: -c 4096 --flash-attn
	CustomArgs string `json:"custom_args" example:"-c 4096 --flash-attn"`
	ServerHost string `json:"server_host" example:"127.0.0.1"`
	ServerPort int    `json:"server_port" example:"8080"`
	ModelPath  string `json:"model_path"`
	// Structured view of custom_args, keyed by catalog setting id.
	Settings map[string]SettingState `json:"settings"`
}

// UpdateModelSettingsRequest updates a model's launch configuration.
// Either custom_args or settings may be supplied; when settings is present it
// is serialized against the stored argument string (unknown flags preserved).
type UpdateModelSettingsRequest struct {
	CustomArgs *string                 `json:"custom_args,omitempty"`
	Settings   map[string]SettingState `json:"settings,omitempty"`
	ServerHost string                  `json:"server_host,omitempty"`
	ServerPort int                     `json:"server_port,omitempty" validate:"omitempty,min=0,max=65535"`
}

// LaunchRequest asks the supervisor to start a llama-server for a model.
type LaunchRequest struct {
	// Absolute path of the model file to serve.
	ModelPath string `json:"model_path" validate:"required"`
	// Display name; defaults to the file name when empty.
	ModelName string `json:"model_name,omitempty"`
}

// FormatRequest renders assistant text to display markup.
type FormatRequest struct {
	Text string `json:"text"`
	// True while the message is still streaming in.
	Streaming bool `json:"streaming,omitempty"`
}

// FormatResponse carries the rendered markup.
type FormatResponse struct {
	HTML string `json:"html"`
}

// ChatCompletionRequest proxies a streaming completion to a running
// llama-server and re-emits deltas as SSE frames.
type ChatCompletionRequest struct {
	Host string `json:"host,omitempty"`
	Port int    `json:"port" validate:"required,min=1,max=65535"`
	// Transcript to complete; the last message is the active user turn.
	Messages []ChatMessage `json:"messages" validate:"required,min=1"`
	// Optional chat id: when set, the assistant reply is persisted with its
	// generation stats on completion.
	ChatID string `json:"chat_id,omitempty"`
}

// CreateChatRequest opens a persisted chat session.
type CreateChatRequest struct {
	ModelName string `json:"model_name" validate:"required"`
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
}

// Chat is a persisted chat session.
type Chat struct {
	ID        string `json:"id"`
	ModelName string `json:"model_name"`
	Host      string `json:"host"`
	Port      int    `json:"port"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// AppendMessageRequest appends a message to a persisted chat.
type AppendMessageRequest struct {
	Role    string `json:"role" validate:"required,oneof=user assistant system"`
	Content string `json:"content" validate:"required"`
}
