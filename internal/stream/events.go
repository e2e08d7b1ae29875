package stream

// Имена событий протокола.
const (
	EventRunStarted = "run_started"
	EventProgress   = "progress"
	EventVariant    = "variant"
	EventFirstImage = "first_image"
	EventComplete   = "complete"
	EventError      = "error"
)

// RunStartedEvent — run создан, варианты ещё не диспатчены.
type RunStartedEvent struct {
	RunID        string `json:"run_id"`
	VariantCount int    `json:"variant_count"`
}

// ProgressEvent — текущие счётчики run.
type ProgressEvent struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	InFlight  int `json:"inFlight"`
}

// VariantEvent — терминальный результат одного варианта.
type VariantEvent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	LatencyMS    int64  `json:"latency_ms"`
	ImageURL     string `json:"image_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// FirstImageEvent — первый успешный вариант run. Ровно один раз.
type FirstImageEvent struct {
	RunID string `json:"run_id"`
}

// CompleteEvent — терминальный кадр успешно завершённого run.
type CompleteEvent struct {
	RunID             string   `json:"run_id"`
	Status            string   `json:"status"`
	DurationMS        int64    `json:"duration_ms"`
	SuccessVariantIDs []string `json:"success_variant_ids"`
}

// ErrorEvent — терминальный кадр при ошибке до или во время run.
type ErrorEvent struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	RunID     string `json:"run_id,omitempty"`
}
