package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"google.golang.org/genai"
)

// StagedImage — изображение, уже загруженное в file-staging API.
type StagedImage struct {
	// URI — ссылка на файл у провайдера.
	URI string

	// MIMEType — объявленный тип содержимого.
	MIMEType string
}

// UploadResult — результат загрузки в file-staging API.
type UploadResult struct {
	// URI — ссылка на загруженный файл.
	URI string

	// ExpiresAt — момент истечения ссылки.
	ExpiresAt time.Time
}

// Config — настройки клиента провайдера.
type Config struct {
	// APIKey — ключ Gemini API.
	APIKey string

	// GenerateModel — модель для композитинга изображений.
	GenerateModel string

	// ReasonModel — модель для структурированного reasoning.
	ReasonModel string

	// CallTimeout — таймаут одного вызова провайдера.
	CallTimeout time.Duration
}

// ConfigFromEnv читает настройки из окружения.
func ConfigFromEnv() Config {
	return Config{
		APIKey:        os.Getenv("GEMINI_API_KEY"),
		GenerateModel: os.Getenv("GEMINI_GENERATE_MODEL"),
		ReasonModel:   os.Getenv("GEMINI_REASON_MODEL"),
	}
}

// Client — клиент генеративного провайдера.
type Client struct {
	api *genai.Client
	cfg Config
}

// New создаёт новый Client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.GenerateModel == "" {
		cfg.GenerateModel = "gemini-2.5-flash-image"
	}
	if cfg.ReasonModel == "" {
		cfg.ReasonModel = "gemini-2.5-flash"
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 90 * time.Second
	}

	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Client{api: api, cfg: cfg}, nil
}

// Upload загружает изображение в file-staging API провайдера.
// Если провайдер не объявил срок жизни, берётся локальный расчёт.
func (c *Client) Upload(ctx context.Context, data []byte, mimeType, label string) (UploadResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	file, err := c.api.Files.Upload(ctx, bytes.NewReader(data), &genai.UploadFileConfig{
		MIMEType:    mimeType,
		DisplayName: label,
	})
	if err != nil {
		return UploadResult{}, c.wrap("upload", err)
	}

	expiresAt := file.ExpirationTime
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(47 * time.Hour)
	}
	return UploadResult{URI: file.URI, ExpiresAt: expiresAt}, nil
}

// GenerateComposite выполняет один composite-вызов: prompt плюс
// staged-изображения товара и комнаты. Возвращает байты изображения.
// Соотношение сторон передаётся инструкцией в prompt: у generate-вызова
// этой версии SDK нет отдельного поля конфигурации для него.
func (c *Client) GenerateComposite(ctx context.Context, prompt string, images []StagedImage, aspectRatio string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	if aspectRatio != "" {
		prompt = fmt.Sprintf("%s\n\nOutput image aspect ratio: %s.", prompt, aspectRatio)
	}
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		parts = append(parts, genai.NewPartFromURI(img.URI, img.MIMEType))
	}

	result, err := c.api.Models.GenerateContent(
		ctx,
		c.cfg.GenerateModel,
		[]*genai.Content{{Parts: parts}},
		nil,
	)
	if err != nil {
		return nil, c.wrap("generate composite", err)
	}

	for _, candidate := range result.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data, nil
			}
		}
	}
	return nil, ErrNoImage
}

// GenerateStructured выполняет single-shot reasoning-вызов и
// разбирает JSON-ответ в out. Изображения опциональны.
func (c *Client) GenerateStructured(ctx context.Context, prompt string, images []StagedImage, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		parts = append(parts, genai.NewPartFromURI(img.URI, img.MIMEType))
	}

	result, err := c.api.Models.GenerateContent(
		ctx,
		c.cfg.ReasonModel,
		[]*genai.Content{{Parts: parts}},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return c.wrap("generate structured", err)
	}

	text := result.Text()
	if text == "" {
		return fmt.Errorf("%w: пустой ответ", ErrBadOutput)
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadOutput, err)
	}
	return nil
}

// wrap сводит сырую ошибку провайдера к таксономии.
func (c *Client) wrap(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	case rateLimited(err):
		return fmt.Errorf("%s: %w: %v", op, ErrRateLimited, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
