package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/Showroom/internal/domain"
	"github.com/shaiso/Showroom/internal/gateway"
	"github.com/shaiso/Showroom/internal/telemetry"
)

// Reasoner — подмножество gateway, нужное пайплайну.
type Reasoner interface {
	GenerateStructured(ctx context.Context, prompt string, images []gateway.StagedImage, out any) error
}

// ExtractInput — карточка товара для стадии extract.
type ExtractInput struct {
	Title       string
	Description string
	ProductType string
	Vendor      string
	Tags        []string
	Metafields  map[string]string

	// Images — staged-изображения товара, от 1 до 3.
	Images []gateway.StagedImage
}

// Coordinator последовательно ведёт стадии подготовки.
type Coordinator struct {
	reason Reasoner
}

// New создаёт новый Coordinator.
func New(reason Reasoner) *Coordinator {
	return &Coordinator{reason: reason}
}

// ExtractFacts выполняет стадию extract: один вызов провайдера.
// Пустое название или отсутствие изображений — ошибка предусловия,
// провайдер не вызывается.
func (c *Coordinator) ExtractFacts(ctx context.Context, in ExtractInput) (*domain.ProductFacts, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, ErrNoTitle
	}
	if len(in.Images) == 0 {
		return nil, ErrNoImages
	}
	images := in.Images
	if len(images) > 3 {
		images = images[:3]
	}

	var facts domain.ProductFacts
	if err := c.reason.GenerateStructured(ctx, extractPrompt(in), images, &facts); err != nil {
		return nil, fmt.Errorf("extract facts: %w", err)
	}
	if facts.Identity == "" {
		return nil, fmt.Errorf("extract facts: %w: пустой identity", gateway.ErrBadOutput)
	}

	telemetry.FromContext(ctx).Debug("facts extracted",
		"identity", facts.Identity,
		"scale_class", facts.ScaleClass,
	)
	return &facts, nil
}

// ResolveFacts — чистое слияние извлечённых фактов с правками
// мерчанта. Непустое поле патча побеждает. Без сети и side effects:
// повторный вызов с теми же аргументами детерминирован.
func ResolveFacts(extracted *domain.ProductFacts, patch *domain.FactsPatch) *domain.ProductFacts {
	if extracted == nil {
		return nil
	}
	resolved := *extracted
	if patch == nil {
		return &resolved
	}

	if patch.Identity != "" {
		resolved.Identity = patch.Identity
	}
	if patch.ScaleClass != "" {
		resolved.ScaleClass = patch.ScaleClass
	}
	if patch.TypicalDimensions != nil {
		resolved.TypicalDimensions = *patch.TypicalDimensions
	}
	if patch.Material != "" {
		resolved.Material = patch.Material
	}
	if patch.PlacementSurface != "" {
		resolved.PlacementSurface = patch.PlacementSurface
	}
	if patch.StyleHints != nil {
		resolved.StyleHints = append([]string(nil), patch.StyleHints...)
	}
	return &resolved
}

// BuildPlacementSet выполняет стадию placement: один вызов провайдера.
// Набор с числом вариантов != domain.PlacementCount — фатальная ошибка
// валидации; урезать или дополнять его нельзя.
func (c *Coordinator) BuildPlacementSet(ctx context.Context, facts *domain.ProductFacts) (*domain.PlacementSet, error) {
	if facts == nil {
		return nil, ErrNoFacts
	}

	var set domain.PlacementSet
	if err := c.reason.GenerateStructured(ctx, placementPrompt(facts), nil, &set); err != nil {
		return nil, fmt.Errorf("build placement set: %w", err)
	}
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("build placement set: %w: %v", gateway.ErrBadOutput, err)
	}
	return &set, nil
}

// Prepare ведёт все три стадии подряд. Ошибка любой стадии прерывает
// подготовку целиком: частичные наборы фактов не возвращаются.
func (c *Coordinator) Prepare(ctx context.Context, in ExtractInput, patch *domain.FactsPatch) (extracted, resolved *domain.ProductFacts, set *domain.PlacementSet, err error) {
	extracted, err = c.ExtractFacts(ctx, in)
	if err != nil {
		return nil, nil, nil, err
	}
	resolved = ResolveFacts(extracted, patch)
	set, err = c.BuildPlacementSet(ctx, resolved)
	if err != nil {
		return nil, nil, nil, err
	}
	return extracted, resolved, set, nil
}

func extractPrompt(in ExtractInput) string {
	var b strings.Builder
	b.WriteString("Identify the product on the attached images and return a JSON object with fields: ")
	b.WriteString(`identity, scale_class (small|medium|large), typical_dimensions {width_cm,height_cm,depth_cm}, material, placement_surface (floor|table|wall), style_hints []. `)
	fmt.Fprintf(&b, "Title: %s. ", in.Title)
	if in.Description != "" {
		fmt.Fprintf(&b, "Description: %s. ", in.Description)
	}
	if in.ProductType != "" {
		fmt.Fprintf(&b, "Type: %s. ", in.ProductType)
	}
	if in.Vendor != "" {
		fmt.Fprintf(&b, "Vendor: %s. ", in.Vendor)
	}
	if len(in.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s. ", strings.Join(in.Tags, ", "))
	}
	for k, v := range in.Metafields {
		fmt.Fprintf(&b, "%s: %s. ", k, v)
	}
	return b.String()
}

func placementPrompt(facts *domain.ProductFacts) string {
	return fmt.Sprintf(
		"Given this product: %s (%s, surface: %s), return a JSON object with "+
			"product_description and placements: exactly %d entries, each with "+
			"id, name and a one-sentence natural-language placement instruction "+
			"for compositing the product into a customer's room photo.",
		facts.Identity, facts.ScaleClass, facts.PlacementSurface, domain.PlacementCount,
	)
}
