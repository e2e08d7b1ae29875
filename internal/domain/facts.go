package domain

import (
	"fmt"
	"time"
)

// PlacementCount — фиксированная ширина fan-out: каждый run
// производит ровно столько вариантов.
const PlacementCount = 8

// ProductCard — карточка товара, снятая с каталога магазина при
// создании asset. Prepare-стадия читает её отсюда: batch-процессор
// не ходит во внешний каталог.
type ProductCard struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	ProductType string            `json:"product_type,omitempty"`
	Vendor      string            `json:"vendor,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	Metafields  map[string]string `json:"metafields,omitempty"`
}

// ProductFacts — структурированное описание товара, извлечённое
// reasoning-провайдером из карточки товара и его изображений.
type ProductFacts struct {
	// Identity — что это за предмет ("floor lamp", "two-seat sofa").
	Identity string `json:"identity"`

	// ScaleClass — класс относительного размера: "small" / "medium" / "large".
	ScaleClass string `json:"scale_class"`

	// TypicalDimensions — типичные габариты в сантиметрах.
	TypicalDimensions Dimensions `json:"typical_dimensions"`

	// Material — основной материал поверхности.
	Material string `json:"material,omitempty"`

	// PlacementSurface — на чём предмет обычно стоит: "floor" / "table" / "wall".
	PlacementSurface string `json:"placement_surface,omitempty"`

	// StyleHints — стилистические подсказки для композитинга.
	StyleHints []string `json:"style_hints,omitempty"`
}

// Dimensions — габариты предмета.
type Dimensions struct {
	WidthCM  float64 `json:"width_cm"`
	HeightCM float64 `json:"height_cm"`
	DepthCM  float64 `json:"depth_cm"`
}

// FactsPatch — точечные правки мерчанта поверх извлечённых фактов.
// Непустое поле патча побеждает извлечённое значение.
type FactsPatch struct {
	Identity          string      `json:"identity,omitempty"`
	ScaleClass        string      `json:"scale_class,omitempty"`
	TypicalDimensions *Dimensions `json:"typical_dimensions,omitempty"`
	Material          string      `json:"material,omitempty"`
	PlacementSurface  string      `json:"placement_surface,omitempty"`
	StyleHints        []string    `json:"style_hints,omitempty"`
}

// Placement — одна именованная инструкция размещения.
type Placement struct {
	// ID — стабильный идентификатор варианта внутри placement set.
	ID string `json:"id"`

	// Name — короткое человекочитаемое имя ("у окна", "в углу").
	Name string `json:"name"`

	// Instruction — инструкция размещения на естественном языке,
	// подставляется в prompt composite-вызова.
	Instruction string `json:"instruction"`
}

// PlacementSet — ровно PlacementCount вариантов размещения
// плюс общее описание товара для всех вариантов.
type PlacementSet struct {
	// ProductDescription — общее описание товара, одно на весь set.
	ProductDescription string `json:"product_description"`

	// Placements — варианты размещения. Всегда ровно PlacementCount.
	Placements []Placement `json:"placements"`
}

// Validate проверяет инвариант мощности placement set.
// Набор с числом вариантов != PlacementCount непригоден: его нельзя
// ни урезать, ни дополнить.
func (ps *PlacementSet) Validate() error {
	if len(ps.Placements) != PlacementCount {
		return fmt.Errorf("placement set: ожидалось %d вариантов, получено %d", PlacementCount, len(ps.Placements))
	}
	for i, p := range ps.Placements {
		if p.ID == "" || p.Instruction == "" {
			return fmt.Errorf("placement set: вариант %d без id или инструкции", i)
		}
	}
	return nil
}

// FileRef — ссылка на файл, загруженный во внешний file-staging API.
// Валидна до ExpiresAt; пустой Ref означает отсутствие ссылки.
type FileRef struct {
	// Ref — непрозрачный идентификатор файла у провайдера.
	Ref string `json:"ref,omitempty"`

	// ExpiresAt — момент истечения ссылки, объявленный провайдером.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// IsZero возвращает true, если ссылка отсутствует.
func (f FileRef) IsZero() bool {
	return f.Ref == ""
}
