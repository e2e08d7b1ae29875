// Package pipeline — трёхстадийная подготовка фактов товара.
//
// Стадии строго последовательны и fail-hard:
//
//	extract  — один reasoning-вызов: карточка товара + изображения →
//	           структурированные факты
//	resolve  — чистое слияние фактов с правками мерчанта, без сети
//	placement — один reasoning-вызов: факты → ровно 8 вариантов
//	           размещения плюс общее описание
//
// Никакая стадия не подставляет значения по умолчанию и не
// достраивается на request-time: неполный вход — это ошибка
// предусловия до любого вызова провайдера.
package pipeline
