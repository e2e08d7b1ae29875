// Package gateway — клиент внешнего генеративного провайдера.
//
// Покрывает три вызова, которые нужны рендер-движку:
//   - Upload — загрузка изображения в file-staging API провайдера
//   - GenerateComposite — композитинг товара в фотографию комнаты
//   - GenerateStructured — single-shot reasoning со структурированным
//     JSON-ответом (извлечение фактов, построение placement set)
//
// Все ошибки провайдера сводятся к типизированной таксономии
// (errors.go); ретраи выполняют вызывающие слои, не gateway.
package gateway
