// Package stream — SSE-протокол прогресса рендера.
//
// Гарантии протокола:
//   - кадры пишутся строго последовательно одним писателем: порядок
//     эмиссии совпадает с порядком постановки в очередь, даже когда
//     завершения вариантов гонятся друг с другом
//   - ровно один терминальный кадр (complete или error), всегда
//     последний; после него поток закрыт и таймеры остановлены
//   - progress-кадр уходит сразу на старте и далее по heartbeat,
//     пока есть варианты в полёте
//   - отдельный comment-кадр на собственном таймере удерживает
//     соединение живым сквозь прокси
//   - отключение клиента отсоединяет наблюдение, но не отменяет
//     рендер: кадры перестают писаться, работа продолжается
package stream
