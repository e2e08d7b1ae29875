// Package render — fan-out движок рендера.
//
// Один запуск порождает ровно domain.PlacementCount независимых
// composite-вызовов провайдера, выполняемых параллельно под
// admission-контролем governor. Каждый вызов несёт собственный
// таймаут; неудача одного варианта не прерывает остальные —
// частичный результат является полноценным терминальным состоянием
// run (PARTIAL), а не ошибкой.
//
// Отключение наблюдателя (клиента SSE) не отменяет работу: вызовы
// провайдера тарифицируются независимо от того, слушает ли кто-то
// результат, поэтому fan-out всегда доводится до конца и
// персистится.
package render
