// Package governor — управление конкурентностью вызовов провайдера.
//
// Два независимых механизма:
//   - глобальный admission-семафор: ограничивает суммарное число
//     одновременных вызовов провайдера в процессе, очередь FIFO
//   - per-tenant взаимное исключение: не более одной критической
//     секции на tenant, внутри процесса через FIFO-очередь ожидающих,
//     между процессами через advisory lock в Postgres
//
// Governor — инжектируемый сервис, не синглтон пакета: тесты
// конструируют изолированные экземпляры.
package governor
