// Package worker реализует batch-процессор отложенной работы.
//
// Очередь живёт в Postgres (таблица render_jobs); RabbitMQ используется
// только как wakeup, polling остаётся fallback-путём. Задача
// захватывается условным UPDATE: из конкурирующих процессов claim
// удаётся ровно одному, проигравший молча пропускает строку.
//
// Цикл обработки:
//   - stale recovery: задачи, зависшие в PROCESSING дольше окна,
//     возвращаются в очередь или помечаются FAILED по retry cap
//   - claim пачки queued-задач, старые первыми
//   - выполнение по типу задачи (prepare / render) с экспоненциальным
//     backoff между попытками
//
// Retry выполняется в процессе, а не через requeue в RabbitMQ: это
// даёт точный контроль над backoff и подсчётом попыток, а claim
// продлевается между попытками.
//
// Panic в цикле не перехватывается: повреждённое состояние процесса
// опаснее его рестарта, stale recovery вернёт захваченные задачи.
package worker
