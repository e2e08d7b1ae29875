// Package cli реализует инструмент командной строки Showroom.
//
// # Обзор
//
// CLI — клиентская утилита бэк-офиса для Showroom API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для импорта товаров, контроля их подготовки,
// инспекции render runs и управления batch-задачами.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Showroom API. Инкапсулирует HTTP-запросы,
// парсинг ответов и типизированных ошибок (с request id).
//
//	client := cli.NewClient("http://localhost:8080")
//	asset, err := client.GetAsset(id)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: showroom run show ID --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - asset: import, show, prepare
//   - run: show
//   - job: requeue
//
// Каждая группа создаётся через фабричную функцию (NewAssetCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
