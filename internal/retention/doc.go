// Package retention удаляет room sessions по истечении окна хранения.
//
// Sweeper просыпается по cron-расписанию, берёт межпроцессный lock
// (leader election) и пачками удаляет истёкшие сессии: сперва их
// объекты в storage, затем строки. Фотографии комнат — данные
// покупателей, окно хранения задано domain.RoomRetention.
package retention
