package governor

import "errors"

// Ошибки governor.
var (
	// ErrLockWaitTimeout — ожидание распределённого lock превысило
	// предел. Упавший держатель может задержать других tenants,
	// но не заблокировать их навсегда.
	ErrLockWaitTimeout = errors.New("distributed lock wait timeout")
)
