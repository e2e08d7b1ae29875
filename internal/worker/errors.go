package worker

import "errors"

// Ошибки воркера.
var (
	// ErrJobNotFound — задача не найдена в БД.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotQueued — задача не в статусе QUEUED.
	ErrJobNotQueued = errors.New("job is not in QUEUED status")

	// ErrUnknownJobKind — нет executor'а для данного типа задачи.
	ErrUnknownJobKind = errors.New("unknown job kind")

	// ErrAssetNotReady — asset не пригоден для рендера.
	ErrAssetNotReady = errors.New("asset is not render-ready")

	// ErrNoRoom — render-задача без room session.
	ErrNoRoom = errors.New("render job has no room session")
)
