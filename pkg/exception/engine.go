package exception

import "errors"

var (
	ErrQueueFull          = errors.New("bus: queue full")
	ErrQueueClosed        = errors.New("bus: queue closed")
	ErrPoolExhausted      = errors.New("pool: exhausted")
	ErrEngineStopped      = errors.New("engine: stopped")
	ErrEngineBackpressure = errors.New("engine: fatal backpressure")
)
