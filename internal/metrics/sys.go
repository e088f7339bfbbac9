package metrics

import (
	"runtime"
	"time"
)

// SysHealth represents real-time process and session metrics.
type SysHealth struct {
	AllocMB      uint64
	TotalAllocMB uint64
	SysMB        uint64
	NumGC        uint32
	Goroutines   int
	Sessions     int
	Watching     int
	Uptime       time.Duration
}

// Counter reports a live count, such as open sessions.
type Counter interface {
	Len() int
}

// CounterFunc adapts a function to Counter.
type CounterFunc func() int

func (f CounterFunc) Len() int { return f() }

// GetSysHealth collects real-time health data. Either counter may be nil.
func GetSysHealth(sessions, watching Counter, started time.Time) SysHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h := SysHealth{
		AllocMB:      m.Alloc / 1024 / 1024,
		TotalAllocMB: m.TotalAlloc / 1024 / 1024,
		SysMB:        m.Sys / 1024 / 1024,
		NumGC:        m.NumGC,
		Goroutines:   runtime.NumGoroutine(),
	}
	if sessions != nil {
		h.Sessions = sessions.Len()
	}
	if watching != nil {
		h.Watching = watching.Len()
	}
	if !started.IsZero() {
		h.Uptime = time.Since(started).Round(time.Second)
	}
	return h
}
