// AngelaMos | 2026
// dto.go

package admin

import (
	"github.com/shopspring/decimal"
)

type Overview struct {
	Users           int64           `db:"users"            json:"users"`
	ActiveUsers     int64           `db:"active_users"     json:"active_users"`
	Services        int64           `db:"services"         json:"services"`
	Orders          int64           `db:"orders"           json:"orders"`
	PendingOrders   int64           `db:"pending_orders"   json:"pending_orders"`
	CompletedOrders int64           `db:"completed_orders" json:"completed_orders"`
	Reviews         int64           `db:"reviews"          json:"reviews"`
	OrderValue      decimal.Decimal `db:"order_value"      json:"order_value"`
}

type SystemStats struct {
	Database PoolHealth[DBPool]    `json:"database"`
	Redis    PoolHealth[RedisPool] `json:"redis"`
	Tasks    *TaskQueueStats       `json:"tasks,omitempty"`
	Runtime  RuntimeStats          `json:"runtime"`
}

// PoolHealth pairs a ping result with pool counters. Pool is nil when no
// stats source is configured.
type PoolHealth[T any] struct {
	Healthy bool `json:"healthy"`
	Pool    *T   `json:"pool,omitempty"`
}

type DBPool struct {
	MaxOpen      int    `json:"max_open"`
	Open         int    `json:"open"`
	InUse        int    `json:"in_use"`
	Idle         int    `json:"idle"`
	WaitCount    int64  `json:"wait_count"`
	WaitDuration string `json:"wait_duration"`
}

type RedisPool struct {
	Hits     uint32 `json:"hits"`
	Misses   uint32 `json:"misses"`
	Timeouts uint32 `json:"timeouts"`
	Total    uint32 `json:"total_conns"`
	Idle     uint32 `json:"idle_conns"`
	Stale    uint32 `json:"stale_conns"`
}

type TaskQueueStats struct {
	Pending int64 `json:"pending"`
}

type TaskResult struct {
	ID     string `json:"id"`
	Result string `json:"result"`
}

type RuntimeStats struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	CPUs       int    `json:"cpus"`
	HeapAlloc  uint64 `json:"heap_alloc_bytes"`
	Sys        uint64 `json:"sys_bytes"`
	NumGC      uint32 `json:"num_gc"`
}
