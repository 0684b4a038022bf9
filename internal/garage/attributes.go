package garage

import "time"

// Unit 测量值单位
type Unit string

const (
	UnitUnknown   Unit = "unknown"
	UnitNone      Unit = ""
	UnitKilometer Unit = "km"
	UnitKmPerHour Unit = "km/h"
	UnitPercent   Unit = "%"
	UnitCelsius   Unit = "C"
	UnitKilowatt  Unit = "kW"
	UnitKWh       Unit = "kWh"
	UnitAmpere    Unit = "A"
	UnitMinutes   Unit = "min"
	UnitDays      Unit = "d"
	UnitDegree    Unit = "deg"
)

// Attribute 带时间戳的类型化属性
// 每个字段独立更新；payload 里缺失的字段通过 Clear 置为未知，
// 不保留旧值（里程计是例外，由调用方决定）
type Attribute[T any] struct {
	Value    T
	Measured time.Time
	Unit     Unit
	Valid    bool
}

// Set 设置属性值和测量时间
func (a *Attribute[T]) Set(value T, measured time.Time) {
	a.Value = value
	a.Measured = measured
	a.Valid = true
}

// SetWithUnit 设置属性值、测量时间和单位
func (a *Attribute[T]) SetWithUnit(value T, measured time.Time, unit Unit) {
	a.Value = value
	a.Measured = measured
	a.Unit = unit
	a.Valid = true
}

// Clear 置为未知，单位重置为 unknown
func (a *Attribute[T]) Clear() {
	var zero T
	a.Value = zero
	a.Measured = time.Time{}
	a.Unit = UnitUnknown
	a.Valid = false
}

// Get 读取属性值，第二个返回值表示是否有效
func (a *Attribute[T]) Get() (T, bool) {
	return a.Value, a.Valid
}

// IsValid 属性当前是否持有有效值
func (a *Attribute[T]) IsValid() bool {
	return a.Valid
}
