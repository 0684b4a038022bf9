package garage

import (
	"context"
	"sync"
	"time"
)

// Door 单个车门的状态
type Door struct {
	Open   Attribute[OpenState]
	Locked Attribute[LockState]
}

// Doors 车门集合状态
type Doors struct {
	LockState Attribute[LockState]
	OpenState Attribute[OpenState]
	Doors     map[string]*Door
}

// Windows 车窗集合状态
type Windows struct {
	Windows map[string]*Attribute[OpenState]
}

// Lights 车灯状态
type Lights struct {
	OverallState Attribute[string]
	Lights       map[string]*Attribute[string]
}

// Position 车辆位置
type Position struct {
	Latitude  Attribute[float64]
	Longitude Attribute[float64]
	Heading   Attribute[float64]
	Type      Attribute[string]
}

// ClimatizationSettings 空调设置
type ClimatizationSettings struct {
	TargetTemperature       Attribute[float64]
	AirConditioningAtUnlock Attribute[bool]
	WindowHeatingEnabled    Attribute[bool]
	SeatsHeatingFrontLeft   Attribute[bool]
	SeatsHeatingFrontRight  Attribute[bool]
}

// Climatization 空调状态
type Climatization struct {
	State              Attribute[ClimatizationState]
	EstimatedReachAt   Attribute[time.Time]
	RemainingTime      Attribute[int]
	WindowHeatingFront Attribute[WindowHeatingState]
	WindowHeatingRear  Attribute[WindowHeatingState]
	Settings           ClimatizationSettings
	Errors             map[string]string
}

// ChargingSettings 充电设置
type ChargingSettings struct {
	TargetLevel    Attribute[int]
	MaxCurrent     Attribute[string]
	AutoUnlockPlug Attribute[bool]
	CareMode       Attribute[bool]
}

// Charging 充电状态，仅电动/混动车辆持有
type Charging struct {
	State         Attribute[ChargingState]
	Mode          Attribute[ChargeMode]
	Type          Attribute[ChargeType]
	BatteryLevel  Attribute[int]
	Range         Attribute[float64]
	Power         Attribute[float64]
	Rate          Attribute[float64]
	RemainingTime Attribute[int]
	Settings      ChargingSettings
	Errors        map[string]string
}

// DriveRange 续航信息
type DriveRange struct {
	TotalRange          Attribute[float64]
	PrimaryEngineType   Attribute[string]
	PrimaryRange        Attribute[float64]
	SecondaryEngineType Attribute[string]
	SecondaryRange      Attribute[float64]
	AdBlueRange         Attribute[float64]
}

// Maintenance 保养信息
type Maintenance struct {
	InspectionDueDays Attribute[int]
	InspectionDueKm   Attribute[float64]
	OilServiceDueDays Attribute[int]
	OilServiceDueKm   Attribute[float64]
	MileageKm         Attribute[float64]
}

// CommandArgs 指令参数，必须包含 command 判别字段
type CommandArgs map[string]interface{}

// Command 返回 command 判别字段的值
func (a CommandArgs) Command() (string, bool) {
	v, ok := a["command"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// CommandFunc 指令回调，执行厂商 POST/PUT 并在非成功状态时返回指令错误
type CommandFunc func(ctx context.Context, v *Vehicle, args CommandArgs) error

// Vehicle 车辆，VIN 是车库中的不可变主键
// 动力类型是标签字段，续航端点揭示车型后通过拷贝构造晋升
type Vehicle struct {
	VIN        string
	Powertrain Powertrain

	LicensePlate Attribute[string]
	ModelName    Attribute[string]
	ModelYear    Attribute[int]
	Odometer     Attribute[float64]
	InMotion     Attribute[bool]
	Deactivated  Attribute[bool]

	Doors         Doors
	Windows       Windows
	Lights        Lights
	Position      Position
	Climatization Climatization
	Range         DriveRange
	Maintenance   Maintenance

	// Charging 仅在电动/混动车辆上非 nil
	Charging *Charging

	Capabilities map[string]*Capability

	mu       sync.RWMutex
	commands map[string]CommandFunc
}

// NewVehicle 创建车辆
func NewVehicle(vin string, powertrain Powertrain) *Vehicle {
	v := &Vehicle{
		VIN:          vin,
		Powertrain:   powertrain,
		Capabilities: make(map[string]*Capability),
		commands:     make(map[string]CommandFunc),
	}
	v.Doors.Doors = make(map[string]*Door)
	v.Windows.Windows = make(map[string]*Attribute[OpenState])
	v.Lights.Lights = make(map[string]*Attribute[string])
	v.Climatization.Errors = make(map[string]string)
	if powertrain == PowertrainElectric || powertrain == PowertrainHybrid {
		v.Charging = newCharging()
	}
	return v
}

func newCharging() *Charging {
	return &Charging{Errors: make(map[string]string)}
}

// Promote 拷贝构造出新动力类型的车辆，携带已填充的子对象
// 旧车辆保持不变，由调用方在车库中按 VIN 替换
func (v *Vehicle) Promote(powertrain Powertrain) *Vehicle {
	v.mu.RLock()
	defer v.mu.RUnlock()

	nv := &Vehicle{
		VIN:          v.VIN,
		Powertrain:   powertrain,
		LicensePlate: v.LicensePlate,
		ModelName:    v.ModelName,
		ModelYear:    v.ModelYear,
		Odometer:     v.Odometer,
		InMotion:     v.InMotion,
		Deactivated:  v.Deactivated,

		Doors:         v.Doors,
		Windows:       v.Windows,
		Lights:        v.Lights,
		Position:      v.Position,
		Climatization: v.Climatization,
		Range:         v.Range,
		Maintenance:   v.Maintenance,

		Capabilities: v.Capabilities,
		commands:     make(map[string]CommandFunc),
	}
	for name, fn := range v.commands {
		nv.commands[name] = fn
	}
	if powertrain == PowertrainElectric || powertrain == PowertrainHybrid {
		if v.Charging != nil {
			nv.Charging = v.Charging
		} else {
			nv.Charging = newCharging()
		}
	}
	return nv
}

// HasCapability 车辆是否具备某能力
func (v *Vehicle) HasCapability(id string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.Capabilities[id]
	return ok
}

// SetCapability 添加或更新能力
func (v *Vehicle) SetCapability(c *Capability) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Capabilities[c.ID] = c
}

// RemoveCapability 移除能力
func (v *Vehicle) RemoveCapability(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.Capabilities, id)
}

// CapabilityIDs 当前能力标识列表
func (v *Vehicle) CapabilityIDs() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	ids := make([]string, 0, len(v.Capabilities))
	for id := range v.Capabilities {
		ids = append(ids, id)
	}
	return ids
}

// RegisterCommand 注册指令回调
func (v *Vehicle) RegisterCommand(name string, fn CommandFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.commands[name] = fn
}

// Commands 已注册的指令名
func (v *Vehicle) Commands() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.commands))
	for name := range v.commands {
		names = append(names, name)
	}
	return names
}

// InvokeCommand 执行指令
// 参数必须是包含 command 判别字段的映射
func (v *Vehicle) InvokeCommand(ctx context.Context, name string, args CommandArgs) error {
	v.mu.RLock()
	fn, ok := v.commands[name]
	v.mu.RUnlock()
	if !ok {
		return &UnknownCommandError{Name: name}
	}
	return fn(ctx, v, args)
}

// UnknownCommandError 指令未注册
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return "unknown command: " + e.Name
}
