package garage

// ChargingState 充电状态
type ChargingState string

const (
	ChargingStateOff              ChargingState = "off"
	ChargingStateReadyForCharging ChargingState = "readyForCharging"
	ChargingStateConservation     ChargingState = "conservation"
	ChargingStateCharging         ChargingState = "charging"
	ChargingStateDischarging      ChargingState = "discharging"
	ChargingStateError            ChargingState = "error"
	ChargingStateUnsupported      ChargingState = "unsupported"
	ChargingStateUnknown          ChargingState = "unknown"
)

// 厂商充电状态到通用状态的映射
var skodaChargingStates = map[string]ChargingState{
	"OFF":                    ChargingStateOff,
	"CONNECT_CABLE":          ChargingStateOff,
	"READY_FOR_CHARGING":     ChargingStateReadyForCharging,
	"NOT_READY_FOR_CHARGING": ChargingStateOff,
	"CONSERVATION":           ChargingStateConservation,
	"CHARGE_PURPOSE_REACHED_NOT_CONSERVATION_CHARGING": ChargingStateReadyForCharging,
	"CHARGE_PURPOSE_REACHED_CONSERVATION":              ChargingStateConservation,
	"CHARGING":                                         ChargingStateCharging,
	"DISCHARGING":                                      ChargingStateDischarging,
	"ERROR":                                            ChargingStateError,
	"UNSUPPORTED":                                      ChargingStateUnsupported,
}

// ParseChargingState 把厂商字符串解析为通用充电状态
// 无法识别的值返回 unknown 哨兵，第二个返回值为 false
func ParseChargingState(s string) (ChargingState, bool) {
	if state, ok := skodaChargingStates[s]; ok {
		return state, true
	}
	return ChargingStateUnknown, false
}

// ChargeMode 充电模式
type ChargeMode string

const (
	ChargeModeManual                 ChargeMode = "manual"
	ChargeModePreferredChargingTimes ChargeMode = "preferredChargingTimes"
	ChargeModeTimerOrientedCharging  ChargeMode = "timerOrientedCharging"
	ChargeModeHomeStorageCharging    ChargeMode = "homeStorageCharging"
	ChargeModeImmediateDischarging   ChargeMode = "immediateDischarging"
	ChargeModeUnknown                ChargeMode = "unknown"
)

var skodaChargeModes = map[string]ChargeMode{
	"MANUAL":                   ChargeModeManual,
	"PREFERRED_CHARGING_TIMES": ChargeModePreferredChargingTimes,
	"TIMER_ORIENTED_CHARGING":  ChargeModeTimerOrientedCharging,
	"HOME_STORAGE_CHARGING":    ChargeModeHomeStorageCharging,
	"IMMEDIATE_DISCHARGING":    ChargeModeImmediateDischarging,
}

// ParseChargeMode 解析充电模式
func ParseChargeMode(s string) (ChargeMode, bool) {
	if mode, ok := skodaChargeModes[s]; ok {
		return mode, true
	}
	return ChargeModeUnknown, false
}

// ChargeType 充电类型（交流/直流）
type ChargeType string

const (
	ChargeTypeAC      ChargeType = "ac"
	ChargeTypeDC      ChargeType = "dc"
	ChargeTypeUnknown ChargeType = "unknown"
)

// ParseChargeType 解析充电类型
func ParseChargeType(s string) (ChargeType, bool) {
	switch s {
	case "AC":
		return ChargeTypeAC, true
	case "DC":
		return ChargeTypeDC, true
	}
	return ChargeTypeUnknown, false
}

// ClimatizationState 空调状态
type ClimatizationState string

const (
	ClimatizationStateOff         ClimatizationState = "off"
	ClimatizationStateHeating     ClimatizationState = "heating"
	ClimatizationStateCooling     ClimatizationState = "cooling"
	ClimatizationStateVentilation ClimatizationState = "ventilation"
	ClimatizationStateUnknown     ClimatizationState = "unknown"
)

var skodaClimatizationStates = map[string]ClimatizationState{
	"OFF":         ClimatizationStateOff,
	"ON":          ClimatizationStateHeating,
	"HEATING":     ClimatizationStateHeating,
	"COOLING":     ClimatizationStateCooling,
	"VENTILATION": ClimatizationStateVentilation,
	"INVALID":     ClimatizationStateOff,
}

// ParseClimatizationState 解析空调状态
func ParseClimatizationState(s string) (ClimatizationState, bool) {
	if state, ok := skodaClimatizationStates[s]; ok {
		return state, true
	}
	return ClimatizationStateUnknown, false
}

// LockState 门锁状态
type LockState string

const (
	LockStateLocked   LockState = "locked"
	LockStateUnlocked LockState = "unlocked"
	LockStateInvalid  LockState = "invalid"
	LockStateUnknown  LockState = "unknown"
)

// ParseLockState 解析门锁状态
func ParseLockState(s string) (LockState, bool) {
	switch s {
	case "YES", "LOCKED":
		return LockStateLocked, true
	case "NO", "UNLOCKED":
		return LockStateUnlocked, true
	case "INVALID":
		return LockStateInvalid, true
	}
	return LockStateUnknown, false
}

// OpenState 开闭状态（门、窗、引擎盖等）
type OpenState string

const (
	OpenStateOpen        OpenState = "open"
	OpenStateClosed      OpenState = "closed"
	OpenStateUnsupported OpenState = "unsupported"
	OpenStateInvalid     OpenState = "invalid"
	OpenStateUnknown     OpenState = "unknown"
)

// ParseOpenState 解析开闭状态
func ParseOpenState(s string) (OpenState, bool) {
	switch s {
	case "OPEN", "YES":
		return OpenStateOpen, true
	case "CLOSED", "NO":
		return OpenStateClosed, true
	case "UNSUPPORTED":
		return OpenStateUnsupported, true
	case "INVALID":
		return OpenStateInvalid, true
	}
	return OpenStateUnknown, false
}

// WindowHeatingState 车窗加热状态
type WindowHeatingState string

const (
	WindowHeatingStateOn      WindowHeatingState = "on"
	WindowHeatingStateOff     WindowHeatingState = "off"
	WindowHeatingStateUnknown WindowHeatingState = "unknown"
)

// ParseWindowHeatingState 解析车窗加热状态
func ParseWindowHeatingState(s string) (WindowHeatingState, bool) {
	switch s {
	case "ON":
		return WindowHeatingStateOn, true
	case "OFF":
		return WindowHeatingStateOff, true
	}
	return WindowHeatingStateUnknown, false
}

// Powertrain 动力类型，随着续航端点揭示车型而晋升
type Powertrain string

const (
	PowertrainGeneric    Powertrain = "generic"
	PowertrainElectric   Powertrain = "electric"
	PowertrainCombustion Powertrain = "combustion"
	PowertrainHybrid     Powertrain = "hybrid"
)

// ParsePowertrain 从续航端点报告的车型解析动力类型
func ParsePowertrain(s string) (Powertrain, bool) {
	switch s {
	case "electric":
		return PowertrainElectric, true
	case "gasoline", "diesel", "cng", "gas":
		return PowertrainCombustion, true
	case "hybrid":
		return PowertrainHybrid, true
	}
	return PowertrainGeneric, false
}
