package garage

// 车辆能力标识，决定尝试哪些数据获取和指令
const (
	CapabilityCharging             = "CHARGING"
	CapabilityParkingPosition      = "PARKING_POSITION"
	CapabilityAirConditioning      = "AIR_CONDITIONING"
	CapabilityAccess               = "ACCESS"
	CapabilityState                = "STATE"
	CapabilityHonkAndFlash         = "HONK_AND_FLASH"
	CapabilityVehicleWakeUpTrigger = "VEHICLE_WAKE_UP_TRIGGER"
	CapabilityVehicleHealth        = "VEHICLE_HEALTH_INSPECTION"
	CapabilityWindowHeating        = "WINDOW_HEATING"
)

// Capability 账号/车辆对某个远程功能的授权
type Capability struct {
	ID       string
	Statuses []string
}

// Available 能力当前是否可用（没有阻断性的状态标记）
func (c *Capability) Available() bool {
	for _, s := range c.Statuses {
		switch s {
		case "DEACTIVATED_BY_ACTIVE_VEHICLE_USER", "INSUFFICIENT_BATTERY_LEVEL", "DISABLED_BY_USER":
			return false
		}
	}
	return true
}
