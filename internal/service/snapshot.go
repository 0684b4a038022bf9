package service

import (
	"time"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
)

// AttributeValue 对外序列化的属性，属性无效时整体为 nil
type AttributeValue struct {
	Value    interface{} `json:"value"`
	Unit     string      `json:"unit,omitempty"`
	Measured string      `json:"measured,omitempty"`
}

// DoorSnapshot 单个车门
type DoorSnapshot struct {
	Open   *AttributeValue `json:"open"`
	Locked *AttributeValue `json:"locked"`
}

// DoorsSnapshot 车门集合
type DoorsSnapshot struct {
	LockState *AttributeValue         `json:"lock_state"`
	OpenState *AttributeValue         `json:"open_state"`
	Doors     map[string]DoorSnapshot `json:"doors"`
}

// LightsSnapshot 车灯
type LightsSnapshot struct {
	OverallState *AttributeValue            `json:"overall_state"`
	Lights       map[string]*AttributeValue `json:"lights"`
}

// PositionSnapshot 位置
type PositionSnapshot struct {
	Latitude  *AttributeValue `json:"latitude"`
	Longitude *AttributeValue `json:"longitude"`
	Heading   *AttributeValue `json:"heading"`
	Type      *AttributeValue `json:"type"`
}

// ClimatizationSnapshot 空调
type ClimatizationSnapshot struct {
	State              *AttributeValue   `json:"state"`
	EstimatedReachAt   *AttributeValue   `json:"estimated_reach_at"`
	RemainingTime      *AttributeValue   `json:"remaining_time"`
	WindowHeatingFront *AttributeValue   `json:"window_heating_front"`
	WindowHeatingRear  *AttributeValue   `json:"window_heating_rear"`
	TargetTemperature  *AttributeValue   `json:"target_temperature"`
	Errors             map[string]string `json:"errors,omitempty"`
}

// ChargingSnapshot 充电，仅电动/混动车辆输出
type ChargingSnapshot struct {
	State          *AttributeValue   `json:"state"`
	Mode           *AttributeValue   `json:"mode"`
	Type           *AttributeValue   `json:"type"`
	BatteryLevel   *AttributeValue   `json:"battery_level"`
	Range          *AttributeValue   `json:"range"`
	Power          *AttributeValue   `json:"power"`
	Rate           *AttributeValue   `json:"rate"`
	RemainingTime  *AttributeValue   `json:"remaining_time"`
	TargetLevel    *AttributeValue   `json:"target_level"`
	MaxCurrent     *AttributeValue   `json:"max_current"`
	AutoUnlockPlug *AttributeValue   `json:"auto_unlock_plug"`
	Errors         map[string]string `json:"errors,omitempty"`
}

// RangeSnapshot 续航
type RangeSnapshot struct {
	TotalRange          *AttributeValue `json:"total_range"`
	PrimaryEngineType   *AttributeValue `json:"primary_engine_type"`
	PrimaryRange        *AttributeValue `json:"primary_range"`
	SecondaryEngineType *AttributeValue `json:"secondary_engine_type"`
	SecondaryRange      *AttributeValue `json:"secondary_range"`
	AdBlueRange         *AttributeValue `json:"ad_blue_range"`
}

// MaintenanceSnapshot 保养
type MaintenanceSnapshot struct {
	InspectionDueDays *AttributeValue `json:"inspection_due_days"`
	InspectionDueKm   *AttributeValue `json:"inspection_due_km"`
	OilServiceDueDays *AttributeValue `json:"oil_service_due_days"`
	OilServiceDueKm   *AttributeValue `json:"oil_service_due_km"`
	MileageKm         *AttributeValue `json:"mileage_km"`
}

// VehicleSnapshot 车辆状态的完整序列化视图
type VehicleSnapshot struct {
	VIN           string                     `json:"vin"`
	Powertrain    string                     `json:"powertrain"`
	LicensePlate  *AttributeValue            `json:"license_plate"`
	ModelName     *AttributeValue            `json:"model_name"`
	ModelYear     *AttributeValue            `json:"model_year"`
	Odometer      *AttributeValue            `json:"odometer"`
	InMotion      *AttributeValue            `json:"in_motion"`
	Deactivated   *AttributeValue            `json:"deactivated"`
	Capabilities  []string                   `json:"capabilities"`
	Commands      []string                   `json:"commands"`
	Doors         DoorsSnapshot              `json:"doors"`
	Windows       map[string]*AttributeValue `json:"windows"`
	Lights        LightsSnapshot             `json:"lights"`
	Position      PositionSnapshot           `json:"position"`
	Climatization ClimatizationSnapshot      `json:"climatization"`
	Range         RangeSnapshot              `json:"range"`
	Maintenance   MaintenanceSnapshot        `json:"maintenance"`
	Charging      *ChargingSnapshot          `json:"charging,omitempty"`
}

func attrValue[T any](a *garage.Attribute[T]) *AttributeValue {
	if !a.IsValid() {
		return nil
	}
	out := &AttributeValue{Value: a.Value}
	if a.Unit != garage.UnitNone && a.Unit != garage.UnitUnknown {
		out.Unit = string(a.Unit)
	}
	if !a.Measured.IsZero() {
		out.Measured = a.Measured.Format(time.RFC3339)
	}
	return out
}

func copyErrors(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// snapshotVehicle 从车辆构建序列化视图
func snapshotVehicle(v *garage.Vehicle) *VehicleSnapshot {
	snap := &VehicleSnapshot{
		VIN:          v.VIN,
		Powertrain:   string(v.Powertrain),
		LicensePlate: attrValue(&v.LicensePlate),
		ModelName:    attrValue(&v.ModelName),
		ModelYear:    attrValue(&v.ModelYear),
		Odometer:     attrValue(&v.Odometer),
		InMotion:     attrValue(&v.InMotion),
		Deactivated:  attrValue(&v.Deactivated),
		Capabilities: v.CapabilityIDs(),
		Commands:     v.Commands(),
		Doors: DoorsSnapshot{
			LockState: attrValue(&v.Doors.LockState),
			OpenState: attrValue(&v.Doors.OpenState),
			Doors:     make(map[string]DoorSnapshot, len(v.Doors.Doors)),
		},
		Windows: make(map[string]*AttributeValue, len(v.Windows.Windows)),
		Lights: LightsSnapshot{
			OverallState: attrValue(&v.Lights.OverallState),
			Lights:       make(map[string]*AttributeValue, len(v.Lights.Lights)),
		},
		Position: PositionSnapshot{
			Latitude:  attrValue(&v.Position.Latitude),
			Longitude: attrValue(&v.Position.Longitude),
			Heading:   attrValue(&v.Position.Heading),
			Type:      attrValue(&v.Position.Type),
		},
		Climatization: ClimatizationSnapshot{
			State:              attrValue(&v.Climatization.State),
			EstimatedReachAt:   attrValue(&v.Climatization.EstimatedReachAt),
			RemainingTime:      attrValue(&v.Climatization.RemainingTime),
			WindowHeatingFront: attrValue(&v.Climatization.WindowHeatingFront),
			WindowHeatingRear:  attrValue(&v.Climatization.WindowHeatingRear),
			TargetTemperature:  attrValue(&v.Climatization.Settings.TargetTemperature),
			Errors:             copyErrors(v.Climatization.Errors),
		},
		Range: RangeSnapshot{
			TotalRange:          attrValue(&v.Range.TotalRange),
			PrimaryEngineType:   attrValue(&v.Range.PrimaryEngineType),
			PrimaryRange:        attrValue(&v.Range.PrimaryRange),
			SecondaryEngineType: attrValue(&v.Range.SecondaryEngineType),
			SecondaryRange:      attrValue(&v.Range.SecondaryRange),
			AdBlueRange:         attrValue(&v.Range.AdBlueRange),
		},
		Maintenance: MaintenanceSnapshot{
			InspectionDueDays: attrValue(&v.Maintenance.InspectionDueDays),
			InspectionDueKm:   attrValue(&v.Maintenance.InspectionDueKm),
			OilServiceDueDays: attrValue(&v.Maintenance.OilServiceDueDays),
			OilServiceDueKm:   attrValue(&v.Maintenance.OilServiceDueKm),
			MileageKm:         attrValue(&v.Maintenance.MileageKm),
		},
	}

	for name, door := range v.Doors.Doors {
		snap.Doors.Doors[name] = DoorSnapshot{
			Open:   attrValue(&door.Open),
			Locked: attrValue(&door.Locked),
		}
	}
	for name, w := range v.Windows.Windows {
		snap.Windows[name] = attrValue(w)
	}
	for name, l := range v.Lights.Lights {
		snap.Lights.Lights[name] = attrValue(l)
	}

	if v.Charging != nil {
		snap.Charging = &ChargingSnapshot{
			State:          attrValue(&v.Charging.State),
			Mode:           attrValue(&v.Charging.Mode),
			Type:           attrValue(&v.Charging.Type),
			BatteryLevel:   attrValue(&v.Charging.BatteryLevel),
			Range:          attrValue(&v.Charging.Range),
			Power:          attrValue(&v.Charging.Power),
			Rate:           attrValue(&v.Charging.Rate),
			RemainingTime:  attrValue(&v.Charging.RemainingTime),
			TargetLevel:    attrValue(&v.Charging.Settings.TargetLevel),
			MaxCurrent:     attrValue(&v.Charging.Settings.MaxCurrent),
			AutoUnlockPlug: attrValue(&v.Charging.Settings.AutoUnlockPlug),
			Errors:         copyErrors(v.Charging.Errors),
		}
	}

	return snap
}

// Snapshot 返回单辆车的序列化视图
func (c *Connector) Snapshot(vin string) (*VehicleSnapshot, bool) {
	v, ok := c.garage.Get(vin)
	if !ok {
		return nil, false
	}
	return snapshotVehicle(v), true
}

// Snapshots 返回车库中所有车辆的序列化视图
func (c *Connector) Snapshots() []*VehicleSnapshot {
	vehicles := c.garage.List()
	out := make([]*VehicleSnapshot, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, snapshotVehicle(v))
	}
	return out
}
