package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/api/skoda"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
)

// FetchAll 完整发现：账号、车库、每辆车的全部子对象
func (c *Connector) FetchAll(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if err := c.fetchUserID(ctx); err != nil {
		return err
	}
	if err := c.fetchGarage(ctx); err != nil {
		return err
	}
	return c.updateVehiclesLocked(ctx)
}

// UpdateVehicles 对所有已知车辆做一轮增量更新
func (c *Connector) UpdateVehicles(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()
	return c.updateVehiclesLocked(ctx)
}

func (c *Connector) updateVehiclesLocked(ctx context.Context) error {
	for _, vin := range c.garage.VINs() {
		if err := c.updateVehicle(ctx, vin, false); err != nil {
			return err
		}
		c.notifyVehicleUpdate(vin)
	}
	return nil
}

// updateVehicle 更新单辆车的全部子对象
// 拉取按能力门控，续航端点可能触发动力类型晋升
func (c *Connector) updateVehicle(ctx context.Context, vin string, noCache bool) error {
	if err := c.fetchVehicleDetail(ctx, vin, noCache); err != nil {
		return err
	}
	if err := c.fetchDrivingRange(ctx, vin, noCache); err != nil {
		return err
	}

	v, ok := c.garage.Get(vin)
	if !ok {
		return apierr.NewAPIError("vehicle %s disappeared from garage during update", vin)
	}

	if v.HasCapability(garage.CapabilityState) {
		if err := c.fetchVehicleStatus(ctx, vin, noCache); err != nil {
			return err
		}
	}
	if v.Charging != nil && v.HasCapability(garage.CapabilityCharging) {
		if err := c.fetchCharging(ctx, vin, noCache); err != nil {
			return err
		}
	}
	if v.HasCapability(garage.CapabilityAirConditioning) {
		if err := c.fetchAirConditioning(ctx, vin, noCache); err != nil {
			return err
		}
	}
	if v.HasCapability(garage.CapabilityParkingPosition) {
		if err := c.fetchPosition(ctx, vin, noCache); err != nil {
			return err
		}
	}
	if v.HasCapability(garage.CapabilityVehicleHealth) {
		if err := c.fetchMaintenance(ctx, vin, noCache); err != nil {
			return err
		}
	}
	return nil
}

// fetchUserID 获取账号标识，事件流主题的第一段
func (c *Connector) fetchUserID(ctx context.Context) error {
	c.mu.RLock()
	known := c.userID
	c.mu.RUnlock()
	if known != "" {
		return nil
	}

	var user skoda.UserResponse
	payload, err := c.client.FetchInto(ctx, skoda.EndpointUsers, skoda.FetchOptions{}, &user)
	if err != nil {
		return err
	}
	if user.ID == "" {
		return apierr.NewAPIError("user response did not contain an id")
	}
	c.logUnknownKeys(skoda.EndpointUsers, payload, "id", "email", "firstName", "lastName",
		"nickname", "profilePictureUrl", "dateOfBirth", "phoneNumber", "country", "preferredLanguage")

	c.mu.Lock()
	c.userID = user.ID
	c.mu.Unlock()
	c.feed.SetUserID(user.ID)
	c.logger.Info("account identifier resolved", zap.String("user_id", user.ID))
	return nil
}

// fetchGarage 拉取车库列表，按 VIN 增删车辆
func (c *Connector) fetchGarage(ctx context.Context) error {
	var resp skoda.GarageResponse
	if _, err := c.client.FetchInto(ctx, skoda.EndpointGarage, skoda.FetchOptions{}, &resp); err != nil {
		return err
	}

	found := make(map[string]struct{}, len(resp.Vehicles))
	for _, entry := range resp.Vehicles {
		if entry.VIN == "" {
			return apierr.NewAPIError("garage response contained a vehicle without vin")
		}
		found[entry.VIN] = struct{}{}

		v, ok := c.garage.Get(entry.VIN)
		if !ok {
			v = garage.NewVehicle(entry.VIN, garage.PowertrainGeneric)
			c.registerCommands(v)
			c.garage.Add(v)
			c.logger.Info("vehicle discovered", zap.String("vin", entry.VIN),
				zap.String("name", entry.Name))
		}

		now := time.Now()
		if entry.LicensePlate != "" {
			v.LicensePlate.Set(entry.LicensePlate, now)
		}
		if entry.Specification.Model != "" {
			v.ModelName.Set(entry.Specification.Model, now)
		}
		if entry.Specification.ModelYear != "" {
			if year, err := strconv.Atoi(entry.Specification.ModelYear); err == nil {
				v.ModelYear.Set(year, now)
			}
		}
	}

	for _, vin := range c.garage.VINs() {
		if _, ok := found[vin]; !ok {
			c.garage.Remove(vin)
			c.logger.Info("vehicle no longer in account, removed", zap.String("vin", vin))
		}
	}
	return nil
}

// fetchVehicleDetail 拉取车辆详情并做能力增删对比
func (c *Connector) fetchVehicleDetail(ctx context.Context, vin string, noCache bool) error {
	v, ok := c.garage.Get(vin)
	if !ok {
		return apierr.NewAPIError("vehicle %s not in garage", vin)
	}

	var detail skoda.VehicleDetail
	payload, err := c.client.FetchInto(ctx, fmt.Sprintf(skoda.EndpointVehicle, vin),
		skoda.FetchOptions{NoCache: noCache}, &detail)
	if err != nil {
		return err
	}
	if detail.VIN == "" {
		return apierr.NewAPIError("vehicle detail for %s did not contain a vin", vin)
	}
	c.logUnknownKeys(skoda.EndpointVehicle, payload, "vin", "name", "licensePlate",
		"specification", "capabilities", "renders", "connectivities", "deactivated",
		"devicePlatform", "compositeRenders", "errors", "workshopMode", "servicePartner")

	now := time.Now()
	if detail.LicensePlate != "" {
		v.LicensePlate.Set(detail.LicensePlate, now)
	}
	if detail.Specification.Model != "" {
		v.ModelName.Set(detail.Specification.Model, now)
	}

	found := make(map[string]struct{}, len(detail.Capabilities.Capabilities))
	for _, entry := range detail.Capabilities.Capabilities {
		if entry.ID == "" {
			continue
		}
		found[entry.ID] = struct{}{}
		v.SetCapability(&garage.Capability{ID: entry.ID, Statuses: entry.Statuses})
	}
	for _, id := range v.CapabilityIDs() {
		if _, ok := found[id]; !ok {
			v.RemoveCapability(id)
			c.logger.Debug("capability no longer present", zap.String("vin", vin), zap.String("capability", id))
		}
	}
	return nil
}

// fetchVehicleStatus 拉取车辆远程状态（第二会话的端点）
func (c *Connector) fetchVehicleStatus(ctx context.Context, vin string, noCache bool) error {
	v, ok := c.garage.Get(vin)
	if !ok {
		return apierr.NewAPIError("vehicle %s not in garage", vin)
	}

	var status skoda.VehicleStatusResponse
	payload, err := c.statusClient.FetchInto(ctx, fmt.Sprintf(skoda.EndpointVehicleStatus, vin),
		skoda.FetchOptions{NoCache: noCache}, &status)
	if err != nil {
		return err
	}
	c.logUnknownKeys(skoda.EndpointVehicleStatus, payload, "remote", "shared")

	at, err := c.capturedAt(vin, status.Remote.CapturedAt)
	if err != nil {
		return err
	}

	// 里程是例外，缺失时保留上一次的好值
	if status.Remote.MileageInKm != nil {
		v.Odometer.SetWithUnit(*status.Remote.MileageInKm, at, garage.UnitKilometer)
	}

	if status.Remote.Status.Locked != "" {
		lockState := c.parseLockState(vin, status.Remote.Status.Locked)
		v.Doors.LockState.Set(lockState, at)
	} else {
		v.Doors.LockState.Clear()
	}
	if status.Remote.Status.Open != "" {
		openState := c.parseOpenState(vin, status.Remote.Status.Open)
		v.Doors.OpenState.Set(openState, at)
	} else {
		v.Doors.OpenState.Clear()
	}

	for _, door := range status.Remote.Doors {
		if door.Name == "" {
			continue
		}
		d, ok := v.Doors.Doors[door.Name]
		if !ok {
			d = &garage.Door{}
			v.Doors.Doors[door.Name] = d
		}
		d.Open.Set(c.parseOpenState(vin, door.Status), at)
	}

	for _, window := range status.Remote.Windows {
		if window.Name == "" {
			continue
		}
		w, ok := v.Windows.Windows[window.Name]
		if !ok {
			w = &garage.Attribute[garage.OpenState]{}
			v.Windows.Windows[window.Name] = w
		}
		w.Set(c.parseOpenState(vin, window.Status), at)
	}

	if status.Remote.Lights.OverallStatus != "" {
		v.Lights.OverallState.Set(status.Remote.Lights.OverallStatus, at)
	} else {
		v.Lights.OverallState.Clear()
	}
	for _, light := range status.Remote.Lights.LightsStatus {
		if light.Name == "" {
			continue
		}
		l, ok := v.Lights.Lights[light.Name]
		if !ok {
			l = &garage.Attribute[string]{}
			v.Lights.Lights[light.Name] = l
		}
		l.Set(light.Status, at)
	}
	return nil
}

// fetchDrivingRange 拉取续航并在车型揭示后晋升动力类型
func (c *Connector) fetchDrivingRange(ctx context.Context, vin string, noCache bool) error {
	v, ok := c.garage.Get(vin)
	if !ok {
		return apierr.NewAPIError("vehicle %s not in garage", vin)
	}

	var dr skoda.DrivingRangeResponse
	payload, err := c.client.FetchInto(ctx, fmt.Sprintf(skoda.EndpointDrivingRange, vin),
		skoda.FetchOptions{NoCache: noCache}, &dr)
	if err != nil {
		return err
	}
	c.logUnknownKeys(skoda.EndpointDrivingRange, payload, "carType", "carCapturedTimestamp",
		"totalRangeInKm", "primaryEngineRange", "secondaryEngineRange", "adBlueRange")

	at, err := c.capturedAt(vin, dr.CarCapturedTimestamp)
	if err != nil {
		return err
	}

	if dr.CarType != "" {
		powertrain, known := garage.ParsePowertrain(dr.CarType)
		if !known {
			c.logger.Warn("unknown car type reported, keeping current powertrain",
				zap.String("vin", vin), zap.String("car_type", dr.CarType))
		} else if powertrain != v.Powertrain {
			promoted := v.Promote(powertrain)
			c.garage.Replace(promoted)
			v = promoted
			c.logger.Info("vehicle powertrain promoted", zap.String("vin", vin),
				zap.String("powertrain", string(powertrain)))
		}
	}

	if dr.TotalRangeInKm != nil {
		v.Range.TotalRange.SetWithUnit(*dr.TotalRangeInKm, at, garage.UnitKilometer)
	} else {
		v.Range.TotalRange.Clear()
	}
	if dr.PrimaryEngineRange != nil {
		v.Range.PrimaryEngineType.Set(dr.PrimaryEngineRange.EngineType, at)
		if dr.PrimaryEngineRange.RemainingRangeInKm != nil {
			v.Range.PrimaryRange.SetWithUnit(*dr.PrimaryEngineRange.RemainingRangeInKm, at, garage.UnitKilometer)
		} else {
			v.Range.PrimaryRange.Clear()
		}
		if dr.PrimaryEngineRange.EngineType == "electric" && v.Charging != nil &&
			dr.PrimaryEngineRange.CurrentSoCInPercent != nil {
			v.Charging.BatteryLevel.SetWithUnit(int(*dr.PrimaryEngineRange.CurrentSoCInPercent), at, garage.UnitPercent)
		}
	} else {
		v.Range.PrimaryEngineType.Clear()
		v.Range.PrimaryRange.Clear()
	}
	if dr.SecondaryEngineRange != nil {
		v.Range.SecondaryEngineType.Set(dr.SecondaryEngineRange.EngineType, at)
		if dr.SecondaryEngineRange.RemainingRangeInKm != nil {
			v.Range.SecondaryRange.SetWithUnit(*dr.SecondaryEngineRange.RemainingRangeInKm, at, garage.UnitKilometer)
		} else {
			v.Range.SecondaryRange.Clear()
		}
	} else {
		v.Range.SecondaryEngineType.Clear()
		v.Range.SecondaryRange.Clear()
	}
	if dr.AdBlueRange != nil {
		v.Range.AdBlueRange.SetWithUnit(*dr.AdBlueRange, at, garage.UnitKilometer)
	} else {
		v.Range.AdBlueRange.Clear()
	}
	return nil
}

// fetchCharging 拉取充电状态
func (c *Connector) fetchCharging(ctx context.Context, vin string, noCache bool) error {
	v, ok := c.garage.Get(vin)
	if !ok {
		return apierr.NewAPIError("vehicle %s not in garage", vin)
	}
	if v.Charging == nil {
		return nil
	}

	var ch skoda.ChargingResponse
	payload, err := c.client.FetchInto(ctx, fmt.Sprintf(skoda.EndpointCharging, vin),
		skoda.FetchOptions{NoCache: noCache}, &ch)
	if err != nil {
		return err
	}
	c.logUnknownKeys(skoda.EndpointCharging, payload, "carCapturedTimestamp", "errors",
		"isVehicleInSavedLocation", "status", "settings", "chargeMode", "chargingRateInKilometersPerHour")

	at, err := c.capturedAt(vin, ch.CarCapturedTimestamp)
	if err != nil {
		return err
	}

	if ch.Status != nil {
		chargingState, known := garage.ParseChargingState(ch.Status.State)
		if !known && ch.Status.State != "" {
			c.logger.Warn("unknown charging state", zap.String("vin", vin),
				zap.String("state", ch.Status.State))
		}
		v.Charging.State.Set(chargingState, at)

		chargeType, known := garage.ParseChargeType(ch.Status.ChargeType)
		if !known && ch.Status.ChargeType != "" {
			c.logger.Warn("unknown charge type", zap.String("vin", vin),
				zap.String("charge_type", ch.Status.ChargeType))
		}
		v.Charging.Type.Set(chargeType, at)

		if ch.Status.ChargingRateInKilometersPerHour != nil {
			v.Charging.Rate.SetWithUnit(*ch.Status.ChargingRateInKilometersPerHour, at, garage.UnitKmPerHour)
		} else {
			v.Charging.Rate.Clear()
		}
		if ch.Status.ChargePowerInKw != nil {
			v.Charging.Power.SetWithUnit(*ch.Status.ChargePowerInKw, at, garage.UnitKilowatt)
		} else {
			v.Charging.Power.Clear()
		}
		if ch.Status.RemainingTimeToFullyChargedInMinutes != nil {
			v.Charging.RemainingTime.SetWithUnit(int(*ch.Status.RemainingTimeToFullyChargedInMinutes), at, garage.UnitMinutes)
		} else {
			v.Charging.RemainingTime.Clear()
		}
		if ch.Status.Battery != nil {
			if ch.Status.Battery.StateOfChargeInPercent != nil {
				v.Charging.BatteryLevel.SetWithUnit(int(*ch.Status.Battery.StateOfChargeInPercent), at, garage.UnitPercent)
			} else {
				v.Charging.BatteryLevel.Clear()
			}
			if ch.Status.Battery.RemainingCruisingRangeInMeters != nil {
				v.Charging.Range.SetWithUnit(*ch.Status.Battery.RemainingCruisingRangeInMeters/1000.0, at, garage.UnitKilometer)
			} else {
				v.Charging.Range.Clear()
			}
		} else {
			v.Charging.BatteryLevel.Clear()
			v.Charging.Range.Clear()
		}
	} else {
		v.Charging.State.Clear()
		v.Charging.Type.Clear()
		v.Charging.Rate.Clear()
		v.Charging.Power.Clear()
		v.Charging.RemainingTime.Clear()
		v.Charging.BatteryLevel.Clear()
		v.Charging.Range.Clear()
	}

	if ch.ChargeMode != "" {
		chargeMode, known := garage.ParseChargeMode(ch.ChargeMode)
		if !known {
			c.logger.Warn("unknown charge mode", zap.String("vin", vin), zap.String("mode", ch.ChargeMode))
		}
		v.Charging.Mode.Set(chargeMode, at)
	} else {
		v.Charging.Mode.Clear()
	}

	if ch.Settings != nil {
		if ch.Settings.TargetStateOfChargeInPercent != nil {
			v.Charging.Settings.TargetLevel.SetWithUnit(int(*ch.Settings.TargetStateOfChargeInPercent), at, garage.UnitPercent)
		} else {
			v.Charging.Settings.TargetLevel.Clear()
		}
		if ch.Settings.MaxChargeCurrentAc != "" {
			v.Charging.Settings.MaxCurrent.Set(ch.Settings.MaxChargeCurrentAc, at)
		} else {
			v.Charging.Settings.MaxCurrent.Clear()
		}
		v.Charging.Settings.AutoUnlockPlug.Set(ch.Settings.AutoUnlockPlugWhenCharged == "PERMANENT", at)
	} else {
		v.Charging.Settings.TargetLevel.Clear()
		v.Charging.Settings.MaxCurrent.Clear()
		v.Charging.Settings.AutoUnlockPlug.Clear()
	}

	for key := range v.Charging.Errors {
		delete(v.Charging.Errors, key)
	}
	for _, entry := range ch.Errors {
		v.Charging.Errors[entry.Type] = entry.Description
	}
	return nil
}

// fetchAirConditioning 拉取空调状态
func (c *Connector) fetchAirConditioning(ctx context.Context, vin string, noCache bool) error {
	v, ok := c.garage.Get(vin)
	if !ok {
		return apierr.NewAPIError("vehicle %s not in garage", vin)
	}

	var ac skoda.AirConditioningResponse
	payload, err := c.client.FetchInto(ctx, fmt.Sprintf(skoda.EndpointAirConditioning, vin),
		skoda.FetchOptions{NoCache: noCache}, &ac)
	if err != nil {
		return err
	}
	c.logUnknownKeys(skoda.EndpointAirConditioning, payload, "carCapturedTimestamp", "state",
		"estimatedDateTimeToReachTargetTemperature", "targetTemperature", "windowHeatingState",
		"errors", "steeringWheelPosition", "airConditioningAtUnlock", "seatHeatingActivated",
		"windowHeatingEnabled", "chargerConnectionState", "chargerLockState", "timers")

	at, err := c.capturedAt(vin, ac.CarCapturedTimestamp)
	if err != nil {
		return err
	}

	if ac.State != "" {
		climState, known := garage.ParseClimatizationState(ac.State)
		if !known {
			c.logger.Warn("unknown climatization state", zap.String("vin", vin), zap.String("state", ac.State))
		}
		v.Climatization.State.Set(climState, at)
	} else {
		v.Climatization.State.Clear()
	}

	if ac.TargetTemperature != nil {
		v.Climatization.Settings.TargetTemperature.SetWithUnit(
			ac.TargetTemperature.TemperatureValue, at, garage.UnitCelsius)
	} else {
		v.Climatization.Settings.TargetTemperature.Clear()
	}

	if ac.EstimatedDateTimeToReachTargetTemperature != "" {
		if reachAt, err := time.Parse(time.RFC3339, ac.EstimatedDateTimeToReachTargetTemperature); err == nil {
			v.Climatization.EstimatedReachAt.Set(reachAt, at)
		} else {
			v.Climatization.EstimatedReachAt.Clear()
		}
	} else {
		v.Climatization.EstimatedReachAt.Clear()
	}

	if ac.WindowHeatingState != nil {
		front, _ := garage.ParseWindowHeatingState(ac.WindowHeatingState.Front)
		rear, _ := garage.ParseWindowHeatingState(ac.WindowHeatingState.Rear)
		v.Climatization.WindowHeatingFront.Set(front, at)
		v.Climatization.WindowHeatingRear.Set(rear, at)
	} else {
		v.Climatization.WindowHeatingFront.Clear()
		v.Climatization.WindowHeatingRear.Clear()
	}

	for key := range v.Climatization.Errors {
		delete(v.Climatization.Errors, key)
	}
	for _, entry := range ac.Errors {
		v.Climatization.Errors[entry.Type] = entry.Description
	}
	return nil
}

// fetchPosition 拉取车辆位置
// 行驶中的车辆没有定位，置为移动中并清空坐标
func (c *Connector) fetchPosition(ctx context.Context, vin string, noCache bool) error {
	v, ok := c.garage.Get(vin)
	if !ok {
		return apierr.NewAPIError("vehicle %s not in garage", vin)
	}

	var pos skoda.PositionsResponse
	payload, err := c.client.FetchInto(ctx, fmt.Sprintf(skoda.EndpointPositions, vin),
		skoda.FetchOptions{NoCache: noCache, AllowedErrors: []int{204}}, &pos)
	if err != nil {
		return err
	}
	c.logUnknownKeys(skoda.EndpointPositions, payload, "positions", "errors")

	now := time.Now()
	for _, entry := range pos.Errors {
		if entry.Type == "VEHICLE_IN_MOTION" {
			v.InMotion.Set(true, now)
			v.Position.Latitude.Clear()
			v.Position.Longitude.Clear()
			v.Position.Type.Clear()
			return nil
		}
	}

	for _, p := range pos.Positions {
		if p.Type != "VEHICLE" {
			continue
		}
		v.InMotion.Set(false, now)
		v.Position.Latitude.SetWithUnit(p.GPSCoordinates.Latitude, now, garage.UnitDegree)
		v.Position.Longitude.SetWithUnit(p.GPSCoordinates.Longitude, now, garage.UnitDegree)
		v.Position.Type.Set(p.Type, now)
		return nil
	}

	v.Position.Latitude.Clear()
	v.Position.Longitude.Clear()
	v.Position.Type.Clear()
	return nil
}

// fetchMaintenance 拉取保养数据
func (c *Connector) fetchMaintenance(ctx context.Context, vin string, noCache bool) error {
	v, ok := c.garage.Get(vin)
	if !ok {
		return apierr.NewAPIError("vehicle %s not in garage", vin)
	}

	var m skoda.MaintenanceResponse
	payload, err := c.client.FetchInto(ctx, fmt.Sprintf(skoda.EndpointMaintenance, vin),
		skoda.FetchOptions{NoCache: noCache, AllowEmpty: true}, &m)
	if err != nil {
		return err
	}
	c.logUnknownKeys(skoda.EndpointMaintenance, payload, "maintenanceReport",
		"predictiveMaintenanceSettings", "customerService")

	if m.MaintenanceReport == nil {
		v.Maintenance.InspectionDueDays.Clear()
		v.Maintenance.InspectionDueKm.Clear()
		v.Maintenance.OilServiceDueDays.Clear()
		v.Maintenance.OilServiceDueKm.Clear()
		v.Maintenance.MileageKm.Clear()
		return nil
	}

	at, err := c.capturedAt(vin, m.MaintenanceReport.CapturedAt)
	if err != nil {
		return err
	}

	report := m.MaintenanceReport
	if report.InspectionDueInDays != nil {
		v.Maintenance.InspectionDueDays.SetWithUnit(int(*report.InspectionDueInDays), at, garage.UnitDays)
	} else {
		v.Maintenance.InspectionDueDays.Clear()
	}
	if report.InspectionDueInKm != nil {
		v.Maintenance.InspectionDueKm.SetWithUnit(*report.InspectionDueInKm, at, garage.UnitKilometer)
	} else {
		v.Maintenance.InspectionDueKm.Clear()
	}
	if report.OilServiceDueInDays != nil {
		v.Maintenance.OilServiceDueDays.SetWithUnit(int(*report.OilServiceDueInDays), at, garage.UnitDays)
	} else {
		v.Maintenance.OilServiceDueDays.Clear()
	}
	if report.OilServiceDueInKm != nil {
		v.Maintenance.OilServiceDueKm.SetWithUnit(*report.OilServiceDueInKm, at, garage.UnitKilometer)
	} else {
		v.Maintenance.OilServiceDueKm.Clear()
	}
	if report.MileageInKm != nil {
		v.Maintenance.MileageKm.SetWithUnit(*report.MileageInKm, at, garage.UnitKilometer)
	} else {
		v.Maintenance.MileageKm.Clear()
	}
	return nil
}

// capturedAt 解析厂商时间戳，缺失或无法解析都是致命的 API 数据错误
func (c *Connector) capturedAt(vin, timestamp string) (time.Time, error) {
	if timestamp == "" {
		return time.Time{}, apierr.NewAPIError("payload for %s is missing its captured-at timestamp", vin)
	}
	at, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return time.Time{}, apierr.NewAPIError("payload for %s has an unparseable captured-at timestamp %q", vin, timestamp)
	}
	return at, nil
}

func (c *Connector) parseLockState(vin, s string) garage.LockState {
	state, known := garage.ParseLockState(s)
	if !known {
		c.logger.Warn("unknown lock state", zap.String("vin", vin), zap.String("state", s))
	}
	return state
}

func (c *Connector) parseOpenState(vin, s string) garage.OpenState {
	state, known := garage.ParseOpenState(s)
	if !known {
		c.logger.Warn("unknown open state", zap.String("vin", vin), zap.String("state", s))
	}
	return state
}

// logUnknownKeys 对比负载顶层键和已知键集合，陌生键只记调试日志
// 暴露上游 API 漂移而不中断轮询
func (c *Connector) logUnknownKeys(endpoint string, payload json.RawMessage, known ...string) {
	if payload == nil {
		return
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(payload, &top); err != nil {
		return
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, key := range known {
		knownSet[key] = struct{}{}
	}
	for key := range top {
		if _, ok := knownSet[key]; !ok {
			c.logger.Debug("unexpected key in response", zap.String("endpoint", endpoint), zap.String("key", key))
		}
	}
}
