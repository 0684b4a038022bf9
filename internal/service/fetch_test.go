package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/api/skoda"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/auth"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/config"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
)

const testVIN = "TMB000000000000001"

func newTestConnector(t *testing.T) (*Connector, *garage.Garage) {
	t.Helper()
	cfg := &config.Config{
		Username: "user@example.com",
		Password: "secret",
		SPin:     "1234",
		Interval: 300 * time.Second,
	}
	manager := auth.NewManager("", zap.NewNop())
	g := garage.New()
	c := NewConnector(cfg, g, manager, zap.NewNop())

	c.client.Session().SetToken(&auth.TokenBundle{
		AccessToken: "token-1", Expiry: time.Now().Add(time.Hour)})
	c.statusClient.Session().SetToken(&auth.TokenBundle{
		AccessToken: "token-2", Expiry: time.Now().Add(time.Hour)})

	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)
	return c, g
}

func addElectricVehicle(c *Connector, g *garage.Garage) *garage.Vehicle {
	v := garage.NewVehicle(testVIN, garage.PowertrainElectric)
	c.registerCommands(v)
	g.Add(v)
	return v
}

func TestFetchGarageDiscoversAndRemoves(t *testing.T) {
	c, g := newTestConnector(t)
	stale := garage.NewVehicle("TMB000000000000999", garage.PowertrainGeneric)
	g.Add(stale)

	httpmock.RegisterResponder("GET", skoda.BaseURL+skoda.EndpointGarage,
		httpmock.NewStringResponder(200, `{"vehicles":[
			{"vin":"`+testVIN+`","name":"My Enyaq","licensePlate":"AB 123 CD",
			 "specification":{"model":"Enyaq iV 80","modelYear":"2023"}}
		]}`))

	require.NoError(t, c.fetchGarage(context.Background()))

	v, ok := g.Get(testVIN)
	require.True(t, ok)
	plate, _ := v.LicensePlate.Get()
	assert.Equal(t, "AB 123 CD", plate)
	model, _ := v.ModelName.Get()
	assert.Equal(t, "Enyaq iV 80", model)
	year, _ := v.ModelYear.Get()
	assert.Equal(t, 2023, year)
	assert.NotEmpty(t, v.Commands())

	// 不在账号里的车辆被移除
	_, ok = g.Get("TMB000000000000999")
	assert.False(t, ok)
}

func TestFetchGarageRejectsMissingVIN(t *testing.T) {
	c, _ := newTestConnector(t)
	httpmock.RegisterResponder("GET", skoda.BaseURL+skoda.EndpointGarage,
		httpmock.NewStringResponder(200, `{"vehicles":[{"name":"ghost"}]}`))

	err := c.fetchGarage(context.Background())

	var apiErr *apierr.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestFetchVehicleDetailSyncsCapabilities(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)
	v.SetCapability(&garage.Capability{ID: "OBSOLETE"})

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v2/garage/vehicles/"+testVIN,
		httpmock.NewStringResponder(200, `{"vin":"`+testVIN+`","capabilities":{"capabilities":[
			{"id":"CHARGING","statuses":[]},
			{"id":"STATE","statuses":[]}
		]}}`))

	require.NoError(t, c.fetchVehicleDetail(context.Background(), testVIN, false))

	assert.True(t, v.HasCapability(garage.CapabilityCharging))
	assert.True(t, v.HasCapability(garage.CapabilityState))
	assert.False(t, v.HasCapability("OBSOLETE"))
}

func TestFetchVehicleStatusParsesDoorsAndWindows(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)
	v.Odometer.SetWithUnit(12000, time.Now(), garage.UnitKilometer)

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v2/vehicle-status/"+testVIN,
		httpmock.NewStringResponder(200, `{"remote":{
			"capturedAt":"2026-08-28T10:00:00Z",
			"status":{"open":"NO","locked":"YES"},
			"doors":[{"name":"FRONT_LEFT","status":"CLOSED"}],
			"windows":[{"name":"FRONT_LEFT","status":"CLOSED"}],
			"lights":{"overallStatus":"OFF","lightsStatus":[{"name":"LEFT","status":"OFF"}]}
		}}`))

	require.NoError(t, c.fetchVehicleStatus(context.Background(), testVIN, false))

	lockState, _ := v.Doors.LockState.Get()
	assert.Equal(t, garage.LockStateLocked, lockState)
	openState, _ := v.Doors.OpenState.Get()
	assert.Equal(t, garage.OpenStateClosed, openState)
	door, ok := v.Doors.Doors["FRONT_LEFT"]
	require.True(t, ok)
	doorOpen, _ := door.Open.Get()
	assert.Equal(t, garage.OpenStateClosed, doorOpen)
	window, ok := v.Windows.Windows["FRONT_LEFT"]
	require.True(t, ok)
	windowOpen, _ := window.Get()
	assert.Equal(t, garage.OpenStateClosed, windowOpen)

	// 响应缺少里程时保留上一次的值
	odometer, ok := v.Odometer.Get()
	assert.True(t, ok)
	assert.Equal(t, float64(12000), odometer)
}

func TestFetchVehicleStatusMissingTimestamp(t *testing.T) {
	c, g := newTestConnector(t)
	addElectricVehicle(c, g)

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v2/vehicle-status/"+testVIN,
		httpmock.NewStringResponder(200, `{"remote":{"status":{"open":"NO","locked":"YES"}}}`))

	err := c.fetchVehicleStatus(context.Background(), testVIN, false)

	var apiErr *apierr.APIError
	assert.True(t, errors.As(err, &apiErr))
}

func TestFetchDrivingRangePromotesPowertrain(t *testing.T) {
	c, g := newTestConnector(t)
	v := garage.NewVehicle(testVIN, garage.PowertrainGeneric)
	c.registerCommands(v)
	g.Add(v)

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v2/vehicle-status/"+testVIN+"/driving-range",
		httpmock.NewStringResponder(200, `{
			"carType":"electric",
			"carCapturedTimestamp":"2026-08-28T10:00:00Z",
			"totalRangeInKm":310,
			"primaryEngineRange":{"engineType":"electric","currentSoCInPercent":76,"remainingRangeInKm":310}
		}`))

	require.NoError(t, c.fetchDrivingRange(context.Background(), testVIN, false))

	promoted, ok := g.Get(testVIN)
	require.True(t, ok)
	assert.Equal(t, garage.PowertrainElectric, promoted.Powertrain)
	require.NotNil(t, promoted.Charging)
	level, _ := promoted.Charging.BatteryLevel.Get()
	assert.Equal(t, 76, level)
	total, _ := promoted.Range.TotalRange.Get()
	assert.Equal(t, float64(310), total)
	// 晋升后指令仍然可用
	assert.NotEmpty(t, promoted.Commands())
}

func TestFetchChargingPopulatesState(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v1/charging/"+testVIN,
		httpmock.NewStringResponder(200, `{
			"carCapturedTimestamp":"2026-08-28T10:00:00Z",
			"status":{
				"state":"CHARGING","chargeType":"AC",
				"chargingRateInKilometersPerHour":35.5,"chargePowerInKw":7.2,
				"remainingTimeToFullyChargedInMinutes":120,
				"battery":{"stateOfChargeInPercent":55,"remainingCruisingRangeInMeters":180000}
			},
			"settings":{"autoUnlockPlugWhenCharged":"PERMANENT","maxChargeCurrentAc":"MAXIMUM","targetStateOfChargeInPercent":80},
			"chargeMode":"MANUAL"
		}`))

	require.NoError(t, c.fetchCharging(context.Background(), testVIN, false))

	state, _ := v.Charging.State.Get()
	assert.Equal(t, garage.ChargingStateCharging, state)
	chargeType, _ := v.Charging.Type.Get()
	assert.Equal(t, garage.ChargeTypeAC, chargeType)
	rate, _ := v.Charging.Rate.Get()
	assert.Equal(t, 35.5, rate)
	power, _ := v.Charging.Power.Get()
	assert.Equal(t, 7.2, power)
	remaining, _ := v.Charging.RemainingTime.Get()
	assert.Equal(t, 120, remaining)
	level, _ := v.Charging.BatteryLevel.Get()
	assert.Equal(t, 55, level)
	chargedRange, _ := v.Charging.Range.Get()
	assert.Equal(t, float64(180), chargedRange)
	mode, _ := v.Charging.Mode.Get()
	assert.Equal(t, garage.ChargeModeManual, mode)
	target, _ := v.Charging.Settings.TargetLevel.Get()
	assert.Equal(t, 80, target)
	autoUnlock, _ := v.Charging.Settings.AutoUnlockPlug.Get()
	assert.True(t, autoUnlock)
}

func TestFetchChargingClearsAbsentFields(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)
	now := time.Now()
	v.Charging.State.Set(garage.ChargingStateCharging, now)
	v.Charging.Power.SetWithUnit(7.2, now, garage.UnitKilowatt)
	v.Charging.Mode.Set(garage.ChargeModeManual, now)
	v.Charging.BatteryLevel.SetWithUnit(80, now, garage.UnitPercent)
	v.Charging.Range.SetWithUnit(250, now, garage.UnitKilometer)

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v1/charging/"+testVIN,
		httpmock.NewStringResponder(200, `{"carCapturedTimestamp":"2026-08-28T10:00:00Z"}`))

	require.NoError(t, c.fetchCharging(context.Background(), testVIN, false))

	assert.False(t, v.Charging.State.IsValid())
	assert.False(t, v.Charging.Power.IsValid())
	assert.False(t, v.Charging.Mode.IsValid())
	assert.False(t, v.Charging.BatteryLevel.IsValid())
	assert.False(t, v.Charging.Range.IsValid())
	assert.Equal(t, garage.UnitUnknown, v.Charging.Power.Unit)
}

func TestFetchChargingClearsBatteryWhenAbsent(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)
	now := time.Now()
	v.Charging.BatteryLevel.SetWithUnit(80, now, garage.UnitPercent)
	v.Charging.Range.SetWithUnit(250, now, garage.UnitKilometer)

	// 有 status 但没有 battery 子对象，旧电量不能留下来
	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v1/charging/"+testVIN,
		httpmock.NewStringResponder(200, `{
			"carCapturedTimestamp":"2026-08-28T10:00:00Z",
			"status":{"state":"READY_FOR_CHARGING","chargeType":"AC"}
		}`))

	require.NoError(t, c.fetchCharging(context.Background(), testVIN, false))

	charging, _ := v.Charging.State.Get()
	assert.Equal(t, garage.ChargingStateReadyForCharging, charging)
	assert.False(t, v.Charging.BatteryLevel.IsValid())
	assert.False(t, v.Charging.Range.IsValid())
}

func TestFetchAirConditioningClearsTargetTemperature(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)
	v.Climatization.Settings.TargetTemperature.SetWithUnit(22, time.Now(), garage.UnitCelsius)

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v2/air-conditioning/"+testVIN,
		httpmock.NewStringResponder(200, `{
			"carCapturedTimestamp":"2026-08-28T10:00:00Z",
			"state":"COOLING",
			"windowHeatingState":{"front":"OFF","rear":"OFF"}
		}`))

	require.NoError(t, c.fetchAirConditioning(context.Background(), testVIN, false))

	state, _ := v.Climatization.State.Get()
	assert.Equal(t, garage.ClimatizationStateCooling, state)
	assert.False(t, v.Climatization.Settings.TargetTemperature.IsValid())
	front, _ := v.Climatization.WindowHeatingFront.Get()
	assert.Equal(t, garage.WindowHeatingStateOff, front)
}

func TestFetchPositionInMotion(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)
	v.Position.Latitude.SetWithUnit(50.0, time.Now(), garage.UnitDegree)
	v.Position.Longitude.SetWithUnit(14.4, time.Now(), garage.UnitDegree)

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v1/maps/positions",
		httpmock.NewStringResponder(200, `{"errors":[{"type":"VEHICLE_IN_MOTION","description":"vehicle is moving"}]}`))

	require.NoError(t, c.fetchPosition(context.Background(), testVIN, false))

	inMotion, _ := v.InMotion.Get()
	assert.True(t, inMotion)
	assert.False(t, v.Position.Latitude.IsValid())
	assert.False(t, v.Position.Longitude.IsValid())
}

func TestFetchPositionParked(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v1/maps/positions",
		httpmock.NewStringResponder(200, `{"positions":[
			{"type":"VEHICLE","gpsCoordinates":{"latitude":50.08,"longitude":14.43}}
		]}`))

	require.NoError(t, c.fetchPosition(context.Background(), testVIN, false))

	inMotion, _ := v.InMotion.Get()
	assert.False(t, inMotion)
	lat, _ := v.Position.Latitude.Get()
	assert.Equal(t, 50.08, lat)
	lng, _ := v.Position.Longitude.Get()
	assert.Equal(t, 14.43, lng)
}

func TestFetchMaintenanceEmptyReportClears(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)
	v.Maintenance.MileageKm.SetWithUnit(12000, time.Now(), garage.UnitKilometer)

	httpmock.RegisterResponder("GET", skoda.BaseURL+"/api/v3/vehicle-maintenance/vehicles/"+testVIN,
		httpmock.NewStringResponder(200, `{}`))

	require.NoError(t, c.fetchMaintenance(context.Background(), testVIN, false))

	assert.False(t, v.Maintenance.MileageKm.IsValid())
}

func TestSnapshotReflectsVehicle(t *testing.T) {
	c, g := newTestConnector(t)
	v := addElectricVehicle(c, g)
	now := time.Now()
	v.ModelName.Set("Enyaq iV 80", now)
	v.Charging.BatteryLevel.SetWithUnit(55, now, garage.UnitPercent)
	v.SetCapability(&garage.Capability{ID: garage.CapabilityCharging})

	snap, ok := c.Snapshot(testVIN)
	require.True(t, ok)

	assert.Equal(t, testVIN, snap.VIN)
	assert.Equal(t, "electric", snap.Powertrain)
	require.NotNil(t, snap.ModelName)
	assert.Equal(t, "Enyaq iV 80", snap.ModelName.Value)
	require.NotNil(t, snap.Charging)
	require.NotNil(t, snap.Charging.BatteryLevel)
	assert.Equal(t, 55, snap.Charging.BatteryLevel.Value)
	assert.Equal(t, "%", snap.Charging.BatteryLevel.Unit)
	assert.Contains(t, snap.Capabilities, garage.CapabilityCharging)
	// 无效属性序列化为 nil
	assert.Nil(t, snap.Odometer)

	_, ok = c.Snapshot("unknown")
	assert.False(t, ok)
}
