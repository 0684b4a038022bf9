package garage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributeSetAndClear(t *testing.T) {
	var a Attribute[float64]
	assert.False(t, a.IsValid())

	now := time.Now()
	a.SetWithUnit(42.5, now, UnitKilometer)
	value, ok := a.Get()
	assert.True(t, ok)
	assert.Equal(t, 42.5, value)
	assert.Equal(t, UnitKilometer, a.Unit)
	assert.Equal(t, now, a.Measured)

	a.Clear()
	_, ok = a.Get()
	assert.False(t, ok)
	assert.Equal(t, UnitUnknown, a.Unit)
	assert.True(t, a.Measured.IsZero())
}

func TestNewVehicleChargingByPowertrain(t *testing.T) {
	assert.Nil(t, NewVehicle("VIN1", PowertrainGeneric).Charging)
	assert.Nil(t, NewVehicle("VIN2", PowertrainCombustion).Charging)
	assert.NotNil(t, NewVehicle("VIN3", PowertrainElectric).Charging)
	assert.NotNil(t, NewVehicle("VIN4", PowertrainHybrid).Charging)
}

func TestPromotePreservesState(t *testing.T) {
	v := NewVehicle("TMB000000000000001", PowertrainGeneric)
	now := time.Now()
	v.ModelName.Set("Enyaq", now)
	v.InMotion.Set(true, now)
	v.SetCapability(&Capability{ID: CapabilityCharging})
	v.RegisterCommand("wakeup", func(ctx context.Context, v *Vehicle, args CommandArgs) error {
		return nil
	})

	promoted := v.Promote(PowertrainElectric)

	assert.Equal(t, "TMB000000000000001", promoted.VIN)
	assert.Equal(t, PowertrainElectric, promoted.Powertrain)
	name, ok := promoted.ModelName.Get()
	assert.True(t, ok)
	assert.Equal(t, "Enyaq", name)
	inMotion, ok := promoted.InMotion.Get()
	assert.True(t, ok)
	assert.True(t, inMotion)
	assert.True(t, promoted.HasCapability(CapabilityCharging))
	assert.Contains(t, promoted.Commands(), "wakeup")
	assert.NotNil(t, promoted.Charging)

	// 原车辆保持原样
	assert.Equal(t, PowertrainGeneric, v.Powertrain)
	assert.Nil(t, v.Charging)
}

func TestPromoteKeepsExistingCharging(t *testing.T) {
	v := NewVehicle("VIN1", PowertrainElectric)
	v.Charging.BatteryLevel.SetWithUnit(80, time.Now(), UnitPercent)

	promoted := v.Promote(PowertrainHybrid)

	level, ok := promoted.Charging.BatteryLevel.Get()
	assert.True(t, ok)
	assert.Equal(t, 80, level)
}

func TestInvokeUnknownCommand(t *testing.T) {
	v := NewVehicle("VIN1", PowertrainGeneric)

	err := v.InvokeCommand(context.Background(), "missing", CommandArgs{"command": "x"})

	var unknown *UnknownCommandError
	assert.ErrorAs(t, err, &unknown)
}

func TestCommandArgsDiscriminator(t *testing.T) {
	command, ok := CommandArgs{"command": "lock"}.Command()
	assert.True(t, ok)
	assert.Equal(t, "lock", command)

	_, ok = CommandArgs{}.Command()
	assert.False(t, ok)

	_, ok = CommandArgs{"command": 7}.Command()
	assert.False(t, ok)
}

type recordingObserver struct {
	added   []string
	removed []string
}

func (o *recordingObserver) VehicleAdded(v *Vehicle)   { o.added = append(o.added, v.VIN) }
func (o *recordingObserver) VehicleRemoved(v *Vehicle) { o.removed = append(o.removed, v.VIN) }

func TestGarageAddReplaceRemove(t *testing.T) {
	g := New()
	observer := &recordingObserver{}
	g.AddObserver(observer)

	v := NewVehicle("VIN1", PowertrainGeneric)
	g.Add(v)
	assert.Equal(t, []string{"VIN1"}, g.VINs())
	assert.Equal(t, []string{"VIN1"}, observer.added)

	// 按 VIN 替换不触发添加和移除通知
	promoted := v.Promote(PowertrainElectric)
	g.Replace(promoted)
	got, ok := g.Get("VIN1")
	require.True(t, ok)
	assert.Same(t, promoted, got)
	assert.Len(t, observer.added, 1)
	assert.Empty(t, observer.removed)

	g.Remove("VIN1")
	assert.Empty(t, g.VINs())
	assert.Equal(t, []string{"VIN1"}, observer.removed)
}

func TestCapabilityAvailable(t *testing.T) {
	assert.True(t, (&Capability{ID: CapabilityCharging}).Available())
	assert.True(t, (&Capability{ID: CapabilityCharging, Statuses: []string{"PARTIALLY_AVAILABLE"}}).Available())
	assert.False(t, (&Capability{ID: CapabilityCharging, Statuses: []string{"INSUFFICIENT_BATTERY_LEVEL"}}).Available())
}
