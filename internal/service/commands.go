package service

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/api/skoda"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
)

// 指令名
const (
	CommandLockUnlock      = "lock-unlock"
	CommandClimatization   = "climatization"
	CommandCharging        = "charging"
	CommandTargetTemp      = "target-temperature"
	CommandChargeLimit     = "charge-limit"
	CommandChargingCurrent = "charging-current"
	CommandAutoUnlockPlug  = "auto-unlock-plug"
	CommandHonkFlash       = "honk-flash"
	CommandWakeup          = "wakeup"
	CommandWindowHeating   = "window-heating"
	CommandSpin            = "spin"
)

// registerCommands 在车辆上注册全部指令回调
// 回调持有连接器，HTTP 会话有单一归属
func (c *Connector) registerCommands(v *garage.Vehicle) {
	v.RegisterCommand(CommandLockUnlock, c.commandLockUnlock)
	v.RegisterCommand(CommandClimatization, c.commandClimatization)
	v.RegisterCommand(CommandCharging, c.commandCharging)
	v.RegisterCommand(CommandTargetTemp, c.commandTargetTemperature)
	v.RegisterCommand(CommandChargeLimit, c.commandChargeLimit)
	v.RegisterCommand(CommandChargingCurrent, c.commandChargingCurrent)
	v.RegisterCommand(CommandAutoUnlockPlug, c.commandAutoUnlockPlug)
	v.RegisterCommand(CommandHonkFlash, c.commandHonkFlash)
	v.RegisterCommand(CommandWakeup, c.commandWakeup)
	v.RegisterCommand(CommandWindowHeating, c.commandWindowHeating)
	v.RegisterCommand(CommandSpin, c.commandSpinVerify)
}

// InvokeCommand 以车辆为目标执行指令，宿主通过连接器调用
func (c *Connector) InvokeCommand(ctx context.Context, vin, name string, args garage.CommandArgs) error {
	v, ok := c.garage.Get(vin)
	if !ok {
		return apierr.NewCommandError("vehicle %s is not known", vin)
	}
	c.logger.Info("command invoked", zap.String("vin", vin), zap.String("command", name))
	return v.InvokeCommand(ctx, name, args)
}

// requireCommand 校验参数携带 command 判别字段
func requireCommand(args garage.CommandArgs) (string, error) {
	command, ok := args.Command()
	if !ok || command == "" {
		return "", apierr.NewSetterError("command arguments must contain a command discriminator")
	}
	return command, nil
}

func (c *Connector) requireSPin() (string, error) {
	if c.cfg.SPin == "" {
		return "", apierr.NewCommandError("this command requires an S-PIN to be configured")
	}
	return c.cfg.SPin, nil
}

// expectStatus 校验受理响应的状态字段，每个指令只认自己的成功状态
func expectStatus(result *skoda.OperationResponse, accepted string) error {
	if result == nil {
		return nil
	}
	if !strings.EqualFold(result.Status, accepted) {
		return apierr.NewCommandStatusError(
			fmt.Sprintf("command was not accepted, reported status %q", result.Status), 0, "")
	}
	return nil
}

func (c *Connector) commandLockUnlock(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	command, err := requireCommand(args)
	if err != nil {
		return err
	}
	spin, err := c.requireSPin()
	if err != nil {
		return err
	}

	var path string
	switch command {
	case "lock":
		path = fmt.Sprintf(skoda.EndpointLock, v.VIN)
	case "unlock":
		path = fmt.Sprintf(skoda.EndpointUnlock, v.VIN)
	default:
		return apierr.NewSetterError("unsupported lock command %q", command)
	}

	result, err := c.client.SendCommand(ctx, http.MethodPost, path, map[string]string{"currentSpin": spin})
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

func (c *Connector) commandClimatization(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	command, err := requireCommand(args)
	if err != nil {
		return err
	}

	var path string
	switch command {
	case "start":
		path = fmt.Sprintf(skoda.EndpointClimateStart, v.VIN)
	case "stop":
		path = fmt.Sprintf(skoda.EndpointClimateStop, v.VIN)
	default:
		return apierr.NewSetterError("unsupported climatization command %q", command)
	}

	var body interface{}
	if command == "start" {
		if temperature, ok := floatArg(args, "temperature"); ok {
			body = map[string]interface{}{
				"targetTemperature": map[string]interface{}{
					"temperatureValue": temperature,
					"unitInCar":        "CELSIUS",
				},
			}
		}
	}

	result, err := c.client.SendCommand(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

func (c *Connector) commandCharging(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	command, err := requireCommand(args)
	if err != nil {
		return err
	}
	if v.Charging == nil {
		return apierr.NewCommandError("vehicle %s has no charging support", v.VIN)
	}

	var path string
	switch command {
	case "start":
		path = fmt.Sprintf(skoda.EndpointChargingStart, v.VIN)
	case "stop":
		path = fmt.Sprintf(skoda.EndpointChargingStop, v.VIN)
	default:
		return apierr.NewSetterError("unsupported charging command %q", command)
	}

	result, err := c.client.SendCommand(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

func (c *Connector) commandTargetTemperature(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	if _, err := requireCommand(args); err != nil {
		return err
	}
	temperature, ok := floatArg(args, "temperature")
	if !ok {
		return apierr.NewSetterError("target-temperature requires a numeric temperature argument")
	}
	if temperature < 16 || temperature > 30 {
		return apierr.NewSetterError("target temperature %.1f is out of the supported range", temperature)
	}

	result, err := c.client.SendCommand(ctx, http.MethodPost,
		fmt.Sprintf(skoda.EndpointTargetTemperature, v.VIN), map[string]interface{}{
			"temperatureValue": temperature,
			"unitInCar":        "CELSIUS",
		})
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

func (c *Connector) commandChargeLimit(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	if _, err := requireCommand(args); err != nil {
		return err
	}
	if v.Charging == nil {
		return apierr.NewCommandError("vehicle %s has no charging support", v.VIN)
	}
	limit, ok := intArg(args, "limit")
	if !ok {
		return apierr.NewSetterError("charge-limit requires a numeric limit argument")
	}
	if limit < 50 || limit > 100 {
		return apierr.NewSetterError("charge limit %d is out of the supported range", limit)
	}

	result, err := c.client.SendCommand(ctx, http.MethodPut,
		fmt.Sprintf(skoda.EndpointChargeLimit, v.VIN),
		map[string]interface{}{"targetSOCInPercent": limit})
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

func (c *Connector) commandChargingCurrent(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	if _, err := requireCommand(args); err != nil {
		return err
	}
	if v.Charging == nil {
		return apierr.NewCommandError("vehicle %s has no charging support", v.VIN)
	}
	current, ok := stringArg(args, "current")
	if !ok {
		return apierr.NewSetterError("charging-current requires a current argument")
	}
	var wire string
	switch strings.ToLower(current) {
	case "maximum", "max":
		wire = "MAXIMUM"
	case "reduced", "min":
		wire = "REDUCED"
	default:
		return apierr.NewSetterError("unsupported charging current %q", current)
	}

	result, err := c.client.SendCommand(ctx, http.MethodPut,
		fmt.Sprintf(skoda.EndpointChargingCurrent, v.VIN),
		map[string]string{"chargingCurrent": wire})
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

func (c *Connector) commandAutoUnlockPlug(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	command, err := requireCommand(args)
	if err != nil {
		return err
	}
	if v.Charging == nil {
		return apierr.NewCommandError("vehicle %s has no charging support", v.VIN)
	}

	var enable bool
	switch command {
	case "enable":
		enable = true
	case "disable":
		enable = false
	default:
		return apierr.NewSetterError("unsupported auto-unlock-plug command %q", command)
	}

	result, err := c.client.SendCommand(ctx, http.MethodPut,
		fmt.Sprintf(skoda.EndpointAutoUnlockPlug, v.VIN),
		map[string]bool{"autoUnlockPlug": enable})
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

// commandHonkFlash 鸣笛闪灯，前置条件是已知的静止定位
func (c *Connector) commandHonkFlash(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	command, err := requireCommand(args)
	if err != nil {
		return err
	}

	var mode string
	switch command {
	case "honk", "honk-and-flash":
		mode = "HONK_AND_FLASH"
	case "flash":
		mode = "FLASH"
	default:
		return apierr.NewSetterError("unsupported honk-flash command %q", command)
	}

	latitude, latOK := v.Position.Latitude.Get()
	longitude, lngOK := v.Position.Longitude.Get()
	if !latOK || !lngOK {
		return apierr.NewCommandError("honk and flash requires a known vehicle position")
	}

	result, err := c.client.SendCommand(ctx, http.MethodPost,
		fmt.Sprintf(skoda.EndpointHonkAndFlash, v.VIN), map[string]interface{}{
			"mode": mode,
			"vehiclePosition": map[string]float64{
				"latitude":  latitude,
				"longitude": longitude,
			},
		})
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

func (c *Connector) commandWakeup(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	if _, err := requireCommand(args); err != nil {
		return err
	}
	if !v.HasCapability(garage.CapabilityVehicleWakeUpTrigger) {
		return apierr.NewCommandError("vehicle %s cannot be woken up remotely", v.VIN)
	}

	result, err := c.client.SendCommand(ctx, http.MethodPost,
		fmt.Sprintf(skoda.EndpointWakeup, v.VIN), nil)
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

func (c *Connector) commandWindowHeating(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	command, err := requireCommand(args)
	if err != nil {
		return err
	}

	var path string
	switch command {
	case "start":
		path = fmt.Sprintf(skoda.EndpointWindowHeatingStart, v.VIN)
	case "stop":
		path = fmt.Sprintf(skoda.EndpointWindowHeatingStop, v.VIN)
	default:
		return apierr.NewSetterError("unsupported window-heating command %q", command)
	}

	result, err := c.client.SendCommand(ctx, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	return expectStatus(result, "accepted")
}

// commandSpinVerify 校验 S-PIN，成功的响应状态是 ok
func (c *Connector) commandSpinVerify(ctx context.Context, v *garage.Vehicle, args garage.CommandArgs) error {
	if _, err := requireCommand(args); err != nil {
		return err
	}
	spin, err := c.requireSPin()
	if err != nil {
		return err
	}

	result, err := c.client.SendCommand(ctx, http.MethodPost,
		skoda.EndpointSpinVerify, map[string]string{"currentSpin": spin})
	if err != nil {
		return err
	}
	return expectStatus(result, "ok")
}

func floatArg(args garage.CommandArgs, key string) (float64, bool) {
	value, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func intArg(args garage.CommandArgs, key string) (int, bool) {
	value, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := value.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func stringArg(args garage.CommandArgs, key string) (string, bool) {
	value, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}
