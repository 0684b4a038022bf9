package service

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/garage"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/mqtt"
)

// debounceDelay 门窗类事件合并窗口
const debounceDelay = 2 * time.Second

// refetchTimeout 事件触发的重取不允许无限阻塞
const refetchTimeout = 60 * time.Second

// serviceEventPayload 服务事件负载
type serviceEventPayload struct {
	Name      string           `json:"name"`
	VIN       string           `json:"vin"`
	Timestamp string           `json:"timestamp"`
	Data      serviceEventData `json:"data"`
}

// serviceEventData 数值字段以字符串形式到达
type serviceEventData struct {
	Mode         string `json:"mode"`
	State        string `json:"state"`
	Soc          string `json:"soc"`
	ChargedRange string `json:"chargedRange"`
}

// operationRequestPayload 指令回执负载
type operationRequestPayload struct {
	Operation string `json:"operation"`
	Status    string `json:"status"`
	TraceID   string `json:"traceId"`
	ErrorCode string `json:"errorCode"`
}

// handleEvent 事件流消息入口
// 重取失败只记日志，事件线程不因任何消息崩溃
func (c *Connector) handleEvent(event mqtt.Event) {
	switch event.Category {
	case "service-event":
		c.handleServiceEvent(event)
	case "operation-request":
		c.handleOperationRequest(event)
	case "account-event":
		c.logger.Info("account event received", zap.String("vin", event.VIN),
			zap.String("name", event.Name))
	default:
		c.logger.Debug("unrecognized event category, dropped",
			zap.String("category", event.Category), zap.String("name", event.Name))
	}
}

func (c *Connector) handleServiceEvent(event mqtt.Event) {
	switch event.Name {
	case "charging":
		c.handleChargingEvent(event)
	case "air-conditioning":
		c.handleAirConditioningEvent(event)
	case "vehicle-status/access", "vehicle-status/lights":
		c.logger.Debug("access event, scheduling debounced refetch", zap.String("vin", event.VIN),
			zap.String("name", event.Name))
		c.scheduleDebouncedRefetch(event.VIN)
	case "departure":
		c.logger.Debug("departure event received", zap.String("vin", event.VIN))
	default:
		c.logger.Debug("unrecognized service event, dropped",
			zap.String("vin", event.VIN), zap.String("name", event.Name))
	}
}

// handleChargingEvent 充电服务事件
// 直接从负载更新模式/状态/电量/续航，仅在状态发生迁移时做一次全量重取
func (c *Connector) handleChargingEvent(event mqtt.Event) {
	var payload serviceEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		c.logger.Debug("charging event payload could not be parsed",
			zap.String("vin", event.VIN), zap.Error(err))
		return
	}
	if payload.Name != "change-soc" && payload.Name != "change-charge-mode" {
		c.logger.Debug("charging event ignored", zap.String("vin", event.VIN),
			zap.String("event", payload.Name))
		return
	}

	v, ok := c.garage.Get(event.VIN)
	if !ok || v.Charging == nil {
		return
	}

	at := c.eventTime(payload.Timestamp)
	previousState, hadState := v.Charging.State.Get()

	if payload.Data.Mode != "" {
		mode, known := garage.ParseChargeMode(toSnakeUpper(payload.Data.Mode))
		if !known {
			c.logger.Warn("unknown charge mode in event", zap.String("vin", event.VIN),
				zap.String("mode", payload.Data.Mode))
		}
		v.Charging.Mode.Set(mode, at)
	}
	var newState garage.ChargingState
	stateChanged := false
	if payload.Data.State != "" {
		var known bool
		newState, known = garage.ParseChargingState(toSnakeUpper(payload.Data.State))
		if !known {
			c.logger.Warn("unknown charging state in event", zap.String("vin", event.VIN),
				zap.String("state", payload.Data.State))
		}
		v.Charging.State.Set(newState, at)
		stateChanged = !hadState || newState != previousState
	}
	if payload.Data.Soc != "" {
		if soc, err := strconv.Atoi(payload.Data.Soc); err == nil {
			v.Charging.BatteryLevel.SetWithUnit(soc, at, garage.UnitPercent)
		}
	}
	if payload.Data.ChargedRange != "" {
		if chargedRange, err := strconv.ParseFloat(payload.Data.ChargedRange, 64); err == nil {
			v.Charging.Range.SetWithUnit(chargedRange, at, garage.UnitKilometer)
		}
	}

	if stateChanged {
		c.logger.Info("charging state transitioned, refetching", zap.String("vin", event.VIN),
			zap.String("state", string(newState)))
		c.refetch(event.VIN, func(ctx context.Context) error {
			return c.fetchCharging(ctx, event.VIN, true)
		})
		return
	}
	c.notifyVehicleUpdate(event.VIN)
}

// handleAirConditioningEvent 空调服务事件触发定向重取
func (c *Connector) handleAirConditioningEvent(event mqtt.Event) {
	var payload serviceEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		c.logger.Debug("air-conditioning event payload could not be parsed",
			zap.String("vin", event.VIN), zap.Error(err))
		return
	}

	switch payload.Name {
	case "change-remaining-time", "climatisation-completed":
		c.refetch(event.VIN, func(ctx context.Context) error {
			return c.fetchAirConditioning(ctx, event.VIN, true)
		})
	default:
		c.logger.Debug("air-conditioning event ignored", zap.String("vin", event.VIN),
			zap.String("event", payload.Name))
	}
}

// handleOperationRequest 指令回执
// 成功完成时重取对应子对象，进行中只记录，其余丢弃
func (c *Connector) handleOperationRequest(event mqtt.Event) {
	var payload operationRequestPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		c.logger.Debug("operation request payload could not be parsed",
			zap.String("vin", event.VIN), zap.Error(err))
		return
	}

	switch payload.Status {
	case "COMPLETED_SUCCESS":
		c.logger.Info("operation completed", zap.String("vin", event.VIN),
			zap.String("operation", event.Name))
		switch {
		case strings.HasPrefix(event.Name, "air-conditioning/"):
			c.refetch(event.VIN, func(ctx context.Context) error {
				return c.fetchAirConditioning(ctx, event.VIN, true)
			})
		case strings.HasPrefix(event.Name, "charging/"):
			c.refetch(event.VIN, func(ctx context.Context) error {
				return c.fetchCharging(ctx, event.VIN, true)
			})
		default:
			c.scheduleDebouncedRefetch(event.VIN)
		}
	case "IN_PROGRESS":
		c.logger.Info("operation in progress", zap.String("vin", event.VIN),
			zap.String("operation", event.Name))
	default:
		c.logger.Debug("operation request dropped", zap.String("vin", event.VIN),
			zap.String("operation", event.Name), zap.String("status", payload.Status))
	}
}

// scheduleDebouncedRefetch 按 VIN 重启延迟重取定时器
// 新事件取消挂起的定时器并重新计时，事件风暴合并为一次 REST 往返
func (c *Connector) scheduleDebouncedRefetch(vin string) {
	c.debounceMu.Lock()
	defer c.debounceMu.Unlock()

	if timer, ok := c.debounceTimers[vin]; ok {
		timer.Stop()
	}
	c.debounceTimers[vin] = time.AfterFunc(debounceDelay, func() {
		c.debounceMu.Lock()
		delete(c.debounceTimers, vin)
		c.debounceMu.Unlock()
		c.debouncedRefetch(vin)
	})
}

// debouncedRefetch 延迟到期后的状态重取
func (c *Connector) debouncedRefetch(vin string) {
	c.refetch(vin, func(ctx context.Context) error {
		v, ok := c.garage.Get(vin)
		if !ok {
			return nil
		}
		if v.HasCapability(garage.CapabilityState) {
			if err := c.fetchVehicleStatus(ctx, vin, true); err != nil {
				return err
			}
		}
		if v.Charging != nil && v.HasCapability(garage.CapabilityCharging) {
			if err := c.fetchCharging(ctx, vin, true); err != nil {
				return err
			}
		}
		if v.HasCapability(garage.CapabilityParkingPosition) {
			if err := c.fetchPosition(ctx, vin, true); err != nil {
				return err
			}
		}
		if v.HasCapability(garage.CapabilityAirConditioning) {
			if err := c.fetchAirConditioning(ctx, vin, true); err != nil {
				return err
			}
		}
		return nil
	})
}

// refetch 执行事件触发的重取，错误只记日志
func (c *Connector) refetch(vin string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), refetchTimeout)
	defer cancel()

	c.fetchMu.Lock()
	err := fn(ctx)
	c.fetchMu.Unlock()
	if err != nil {
		c.logger.Warn("event-triggered refetch failed", zap.String("vin", vin), zap.Error(err))
		return
	}
	c.notifyVehicleUpdate(vin)
}

// eventTime 解析事件时间戳，无法解析时用当前时间
func (c *Connector) eventTime(timestamp string) time.Time {
	if timestamp == "" {
		return time.Now()
	}
	at, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return time.Now()
	}
	return at
}

// toSnakeUpper 事件负载的驼峰值转端点风格的下划线大写
func toSnakeUpper(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToUpper(b.String())
}
