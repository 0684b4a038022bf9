package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/apierr"
	"github.com/tillsteinbach/CarConnectivity-connector-skoda/internal/state"
)

func TestErrorClassification(t *testing.T) {
	assert.True(t, isTooManyRequests(apierr.NewTooManyRequestsError("throttled")))
	assert.False(t, isTooManyRequests(apierr.NewRetrievalError("timeout")))

	assert.True(t, isRecoverable(apierr.NewRetrievalError("timeout")))
	assert.True(t, isRecoverable(apierr.NewAPIError("bad payload")))
	assert.True(t, isRecoverable(apierr.NewCompatibilityError("schema drift")))
	assert.True(t, isRecoverable(apierr.NewTemporaryAuthenticationError("idp outage")))
	assert.False(t, isRecoverable(apierr.NewAuthenticationError("bad credentials")))
	assert.False(t, isRecoverable(errors.New("disk full")))
}

func TestWrappedErrorsClassify(t *testing.T) {
	wrapped := apierr.WrapRetrievalError("fetch failed",
		apierr.NewTooManyRequestsError("throttled"))
	assert.True(t, isTooManyRequests(wrapped))
	assert.True(t, isRecoverable(wrapped))
}

func TestConnectorStateReflectsMachine(t *testing.T) {
	c, _ := newTestConnector(t)

	assert.Equal(t, state.StateDisconnected, c.State())
	c.machine.MarkConnecting()
	c.machine.SetRESTHealthy(true)
	c.machine.SetFeedHealthy(true)
	assert.Equal(t, state.StateConnected, c.State())
}

func TestStateChangeCallbackFires(t *testing.T) {
	c, _ := newTestConnector(t)

	var transitions []string
	c.SetOnStateChange(func(from, to string) {
		transitions = append(transitions, from+">"+to)
	})

	c.machine.MarkConnecting()
	c.machine.SetRESTHealthy(true)
	c.machine.SetFeedHealthy(true)

	assert.Contains(t, transitions, state.StateDisconnected+">"+state.StateConnecting)
	assert.Contains(t, transitions, state.StateConnecting+">"+state.StateConnected)
}

func TestIntervalAndHealthDefaults(t *testing.T) {
	c, _ := newTestConnector(t)

	assert.Equal(t, c.cfg.Interval, c.Interval())
	assert.True(t, c.LastUpdate().IsZero())
	// 健康标志在 Startup 时置位
	assert.False(t, c.Healthy())
}

func TestTerminalAuthClassification(t *testing.T) {
	assert.True(t, isTerminalAuth(apierr.NewAuthenticationError("bad credentials")))

	// 传输层包装后仍要按凭据失效处理，不能落进可重试分支
	wrapped := apierr.WrapRetrievalError("could not re-authenticate after unauthorized response",
		apierr.NewAuthenticationError("bad credentials"))
	assert.True(t, isTerminalAuth(wrapped))

	assert.False(t, isTerminalAuth(apierr.NewRetrievalError("timeout")))
	assert.False(t, isTerminalAuth(apierr.NewTemporaryAuthenticationError("idp outage")))
}
