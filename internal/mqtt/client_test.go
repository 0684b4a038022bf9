package mqtt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVehicleTopics(t *testing.T) {
	topics := VehicleTopics("user-123", "TMB000000000000001")

	assert.Len(t, topics, 29)
	for _, topic := range topics {
		assert.True(t, strings.HasPrefix(topic, "user-123/TMB000000000000001/"), topic)
	}

	assert.Contains(t, topics, "user-123/TMB000000000000001/account-event/privacy")
	assert.Contains(t, topics, "user-123/TMB000000000000001/operation-request/charging/start-stop-charging")
	assert.Contains(t, topics, "user-123/TMB000000000000001/operation-request/vehicle-wakeup/wakeup")
	assert.Contains(t, topics, "user-123/TMB000000000000001/service-event/vehicle-status/access")

	categories := map[string]int{}
	for _, topic := range topics {
		parts := strings.SplitN(topic, "/", 4)
		categories[parts[2]]++
	}
	assert.Equal(t, 1, categories["account-event"])
	assert.Equal(t, 23, categories["operation-request"])
	assert.Equal(t, 5, categories["service-event"])
}
