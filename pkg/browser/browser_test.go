package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIdentity(t *testing.T) {
	id := Identity{Name: "e6pools", Version: "1.0.0", Author: "someone"}
	assert.Equal(t, "e6pools/1.0.0 (someone)", id.String())
	assert.Equal(t, "e6pools/1.0.0 (someone) Mozilla/5.0", id.UserAgent("Mozilla/5.0"))
	assert.Equal(t, "e6pools/1.0.0 (someone)", id.UserAgent(""))
}

func TestSettleDelay(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, settleDelay("networkidle0"))
	assert.Equal(t, 250*time.Millisecond, settleDelay("networkidle2"))
	assert.Zero(t, settleDelay("load"))
}
