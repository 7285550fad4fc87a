package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pdfacil/pdfacil-backend/pkg/config"
)

func testConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Default: 10,
		PerEndpoint: map[string]int{
			"merge": 3,
		},
	}
}

func TestAllow_ExhaustsBudget(t *testing.T) {
	l := New(testConfig())

	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("10.0.0.1", "merge")
		assert.True(t, ok, "request %d should pass", i+1)
	}
	ok, retry := l.Allow("10.0.0.1", "merge")
	assert.False(t, ok)
	assert.Greater(t, retry.Seconds(), 0.0)
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := New(testConfig())

	for i := 0; i < 3; i++ {
		l.Allow("10.0.0.1", "merge")
	}
	ok, _ := l.Allow("10.0.0.1", "merge")
	assert.False(t, ok)

	// Different IP, same endpoint.
	ok, _ = l.Allow("10.0.0.2", "merge")
	assert.True(t, ok)

	// Same IP, different endpoint falls back to the default budget.
	ok, _ = l.Allow("10.0.0.1", "organize")
	assert.True(t, ok)
}

func TestAllow_ZeroBudgetMeansUnlimited(t *testing.T) {
	l := New(config.RateLimitConfig{Default: 0})

	for i := 0; i < 100; i++ {
		ok, _ := l.Allow("10.0.0.1", "anything")
		assert.True(t, ok)
	}
}
