// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseEnv_ValidValues(t *testing.T) {
	t.Setenv("ZKH_TEST_INT", " 42 ")
	t.Setenv("ZKH_TEST_DUR", "90s")
	t.Setenv("ZKH_TEST_BOOL", "YES")
	t.Setenv("ZKH_TEST_FLOAT", "0.25")
	t.Setenv("ZKH_TEST_TOKEN", "secret")

	assert.Equal(t, 42, ParseInt("ZKH_TEST_INT", 1))
	assert.Equal(t, 90*time.Second, ParseDuration("ZKH_TEST_DUR", time.Second))
	assert.True(t, ParseBool("ZKH_TEST_BOOL", false))
	assert.InDelta(t, 0.25, ParseFloat("ZKH_TEST_FLOAT", 1), 1e-9)
	assert.Equal(t, "secret", ParseString("ZKH_TEST_TOKEN", "default"))
}

func TestParseEnv_InvalidFallsBackToDefault(t *testing.T) {
	t.Setenv("ZKH_TEST_INT", "many")
	t.Setenv("ZKH_TEST_DUR", "soon")
	t.Setenv("ZKH_TEST_BOOL", "perhaps")
	t.Setenv("ZKH_TEST_FLOAT", "0,5x")

	assert.Equal(t, 7, ParseInt("ZKH_TEST_INT", 7))
	assert.Equal(t, time.Minute, ParseDuration("ZKH_TEST_DUR", time.Minute))
	assert.True(t, ParseBool("ZKH_TEST_BOOL", true))
	assert.InDelta(t, 1.0, ParseFloat("ZKH_TEST_FLOAT", 1), 1e-9)
}

func TestParseEnv_EmptyUsesDefault(t *testing.T) {
	t.Setenv("ZKH_TEST_STR", "")
	t.Setenv("ZKH_TEST_FLOAT", "")

	assert.Equal(t, "fallback", ParseString("ZKH_TEST_STR", "fallback"))
	assert.InDelta(t, 0.5, ParseFloat("ZKH_TEST_FLOAT", 0.5), 1e-9)
	assert.Equal(t, 3, ParseInt("ZKH_TEST_UNSET", 3))
}
