package utils

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type sample struct {
	ID string `json:"id"`
}

func TestUnmarshalAndHandle(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)

	var got sample
	ok := UnmarshalAndHandle[sample](log, "sample", json.RawMessage(`{"id":"x"}`), func(s sample) error {
		got = s
		return nil
	})
	assert.True(t, ok)
	assert.Equal(t, "x", got.ID)
	assert.Equal(t, 0, logs.Len())

	ok = UnmarshalAndHandle[sample](log, "sample", json.RawMessage(`{broken`), func(s sample) error {
		t.Fatal("handler must not run")
		return nil
	})
	assert.False(t, ok)

	ok = UnmarshalAndHandle[sample](log, "sample", json.RawMessage(`{"id":"y"}`), func(s sample) error {
		return errors.New("sink down")
	})
	assert.False(t, ok)
	assert.Equal(t, 2, logs.Len())
}
