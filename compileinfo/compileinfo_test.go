package compileinfo

import (
	"testing"

	"github.com/carbocation/cbctmar/logger"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestString(t *testing.T) {
	c := CompileInfo{Binary: "cbct2nifti", Module: "github.com/carbocation/cbctmar", GoVersion: "go1.24.1"}
	assert.Equal(t, "cbct2nifti (github.com/carbocation/cbctmar) go1.24.1 rev unknown", c.String())

	c.Revision, c.Dirty = "0123456789ab", true
	assert.Equal(t, "cbct2nifti (github.com/carbocation/cbctmar) go1.24.1 rev 0123456789ab+dirty", c.String())
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Log(&logger.Logger{SugaredLogger: zap.New(core).Sugar()})

	entries := logs.FilterMessage("build").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Contains(t, fields, "binary")
		assert.Contains(t, fields, "revision")
		assert.Contains(t, fields, "dirty")
	}
}
