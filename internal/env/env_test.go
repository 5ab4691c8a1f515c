package env

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekisa-team/gptrepl/internal/envvar"
)

func TestParse(t *testing.T) {
	assert.Equal(t, Development, Parse("development"))
	assert.Equal(t, Development, Parse(" DEV "))
	assert.Equal(t, Production, Parse("production"))
	assert.Equal(t, Production, Parse(""))
	assert.Equal(t, Production, Parse("staging"))
}

func TestFromEnv(t *testing.T) {
	t.Setenv(envvar.GptreplEnv, "dev")

	e := FromEnv()
	assert.True(t, e.IsDevelopment())
	assert.Equal(t, "development", e.String())
}
