package workers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financing-portal/internal/common/validation"
	"financing-portal/pkg/registry"
)

func TestCatalogBuildsValidRegistry(t *testing.T) {
	reg := registry.New("1.0.0", time.Now())
	for _, e := range Catalog() {
		assert.NoError(t, validation.ValidateActivityNaming(e.ID), e.ID)
		reg.Upsert(e.Activity("1.0.0"))
	}

	require.NoError(t, reg.Validate())
	assert.Empty(t, reg.Missing(TaskTypes()))
	assert.Len(t, reg.Activities, 9)

	a, ok := reg.Find("create-application")
	require.True(t, ok)
	assert.Equal(t, 3, a.Retries)
	assert.Equal(t, "object", a.InputSchema["type"])
	assert.Contains(t, a.InputSchema["required"], "contactEmail")
}
