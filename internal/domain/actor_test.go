package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestActor_CanAccess(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	assert.True(t, Actor{UserID: owner, Role: RoleUser}.CanAccess(owner))
	assert.False(t, Actor{UserID: uuid.New(), Role: RoleUser}.CanAccess(owner))
	assert.True(t, Actor{UserID: uuid.New(), Role: RoleStaff}.CanAccess(owner))
	assert.True(t, Actor{UserID: uuid.New(), Role: RoleAdmin}.CanAccess(owner))
	assert.False(t, Actor{Role: RoleUser}.CanAccess(uuid.Nil))
}
