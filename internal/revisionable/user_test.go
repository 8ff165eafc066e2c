package revisionable

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserContext(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)

	_, ok = UserFromContext(WithUser(context.Background(), ""))
	assert.False(t, ok, "empty user is no user")

	user, ok := UserFromContext(WithUser(context.Background(), "erin"))
	assert.True(t, ok)
	assert.Equal(t, "erin", user)
}
