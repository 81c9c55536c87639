package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOwner(t *testing.T) {
	id := uuid.New()

	owner, err := ParseOwner("user", id)
	require.NoError(t, err)
	assert.True(t, owner.IsUser())
	assert.Equal(t, id, owner.ID())

	owner, err = ParseOwner("ORGANIZATION", id)
	require.NoError(t, err)
	assert.True(t, owner.IsOrg())

	_, err = ParseOwner("team", id)
	require.ErrorIs(t, err, ErrInvalidOwner)

	_, err = ParseOwner("user", uuid.Nil)
	require.ErrorIs(t, err, ErrInvalidOwner)
}

func TestOwnerRefJSON(t *testing.T) {
	id := uuid.New()
	body, err := json.Marshal(OrganizationOwner(id))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"organization","id":"`+id.String()+`"}`, string(body))

	var decoded OwnerRef
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.True(t, decoded.Equal(OrganizationOwner(id)))

	body, err = json.Marshal(OwnerRef{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(body))

	require.Error(t, json.Unmarshal([]byte(`{"type":"bogus","id":"`+id.String()+`"}`), &decoded))
}

func TestActorRepresents(t *testing.T) {
	userID := uuid.New()
	orgID := uuid.New()

	user := Actor{UserID: userID}
	assert.True(t, user.Represents(UserOwner(userID)))
	assert.False(t, user.Represents(OrganizationOwner(orgID)))
	assert.False(t, user.Represents(OwnerRef{}))
	assert.True(t, user.Owner().Equal(UserOwner(userID)))

	member := Actor{UserID: userID, OrgID: &orgID}
	assert.True(t, member.Represents(OrganizationOwner(orgID)))
	assert.True(t, member.Represents(UserOwner(userID)))
	assert.True(t, member.Owner().Equal(OrganizationOwner(orgID)))

	assert.True(t, SystemActor.IsSystem())
	assert.False(t, user.IsSystem())
}

func TestTransitionErrorMatchesSentinel(t *testing.T) {
	err := error(&TransitionError{From: EscrowStatusCompleted, Action: "fund"})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Contains(t, err.Error(), "COMPLETED")
}
