package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPeerKeyOf(t *testing.T) {
	assert.Equal(t, "1_2", PeerKeyOf(1, 2))
	assert.Equal(t, PeerKeyOf(1, 2), PeerKeyOf(2, 1))
	assert.Equal(t, "7_100", PeerKeyOf(100, 7))
}

func TestConversationParticipants(t *testing.T) {
	conv := &Conversation{Members: []ConversationMember{{UserID: 5}, {UserID: 3}}}

	assert.Equal(t, []uint64{5, 3}, conv.ParticipantIDs())
	assert.True(t, conv.HasParticipant(3))
	assert.False(t, conv.HasParticipant(4))

	peer, ok := conv.OtherParticipant(5)
	assert.True(t, ok)
	assert.Equal(t, uint64(3), peer)

	peer, ok = conv.OtherParticipant(3)
	assert.True(t, ok)
	assert.Equal(t, uint64(5), peer)

	_, ok = (&Conversation{Members: []ConversationMember{{UserID: 5}}}).OtherParticipant(5)
	assert.False(t, ok)
}
