// Package handshake implements the encrypted key-agreement handshake
// that bootstraps a frame transport between two nodes.
//
// The exchange is asymmetric: the initiator seals an auth message to
// the recipient's static key, the recipient answers with an ack, and
// both sides mix the ephemeral ECDH secret, the two nonces and the
// raw packet bytes into the frame secrets. The two roles are modeled
// as one state machine with disjoint transition sets:
//
//	Initiator: Idle → AuthSent → AckReceived → Established
//	Recipient: Idle → AuthReceived → AckSent → Established
package handshake

// Role identifies which side of the handshake a state machine plays.
type Role int

const (
	// RoleInitiator is the dialing side. It knows the recipient's
	// static public key before the handshake starts.
	RoleInitiator Role = iota

	// RoleRecipient is the listening side. It learns the initiator's
	// static public key from the auth message.
	RoleRecipient
)

// String returns a human-readable name for the role.
func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "Initiator"
	case RoleRecipient:
		return "Recipient"
	default:
		return "Unknown"
	}
}

// State is the current position in the handshake sequence.
type State int

const (
	// StateIdle is the initial state for both roles.
	StateIdle State = iota

	// StateAuthSent: the initiator has emitted its auth packet.
	StateAuthSent

	// StateAuthReceived: the recipient has accepted an auth packet.
	StateAuthReceived

	// StateAckSent: the recipient has emitted its ack packet.
	StateAckSent

	// StateAckReceived: the initiator has accepted the ack packet.
	StateAckReceived

	// StateEstablished: frame secrets have been derived. Terminal.
	StateEstablished
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAuthSent:
		return "AuthSent"
	case StateAuthReceived:
		return "AuthReceived"
	case StateAckSent:
		return "AckSent"
	case StateAckReceived:
		return "AckReceived"
	case StateEstablished:
		return "Established"
	default:
		return "Unknown"
	}
}
