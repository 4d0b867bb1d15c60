package satp

// Role identifies a static peer attribute that asymmetrizes key
// derivation so two endpoints can share a master key without either
// ever producing the other's session key, spec.md §3/§4.2.
type Role uint8

const (
	RoleLeft Role = iota
	RoleRight
)

// Direction distinguishes the two halves of a Connection's key
// schedule: the packets a peer sends (Outbound) versus the packets it
// receives (Inbound), spec.md §3.
type Direction uint8

const (
	DirOutbound Direction = iota
	DirInbound
)

// Label is a 32-bit PRF label disambiguating which session secret is
// being derived. Only the low byte varies in the standard assignment;
// values MUST stay stable across implementations (spec.md §3).
type Label uint32

const (
	LabelEnc  Label = 0x00
	LabelAuth Label = 0x01
	LabelSalt Label = 0x02

	LabelLeftEnc   Label = 0x10
	LabelLeftAuth  Label = 0x11
	LabelLeftSalt  Label = 0x12
	LabelRightEnc  Label = 0x20
	LabelRightAuth Label = 0x21
	LabelRightSalt Label = 0x22
)

// convertLabel role/direction-qualifies a base label (ENC, AUTH, SALT)
// per spec.md §4.2, grounded on
// original_source/src/keyDerivation.cpp::KeyDerivation::convertLabel:
//
//   - Outbound from LEFT  uses the LEFT_* variant.
//   - Outbound from RIGHT uses the RIGHT_* variant.
//   - Inbound swaps: a LEFT peer decrypting inbound traffic uses the
//     RIGHT_* variant (it is verifying what its RIGHT-role peer sent),
//     and vice versa.
//
// Labels other than ENC/AUTH/SALT pass through unchanged.
func convertLabel(role Role, dir Direction, label Label) Label {
	effectiveRole := role
	if dir == DirInbound {
		effectiveRole = oppositeRole(role)
	}
	switch label {
	case LabelEnc:
		if effectiveRole == RoleLeft {
			return LabelLeftEnc
		}
		return LabelRightEnc
	case LabelAuth:
		if effectiveRole == RoleLeft {
			return LabelLeftAuth
		}
		return LabelRightAuth
	case LabelSalt:
		if effectiveRole == RoleLeft {
			return LabelLeftSalt
		}
		return LabelRightSalt
	default:
		return label
	}
}

func oppositeRole(r Role) Role {
	if r == RoleLeft {
		return RoleRight
	}
	return RoleLeft
}
