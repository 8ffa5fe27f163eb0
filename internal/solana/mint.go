package solana

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

// Token program IDs that own mint accounts.
const (
	TokenProgramID     = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// MintAccountSize is the size of the base SPL mint layout.
// Token-2022 mints may carry extensions after it.
const MintAccountSize = 82

// ErrMalformedMint is returned when account data is not an SPL mint.
var ErrMalformedMint = errors.New("malformed mint account")

// ParseMint decodes base64 SPL mint data.
// Layout: mintAuthorityOption(4) | mintAuthority(32) | supply(8) | decimals(1) |
// isInitialized(1) | freezeAuthorityOption(4) | freezeAuthority(32).
func ParseMint(data string) (*MintInfo, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrMalformedMint, err)
	}
	if len(raw) < MintAccountSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedMint, len(raw))
	}

	info := &MintInfo{
		Supply:        binary.LittleEndian.Uint64(raw[36:44]),
		Decimals:      raw[44],
		IsInitialized: raw[45] == 1,
	}

	mintAuth, err := parseCOptionKey(raw[0:36])
	if err != nil {
		return nil, fmt.Errorf("%w: mint authority: %v", ErrMalformedMint, err)
	}
	freezeAuth, err := parseCOptionKey(raw[46:82])
	if err != nil {
		return nil, fmt.Errorf("%w: freeze authority: %v", ErrMalformedMint, err)
	}
	info.MintAuthority = mintAuth
	info.FreezeAuthority = freezeAuth

	return info, nil
}

// parseCOptionKey decodes a 4-byte option tag followed by a 32-byte key.
func parseCOptionKey(b []byte) (string, error) {
	switch tag := binary.LittleEndian.Uint32(b[0:4]); tag {
	case 0:
		return "", nil
	case 1:
		return base58.Encode(b[4:36]), nil
	default:
		return "", fmt.Errorf("option tag %d", tag)
	}
}

// EncodeMint is the inverse of ParseMint for the base layout.
func EncodeMint(info MintInfo) (string, error) {
	raw := make([]byte, MintAccountSize)
	if err := putCOptionKey(raw[0:36], info.MintAuthority); err != nil {
		return "", err
	}
	binary.LittleEndian.PutUint64(raw[36:44], info.Supply)
	raw[44] = info.Decimals
	if info.IsInitialized {
		raw[45] = 1
	}
	if err := putCOptionKey(raw[46:82], info.FreezeAuthority); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func putCOptionKey(b []byte, key string) error {
	if key == "" {
		return nil
	}
	pk, err := ParsePublicKey(key)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b[0:4], 1)
	copy(b[4:36], pk[:])
	return nil
}
