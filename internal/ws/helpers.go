package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"messenger-service/internal/accounts"
)

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

func verifyBearer(ctx context.Context, verifier accounts.Verifier, header string) (int, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return verifier.VerifyToken(ctx, parts[1])
	}
	return 0, accounts.ErrUnauthenticated
}
