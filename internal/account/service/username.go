package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/tandem/internal/account/domain"
	"gorm.io/gorm"
)

const (
	maxUsernameLen   = 24
	usernameAttempts = 6
	fallbackPrefix   = "member_"
)

type usernameGenerator struct {
	repo domain.Repository
	rand io.Reader
}

func newUsernameGenerator(repo domain.Repository, r io.Reader) *usernameGenerator {
	if r == nil {
		r = rand.Reader
	}
	return &usernameGenerator{repo: repo, rand: r}
}

// Generate derives a username from the email local part, trying base,
// base2 .. base6 before falling back to a random name.
func (g *usernameGenerator) Generate(ctx context.Context, tx *gorm.DB, email string) (string, error) {
	base := usernameBase(email)
	for attempt := 1; attempt <= usernameAttempts; attempt++ {
		candidate := withSuffix(base, attempt)
		taken, err := g.repo.UsernameTaken(ctx, tx, candidate)
		if err != nil {
			return "", fmt.Errorf("check username: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	buf := make([]byte, 4)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", err
	}
	candidate := fallbackPrefix + hex.EncodeToString(buf)
	taken, err := g.repo.UsernameTaken(ctx, tx, candidate)
	if err != nil {
		return "", fmt.Errorf("check username: %w", err)
	}
	if taken {
		return "", domain.ErrUsernameExhausted
	}
	return candidate, nil
}

func usernameBase(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	base := strings.ReplaceAll(slug.Make(local), "-", "_")
	if base == "" {
		base = "member"
	}
	if len(base) > maxUsernameLen {
		base = strings.TrimRight(base[:maxUsernameLen], "_")
	}
	return base
}

func withSuffix(base string, attempt int) string {
	if attempt <= 1 {
		return base
	}
	suffix := strconv.Itoa(attempt)
	if len(base)+len(suffix) > maxUsernameLen {
		base = strings.TrimRight(base[:maxUsernameLen-len(suffix)], "_")
	}
	return base + suffix
}
