package domain

import (
	"fmt"
	"strings"
)

const (
	MaxMediaItems  = 12
	MaxCaptionRune = 280
)

// MediaError names the offending item.
type MediaError struct {
	Index  int
	Reason string
}

func (e *MediaError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid_media: %s", e.Reason)
	}
	return fmt.Sprintf("invalid_media: item %d %s", e.Index, e.Reason)
}

func (e *MediaError) Unwrap() error {
	return ErrInvalidMedia
}

// NormalizeMedia trims every item and checks the submission rules: 1..12
// items, known kinds, image or video content, and at least one verification item.
func NormalizeMedia(items []MediaItem) ([]MediaItem, error) {
	if len(items) == 0 {
		return nil, &MediaError{Index: -1, Reason: "empty"}
	}
	if len(items) > MaxMediaItems {
		return nil, &MediaError{Index: -1, Reason: fmt.Sprintf("more than %d items", MaxMediaItems)}
	}

	out := make([]MediaItem, 0, len(items))
	hasVerification := false
	for i, item := range items {
		key := strings.TrimSpace(item.StorageKey)
		if key == "" {
			return nil, &MediaError{Index: i, Reason: "storage key required"}
		}
		kind := MediaKind(strings.ToLower(strings.TrimSpace(string(item.Kind))))
		switch kind {
		case MediaPhoto:
		case MediaVerification:
			hasVerification = true
		default:
			return nil, &MediaError{Index: i, Reason: "unknown kind"}
		}
		contentType := strings.ToLower(strings.TrimSpace(item.ContentType))
		if !strings.HasPrefix(contentType, "image/") && !strings.HasPrefix(contentType, "video/") {
			return nil, &MediaError{Index: i, Reason: "unsupported content type"}
		}

		normalized := MediaItem{StorageKey: key, Kind: kind, ContentType: contentType}
		if item.Caption != nil {
			caption := strings.TrimSpace(*item.Caption)
			if runes := []rune(caption); len(runes) > MaxCaptionRune {
				caption = string(runes[:MaxCaptionRune])
			}
			if caption != "" {
				normalized.Caption = &caption
			}
		}
		out = append(out, normalized)
	}

	if !hasVerification {
		return nil, &MediaError{Index: -1, Reason: "verification item required"}
	}
	return out, nil
}
