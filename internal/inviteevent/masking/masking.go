package masking

import "strings"

const maskToken = "****"

var sensitiveFragments = []string{"token", "secret", "password", "hash"}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 8 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskMetadata returns a copy of input where values under sensitive keys are
// masked. Nested maps and slices are walked.
func MaskMetadata(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if IsSensitiveKey(trimmedKey) {
			masked[trimmedKey] = maskValue(value)
			continue
		}
		masked[trimmedKey] = walk(value)
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

// IsSensitiveKey reports whether a metadata key names credential material.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, fragment := range sensitiveFragments {
		if strings.Contains(key, fragment) {
			return true
		}
	}
	return false
}

func walk(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return MaskMetadata(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, walk(item))
		}
		return out
	default:
		return value
	}
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case string:
		return MaskSecret(cast)
	case nil:
		return nil
	default:
		return maskToken
	}
}
