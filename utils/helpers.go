package utils

import (
	"fmt"
	"strings"
	"unicode"
)

// ParseRepoURL extracts the owner and repository name from a GitHub URL
func ParseRepoURL(url string) (string, string, error) {
	trimmed := strings.TrimRight(url, "/")
	trimmed = strings.TrimSuffix(trimmed, ".git")

	// SSH form: git@github.com:owner/repo
	if strings.HasPrefix(trimmed, "git@") {
		if _, after, found := strings.Cut(trimmed, ":"); found {
			trimmed = after
		}
	}

	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("invalid repository URL: %s", url)
	}
	owner := parts[len(parts)-2]
	repoName := parts[len(parts)-1]
	if owner == "" || repoName == "" {
		return "", "", fmt.Errorf("invalid repository URL: %s", url)
	}
	return owner, repoName, nil
}

// SanitizeName makes a name safe for cloud resources, image names, and
// proxy site files
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('-')
		}
	}
	sanitized := b.String()
	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}
	return strings.ToLower(strings.Trim(sanitized, "-"))
}

// FormatDeploymentURL builds the reachable URL for a directly exposed
// application
func FormatDeploymentURL(publicIP string, port int) string {
	return fmt.Sprintf("http://%s:%d", publicIP, port)
}
