package utils

import (
	"fmt"
	"log"
	"regexp"
)

var repoURLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://github\.com/[\w-]+/[\w.-]+/?$`),
	regexp.MustCompile(`^https?://github\.com/[\w-]+/[\w.-]+\.git$`),
	regexp.MustCompile(`^git@github\.com:[\w-]+/[\w.-]+\.git$`),
}

// ValidateRepoURL checks that url points at a GitHub repository
func ValidateRepoURL(url string) error {
	if url == "" {
		return fmt.Errorf("repository URL is required")
	}
	for _, pattern := range repoURLPatterns {
		if pattern.MatchString(url) {
			return nil
		}
	}
	return fmt.Errorf("URL must be a valid GitHub repository URL")
}

// ValidatePort checks the port is usable for a container mapping
func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if port < 1024 {
		log.Printf("Warning: port %d is privileged and may require root access", port)
	}
	return nil
}

// ValidateDeployConfig validates a complete deployment request and
// returns all problems found
func ValidateDeployConfig(repoURL string, hostPort int) []string {
	var errors []string
	if err := ValidateRepoURL(repoURL); err != nil {
		errors = append(errors, fmt.Sprintf("repository URL: %v", err))
	}
	if err := ValidatePort(hostPort); err != nil {
		errors = append(errors, fmt.Sprintf("port: %v", err))
	}
	return errors
}
