package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/autodock-deploy/utils"
)

// GitService clones and inspects source repositories on a remote host
type GitService struct {
	runner RemoteRunner
}

func NewGitService(runner RemoteRunner) *GitService {
	return &GitService{runner: runner}
}

// EnsureGit installs git if the host does not already have it
func (s *GitService) EnsureGit(ctx context.Context) error {
	res, err := s.runner.Run(ctx, "git --version", 30*time.Second)
	if err != nil {
		return err
	}
	if res.Ok() {
		log.Println("Git already installed:", strings.TrimSpace(res.Stdout))
		return nil
	}

	log.Println("Installing Git on remote instance...")
	commands := []string{
		aptGet + " update",
		aptGet + " install -y git",
	}
	results, err := s.runner.RunSequence(ctx, commands, true)
	if err != nil {
		return fmt.Errorf("git installation failed: %w", err)
	}
	for i, r := range results {
		if !r.Ok() {
			return fmt.Errorf("failed at command %d: %s: %s", i+1, commands[i], strings.TrimSpace(r.Stderr))
		}
	}
	return nil
}

// CloneRepository clones repoURL into the remote user's home directory
// and returns the absolute clone path. When branch is "main" and the
// remote has no such branch, it retries once with "master". A token, if
// given, is injected into the clone URL and never logged.
func (s *GitService) CloneRepository(ctx context.Context, repoURL, branch, token string) (string, error) {
	log.Println("Cloning repository:", repoURL)

	if err := s.EnsureGit(ctx); err != nil {
		return "", fmt.Errorf("failed to install git: %w", err)
	}

	_, repoName, err := utils.ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}
	destination := "~/" + utils.SanitizeName(repoName)

	if branch == "" {
		branch = "main"
	}

	return s.cloneInto(ctx, repoURL, destination, branch, token)
}

func (s *GitService) cloneInto(ctx context.Context, repoURL, destination, branch, token string) (string, error) {
	cloneURL := repoURL
	if token != "" && strings.HasPrefix(repoURL, "https://github.com/") {
		cloneURL = strings.Replace(repoURL, "https://github.com/", "https://"+token+"@github.com/", 1)
	}

	// Clean slate for re-deploys
	if _, err := s.runner.Run(ctx, "rm -rf "+destination, time.Minute); err != nil {
		return "", err
	}

	cloneCmd := fmt.Sprintf("git clone -b %s %s %s", branch, cloneURL, destination)
	if token != "" {
		log.Println("Cloning repository with authentication to", destination)
	} else {
		log.Println("Executing:", cloneCmd)
	}

	res, err := s.runner.Run(ctx, cloneCmd, 5*time.Minute)
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		if branch == "main" && strings.Contains(strings.ToLower(res.Stderr), "not found") {
			log.Println("Branch 'main' not found, trying 'master'")
			return s.cloneInto(ctx, repoURL, destination, "master", token)
		}
		return "", fmt.Errorf("failed to clone repository: %s", strings.TrimSpace(res.Stderr))
	}

	res, err = s.runner.Run(ctx, "readlink -f "+destination, time.Minute)
	if err != nil {
		return "", err
	}
	clonePath := strings.TrimSpace(res.Stdout)

	// The clone may have landed on the fallback branch
	checkedOut := s.CurrentBranch(ctx, clonePath)
	log.Printf("Repository cloned successfully to %s (branch %s)", clonePath, checkedOut)
	return clonePath, nil
}

// VerifyProjectFiles checks that required files exist in the clone and
// returns the missing ones. A nil requiredFiles defaults to Dockerfile.
func (s *GitService) VerifyProjectFiles(ctx context.Context, repoPath string, requiredFiles []string) ([]string, error) {
	if len(requiredFiles) == 0 {
		requiredFiles = []string{"Dockerfile"}
	}
	log.Println("Verifying project files in", repoPath)

	var missing []string
	for _, file := range requiredFiles {
		command := fmt.Sprintf("test -f %s/%s && echo exists || echo missing", repoPath, file)
		res, err := s.runner.Run(ctx, command, 30*time.Second)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(res.Stdout) != "exists" {
			missing = append(missing, file)
		}
	}
	return missing, nil
}

// CommitHash returns the short hash of the clone's current commit
func (s *GitService) CommitHash(ctx context.Context, repoPath string) string {
	res, err := s.runner.Run(ctx, fmt.Sprintf("cd %s && git rev-parse HEAD", repoPath), 30*time.Second)
	if err != nil || !res.Ok() {
		return "unknown"
	}
	hash := strings.TrimSpace(res.Stdout)
	if len(hash) > 8 {
		hash = hash[:8]
	}
	return hash
}

// CurrentBranch returns the clone's checked-out branch
func (s *GitService) CurrentBranch(ctx context.Context, repoPath string) string {
	res, err := s.runner.Run(ctx, fmt.Sprintf("cd %s && git branch --show-current", repoPath), 30*time.Second)
	if err != nil || !res.Ok() {
		return "unknown"
	}
	return strings.TrimSpace(res.Stdout)
}
